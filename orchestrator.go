package pagelens

import (
	"context"
	"log/slog"
)

// AnalysisResult is the outcome of a single-shot analysis.
type AnalysisResult struct {
	Text         string      `json:"resultText"`
	ProviderName string      `json:"providerName"`
	Usage        *TokenUsage `json:"tokenUsage,omitempty"`
}

// Orchestrator owns the provider handles, performs availability checks,
// executes single-shot, streaming and whole-document requests, classifies
// failures and fails over to a secondary provider transparently.
//
// Handles are long-lived and rebuilt from scratch on reconfiguration; an
// in-flight request keeps using the handles it captured at start.
type Orchestrator struct {
	settings Settings
	primary  Provider
	fallback Provider
	log      *slog.Logger

	// newProvider is the construction seam; tests swap it for fakes.
	newProvider func(kind ProviderKind, s Settings, log *slog.Logger) Provider
}

// NewOrchestrator configures an orchestrator; Initialize builds the handles.
func NewOrchestrator(settings Settings, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		settings:    settings,
		log:         log,
		newProvider: buildProvider,
	}
}

func buildProvider(kind ProviderKind, s Settings, log *slog.Logger) Provider {
	if kind == ProviderRemote {
		return NewRemoteProvider(s.Credential, s.ModelName, log)
	}
	return NewLocalProvider(s.Sessions, log)
}

// Initialize constructs and initializes the configured primary. When the
// configuration names the remote provider with fallback enabled, the local
// fallback is eagerly built too; failing to build it only disables fallback
// for the session. When the primary itself fails, the already-initialized
// fallback is promoted, or as a last resort a local instance is stood up.
func (o *Orchestrator) Initialize(ctx context.Context) error {
	primary := o.newProvider(o.settings.Primary, o.settings, o.log)
	primaryErr := primary.Initialize(ctx)
	if primaryErr == nil {
		o.primary = primary
	}

	if o.settings.Primary == ProviderRemote && o.settings.FallbackEnabled {
		fallback := o.newProvider(ProviderLocal, o.settings, o.log)
		if err := fallback.Initialize(ctx); err != nil {
			o.log.Warn("fallback initialization failed, fallback disabled for this session", "error", err)
		} else {
			o.fallback = fallback
		}
	}

	if primaryErr != nil {
		if o.fallback != nil {
			o.log.Warn("primary initialization failed, promoting fallback", "error", primaryErr)
			o.primary = o.fallback
			o.fallback = nil
			return nil
		}
		last := NewLocalProvider(o.settings.Sessions, o.log)
		if err := last.Initialize(ctx); err != nil {
			return AsProviderError(primaryErr)
		}
		o.log.Warn("primary initialization failed, using local provider", "error", primaryErr)
		o.primary = last
	}
	return nil
}

// Reconfigure tears down the existing handles and rebuilds them from the
// new settings. Never mutates a live handle.
func (o *Orchestrator) Reconfigure(ctx context.Context, settings Settings) error {
	o.Destroy()
	o.settings = settings
	return o.Initialize(ctx)
}

// Destroy releases both provider handles.
func (o *Orchestrator) Destroy() {
	if o.primary != nil {
		o.primary.Destroy()
		o.primary = nil
	}
	if o.fallback != nil {
		o.fallback.Destroy()
		o.fallback = nil
	}
}

// CheckAvailability reports whether the active primary is usable.
func (o *Orchestrator) CheckAvailability(ctx context.Context) bool {
	return o.primary != nil && o.primary.CheckAvailability(ctx)
}

// ProviderName names the active primary.
func (o *Orchestrator) ProviderName() string {
	if o.primary == nil {
		return ""
	}
	return o.primary.Name()
}

// TokenInfo reports the active primary's advisory quota, if any.
func (o *Orchestrator) TokenInfo() *TokenUsage {
	if o.primary == nil {
		return nil
	}
	return o.primary.TokenInfo()
}

// AnalyzeContent runs a single-shot request against the primary, retrying
// the full request once against the fallback when the failure is a
// transient transport-level one. Total exhaustion of both providers
// surfaces as a single combined error; the caller never receives a partial
// result silently.
func (o *Orchestrator) AnalyzeContent(ctx context.Context, instruction, content string) (*AnalysisResult, error) {
	primary, fallback := o.primary, o.fallback
	if primary == nil {
		return nil, NewProviderError(CodeUnavailable, "no provider configured")
	}

	text, err := primary.AnalyzeContent(ctx, instruction, content)
	if err == nil {
		return &AnalysisResult{Text: text, ProviderName: primary.Name(), Usage: primary.TokenInfo()}, nil
	}

	pe := AsProviderError(err)
	if !fallbackEligible(pe.Code) || fallback == nil {
		return nil, pe
	}

	o.log.Warn("primary request failed, retrying on fallback", "code", pe.Code, "error", pe.Message)
	text, err = fallback.AnalyzeContent(ctx, instruction, content)
	if err == nil {
		return &AnalysisResult{
			Text:         text,
			ProviderName: fallback.Name() + " (fallback)",
			Usage:        fallback.TokenInfo(),
		}, nil
	}

	fpe := AsProviderError(err)
	return nil, &ProviderError{
		Code:    CodeRequestFailed,
		Message: "both providers failed",
		Details: primary.Name() + ": " + pe.Message + "; " + fallback.Name() + ": " + fpe.Message,
	}
}

// AnalyzeContentStream runs a streaming request with the same fail-over
// classification applied around the whole call: if the primary stream fails
// before completion, the entire request is re-issued against the fallback
// from the start. Deltas are forwarded unmodified; partial records are
// speculatively extracted from the live buffer and interleaved; the
// terminal event names whichever provider actually completed the request.
func (o *Orchestrator) AnalyzeContentStream(ctx context.Context, instruction, content string, history []Turn, sink StreamSink) error {
	primary, fallback := o.primary, o.fallback
	if primary == nil {
		pe := NewProviderError(CodeUnavailable, "no provider configured")
		sink.Push(StreamEvent{Err: pe})
		return pe
	}

	err := primary.AnalyzeContentStream(ctx, instruction, content, history,
		&extractingSink{inner: sink, providerLabel: primary.Name()})
	if err == nil {
		return nil
	}

	pe := AsProviderError(err)
	if !fallbackEligible(pe.Code) || fallback == nil {
		sink.Push(StreamEvent{Err: pe})
		return pe
	}

	o.log.Warn("primary stream failed, re-issuing on fallback", "code", pe.Code, "error", pe.Message)
	err = fallback.AnalyzeContentStream(ctx, instruction, content, history,
		&extractingSink{inner: sink, providerLabel: fallback.Name() + " (fallback)"})
	if err == nil {
		return nil
	}

	fpe := AsProviderError(err)
	combined := &ProviderError{
		Code:    CodeRequestFailed,
		Message: "both providers failed",
		Details: primary.Name() + ": " + pe.Message + "; " + fallback.Name() + ": " + fpe.Message,
	}
	sink.Push(StreamEvent{Err: combined})
	return combined
}

// AnalyzeDocument is the whole-document batch path: the content is split
// into overlapping chunks, dispatched with bounded concurrency and retries,
// parsed, merged and deduplicated. Individual chunk failures degrade to
// empty results rather than aborting the run.
func (o *Orchestrator) AnalyzeDocument(ctx context.Context, instruction, content string, optFns ...func(*Options)) (*Report, error) {
	if instruction == "" {
		return nil, ErrEmptyInstruction
	}
	if content == "" {
		return nil, ErrEmptyContent
	}

	opts := buildOptions(optFns)

	chunks := Split(content, opts.MaxChunkChars, opts.OverlapChars)
	o.log.Debug("document split", "chunks", len(chunks), "content_length", len(content))

	analyze := func(ctx context.Context, chunk Chunk) ([]Record, error) {
		result, err := o.AnalyzeContent(ctx, instruction, chunk.Text)
		if err != nil {
			return nil, err
		}
		records, perr := ParseRecords(result.Text)
		if perr != nil {
			// Unparsable responses degrade to empty findings, never fatal.
			o.log.Warn("chunk response unparsable", "chunk", chunk.ID)
			return nil, nil
		}
		for i := range records {
			records[i].SourceChunkID = chunk.ID
		}
		return records, nil
	}

	results := ProcessChunks(ctx, chunks, analyze, optFns...)
	records := Merge(results)
	return &Report{Records: records, Stats: buildStats(records)}, nil
}

// extractingSink forwards provider events to the caller, feeding text
// deltas through the partial extractor and stamping the completing
// provider's name on the terminal event.
type extractingSink struct {
	inner         StreamSink
	buf           StreamBuffer
	providerLabel string
}

func (s *extractingSink) Push(ev StreamEvent) {
	if ev.Done {
		ev.ProviderName = s.providerLabel
		if ev.FinalText == "" {
			ev.FinalText = s.buf.Text()
		}
		s.inner.Push(ev)
		return
	}
	if ev.TextDelta != "" {
		s.buf.Ingest(ev.TextDelta)
		s.inner.Push(ev)
		if recs := s.buf.NewRecords(); len(recs) > 0 {
			s.inner.Push(StreamEvent{PartialRecords: recs})
		}
		return
	}
	s.inner.Push(ev)
}
