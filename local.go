package pagelens

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"
)

// DefaultLocalMaxInputChars bounds what the local variant will accept in a
// single prompt; on-device sessions have a small fixed context window.
const DefaultLocalMaxInputChars = 8 * 1024

// Session is the on-device model backend the local provider wraps: a small
// fixed-context conversational session with no streaming of its own.
type Session interface {
	// Prompt sends text and blocks until the full response is available.
	Prompt(ctx context.Context, text string) (string, error)
	// Usage reports consumed and total input quota; ok is false when the
	// backend does not expose quota.
	Usage() (used, quota int, ok bool)
	Destroy()
}

// SessionFactory constructs a fresh Session.
type SessionFactory func(ctx context.Context) (Session, error)

// LocalProvider adapts a bounded-context Session to the Provider contract.
// The backend has no streaming, so AnalyzeContentStream re-emits a completed
// result as word deltas with a small randomized inter-delta delay.
type LocalProvider struct {
	factory       SessionFactory
	session       Session
	maxInputChars int
	log           *slog.Logger
}

// NewLocalProvider wraps a session factory. The handle is inert until
// Initialize is called.
func NewLocalProvider(factory SessionFactory, log *slog.Logger) *LocalProvider {
	if log == nil {
		log = slog.Default()
	}
	return &LocalProvider{factory: factory, maxInputChars: DefaultLocalMaxInputChars, log: log}
}

func (p *LocalProvider) Name() string { return "local" }

func (p *LocalProvider) Initialize(ctx context.Context) error {
	if p.factory == nil {
		return NewProviderError(CodeUnavailable, "no session factory configured")
	}
	session, err := p.factory(ctx)
	if err != nil {
		return &ProviderError{Code: CodeUnavailable, Message: "session creation failed", Details: err.Error()}
	}
	p.session = session
	p.log.Debug("local session created")
	return nil
}

func (p *LocalProvider) CheckAvailability(_ context.Context) bool {
	return p.session != nil
}

func (p *LocalProvider) TokenInfo() *TokenUsage {
	if p.session == nil {
		return nil
	}
	used, quota, ok := p.session.Usage()
	if !ok {
		return nil
	}
	return &TokenUsage{Used: used, Quota: quota, Remaining: quota - used}
}

func (p *LocalProvider) Destroy() {
	if p.session != nil {
		p.session.Destroy()
		p.session = nil
	}
}

func (p *LocalProvider) AnalyzeContent(ctx context.Context, instruction, content string) (string, error) {
	prompt, err := p.buildPrompt(instruction, content, nil)
	if err != nil {
		return "", err
	}
	result, perr := p.prompt(ctx, prompt)
	if perr != nil {
		return "", perr
	}
	return result, nil
}

func (p *LocalProvider) AnalyzeContentStream(ctx context.Context, instruction, content string, history []Turn, sink StreamSink) error {
	prompt, err := p.buildPrompt(instruction, content, history)
	if err != nil {
		return err
	}
	result, perr := p.prompt(ctx, prompt)
	if perr != nil {
		return perr
	}

	// Emulate streaming: word-sized deltas, randomized small delay, same
	// event contract as a true streaming backend.
	for _, delta := range strings.SplitAfter(result, " ") {
		if delta == "" {
			continue
		}
		select {
		case <-ctx.Done():
			return AsProviderError(ctx.Err())
		case <-time.After(time.Duration(5+rand.IntN(20)) * time.Millisecond):
		}
		sink.Push(StreamEvent{TextDelta: delta})
	}

	sink.Push(StreamEvent{
		Done:         true,
		FinalText:    result,
		Usage:        p.TokenInfo(),
		ProviderName: p.Name(),
	})
	return nil
}

func (p *LocalProvider) buildPrompt(instruction, content string, history []Turn) (string, error) {
	if instruction == "" {
		return "", NewProviderError(CodeInvalidInput, "instruction is empty")
	}
	if content == "" {
		return "", NewProviderError(CodeInvalidInput, "content is empty")
	}
	if p.session == nil {
		return "", NewProviderError(CodeUnavailable, "local session not initialized")
	}

	var b strings.Builder
	for _, turn := range history {
		b.WriteString(turn.Role)
		b.WriteString(": ")
		b.WriteString(turn.Content)
		b.WriteString("\n")
	}
	b.WriteString(BuildPrompt(instruction, content))

	prompt := b.String()
	if len(prompt) > p.maxInputChars {
		return "", NewProviderError(CodeContentTooLarge,
			"prompt of %d chars exceeds the local context window of %d", len(prompt), p.maxInputChars)
	}
	return prompt, nil
}

func (p *LocalProvider) prompt(ctx context.Context, prompt string) (string, *ProviderError) {
	result, err := p.session.Prompt(ctx, prompt)
	if err != nil {
		return "", AsProviderError(err)
	}
	return result, nil
}
