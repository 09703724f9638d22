// Package pagelens orchestrates language-model analysis of page-derived
// text: proofreading, summarization and free-form Q&A over content that is
// usually far larger than any single model call can accept.
//
// The engine sits between a UI collaborator (which extracts text from a
// page and renders results) and interchangeable model backends. It owns the
// hard parts of that position:
//
//   - Segmentation: oversized input is split into size-bounded,
//     boundary-aware, overlapping chunks (Split).
//   - Dispatch: chunks run through a provider with bounded concurrency,
//     per-attempt timeouts, linear retry backoff and graceful per-chunk
//     degradation (ProcessChunks).
//   - Merging: findings from all chunks are deduplicated and
//     severity-ordered (Merge).
//   - Providers: a uniform capability set over a small-context on-device
//     session (LocalProvider, with emulated streaming) and a large-context
//     remote backend (RemoteProvider, with an alternate blob-upload path
//     via the Files API).
//   - Fail-over: the Orchestrator classifies failures and transparently
//     retries transient ones against a secondary provider.
//   - Partial extraction: structured records are opportunistically pulled
//     out of a live token stream before it is syntactically complete
//     (StreamBuffer, ExtractPartialRecords).
//
// # Basic Usage
//
// Configure an orchestrator and analyze a whole document:
//
//	settings := pagelens.Settings{
//	    Primary:         pagelens.ProviderRemote,
//	    Credential:      os.Getenv("GEMINI_API_KEY"),
//	    ModelName:       "gemini-1.5-pro",
//	    FallbackEnabled: true,
//	    Sessions:        newDeviceSession, // local fallback backend
//	}
//
//	orc := pagelens.NewOrchestrator(settings, slog.Default())
//	if err := orc.Initialize(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer orc.Destroy()
//
//	builder, _ := pagelens.NewInstructionBuilder()
//	instruction, _ := builder.Instruction("proofread", nil)
//
//	report, err := orc.AnalyzeDocument(ctx, instruction, pageText,
//	    pagelens.WithProgress(func(done, total int) {
//	        fmt.Printf("%d/%d chunks\n", done, total)
//	    }))
//
// # Streaming
//
// Interactive requests stream deltas and speculative partial records to a
// sink; exactly one Done or Err event terminates the stream:
//
//	err := orc.AnalyzeContentStream(ctx, instruction, pageText, history,
//	    pagelens.SinkFunc(func(ev pagelens.StreamEvent) {
//	        switch {
//	        case ev.TextDelta != "":
//	            render(ev.TextDelta)
//	        case ev.PartialRecords != nil:
//	            preview(ev.PartialRecords)
//	        case ev.Done:
//	            finish(ev.FinalText, ev.ProviderName)
//	        }
//	    }))
//
// Partial records are hints for progressive UI feedback; the authoritative
// record set always comes from parsing the terminal event's full text.
//
// # Error Model
//
// Every fallible provider operation returns a *ProviderError carrying a
// machine-readable code. The orchestrator fails over only on transient
// transport-level codes (rate limit, server error, network); invalid input
// and missing credentials propagate immediately. Per-chunk failures in the
// batch path are absorbed entirely: a document with fifty chunks and one
// bad chunk still yields forty-nine chunks of findings.
package pagelens
