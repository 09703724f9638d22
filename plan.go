package pagelens

import (
	"fmt"
	"strings"
	"time"
)

// DispatchPlan describes how a document would be processed without touching
// a provider. Useful for planning and cost estimation before committing to
// a run.
type DispatchPlan struct {
	ContentChars int `json:"contentChars"`
	Chunks       int `json:"chunks"`
	Batches      int `json:"batches"`

	// ProviderCalls is the call count when every chunk succeeds on the
	// first attempt; MaxProviderCalls includes the retry budget.
	ProviderCalls    int `json:"providerCalls"`
	MaxProviderCalls int `json:"maxProviderCalls"`

	// EstInputTokens is a rough chars/4 estimate across all chunk
	// payloads plus the instruction repeated per call. Advisory only.
	EstInputTokens int `json:"estInputTokens"`

	// MinDuration is the floor imposed by inter-batch delays alone.
	MinDuration time.Duration `json:"minDuration"`
}

// PlanDocument computes the chunking and batching plan for a document under
// the given options. Deterministic and side-effect free.
func PlanDocument(instruction, content string, optFns ...func(*Options)) *DispatchPlan {
	opts := buildOptions(optFns)

	chunks := Split(content, opts.MaxChunkChars, opts.OverlapChars)
	batches := (len(chunks) + opts.BatchSize - 1) / opts.BatchSize

	tokens := 0
	for _, c := range chunks {
		tokens += EstimateTokensFromText(BuildPrompt(instruction, c.Text))
	}

	minDuration := time.Duration(0)
	if batches > 1 {
		minDuration = time.Duration(batches-1) * opts.BatchDelay
	}

	return &DispatchPlan{
		ContentChars:     len(content),
		Chunks:           len(chunks),
		Batches:          batches,
		ProviderCalls:    len(chunks),
		MaxProviderCalls: len(chunks) * (1 + opts.MaxRetries),
		EstInputTokens:   tokens,
		MinDuration:      minDuration,
	}
}

// Explain renders the plan as human-readable text.
func (p *DispatchPlan) Explain() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Document analysis plan\n")
	fmt.Fprintf(&b, "  content:        %d chars\n", p.ContentChars)
	fmt.Fprintf(&b, "  chunks:         %d\n", p.Chunks)
	fmt.Fprintf(&b, "  batches:        %d\n", p.Batches)
	fmt.Fprintf(&b, "  provider calls: %d (up to %d with retries)\n", p.ProviderCalls, p.MaxProviderCalls)
	fmt.Fprintf(&b, "  est. input:     ~%d tokens\n", p.EstInputTokens)
	fmt.Fprintf(&b, "  min duration:   %s (inter-batch delays)\n", p.MinDuration)
	return b.String()
}

// EstimateTokensFromText provides a rough token estimate from text length.
func EstimateTokensFromText(text string) int {
	// Rough heuristic: ~4 characters per token for English text
	return (len(text) + 3) / 4
}
