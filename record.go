package pagelens

import (
	"errors"
	"strings"
)

// ErrEmptyContent is returned when the content to analyze is an empty string.
var ErrEmptyContent = errors.New("content is empty")

// ErrEmptyInstruction is returned when no instruction was provided.
var ErrEmptyInstruction = errors.New("instruction is empty")

// Kind classifies what a finding is about.
type Kind string

const (
	KindTypo    Kind = "typo"
	KindGrammar Kind = "grammar"
	KindStyle   Kind = "styleIssue"
)

// Severity orders findings for presentation. Errors sort before warnings,
// warnings before informational notes.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Rank returns the sort rank of a severity. Unrecognized or missing
// severities rank as warnings.
func (s Severity) Rank() int {
	switch s {
	case SeverityError:
		return 0
	case SeverityWarning:
		return 1
	case SeverityInfo:
		return 2
	default:
		return 1
	}
}

// Position locates a finding inside the text of the chunk that produced it.
type Position struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Record is one structured finding produced by a model response: a detected
// problem together with a suggested replacement. Records are never mutated
// after creation.
type Record struct {
	Kind          Kind      `json:"kind"`
	Severity      Severity  `json:"severity"`
	Original      string    `json:"original"`
	Suggestion    string    `json:"suggestion"`
	Explanation   string    `json:"explanation,omitempty"`
	SourceChunkID int       `json:"sourceChunkId,omitempty"`
	Position      *Position `json:"position,omitempty"`
}

// Valid reports whether the record carries the minimum a consumer can act
// on: a recognized kind and a non-empty original/suggestion pair.
func (r Record) Valid() bool {
	switch r.Kind {
	case KindTypo, KindGrammar, KindStyle:
	default:
		return false
	}
	return strings.TrimSpace(r.Original) != "" || strings.TrimSpace(r.Suggestion) != ""
}

// dedupKey is the composite identity used by Merge. Two records with the
// same kind, original and suggestion are considered the same finding even
// when different chunks reported them.
func (r Record) dedupKey() string {
	return string(r.Kind) + "\x00" + r.Original + "\x00" + r.Suggestion
}

// ChunkResult holds everything a single chunk produced. A degraded result
// (all retries exhausted) has no records and zero elapsed time.
type ChunkResult struct {
	ChunkID   int      `json:"chunkId"`
	Records   []Record `json:"records"`
	ElapsedMs int64    `json:"elapsedMs"`
}

// TokenUsage is provider-reported quota information. Advisory only; the
// engine never enforces it.
type TokenUsage struct {
	Used      int `json:"used"`
	Quota     int `json:"quota"`
	Remaining int `json:"remaining"`
}

// ReportStats summarizes a merged record set.
type ReportStats struct {
	Total      int              `json:"total"`
	ByKind     map[Kind]int     `json:"byKind"`
	BySeverity map[Severity]int `json:"bySeverity"`
}

// Report is the structured outcome of a whole-document analysis.
type Report struct {
	Records []Record    `json:"records"`
	Stats   ReportStats `json:"stats"`
}

func buildStats(records []Record) ReportStats {
	stats := ReportStats{
		Total:      len(records),
		ByKind:     make(map[Kind]int),
		BySeverity: make(map[Severity]int),
	}
	for _, r := range records {
		stats.ByKind[r.Kind]++
		stats.BySeverity[r.Severity]++
	}
	return stats
}
