package pagelens

import (
	"encoding/json"
	"regexp"
	"strings"
)

// responseSentinel is the key the structured-output contract requires; a
// response that never mentions it cannot be a finished analysis.
const responseSentinel = `"errors"`

// analysisResponse is the structured shape providers are instructed to
// return for proofreading-style analysis.
type analysisResponse struct {
	Errors []Record `json:"errors"`
}

// SanitizeResponse removes garbage characters often produced by LLMs:
// leading/trailing whitespace and markdown code fences.
func SanitizeResponse(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// ParseRecords is the authoritative parse of a complete response. It accepts
// either the {"errors": [...]} envelope or a bare record array, drops
// records that fail validation, and returns a PARSE_FAILED error only when
// the text matches neither shape.
func ParseRecords(raw string) ([]Record, error) {
	s := SanitizeResponse(raw)

	var resp analysisResponse
	if err := json.Unmarshal([]byte(s), &resp); err == nil {
		return validRecords(resp.Errors), nil
	}
	var bare []Record
	if err := json.Unmarshal([]byte(s), &bare); err == nil {
		return validRecords(bare), nil
	}
	return nil, NewProviderError(CodeParseFailed, "response is not a structured analysis")
}

func validRecords(in []Record) []Record {
	out := make([]Record, 0, len(in))
	for _, r := range in {
		if r.Valid() {
			out = append(out, r)
		}
	}
	return out
}

// balanced scans brace/bracket nesting, skipping string literals, and
// reports whether nesting is balanced and ever opened.
func balanced(s string) bool {
	depth := 0
	opened := false
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
			opened = true
		case '}', ']':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return opened && depth == 0 && !inString
}

// IsComplete is the completion heuristic for streamed responses: nesting is
// balanced, the structured-output sentinel is present, and the trimmed text
// ends at a closing brace. Best-effort syntactic check, not a full parse.
func IsComplete(text string) bool {
	s := SanitizeResponse(text)
	if !strings.Contains(s, responseSentinel) {
		return false
	}
	if !strings.HasSuffix(s, "}") {
		return false
	}
	return balanced(s)
}

// recordObjectRe matches fully-formed individual record objects that carry
// at least a kind field. Nested objects are not expected inside records.
var recordObjectRe = regexp.MustCompile(`\{[^{}]*"kind"\s*:\s*"[^"]*"[^{}]*\}`)

// kindSuggestionRe is the last-resort scan capturing only kind/suggestion
// pairs out of otherwise unparsable text.
var kindSuggestionRe = regexp.MustCompile(`"kind"\s*:\s*"(typo|grammar|styleIssue)"[^{}]*?"suggestion"\s*:\s*"((?:[^"\\]|\\.)*)"`)

// ExtractPartialRecords opportunistically pulls records out of incomplete
// response text. Strategies, in order: full parse of the buffer if it
// happens to already be valid, a permissive scan for fully-formed record
// objects, then a looser scan capturing only kind/suggestion pairs. Failed
// strategies are silently skipped; the result is hints for progressive UI,
// never the authoritative record set.
func ExtractPartialRecords(text string) []Record {
	s := SanitizeResponse(text)

	if recs, err := ParseRecords(s); err == nil && len(recs) > 0 {
		return recs
	}

	var found []Record
	for _, m := range recordObjectRe.FindAllString(s, -1) {
		var r Record
		if err := json.Unmarshal([]byte(m), &r); err != nil {
			continue
		}
		if r.Valid() {
			found = append(found, r)
		}
	}
	if len(found) > 0 {
		return found
	}

	for _, m := range kindSuggestionRe.FindAllStringSubmatch(s, -1) {
		r := Record{Kind: Kind(m[1]), Suggestion: m[2]}
		if r.Valid() {
			found = append(found, r)
		}
	}
	return found
}

// StreamBuffer accumulates response fragments from a provider stream and
// tracks which partial records have already been reported. Fragments may be
// delta-only or cumulative: a fragment that extends the current buffer is
// treated as the new cumulative text and sliced, anything else is appended
// as a pure delta.
type StreamBuffer struct {
	text string
	seen map[string]struct{}
}

// Ingest merges one fragment into the buffer and returns the effective
// delta it contributed.
func (b *StreamBuffer) Ingest(fragment string) string {
	if fragment == "" {
		return ""
	}
	if len(fragment) > len(b.text) && strings.HasPrefix(fragment, b.text) {
		delta := fragment[len(b.text):]
		b.text = fragment
		return delta
	}
	b.text += fragment
	return fragment
}

// Text returns the accumulated response so far.
func (b *StreamBuffer) Text() string { return b.text }

// Complete applies the completion heuristic to the accumulated text.
func (b *StreamBuffer) Complete() bool { return IsComplete(b.text) }

// NewRecords returns partial records not yet reported by a previous call.
// Freshness is keyed by record identity, so a later, stricter extraction
// pass that enriches or reorders earlier loose hints never skips a fresh
// record. Returns nil while extraction finds nothing new; a partial-parse
// miss is never an error.
func (b *StreamBuffer) NewRecords() []Record {
	var fresh []Record
	for _, r := range ExtractPartialRecords(b.text) {
		key := r.dedupKey()
		if _, dup := b.seen[key]; dup {
			continue
		}
		if b.seen == nil {
			b.seen = make(map[string]struct{})
		}
		b.seen[key] = struct{}{}
		fresh = append(fresh, r)
	}
	return fresh
}
