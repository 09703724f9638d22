package pagelens

import "unicode/utf8"

// Chunk is a bounded, boundary-aware slice of the original input text.
// Chunks are immutable once created; ids are dense, 0-based and increasing.
// EndOffset-StartOffset always equals len(Text) in source coordinates.
type Chunk struct {
	ID          int    `json:"id"`
	Text        string `json:"text"`
	StartOffset int    `json:"startOffset"`
	EndOffset   int    `json:"endOffset"`

	// OverlapText is the up-to-overlapChars of source text immediately
	// preceding StartOffset. Diagnostic only; never part of the analysis
	// payload sent for this chunk.
	OverlapText string `json:"overlapText,omitempty"`
}

// sentence terminators considered chunk boundaries, best first is rightmost.
func isBoundary(b byte) bool {
	switch b {
	case '.', '!', '?', '\n', ' ':
		return true
	}
	return false
}

// Split cuts text into chunks of at most maxChunkChars, preferring to cut
// just after a sentence terminator, newline or space rather than mid-word.
// Consecutive chunks overlap: each chunk after the first starts overlapChars
// before the previous chunk's end, clamped so a chunk's start never regresses
// to or before the previous chunk's start. Splitting is deterministic: the
// same input and parameters always yield identical boundaries.
func Split(text string, maxChunkChars, overlapChars int) []Chunk {
	if maxChunkChars <= 0 {
		maxChunkChars = DefaultMaxChunkChars
	}
	if overlapChars < 0 {
		overlapChars = 0
	}
	if len(text) <= maxChunkChars {
		return []Chunk{{ID: 0, Text: text, StartOffset: 0, EndOffset: len(text)}}
	}

	var chunks []Chunk
	start := 0
	for start < len(text) {
		end := start + maxChunkChars
		if end >= len(text) {
			end = len(text)
		} else {
			// Walk back to the rightmost boundary strictly after start.
			cut := end
			for cut > start+1 && !isBoundary(text[cut-1]) {
				cut--
			}
			if cut > start+1 {
				end = cut
			} else {
				// No boundary in range: hard cut, backed up so a
				// multibyte rune is never split.
				for end > start+1 && !utf8.RuneStart(text[end]) {
					end--
				}
			}
		}

		chunk := Chunk{
			ID:          len(chunks),
			Text:        text[start:end],
			StartOffset: start,
			EndOffset:   end,
		}
		if start > 0 {
			from := start - overlapChars
			if from < 0 {
				from = 0
			}
			for from < start && !utf8.RuneStart(text[from]) {
				from++
			}
			chunk.OverlapText = text[from:start]
		}
		chunks = append(chunks, chunk)

		if end >= len(text) {
			break
		}
		next := end - overlapChars
		for next > start && !utf8.RuneStart(text[next]) {
			next--
		}
		if next <= start {
			// Overlap exceeds this chunk's length; never regress.
			next = end
		}
		start = next
	}
	return chunks
}
