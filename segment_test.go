package pagelens

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// reassemble rebuilds the source text from overlapping chunks by skipping
// each chunk's region shared with its predecessor.
func reassemble(chunks []Chunk) string {
	var b strings.Builder
	prevEnd := 0
	for _, c := range chunks {
		skip := prevEnd - c.StartOffset
		if skip < 0 {
			skip = 0
		}
		b.WriteString(c.Text[skip:])
		prevEnd = c.EndOffset
	}
	return b.String()
}

func TestSplit_ShortInputSingleChunk(t *testing.T) {
	text := "A short document."
	chunks := Split(text, 100, 10)

	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].ID)
	assert.Equal(t, text, chunks[0].Text)
	assert.Equal(t, 0, chunks[0].StartOffset)
	assert.Equal(t, len(text), chunks[0].EndOffset)
	assert.Empty(t, chunks[0].OverlapText)
}

func TestSplit_ReconstructsInput(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 200)
	chunks := Split(text, 500, 50)

	require.Greater(t, len(chunks), 1)
	assert.Equal(t, text, reassemble(chunks))

	for i, c := range chunks {
		assert.Equal(t, i, c.ID, "chunk ids must be dense and 0-based")
		assert.Equal(t, c.EndOffset-c.StartOffset, len(c.Text))
		assert.Equal(t, text[c.StartOffset:c.EndOffset], c.Text)
	}
}

func TestSplit_OverlapOffsets(t *testing.T) {
	// 45,000 chars with no boundaries: hard cuts at maxChunkChars.
	text := strings.Repeat("a", 45000)
	chunks := Split(text, 20000, 500)

	require.Len(t, chunks, 3)
	assert.Equal(t, chunks[0].EndOffset-500, chunks[1].StartOffset)
	assert.Equal(t, chunks[1].EndOffset-500, chunks[2].StartOffset)
	assert.Equal(t, 45000, chunks[2].EndOffset)
	assert.Equal(t, text, reassemble(chunks))
}

func TestSplit_PrefersBoundary(t *testing.T) {
	text := "Hello world. This is fine."
	chunks := Split(text, 15, 0)

	require.Greater(t, len(chunks), 1)
	// The first cut lands after the space following the sentence
	// terminator, not mid-word at offset 15.
	assert.Equal(t, "Hello world. ", chunks[0].Text)
}

func TestSplit_HardCutWithoutBoundary(t *testing.T) {
	text := strings.Repeat("x", 25)
	chunks := Split(text, 10, 0)

	require.Len(t, chunks, 3)
	assert.Equal(t, 10, chunks[0].EndOffset)
	assert.Equal(t, 20, chunks[1].EndOffset)
}

func TestSplit_OverlapClampNeverRegresses(t *testing.T) {
	// Overlap far exceeds chunk length: the next start clamps to the
	// previous end instead of regressing.
	text := strings.Repeat("y", 35)
	chunks := Split(text, 10, 20)

	require.Greater(t, len(chunks), 1)
	for i := 1; i < len(chunks); i++ {
		assert.Greater(t, chunks[i].StartOffset, chunks[i-1].StartOffset, "chunk %d regressed", i)
		assert.Equal(t, chunks[i-1].EndOffset, chunks[i].StartOffset)
	}
	assert.Equal(t, text, reassemble(chunks))
}

func TestSplit_OverlapTextPrecedesStart(t *testing.T) {
	text := strings.Repeat("b", 100)
	chunks := Split(text, 40, 10)

	require.Greater(t, len(chunks), 1)
	for _, c := range chunks[1:] {
		from := c.StartOffset - 10
		if from < 0 {
			from = 0
		}
		assert.Equal(t, text[from:c.StartOffset], c.OverlapText)
	}
}

func TestSplit_HardCutsKeepRunesIntact(t *testing.T) {
	t.Run("two-byte runes", func(t *testing.T) {
		text := strings.Repeat("é", 40) // no boundaries: hard cuts only
		chunks := Split(text, 25, 4)

		require.Greater(t, len(chunks), 1)
		for _, c := range chunks {
			assert.True(t, utf8.ValidString(c.Text), "chunk %d payload is not valid UTF-8", c.ID)
			assert.True(t, utf8.ValidString(c.OverlapText))
		}
		assert.Equal(t, text, reassemble(chunks))
	})

	t.Run("three-byte runes with overlap", func(t *testing.T) {
		text := strings.Repeat("世", 30)
		chunks := Split(text, 10, 4)

		require.Greater(t, len(chunks), 1)
		for _, c := range chunks {
			assert.True(t, utf8.ValidString(c.Text), "chunk %d payload is not valid UTF-8", c.ID)
			assert.True(t, utf8.ValidString(c.OverlapText))
		}
		assert.Equal(t, text, reassemble(chunks))
	})
}

func TestSplit_Deterministic(t *testing.T) {
	text := strings.Repeat("Sentences vary in length. Some are short. Others ramble on considerably longer than they should. ", 100)
	a := Split(text, 700, 80)
	b := Split(text, 700, 80)
	assert.Equal(t, a, b)
}
