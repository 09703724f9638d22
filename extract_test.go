package pagelens

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const completeResponse = `{"errors":[{"kind":"typo","severity":"error","original":"teh","suggestion":"the","explanation":"transposed letters"}]}`

func TestSanitizeResponse(t *testing.T) {
	assert.Equal(t, `{"errors":[]}`, SanitizeResponse("```json\n{\"errors\":[]}\n```"))
	assert.Equal(t, `{"errors":[]}`, SanitizeResponse("  {\"errors\":[]}  "))
	assert.Equal(t, `{"errors":[]}`, SanitizeResponse("```\n{\"errors\":[]}\n```"))
}

func TestParseRecords(t *testing.T) {
	t.Run("envelope", func(t *testing.T) {
		recs, err := ParseRecords(completeResponse)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, KindTypo, recs[0].Kind)
		assert.Equal(t, "the", recs[0].Suggestion)
	})

	t.Run("bare array", func(t *testing.T) {
		recs, err := ParseRecords(`[{"kind":"grammar","severity":"warning","original":"is are","suggestion":"are"}]`)
		require.NoError(t, err)
		require.Len(t, recs, 1)
	})

	t.Run("invalid records dropped", func(t *testing.T) {
		recs, err := ParseRecords(`{"errors":[{"kind":"nonsense","original":"a","suggestion":"b"},{"kind":"typo","original":"teh","suggestion":"the"}]}`)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, KindTypo, recs[0].Kind)
	})

	t.Run("garbage is PARSE_FAILED", func(t *testing.T) {
		_, err := ParseRecords("the model wrote prose instead")
		require.Error(t, err)
		assert.Equal(t, CodeParseFailed, AsProviderError(err).Code)
	})
}

func TestIsComplete(t *testing.T) {
	assert.True(t, IsComplete(completeResponse))
	assert.True(t, IsComplete("```json\n"+completeResponse+"\n```"))

	assert.False(t, IsComplete(`{"errors":[`), "unbalanced")
	assert.False(t, IsComplete(`{"findings":[]}`), "missing sentinel")
	assert.False(t, IsComplete(`{"errors":[]} trailing`), "does not end at a closing brace")
	assert.False(t, IsComplete(""), "empty")
	// Braces inside string literals do not affect nesting.
	assert.True(t, IsComplete(`{"errors":[{"kind":"typo","original":"a}b","suggestion":"c"}]}`))
	assert.False(t, IsComplete(`{"errors":[{"kind":"typo","original":"a}b`))
}

func TestExtractPartialRecords(t *testing.T) {
	t.Run("full parse when already valid", func(t *testing.T) {
		recs := ExtractPartialRecords(completeResponse)
		require.Len(t, recs, 1)
		assert.Equal(t, "transposed letters", recs[0].Explanation)
	})

	t.Run("fully-formed objects in incomplete buffer", func(t *testing.T) {
		recs := ExtractPartialRecords(`{"errors":[{"kind":"typo","severity":"error","original":"teh","suggestion":"the"},{"kind":"gra`)
		require.Len(t, recs, 1)
		assert.Equal(t, "teh", recs[0].Original)
	})

	t.Run("loose kind and suggestion pairs", func(t *testing.T) {
		recs := ExtractPartialRecords(`{"errors":[{"kind":"grammar","original":"is are","suggestion":"are"`)
		require.Len(t, recs, 1)
		assert.Equal(t, KindGrammar, recs[0].Kind)
		assert.Equal(t, "are", recs[0].Suggestion)
	})

	t.Run("nothing extractable", func(t *testing.T) {
		assert.Empty(t, ExtractPartialRecords(`{"errors":[`))
		assert.Empty(t, ExtractPartialRecords(""))
	})
}

// The canonical incremental sequence: zero partials for the first two
// fragments, one partialRecords emission once a complete record object
// appears, completion only when nesting balances and the text ends at }.
func TestStreamBuffer_IncrementalSequence(t *testing.T) {
	var buf StreamBuffer

	buf.Ingest(`{`)
	assert.Nil(t, buf.NewRecords())
	assert.False(t, buf.Complete())

	buf.Ingest(`{"errors":[`)
	assert.Nil(t, buf.NewRecords())
	assert.False(t, buf.Complete())

	buf.Ingest(`{"errors":[{"kind":"typo","severity":"error","original":"teh","suggestion":"the"}`)
	recs := buf.NewRecords()
	require.Len(t, recs, 1)
	assert.Equal(t, KindTypo, recs[0].Kind)
	assert.False(t, buf.Complete())
	// No re-emission of already-reported records.
	assert.Nil(t, buf.NewRecords())

	buf.Ingest(`{"errors":[{"kind":"typo","severity":"error","original":"teh","suggestion":"the"}]}`)
	assert.True(t, buf.Complete())
	assert.Nil(t, buf.NewRecords())

	recs, err := ParseRecords(buf.Text())
	require.NoError(t, err)
	require.Len(t, recs, 1)
}

// A loose early hint must not suppress the richer record a later, stricter
// extraction pass produces for new text, and identical records are never
// re-emitted.
func TestStreamBuffer_FreshnessKeyedByIdentity(t *testing.T) {
	var buf StreamBuffer

	buf.Ingest(`{"errors":[{"kind":"grammar","original":"is are","suggestion":"are"`)
	recs := buf.NewRecords()
	require.Len(t, recs, 1)
	assert.Empty(t, recs[0].Original, "loose pass captures only kind and suggestion")

	buf.Ingest(`,"severity":"warning"},{"kind":"typo","original":"teh","suggestion":"the"}`)
	recs = buf.NewRecords()
	require.Len(t, recs, 2, "enriched grammar record and the new typo are both fresh")
	assert.Equal(t, "is are", recs[0].Original)
	assert.Equal(t, KindTypo, recs[1].Kind)

	assert.Nil(t, buf.NewRecords(), "nothing new on an unchanged buffer")
}

func TestStreamBuffer_Ingest(t *testing.T) {
	t.Run("cumulative fragments are sliced", func(t *testing.T) {
		var buf StreamBuffer
		assert.Equal(t, "ab", buf.Ingest("ab"))
		assert.Equal(t, "cd", buf.Ingest("abcd"))
		assert.Equal(t, "abcd", buf.Text())
	})

	t.Run("delta fragments are appended", func(t *testing.T) {
		var buf StreamBuffer
		buf.Ingest("hello ")
		assert.Equal(t, "world", buf.Ingest("world"))
		assert.Equal(t, "hello world", buf.Text())
	})

	t.Run("empty fragment is a no-op", func(t *testing.T) {
		var buf StreamBuffer
		buf.Ingest("x")
		assert.Equal(t, "", buf.Ingest(""))
		assert.Equal(t, "x", buf.Text())
	})
}
