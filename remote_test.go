package pagelens

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestRemoteProvider_InitializeRequiresCredential(t *testing.T) {
	p := NewRemoteProvider("", "gemini-1.5-pro", discardLogger())
	err := p.Initialize(context.Background())
	require.Error(t, err)
	assert.Equal(t, CodeInvalidInput, AsProviderError(err).Code)
	assert.False(t, p.CheckAvailability(context.Background()))
}

func TestRemoteProvider_UninitializedRequestsFail(t *testing.T) {
	p := NewRemoteProvider("key", "", discardLogger())

	_, err := p.AnalyzeContent(context.Background(), "proofread", "text")
	require.Error(t, err)
	assert.Equal(t, CodeUnavailable, AsProviderError(err).Code)

	err = p.AnalyzeContentStream(context.Background(), "proofread", "text", nil, &CollectSink{})
	require.Error(t, err)
	assert.Equal(t, CodeUnavailable, AsProviderError(err).Code)
}

func TestRemoteProvider_MapError(t *testing.T) {
	p := NewRemoteProvider("key", "", discardLogger())

	cases := []struct {
		name string
		err  error
		code string
	}{
		{"api rate limit", genai.APIError{Code: 429, Message: "resource exhausted"}, CodeRateLimited},
		{"api server error", genai.APIError{Code: 503, Message: "unavailable"}, CodeServerError},
		{"api token limit", genai.APIError{Code: 400, Message: "input token count exceeds the maximum"}, CodeContentTooLarge},
		{"api bad request", genai.APIError{Code: 400, Message: "invalid argument"}, CodeInvalidInput},
		{"api unauthorized", genai.APIError{Code: 401, Message: "API key not valid"}, CodeInvalidInput},
		{"plain rate limit", errors.New("429 rate limit exceeded"), CodeRateLimited},
		{"plain quota", errors.New("quota exhausted for model"), CodeRateLimited},
		{"plain server", errors.New("got HTTP 503 from backend"), CodeServerError},
		{"plain timeout", errors.New("request timeout while waiting"), CodeTimeout},
		{"plain network", errors.New("dial tcp: connection refused"), CodeNetworkError},
		{"plain token limit", errors.New("token limit exceeded for request"), CodeContentTooLarge},
		{"context canceled", context.Canceled, CodeCancelled},
		{"context deadline", context.DeadlineExceeded, CodeTimeout},
		{"unknown", errors.New("something odd"), CodeRequestFailed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.code, p.mapError(tc.err).Code)
		})
	}
}

func TestIsTokenLimitMessage(t *testing.T) {
	assert.True(t, isTokenLimitMessage("input token count exceeds the maximum"))
	assert.True(t, isTokenLimitMessage("Token limit reached"))
	assert.False(t, isTokenLimitMessage("invalid token in header"), "mentions token but not a size limit")
	assert.False(t, isTokenLimitMessage("request too large"), "no token mention")
}

func TestInlineContents_HistoryRoles(t *testing.T) {
	contents := inlineContents("instruction", "content", []Turn{
		{Role: "user", Content: "question"},
		{Role: "assistant", Content: "answer"},
	})

	require.Len(t, contents, 3)
	assert.Equal(t, genai.Role(genai.RoleUser), genai.Role(contents[0].Role))
	assert.Equal(t, genai.Role(genai.RoleModel), genai.Role(contents[1].Role))
	assert.Equal(t, genai.Role(genai.RoleUser), genai.Role(contents[2].Role))
}

func TestRemoteProvider_Destroy(t *testing.T) {
	p := NewRemoteProvider("key", "", discardLogger())
	p.Destroy()
	assert.False(t, p.CheckAvailability(context.Background()))
	assert.Nil(t, p.TokenInfo())
}
