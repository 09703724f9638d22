package pagelens

import (
	"context"
	"errors"
	"fmt"
)

// Error codes carried by ProviderError. Every provider operation fails with
// one of these so the orchestrator can classify failures without string
// matching.
const (
	// Backend not usable at all.
	CodeUnavailable = "UNAVAILABLE"
	// Backend exists but is not yet usable (model still downloading, etc.).
	CodeNotReady = "NOT_READY"
	// Transient transport-level failures, eligible for fail-over.
	CodeRateLimited   = "RATE_LIMITED"
	CodeServerError   = "SERVER_ERROR"
	CodeNetworkError  = "NETWORK_ERROR"
	CodeRequestFailed = "REQUEST_FAILED"
	// Oversized or malformed request; never retried.
	CodeInvalidInput = "INVALID_INPUT"
	// Backend token-limit signal; caller may retry via the inline path.
	CodeContentTooLarge = "CONTENT_TOO_LARGE"
	// Response did not match the expected structure.
	CodeParseFailed = "PARSE_FAILED"
	CodeTimeout     = "TIMEOUT"
	CodeCancelled   = "CANCELLED"
)

// ProviderError is the single tagged error value returned by every fallible
// provider operation. Code is machine-readable, Message human-readable,
// Details optional backend context.
type ProviderError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *ProviderError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewProviderError builds a tagged error with a formatted message.
func NewProviderError(code, format string, args ...any) *ProviderError {
	return &ProviderError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// AsProviderError unwraps err into a ProviderError. A non-nil error that is
// not a ProviderError is wrapped as a generic request failure, so callers
// always see a classifiable code.
func AsProviderError(err error) *ProviderError {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	if errors.Is(err, context.Canceled) {
		return &ProviderError{Code: CodeCancelled, Message: err.Error()}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &ProviderError{Code: CodeTimeout, Message: err.Error()}
	}
	return &ProviderError{Code: CodeRequestFailed, Message: err.Error()}
}

// fallbackEligible reports whether a failure with this code may be retried
// in full against a secondary provider. Only transient transport-level
// failures qualify; invalid input, missing credentials, parse failures and
// timeouts propagate as-is.
func fallbackEligible(code string) bool {
	switch code {
	case CodeRateLimited, CodeServerError, CodeNetworkError, CodeRequestFailed:
		return true
	}
	return false
}

// Turn is one entry of prior conversation history.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// StreamEvent is one element of a streaming response. Events arrive in
// strict order; exactly one terminal event (Done or Err) ends a stream.
type StreamEvent struct {
	// TextDelta is a fragment of response text. Fragments may be
	// delta-only or cumulative depending on the backend; see StreamBuffer.
	TextDelta string

	// PartialRecords are findings speculatively extracted from the
	// incomplete buffer. Hints for progressive UI only; the authoritative
	// set comes with the terminal Done event.
	PartialRecords []Record

	// Done marks successful completion. FinalText carries the whole
	// response, Usage the provider-reported quota if available, and
	// ProviderName whichever provider actually completed the request.
	Done         bool
	FinalText    string
	Usage        *TokenUsage
	ProviderName string

	// Err terminates a failed stream.
	Err *ProviderError
}

// StreamSink receives stream events. Real and emulated streaming providers
// are interchangeable behind this interface.
type StreamSink interface {
	Push(StreamEvent)
}

// SinkFunc adapts a plain function to a StreamSink.
type SinkFunc func(StreamEvent)

func (f SinkFunc) Push(ev StreamEvent) { f(ev) }

// Provider is the uniform capability set over a model backend. Handles are
// long-lived: explicitly initialized, reused across requests, and destroyed
// on reconfiguration. A handle holds no per-request state.
//
// On failure every method returns a *ProviderError; streaming methods
// additionally must not push a terminal event when they return an error
// (the orchestrator owns the caller-visible terminal error).
type Provider interface {
	Initialize(ctx context.Context) error
	CheckAvailability(ctx context.Context) bool
	AnalyzeContent(ctx context.Context, instruction, content string) (string, error)
	AnalyzeContentStream(ctx context.Context, instruction, content string, history []Turn, sink StreamSink) error
	TokenInfo() *TokenUsage
	Name() string
	Destroy()
}
