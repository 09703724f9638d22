package pagelens

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"google.golang.org/genai"
)

// RemoteProvider talks to the Gemini API via Google GenAI. Payloads below
// inlineThreshold travel inside the request; larger content is uploaded as
// a detached blob through the Files API and referenced by handle, with the
// blob deleted afterward regardless of outcome.
type RemoteProvider struct {
	client *genai.Client

	apiKey          string
	model           string
	inlineThreshold int
	pollInterval    time.Duration
	pollTimeout     time.Duration

	lastUsage *TokenUsage
	log       *slog.Logger
}

// NewRemoteProvider builds an inert handle; Initialize creates the client.
func NewRemoteProvider(apiKey, model string, log *slog.Logger) *RemoteProvider {
	if log == nil {
		log = slog.Default()
	}
	if model == "" {
		model = "gemini-1.5-pro"
	}
	return &RemoteProvider{
		apiKey:          apiKey,
		model:           model,
		inlineThreshold: DefaultInlineThreshold,
		pollInterval:    500 * time.Millisecond,
		pollTimeout:     30 * time.Second,
		log:             log,
	}
}

func (p *RemoteProvider) Name() string { return "gemini" }

func (p *RemoteProvider) Initialize(ctx context.Context) error {
	if p.apiKey == "" {
		return NewProviderError(CodeInvalidInput, "missing API credential")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  p.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return &ProviderError{Code: CodeUnavailable, Message: "client creation failed", Details: err.Error()}
	}
	p.client = client
	p.log.Debug("remote client created", "model", p.model)
	return nil
}

func (p *RemoteProvider) CheckAvailability(_ context.Context) bool {
	return p.client != nil
}

func (p *RemoteProvider) TokenInfo() *TokenUsage { return p.lastUsage }

func (p *RemoteProvider) Destroy() {
	p.client = nil
	p.lastUsage = nil
}

func (p *RemoteProvider) AnalyzeContent(ctx context.Context, instruction, content string) (string, error) {
	if err := p.checkRequest(instruction, content); err != nil {
		return "", err
	}

	if len(instruction)+len(content) < p.inlineThreshold {
		return p.generate(ctx, inlineContents(instruction, content, nil))
	}

	p.log.Debug("payload above inline threshold, using blob path",
		"chars", len(content), "est_tokens", EstimateTokensFromText(content))
	text, err := p.analyzeViaBlob(ctx, instruction, content)
	if err != nil {
		// The Files path can trip backend token limits that the inline
		// request phrasing does not; retry inline before failing outright.
		if pe := AsProviderError(err); pe.Code == CodeContentTooLarge {
			p.log.Warn("blob path hit token limit, retrying inline", "error", pe.Message)
			return p.generate(ctx, inlineContents(instruction, content, nil))
		}
		return "", err
	}
	return text, nil
}

func (p *RemoteProvider) AnalyzeContentStream(ctx context.Context, instruction, content string, history []Turn, sink StreamSink) error {
	if err := p.checkRequest(instruction, content); err != nil {
		return err
	}

	contents := inlineContents(instruction, content, history)
	var final strings.Builder

	for resp, err := range p.client.Models.GenerateContentStream(ctx, p.model, contents, nil) {
		if err != nil {
			return p.mapError(err)
		}
		p.recordUsage(resp)
		if text := firstText(resp); text != "" {
			final.WriteString(text)
			sink.Push(StreamEvent{TextDelta: text})
		}
	}

	sink.Push(StreamEvent{
		Done:         true,
		FinalText:    final.String(),
		Usage:        p.lastUsage,
		ProviderName: p.Name(),
	})
	return nil
}

func (p *RemoteProvider) checkRequest(instruction, content string) error {
	if p.client == nil {
		return NewProviderError(CodeUnavailable, "remote client not initialized")
	}
	if instruction == "" {
		return NewProviderError(CodeInvalidInput, "instruction is empty")
	}
	if content == "" {
		return NewProviderError(CodeInvalidInput, "content is empty")
	}
	return nil
}

// analyzeViaBlob uploads the content as a detached blob, waits for it to
// become active, generates against the file handle and deletes the blob on
// every exit path.
func (p *RemoteProvider) analyzeViaBlob(ctx context.Context, instruction, content string) (string, error) {
	data := []byte(content)
	mime := mimetype.Detect(data).String()

	file, err := p.client.Files.Upload(ctx, bytes.NewReader(data), &genai.UploadFileConfig{
		MIMEType:    mime,
		DisplayName: "pagelens content",
	})
	if err != nil {
		return "", p.mapError(err)
	}
	p.log.Debug("content uploaded", "name", file.Name, "uri", file.URI, "state", file.State, "bytes", len(data))

	defer func() {
		// Cleanup must survive request cancellation.
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if _, derr := p.client.Files.Delete(cleanupCtx, file.Name, nil); derr != nil {
			p.log.Warn("blob cleanup failed", "name", file.Name, "error", derr)
		}
	}()

	file, err = p.waitForActive(ctx, file)
	if err != nil {
		return "", err
	}

	parts := []*genai.Part{
		genai.NewPartFromText(instruction),
		genai.NewPartFromFile(genai.File{URI: file.URI, MIMEType: file.MIMEType}),
	}
	return p.generate(ctx, []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)})
}

// waitForActive polls the blob's processing state with a bounded wait.
func (p *RemoteProvider) waitForActive(ctx context.Context, file *genai.File) (*genai.File, error) {
	deadline := time.Now().Add(p.pollTimeout)
	for file.State != genai.FileStateActive {
		if file.State == genai.FileStateFailed {
			return nil, NewProviderError(CodeServerError, "uploaded blob %s failed processing", file.Name)
		}
		if time.Now().After(deadline) {
			return nil, NewProviderError(CodeTimeout, "blob %s not active after %s", file.Name, p.pollTimeout)
		}
		select {
		case <-ctx.Done():
			return nil, AsProviderError(ctx.Err())
		case <-time.After(p.pollInterval):
		}
		var err error
		file, err = p.client.Files.Get(ctx, file.Name, nil)
		if err != nil {
			return nil, p.mapError(err)
		}
		p.log.Debug("blob state", "name", file.Name, "state", file.State)
	}
	return file, nil
}

func (p *RemoteProvider) generate(ctx context.Context, contents []*genai.Content) (string, error) {
	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, nil)
	if err != nil {
		return "", p.mapError(err)
	}
	p.recordUsage(resp)

	text := firstText(resp)
	if text == "" {
		return "", NewProviderError(CodeParseFailed, "no text in model response")
	}
	return text, nil
}

func (p *RemoteProvider) recordUsage(resp *genai.GenerateContentResponse) {
	if resp == nil || resp.UsageMetadata == nil {
		return
	}
	used := int(resp.UsageMetadata.TotalTokenCount)
	p.lastUsage = &TokenUsage{Used: used}
}

// firstText extracts the text of the first candidate part, the same way the
// non-streaming response is read.
func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return ""
	}
	return candidate.Content.Parts[0].Text
}

// inlineContents builds the request contents for the inline path, folding
// prior conversation turns in front of the instruction+document payload.
func inlineContents(instruction, content string, history []Turn) []*genai.Content {
	var contents []*genai.Content
	for _, turn := range history {
		var role genai.Role = genai.RoleUser
		if turn.Role == "assistant" || turn.Role == "model" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromParts(
			[]*genai.Part{genai.NewPartFromText(turn.Content)}, role))
	}
	contents = append(contents, genai.NewContentFromParts(
		[]*genai.Part{genai.NewPartFromText(BuildPrompt(instruction, content))}, genai.RoleUser))
	return contents
}

// mapError classifies backend failures into machine-readable codes. It
// prefers the structured APIError and falls back to pattern matching on the
// message, since transport errors arrive as plain strings.
func (p *RemoteProvider) mapError(err error) *ProviderError {
	if errors.Is(err, context.Canceled) {
		return &ProviderError{Code: CodeCancelled, Message: err.Error()}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &ProviderError{Code: CodeTimeout, Message: err.Error()}
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		pe := &ProviderError{Message: apiErr.Message, Details: fmt.Sprintf("status %d %s", apiErr.Code, apiErr.Status)}
		switch {
		case apiErr.Code == 429:
			pe.Code = CodeRateLimited
		case apiErr.Code >= 500:
			pe.Code = CodeServerError
		case apiErr.Code == 400 && isTokenLimitMessage(apiErr.Message):
			pe.Code = CodeContentTooLarge
		case apiErr.Code == 400 || apiErr.Code == 401 || apiErr.Code == 403 || apiErr.Code == 404:
			pe.Code = CodeInvalidInput
		default:
			pe.Code = CodeRequestFailed
		}
		return pe
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "quota") || strings.Contains(msg, "429"):
		return &ProviderError{Code: CodeRateLimited, Message: err.Error()}
	case isTokenLimitMessage(msg):
		return &ProviderError{Code: CodeContentTooLarge, Message: err.Error()}
	case strings.Contains(msg, "500") || strings.Contains(msg, "502") || strings.Contains(msg, "503") || strings.Contains(msg, "internal server"):
		return &ProviderError{Code: CodeServerError, Message: err.Error()}
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return &ProviderError{Code: CodeTimeout, Message: err.Error()}
	case strings.Contains(msg, "connection") || strings.Contains(msg, "network") || strings.Contains(msg, "dial") || strings.Contains(msg, "eof"):
		return &ProviderError{Code: CodeNetworkError, Message: err.Error()}
	}
	return &ProviderError{Code: CodeRequestFailed, Message: err.Error()}
}

func isTokenLimitMessage(msg string) bool {
	msg = strings.ToLower(msg)
	if !strings.Contains(msg, "token") {
		return false
	}
	return strings.Contains(msg, "exceed") || strings.Contains(msg, "limit") || strings.Contains(msg, "too large")
}
