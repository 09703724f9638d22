package pagelens

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// discardLogger silences engine logging in tests.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// FakeSession is an in-memory Session for tests and examples: it replies
// with a canned response and records every prompt it receives.
type FakeSession struct {
	Response string
	Err      error

	mu        sync.Mutex
	Prompts   []string
	Destroyed bool
}

func (s *FakeSession) Prompt(ctx context.Context, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	s.Prompts = append(s.Prompts, text)
	s.mu.Unlock()
	if s.Err != nil {
		return "", s.Err
	}
	return s.Response, nil
}

func (s *FakeSession) Usage() (used, quota int, ok bool) {
	return len(strings.Join(s.Prompts, "")) / 4, 4096, true
}

func (s *FakeSession) Destroy() { s.Destroyed = true }

// NewFakeSessionFactory returns a SessionFactory producing the given session.
func NewFakeSessionFactory(session *FakeSession) SessionFactory {
	return func(ctx context.Context) (Session, error) { return session, nil }
}

// ScriptedProvider is a Provider whose behavior is driven by fields; tests
// use it to exercise the orchestrator without any backend.
type ScriptedProvider struct {
	ProviderName string
	Response     string
	Deltas       []string // streamed before Done; nil → Response as one delta
	Err          *ProviderError
	StreamErr    *ProviderError
	InitErr      *ProviderError
	Available    bool
	Usage        *TokenUsage

	mu          sync.Mutex
	Calls       int
	StreamCalls int
	Initialized bool
	Destroyed   bool
}

func (p *ScriptedProvider) Name() string {
	if p.ProviderName == "" {
		return "scripted"
	}
	return p.ProviderName
}

func (p *ScriptedProvider) Initialize(context.Context) error {
	if p.InitErr != nil {
		return p.InitErr
	}
	p.Initialized = true
	return nil
}

func (p *ScriptedProvider) CheckAvailability(context.Context) bool { return p.Available }

func (p *ScriptedProvider) TokenInfo() *TokenUsage { return p.Usage }

func (p *ScriptedProvider) Destroy() { p.Destroyed = true }

func (p *ScriptedProvider) AnalyzeContent(ctx context.Context, instruction, content string) (string, error) {
	p.mu.Lock()
	p.Calls++
	p.mu.Unlock()
	if p.Err != nil {
		return "", p.Err
	}
	return p.Response, nil
}

func (p *ScriptedProvider) AnalyzeContentStream(ctx context.Context, instruction, content string, history []Turn, sink StreamSink) error {
	p.mu.Lock()
	p.StreamCalls++
	p.mu.Unlock()
	if p.StreamErr != nil {
		return p.StreamErr
	}
	deltas := p.Deltas
	if deltas == nil {
		deltas = []string{p.Response}
	}
	var final strings.Builder
	for _, d := range deltas {
		final.WriteString(d)
		sink.Push(StreamEvent{TextDelta: d})
	}
	sink.Push(StreamEvent{Done: true, FinalText: final.String(), Usage: p.Usage, ProviderName: p.Name()})
	return nil
}

// CollectSink records every event pushed into it.
type CollectSink struct {
	Events []StreamEvent
}

func (c *CollectSink) Push(ev StreamEvent) { c.Events = append(c.Events, ev) }
