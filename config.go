package pagelens

import (
	"log/slog"
	"time"
)

// Defaults for segmentation and dispatch. Chosen to stay comfortably under
// common model context windows while respecting upstream rate limits.
const (
	DefaultMaxChunkChars = 20000
	DefaultOverlapChars  = 500

	DefaultBatchSize      = 3
	DefaultBatchDelay     = 500 * time.Millisecond
	DefaultAttemptTimeout = 30 * time.Second
	DefaultMaxRetries     = 2
	DefaultRetryBaseDelay = time.Second

	// Payloads at or above this size go through the blob-upload path of
	// the remote provider instead of being inlined in the request.
	DefaultInlineThreshold = 100 * 1024
)

// ProviderKind selects which backend variant the orchestrator builds.
type ProviderKind string

const (
	ProviderLocal  ProviderKind = "local"
	ProviderRemote ProviderKind = "remote"
)

// Settings is the externally-owned provider configuration. The orchestrator
// never mutates a live provider on settings change; it tears handles down
// and rebuilds them.
type Settings struct {
	Primary         ProviderKind
	Credential      string // API key for the remote variant
	ModelName       string
	FallbackEnabled bool

	// Sessions constructs the bounded-context backend for the local
	// variant (and for the fallback when the primary is remote).
	Sessions SessionFactory
}

// ProgressFunc is called after each batch completes with the number of
// chunks finished so far and the total.
type ProgressFunc func(completed, total int)

// Options configures segmentation, dispatch and streaming behavior for a
// single analysis run.
type Options struct {
	MaxChunkChars  int
	OverlapChars   int
	BatchSize      int
	BatchDelay     time.Duration
	AttemptTimeout time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
	OnProgress     ProgressFunc
	NewRunner      func(maxConcurrency int) Runner // nil → NewLimitedRunner per batch
	Logger         *slog.Logger
}

// defaultOptions is the baseline every run starts from. Option functions are
// applied on top of it, so an explicitly configured zero stays zero.
func defaultOptions() Options {
	return Options{
		MaxChunkChars:  DefaultMaxChunkChars,
		OverlapChars:   DefaultOverlapChars,
		BatchSize:      DefaultBatchSize,
		BatchDelay:     DefaultBatchDelay,
		AttemptTimeout: DefaultAttemptTimeout,
		MaxRetries:     DefaultMaxRetries,
		RetryBaseDelay: DefaultRetryBaseDelay,
	}
}

// normalize clamps values no run can meaningfully carry.
func (o *Options) normalize() {
	if o.MaxChunkChars <= 0 {
		o.MaxChunkChars = DefaultMaxChunkChars
	}
	if o.OverlapChars < 0 {
		o.OverlapChars = 0
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.BatchDelay < 0 {
		o.BatchDelay = 0
	}
	if o.AttemptTimeout <= 0 {
		o.AttemptTimeout = DefaultAttemptTimeout
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryBaseDelay < 0 {
		o.RetryBaseDelay = 0
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

func buildOptions(optFns []func(*Options)) Options {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.normalize()
	return opts
}

// Functional option constructors.

// WithChunking sets the chunk size bound and the overlap between
// consecutive chunks. An overlap of 0 disables overlapping.
func WithChunking(maxChunkChars, overlapChars int) func(*Options) {
	return func(o *Options) {
		o.MaxChunkChars = maxChunkChars
		o.OverlapChars = overlapChars
	}
}

func WithBatchSize(n int) func(*Options) {
	return func(o *Options) { o.BatchSize = n }
}

// WithBatchDelay sets the pause between consecutive batches. A delay of 0
// disables it.
func WithBatchDelay(d time.Duration) func(*Options) {
	return func(o *Options) { o.BatchDelay = d }
}

func WithAttemptTimeout(d time.Duration) func(*Options) {
	return func(o *Options) { o.AttemptTimeout = d }
}

// WithRetry sets the per-chunk retry count and the base of the linearly
// increasing backoff (attempt * base). A count of 0 means every chunk gets
// exactly one attempt.
func WithRetry(maxRetries int, baseDelay time.Duration) func(*Options) {
	return func(o *Options) {
		o.MaxRetries = maxRetries
		o.RetryBaseDelay = baseDelay
	}
}

func WithProgress(fn ProgressFunc) func(*Options) {
	return func(o *Options) { o.OnProgress = fn }
}

func WithLogger(log *slog.Logger) func(*Options) {
	return func(o *Options) { o.Logger = log }
}

// WithRunner overrides how per-batch concurrency is scheduled.
func WithRunner(fn func(maxConcurrency int) Runner) func(*Options) {
	return func(o *Options) { o.NewRunner = fn }
}
