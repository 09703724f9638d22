package pagelens

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

// AnalyzeFunc runs the model over one chunk and returns its findings.
type AnalyzeFunc func(ctx context.Context, chunk Chunk) ([]Record, error)

// linearBackoff grows the delay by base on every attempt: base, 2*base, ...
func linearBackoff(base time.Duration) retry.Backoff {
	attempt := 0
	return retry.BackoffFunc(func() (time.Duration, bool) {
		attempt++
		return time.Duration(attempt) * base, false
	})
}

// ProcessChunks runs chunks through analyze in fixed-size batches. Chunks
// within a batch run concurrently; batches run sequentially with a fixed
// inter-batch delay to respect upstream rate limits.
//
// Each attempt races a per-attempt timeout; failed attempts are retried
// with a linearly increasing delay. A chunk that exhausts all attempts
// degrades to an empty ChunkResult rather than aborting the run. When ctx
// is cancelled before a batch starts, whatever has accumulated is returned;
// in-flight attempts that are cancelled contribute no result at all.
func ProcessChunks(ctx context.Context, chunks []Chunk, analyze AnalyzeFunc, optFns ...func(*Options)) []ChunkResult {
	opts := buildOptions(optFns)
	log := opts.Logger

	total := len(chunks)
	results := make([]ChunkResult, 0, total)

	for batchStart := 0; batchStart < total; batchStart += opts.BatchSize {
		if ctx.Err() != nil {
			log.Debug("cancellation observed before batch", "completed", len(results), "total", total)
			return results
		}

		batchEnd := batchStart + opts.BatchSize
		if batchEnd > total {
			batchEnd = total
		}
		batch := chunks[batchStart:batchEnd]

		// Indexed by batch position so results keep chunk order; a nil
		// slot means the attempt was cancelled mid-flight.
		slots := make([]*ChunkResult, len(batch))

		var r Runner
		if opts.NewRunner != nil {
			r = opts.NewRunner(len(batch))
		} else {
			r = NewLimitedRunner(len(batch))
		}

		for i, chunk := range batch {
			i, chunk := i, chunk
			r.Go(func() error {
				slots[i] = processOne(ctx, chunk, analyze, &opts)
				return nil
			})
		}
		// Worker errors are absorbed per chunk; Wait only joins.
		_ = r.Wait()

		for _, slot := range slots {
			if slot != nil {
				results = append(results, *slot)
			}
		}

		if opts.OnProgress != nil {
			opts.OnProgress(batchEnd, total)
		}

		if batchEnd < total && opts.BatchDelay > 0 {
			select {
			case <-ctx.Done():
				return results
			case <-time.After(opts.BatchDelay):
			}
		}
	}
	return results
}

// processOne runs all attempts for a single chunk. Returns nil when the
// surrounding request was cancelled, a degraded result when every attempt
// failed, and a populated result otherwise.
func processOne(ctx context.Context, chunk Chunk, analyze AnalyzeFunc, opts *Options) *ChunkResult {
	log := opts.Logger
	var records []Record
	started := time.Now()

	backoff := retry.WithMaxRetries(uint64(opts.MaxRetries), linearBackoff(opts.RetryBaseDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, opts.AttemptTimeout)
		defer cancel()

		recs, err := analyze(attemptCtx, chunk)
		if err == nil {
			records = recs
			return nil
		}
		if ctx.Err() != nil {
			// Whole-request cancellation: stop retrying immediately.
			return ctx.Err()
		}
		log.Debug("chunk attempt failed", "chunk", chunk.ID, "error", err)
		return retry.RetryableError(err)
	})

	if err != nil {
		if ctx.Err() != nil {
			log.Debug("chunk cancelled mid-flight", "chunk", chunk.ID)
			return nil
		}
		log.Warn("chunk degraded after exhausting retries", "chunk", chunk.ID, "error", err)
		return &ChunkResult{ChunkID: chunk.ID}
	}

	return &ChunkResult{
		ChunkID:   chunk.ID,
		Records:   records,
		ElapsedMs: time.Since(started).Milliseconds(),
	}
}
