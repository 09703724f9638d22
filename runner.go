package pagelens

import (
	"golang.org/x/sync/errgroup"
)

// Runner lets the dispatcher schedule the chunk work of one batch with any
// concurrency model. Go schedules a task, Wait joins all scheduled tasks and
// reports the first error.
type Runner interface {
	Go(fn func() error)
	Wait() error
}

// NewLimitedRunner returns the default errgroup-backed runner with at most
// maxConcurrency tasks in flight.
func NewLimitedRunner(maxConcurrency int) Runner {
	r := &errGroupRunner{}
	r.eg.SetLimit(maxConcurrency)
	return r
}

type errGroupRunner struct {
	eg errgroup.Group
}

func (r *errGroupRunner) Go(fn func() error) { r.eg.Go(fn) }

func (r *errGroupRunner) Wait() error { return r.eg.Wait() }
