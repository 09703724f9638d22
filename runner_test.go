package pagelens

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimitedRunner_BoundsConcurrency(t *testing.T) {
	r := NewLimitedRunner(2)

	var inFlight atomic.Int32
	var exceeded atomic.Bool
	for i := 0; i < 8; i++ {
		r.Go(func() error {
			if inFlight.Add(1) > 2 {
				exceeded.Store(true)
			}
			time.Sleep(2 * time.Millisecond)
			inFlight.Add(-1)
			return nil
		})
	}

	require.NoError(t, r.Wait())
	assert.False(t, exceeded.Load(), "more than maxConcurrency tasks ran at once")
}

func TestLimitedRunner_WaitPropagatesFirstError(t *testing.T) {
	r := NewLimitedRunner(1)
	r.Go(func() error { return nil })
	r.Go(func() error { return errors.New("task failed") })
	assert.Error(t, r.Wait())
}
