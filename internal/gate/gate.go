package gate

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrTimeout is returned when the gate could not be acquired in time.
var ErrTimeout = errors.New("timed out waiting for the submission gate")

// Gate is a single-holder critical section. Waiters block until the holder
// releases; there is no queue limit and no fairness beyond the semaphore's.
type Gate struct {
	sem     *semaphore.Weighted
	timeout time.Duration
}

// New creates a Gate. A zero timeout waits indefinitely.
func New(timeout time.Duration) *Gate {
	return &Gate{sem: semaphore.NewWeighted(1), timeout: timeout}
}

// Do runs fn while holding the gate and releases it on every exit path,
// including a panic inside fn. It returns how long the caller waited.
func (g *Gate) Do(ctx context.Context, fn func()) (time.Duration, error) {
	acquireCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	if err := g.sem.Acquire(acquireCtx, 1); err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return time.Since(start), ErrTimeout
		}
		return time.Since(start), err
	}
	waited := time.Since(start)
	defer g.sem.Release(1)

	fn()
	return waited, nil
}

// Busy reports whether a holder is currently inside the gate.
func (g *Gate) Busy() bool {
	if g.sem.TryAcquire(1) {
		g.sem.Release(1)
		return false
	}
	return true
}
