// Package pool bounds concurrent use of external search and fetch actors.
package pool

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/semaphore"

	"github.com/sells-group/contact-cli/internal/resilience"
)

// Pool is a weighted semaphore shared by every search and fetch call in the
// process, regardless of how many jobs are active. A caller holds its slot
// for the duration of all retry attempts of one logical call.
type Pool struct {
	sem   *semaphore.Weighted
	retry resilience.RetryConfig
}

// New creates a Pool admitting at most size concurrent calls. The retry
// config applies per logical call; zero values take the resilience defaults.
func New(size int64, retry resilience.RetryConfig) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{
		sem:   semaphore.NewWeighted(size),
		retry: retry,
	}
}

// Do runs fn under a pool slot with retry. See Run.
func (p *Pool) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	_, err := Run(ctx, p, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Run acquires a pool slot, executes fn with retry and backoff, and releases
// the slot. When all attempts fail the last error is returned wrapped, not
// swallowed; the caller decides whether that is fatal for its stage.
func Run[T any](ctx context.Context, p *Pool, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return zero, eris.Wrapf(err, "pool: acquire slot for %s", op)
	}
	defer p.sem.Release(1)

	cfg := p.retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger("pool", op)
	}

	val, err := resilience.DoVal(ctx, cfg, fn)
	if err != nil {
		return zero, eris.Wrapf(err, "pool: %s attempts exhausted", op)
	}
	return val, nil
}
