package biz

import (
	"context"
	"sync"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"golang.org/x/sync/semaphore"
)

// unitResult is the outcome of one dispatched unit.
type unitResult[R any] struct {
	Value    R
	Err      error
	Attempts int
	Skipped  bool // never dispatched because the run was cancelled
}

// dispatcher bounds the external calls of one run. Stages that run
// concurrently share its semaphore, so the limit holds across them.
type dispatcher struct {
	sem     *semaphore.Weighted
	timeout time.Duration
	retries int
	log     *log.Helper
}

func newDispatcher(limit int, timeout time.Duration, retries int, logger *log.Helper) *dispatcher {
	return &dispatcher{
		sem:     semaphore.NewWeighted(int64(max(limit, 1))),
		timeout: timeout,
		retries: retries,
		log:     logger,
	}
}

// dispatch runs call for every unit in order of the slice, at most limit at
// a time. Cancellation of ctx is checked before each unit is started; units
// not started are marked Skipped. Started calls run on a context detached
// from ctx so they complete and their results are kept.
func dispatch[T, R any](ctx context.Context, d *dispatcher, stage string, units []T, call func(ctx context.Context, u T) (R, error)) []unitResult[R] {
	results := make([]unitResult[R], len(units))
	var wg sync.WaitGroup
	for i, u := range units {
		if !d.acquire(ctx) {
			for j := i; j < len(results); j++ {
				results[j].Skipped = true
			}
			d.log.Warnf("%s: run cancelled, %d of %d units not dispatched", stage, len(units)-i, len(units))
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer d.sem.Release(1)
			results[i] = withRetry(ctx, d, stage, i, func(c context.Context) (R, error) {
				return call(c, u)
			})
		}()
	}
	wg.Wait()
	return results
}

// acquire takes a slot unless the run is cancelled, including while it waited.
func (d *dispatcher) acquire(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return false
	}
	if ctx.Err() != nil {
		d.sem.Release(1)
		return false
	}
	return true
}

// withRetry calls fn with a per-attempt timeout. A failed attempt is retried
// with the same parameters up to d.retries times, unless the run has been
// cancelled in the meantime.
func withRetry[R any](ctx context.Context, d *dispatcher, stage string, index int, fn func(context.Context) (R, error)) unitResult[R] {
	detached := context.WithoutCancel(ctx)
	var res unitResult[R]
	for attempt := 0; attempt <= d.retries; attempt++ {
		if attempt > 0 {
			if ctx.Err() != nil {
				break
			}
			d.log.Warnf("%s: retrying unit %d (attempt %d): %v", stage, index, attempt+1, res.Err)
		}
		callCtx, cancel := context.WithTimeout(detached, d.timeout)
		v, err := fn(callCtx)
		cancel()
		res.Attempts = attempt + 1
		if err == nil {
			res.Value, res.Err = v, nil
			return res
		}
		res.Err = err
	}
	return res
}
