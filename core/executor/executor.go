// Package executor runs units of work under a concurrency ceiling with per-unit
// timeouts and cache short-circuiting.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/huangsam/recap/internal/contract"
	"github.com/huangsam/recap/schema"
	"github.com/lightningnetwork/lnd/fn/v2"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Unit is anything the executor can run.
type Unit interface {
	UnitID() string
	CacheKey() fn.Option[string] // absent means never cache
}

// SimilarUnit is a Unit that can also be matched approximately in the cache.
type SimilarUnit interface {
	SimilarityKey() fn.Option[schema.SimilarityKey]
}

// ExecuteFunc performs one unit. It receives a context that is cancelled on
// timeout or when the run is abandoned.
type ExecuteFunc[U Unit, T any] func(ctx context.Context, unit U) (T, error)

// Options configures one Run.
type Options[T any] struct {
	MaxConcurrency      int                 // values below 1 are treated as 1
	Timeout             time.Duration       // per unit, 0 = none
	Cache               contract.CacheStore // nil disables caching
	SimilarityThreshold float64             // 0 disables approximate lookups
	Limiter             *rate.Limiter       // throttles starts, nil = unlimited
	Logger              *slog.Logger

	OnStart  func(index int)
	OnSettle func(index int, outcome Outcome[T])
}

// Outcome is the settled result of one unit.
type Outcome[T any] struct {
	UnitID  string
	Result  fn.Result[T]
	Elapsed time.Duration
	Cached  bool
}

// Err returns the failure reason, or nil on success.
func (o Outcome[T]) Err() error {
	return o.Result.Err()
}

// runner holds the bookkeeping shared by the workers of one Run.
type runner[U Unit, T any] struct {
	opts    Options[T]
	execute ExecuteFunc[U, T]
	sem     *semaphore.Weighted
	log     *slog.Logger

	mu       sync.Mutex // serializes outcome writes and hooks
	outcomes []Outcome[T]
}

// Run executes units with at most opts.MaxConcurrency calls to execute in
// flight and returns one outcome per unit, in input order. Cache hits resolve
// without taking a slot. Failures are recorded, never retried, and never
// returned as errors. When ctx ends, units that have not started are failed
// with the context error.
//
// A unit that exceeds opts.Timeout settles as a timeout right away, but its
// slot is only released when execute returns. The ceiling therefore counts
// calls still running after their timeout, and an execute that ignores ctx
// delays every unit waiting for a slot until it returns.
func Run[U Unit, T any](ctx context.Context, units []U, execute ExecuteFunc[U, T], opts Options[T]) []Outcome[T] {
	r := &runner[U, T]{
		opts:     opts,
		execute:  execute,
		sem:      semaphore.NewWeighted(int64(max(1, opts.MaxConcurrency))),
		log:      contract.LoggerOrDefault(opts.Logger).With("component", "executor"),
		outcomes: make([]Outcome[T], len(units)),
	}

	var wg sync.WaitGroup
	for i, u := range units {
		if v, ok := r.lookup(u); ok {
			r.settle(i, Outcome[T]{UnitID: u.UnitID(), Result: fn.Ok(v), Cached: true})
			continue
		}
		if err := r.sem.Acquire(ctx, 1); err != nil {
			r.abandon(units[i:], i, context.Cause(ctx))
			break
		}
		wg.Go(func() {
			r.settle(i, r.runOne(ctx, i, u))
		})
	}
	wg.Wait()
	return r.outcomes
}

// runOne runs a unit that already holds a slot. The slot is released when
// execute returns, even if the outcome was already recorded as a timeout.
func (r *runner[U, T]) runOne(ctx context.Context, index int, u U) Outcome[T] {
	r.hook(func() {
		if r.opts.OnStart != nil {
			r.opts.OnStart(index)
		}
	})
	id := u.UnitID()
	start := time.Now()

	if r.opts.Limiter != nil {
		if err := r.opts.Limiter.Wait(ctx); err != nil {
			r.sem.Release(1)
			return failed[T](id, fmt.Errorf("rate limiter: %w", err), time.Since(start))
		}
	}

	var (
		uctx   context.Context
		cancel context.CancelFunc
	)
	if r.opts.Timeout > 0 {
		uctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
	} else {
		uctx, cancel = context.WithCancel(ctx)
	}

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		defer r.sem.Release(1)
		v, err := r.call(uctx, u)
		done <- result{v, err}
	}()

	var res result
	select {
	case res = <-done:
	case <-uctx.Done():
		select {
		case res = <-done: // settled at the same instant
		default:
			res.err = uctx.Err()
		}
	}
	timedOut := res.err != nil && ctx.Err() == nil && errors.Is(uctx.Err(), context.DeadlineExceeded)
	cancel()
	elapsed := time.Since(start)

	switch {
	case timedOut:
		r.log.Warn("unit timed out", "unit", id, "budget", r.opts.Timeout)
		return Outcome[T]{UnitID: id, Result: fn.Err[T](schema.NewTaskTimeout(id, r.opts.Timeout)), Elapsed: elapsed}
	case res.err != nil && ctx.Err() != nil:
		return failed[T](id, context.Cause(ctx), elapsed)
	case res.err != nil:
		r.log.Debug("unit failed", "unit", id, "err", res.err)
		return failed[T](id, res.err, elapsed)
	}
	r.store(u, res.value)
	return Outcome[T]{UnitID: id, Result: fn.Ok(res.value), Elapsed: elapsed}
}

// call invokes execute and turns a panic into an error.
func (r *runner[U, T]) call(ctx context.Context, u U) (v T, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return r.execute(ctx, u)
}

// lookup consults the cache by exact key, then by similarity.
// A value of the wrong type is a corrupt entry and counts as a miss.
func (r *runner[U, T]) lookup(u U) (T, bool) {
	var zero T
	if r.opts.Cache == nil {
		return zero, false
	}
	key, ok := cacheKey(u)
	if !ok {
		return zero, false
	}

	if v, hit := r.opts.Cache.Get(key); hit {
		if typed, valid := v.(T); valid {
			return typed, true
		}
		r.log.Debug("ignoring cache entry", "unit", u.UnitID(), "err", schema.ErrCacheCorruption, "type", fmt.Sprintf("%T", v))
	}

	su, similar := any(u).(SimilarUnit)
	if !similar || r.opts.SimilarityThreshold <= 0 {
		return zero, false
	}
	var (
		found T
		hit   bool
	)
	su.SimilarityKey().WhenSome(func(sk schema.SimilarityKey) {
		if v, ok := r.opts.Cache.FindSimilar(sk.Text, sk.Category, r.opts.SimilarityThreshold); ok {
			found, hit = v.(T)
		}
	})
	return found, hit
}

// store writes a successful value under the unit's cache key.
func (r *runner[U, T]) store(u U, value T) {
	if r.opts.Cache == nil {
		return
	}
	key, ok := cacheKey(u)
	if !ok {
		return
	}
	if su, similar := any(u).(SimilarUnit); similar {
		if sk := su.SimilarityKey(); sk.IsSome() {
			sk.WhenSome(func(src schema.SimilarityKey) {
				r.opts.Cache.SetWithSource(key, value, src)
			})
			return
		}
	}
	r.opts.Cache.Set(key, value)
}

// abandon fails every unit from index on because the run context ended.
func (r *runner[U, T]) abandon(rest []U, index int, cause error) {
	if cause == nil {
		cause = errors.New("run abandoned")
	}
	r.log.Warn("run ended before all units started", "pending", len(rest), "err", cause)
	for j, u := range rest {
		r.settle(index+j, failed[T](u.UnitID(), fmt.Errorf("not started: %w", cause), 0))
	}
}

func (r *runner[U, T]) settle(index int, o Outcome[T]) {
	r.hook(func() {
		r.outcomes[index] = o
		if r.opts.OnSettle != nil {
			r.opts.OnSettle(index, o)
		}
	})
}

func (r *runner[U, T]) hook(f func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f()
}

func cacheKey(u Unit) (string, bool) {
	key := u.CacheKey().UnwrapOr("")
	return key, key != ""
}

func failed[T any](id string, err error, elapsed time.Duration) Outcome[T] {
	if te, ok := err.(*schema.TaskError); !ok || te.TaskID != id {
		err = &schema.TaskError{TaskID: id, Err: err}
	}
	return Outcome[T]{UnitID: id, Result: fn.Err[T](err), Elapsed: elapsed}
}
