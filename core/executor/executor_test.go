package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/huangsam/recap/internal/iocache"
	"github.com/huangsam/recap/schema"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
	"pgregory.net/rapid"
)

type testUnit struct {
	id      string
	key     fn.Option[string]
	similar fn.Option[schema.SimilarityKey]
	delay   time.Duration
}

func (u testUnit) UnitID() string                                 { return u.id }
func (u testUnit) CacheKey() fn.Option[string]                    { return u.key }
func (u testUnit) SimilarityKey() fn.Option[schema.SimilarityKey] { return u.similar }

func units(n int, delay func(i int) time.Duration) []testUnit {
	out := make([]testUnit, n)
	for i := range out {
		out[i] = testUnit{id: fmt.Sprintf("u%d", i), key: fn.None[string](), delay: delay(i)}
	}
	return out
}

func sleepy(ctx context.Context, u testUnit) (string, error) {
	select {
	case <-time.After(u.delay):
		return "value-" + u.id, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func values(t *testing.T, outcomes []Outcome[string]) []string {
	t.Helper()
	var out []string
	for _, o := range outcomes {
		v, err := o.Result.Unpack()
		require.NoError(t, err)
		out = append(out, v)
	}
	return out
}

func TestRunPreservesInputOrder(t *testing.T) {
	// Later units finish first.
	in := units(5, func(i int) time.Duration { return time.Duration(5-i) * 10 * time.Millisecond })

	var completion []string
	outcomes := Run(context.Background(), in, sleepy, Options[string]{
		MaxConcurrency: 5,
		OnSettle:       func(_ int, o Outcome[string]) { completion = append(completion, o.UnitID) },
	})

	assert.Equal(t, []string{"value-u0", "value-u1", "value-u2", "value-u3", "value-u4"}, values(t, outcomes))
	assert.Equal(t, []string{"u4", "u3", "u2", "u1", "u0"}, completion)
}

func TestRunConcurrencyCeiling(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		k := rapid.IntRange(1, 4).Draw(rt, "k")
		delays := rapid.SliceOfN(rapid.IntRange(0, 3), 0, 12).Draw(rt, "delays")

		var inFlight, peak atomic.Int32
		execute := func(ctx context.Context, u testUnit) (string, error) {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			defer inFlight.Add(-1)
			return sleepy(ctx, u)
		}

		in := units(len(delays), func(i int) time.Duration { return time.Duration(delays[i]) * time.Millisecond })
		outcomes := Run(context.Background(), in, execute, Options[string]{MaxConcurrency: k})
		if len(outcomes) != len(in) {
			rt.Fatalf("got %d outcomes for %d units", len(outcomes), len(in))
		}
		if got := peak.Load(); got > int32(k) {
			rt.Fatalf("peak concurrency %d exceeds ceiling %d", got, k)
		}
	})
}

func TestRunRefillsSlotsInOrder(t *testing.T) {
	in := units(3, func(i int) time.Duration { return []time.Duration{40, 10, 10}[i] * time.Millisecond })

	var mu sync.Mutex
	var events []string
	record := func(e string) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e)
	}
	execute := func(ctx context.Context, u testUnit) (string, error) {
		v, err := sleepy(ctx, u)
		record("done-" + u.id)
		return v, err
	}
	Run(context.Background(), in, execute, Options[string]{
		MaxConcurrency: 2,
		OnStart:        func(i int) { record(fmt.Sprintf("start-%d", i)) },
	})

	startThird := indexOf(events, "start-2")
	firstDone := min(indexOf(events, "done-u0"), indexOf(events, "done-u1"))
	require.GreaterOrEqual(t, firstDone, 0)
	assert.Greater(t, startThird, firstDone, "third unit waits for a free slot: %v", events)
}

func indexOf(events []string, e string) int {
	for i, x := range events {
		if x == e {
			return i
		}
	}
	return -1
}

func TestRunCacheIdempotence(t *testing.T) {
	cache := iocache.NewMemoryStore(iocache.MemoryOptions{TTL: time.Minute})
	var calls atomic.Int32
	execute := func(_ context.Context, u testUnit) (string, error) {
		calls.Add(1)
		return "payload-" + u.id, nil
	}
	in := []testUnit{{id: "a", key: fn.Some("key-a")}}
	opts := Options[string]{MaxConcurrency: 1, Cache: cache}

	first := Run(context.Background(), in, execute, opts)
	second := Run(context.Background(), in, execute, opts)

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, values(t, first), values(t, second))
	assert.False(t, first[0].Cached)
	assert.True(t, second[0].Cached)
	assert.Equal(t, int64(1), cache.Stats().Hits)
}

func TestRunCacheHitDoesNotTakeSlot(t *testing.T) {
	cache := iocache.NewMemoryStore(iocache.MemoryOptions{})
	cache.Set("hot", "cached-value")

	release := make(chan struct{})
	settled := make(chan int, 2)
	execute := func(ctx context.Context, _ testUnit) (string, error) {
		select {
		case <-release:
			return "slow", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	in := []testUnit{
		{id: "blocker", key: fn.None[string]()},
		{id: "hit", key: fn.Some("hot")},
	}

	go func() {
		Run(context.Background(), in, execute, Options[string]{
			MaxConcurrency: 1,
			Cache:          cache,
			OnSettle:       func(i int, _ Outcome[string]) { settled <- i },
		})
	}()

	select {
	case i := <-settled:
		assert.Equal(t, 1, i, "cache hit settles while the only slot is busy")
	case <-time.After(time.Second):
		t.Fatal("cache hit waited for a slot")
	}
	close(release)
	assert.Equal(t, 0, <-settled)
}

func TestRunTimeout(t *testing.T) {
	cancelled := make(chan struct{})
	execute := func(ctx context.Context, _ testUnit) (string, error) {
		<-ctx.Done()
		close(cancelled)
		return "", ctx.Err()
	}
	outcomes := Run(context.Background(), []testUnit{{id: "slow"}}, execute, Options[string]{
		MaxConcurrency: 1,
		Timeout:        20 * time.Millisecond,
	})

	err := outcomes[0].Err()
	require.Error(t, err)
	assert.ErrorIs(t, err, schema.ErrTaskTimeout)
	var te *schema.TaskError
	require.ErrorAs(t, err, &te)
	assert.True(t, te.Timeout())
	assert.Equal(t, "slow", te.TaskID)

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("timed out unit was not cancelled")
	}
}

func TestRunTimeoutDoesNotCancelSiblings(t *testing.T) {
	in := []testUnit{{id: "slow", delay: time.Second}, {id: "fast", delay: time.Millisecond}}
	outcomes := Run(context.Background(), in, sleepy, Options[string]{MaxConcurrency: 2, Timeout: 50 * time.Millisecond})

	assert.ErrorIs(t, outcomes[0].Err(), schema.ErrTaskTimeout)
	assert.NoError(t, outcomes[1].Err())
}

func TestRunTimedOutCallKeepsSlot(t *testing.T) {
	const hold = 100 * time.Millisecond
	var inFlight, peak atomic.Int32
	stubborn := func(_ context.Context, _ testUnit) (string, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(hold) // ignores ctx
		inFlight.Add(-1)
		return "late", nil
	}

	start := time.Now()
	outcomes := Run(context.Background(), units(3, func(int) time.Duration { return 0 }), stubborn, Options[string]{
		MaxConcurrency: 1,
		Timeout:        10 * time.Millisecond,
	})
	elapsed := time.Since(start)

	for _, o := range outcomes {
		assert.ErrorIs(t, o.Err(), schema.ErrTaskTimeout)
	}
	assert.Equal(t, int32(1), peak.Load())
	// The third unit waits for both earlier calls to actually return
	assert.GreaterOrEqual(t, elapsed, 2*hold)
}

func TestRunFailureIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	boom := errors.New("upstream 503")
	execute := func(context.Context, testUnit) (string, error) {
		calls.Add(1)
		return "", boom
	}
	cache := iocache.NewMemoryStore(iocache.MemoryOptions{})
	outcomes := Run(context.Background(), []testUnit{{id: "x", key: fn.Some("k")}}, execute, Options[string]{Cache: cache})

	assert.Equal(t, int32(1), calls.Load())
	assert.ErrorIs(t, outcomes[0].Err(), boom)
	var te *schema.TaskError
	require.ErrorAs(t, outcomes[0].Err(), &te)
	assert.False(t, te.Timeout())
	assert.Zero(t, cache.Stats().Size, "failures are not cached")
}

func TestRunPanicBecomesFailure(t *testing.T) {
	execute := func(context.Context, testUnit) (string, error) { panic("nil map") }
	outcomes := Run(context.Background(), []testUnit{{id: "p"}}, execute, Options[string]{})
	assert.ErrorContains(t, outcomes[0].Err(), "panic: nil map")
}

func TestRunCorruptCacheEntryIsMiss(t *testing.T) {
	cache := iocache.NewMemoryStore(iocache.MemoryOptions{})
	cache.Set("k", 42) // wrong shape for a string payload

	var calls atomic.Int32
	execute := func(context.Context, testUnit) (string, error) {
		calls.Add(1)
		return "fresh", nil
	}
	outcomes := Run(context.Background(), []testUnit{{id: "x", key: fn.Some("k")}}, execute, Options[string]{Cache: cache})

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, []string{"fresh"}, values(t, outcomes))
	v, _ := cache.Get("k")
	assert.Equal(t, "fresh", v, "corrupt entry overwritten")
}

func TestRunSimilarLookup(t *testing.T) {
	cache := iocache.NewMemoryStore(iocache.MemoryOptions{})
	source := schema.SimilarityKey{Category: "general|w1", Text: "Fix login timeout"}
	cache.SetWithSource("other-key", "earlier answer", source)

	var calls atomic.Int32
	execute := func(context.Context, testUnit) (string, error) {
		calls.Add(1)
		return "computed", nil
	}
	reworded := testUnit{
		id:      "q",
		key:     fn.Some("new-key"),
		similar: fn.Some(schema.SimilarityKey{Category: "general|w1", Text: "fixed login timeouts"}),
	}

	outcomes := Run(context.Background(), []testUnit{reworded}, execute, Options[string]{Cache: cache, SimilarityThreshold: 0.8})
	assert.Equal(t, []string{"earlier answer"}, values(t, outcomes))
	assert.Zero(t, calls.Load())

	outcomes = Run(context.Background(), []testUnit{reworded}, execute, Options[string]{Cache: cache})
	assert.Equal(t, []string{"computed"}, values(t, outcomes), "approximate lookups disabled without a threshold")
}

func TestRunCancelledContextFailsPending(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var started atomic.Int32
	execute := func(ctx context.Context, u testUnit) (string, error) {
		if started.Add(1) == 1 {
			cancel()
		}
		<-ctx.Done()
		return "", ctx.Err()
	}
	in := units(4, func(int) time.Duration { return 0 })
	outcomes := Run(ctx, in, execute, Options[string]{MaxConcurrency: 1})

	require.Len(t, outcomes, 4)
	for _, o := range outcomes {
		assert.ErrorIs(t, o.Err(), context.Canceled)
	}
	assert.Equal(t, int32(1), started.Load())
}

func TestRunLimiter(t *testing.T) {
	limiter := rate.NewLimiter(rate.Every(20*time.Millisecond), 1)
	in := units(3, func(int) time.Duration { return 0 })

	start := time.Now()
	outcomes := Run(context.Background(), in, sleepy, Options[string]{MaxConcurrency: 3, Limiter: limiter})
	assert.Len(t, values(t, outcomes), 3)
	assert.GreaterOrEqual(t, time.Since(start), 35*time.Millisecond)
}

func TestRunEmpty(t *testing.T) {
	outcomes := Run(context.Background(), []testUnit{}, sleepy, Options[string]{})
	assert.Empty(t, outcomes)
}
