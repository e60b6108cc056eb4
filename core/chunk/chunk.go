// Package chunk splits a date range into chunks and drives a chunk processor
// over them with bounded concurrency.
package chunk

import (
	"cmp"
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"sync"
	"time"

	"github.com/huangsam/recap/core/algo"
	"github.com/huangsam/recap/core/executor"
	"github.com/huangsam/recap/internal/contract"
	"github.com/huangsam/recap/schema"
	"github.com/lightningnetwork/lnd/fn/v2"
	"golang.org/x/time/rate"
)

// Scheduler defaults.
const (
	DefaultMaxConcurrentChunks = 3
	DefaultChunkTimeout        = 2 * time.Minute
	DefaultReclaimEvery        = 5
)

// Options configures a Scheduler.
type Options struct {
	MaxConcurrentChunks int
	ChunkTimeout        time.Duration
	Overlap             time.Duration // event lookback, never moves boundaries
	ReclaimEvery        int           // settled chunks between memory reclaim hints, negative disables
	RunTimeout          time.Duration // 0 = no global deadline
	CacheNamespace      string        // empty = chunk payloads are not cached
	Limiter             *rate.Limiter
	Logger              *slog.Logger
}

// Scheduler runs chunk processors. A Scheduler may be reused, but runs must
// not overlap.
type Scheduler struct {
	opts  Options
	cache contract.CacheStore
	log   *slog.Logger

	mu     sync.Mutex
	chunks []schema.Chunk
}

// NewScheduler creates a scheduler. cache may be nil.
func NewScheduler(cache contract.CacheStore, opts Options) *Scheduler {
	opts.MaxConcurrentChunks = cmp.Or(opts.MaxConcurrentChunks, DefaultMaxConcurrentChunks)
	opts.ChunkTimeout = cmp.Or(opts.ChunkTimeout, DefaultChunkTimeout)
	opts.ReclaimEvery = cmp.Or(opts.ReclaimEvery, DefaultReclaimEvery)
	return &Scheduler{
		opts:  opts,
		cache: cache,
		log:   contract.LoggerOrDefault(opts.Logger).With("component", "scheduler"),
	}
}

// Split cuts rng into chunks of chunkSizeDays days. The final chunk is
// truncated to rng.End.
func (s *Scheduler) Split(rng schema.DateRange, chunkSizeDays int) ([]schema.Chunk, error) {
	if chunkSizeDays < 1 {
		return nil, fmt.Errorf("%w: chunk size must be at least one day, got %d", schema.ErrInvalidRange, chunkSizeDays)
	}
	windows, err := algo.SplitRange(rng, algo.Days(chunkSizeDays))
	if err != nil {
		return nil, err
	}
	return s.chunksFor(windows), nil
}

func (s *Scheduler) chunksFor(windows []schema.DateRange) []schema.Chunk {
	chunks := make([]schema.Chunk, len(windows))
	for i, w := range windows {
		chunks[i] = schema.Chunk{
			ID:         fmt.Sprintf("chunk-%d", i+1),
			Index:      i,
			RangeStart: w.Start,
			RangeEnd:   w.End,
			Overlap:    s.opts.Overlap,
			Status:     schema.ChunkPending,
			Key:        s.chunkKey(w),
		}
	}
	return chunks
}

func (s *Scheduler) chunkKey(w schema.DateRange) fn.Option[string] {
	if s.opts.CacheNamespace == "" || s.cache == nil {
		return fn.None[string]()
	}
	raw := fmt.Sprintf("chunk|%s|%d|%d|%d", s.opts.CacheNamespace,
		w.Start.UnixMilli(), w.End.UnixMilli(), s.opts.Overlap.Milliseconds())
	return fn.Some(fmt.Sprintf("%x", sha256.Sum256([]byte(raw))))
}

// Process splits rng into chunks and runs process over them. It returns one
// result per chunk in chunk order. Chunk failures are reported in the
// results; only an invalid range or chunk size is returned as an error.
func (s *Scheduler) Process(ctx context.Context, rng schema.DateRange, chunkSizeDays int,
	process contract.ChunkProcessor, reporter contract.ProgressReporter,
) ([]schema.ChunkResult, error) {
	chunks, err := s.Split(rng, chunkSizeDays)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, chunks, process, reporter), nil
}

// ProcessWhole runs process once over the entire range, for ranges too small
// to be worth chunking.
func (s *Scheduler) ProcessWhole(ctx context.Context, rng schema.DateRange,
	process contract.ChunkProcessor, reporter contract.ProgressReporter,
) ([]schema.ChunkResult, error) {
	if err := rng.Validate(); err != nil {
		return nil, err
	}
	return s.run(ctx, s.chunksFor([]schema.DateRange{rng}), process, reporter), nil
}

// Chunks returns a snapshot of the chunks of the latest run with their status.
func (s *Scheduler) Chunks() []schema.Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.chunks)
}

func (s *Scheduler) run(ctx context.Context, chunks []schema.Chunk,
	process contract.ChunkProcessor, reporter contract.ProgressReporter,
) []schema.ChunkResult {
	s.mu.Lock()
	s.chunks = chunks
	s.mu.Unlock()

	if s.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.RunTimeout)
		defer cancel()
	}

	notify := newNotifier(reporter, len(chunks), s.opts.ReclaimEvery, s.log)
	defer notify.wait()

	total := len(chunks)
	completed := 0
	s.log.Debug("processing chunks", "chunks", total, "max_concurrent", s.opts.MaxConcurrentChunks)

	outcomes := executor.Run(ctx, chunks, func(ctx context.Context, c schema.Chunk) (schema.ChunkPayload, error) {
		return process(ctx, c)
	}, executor.Options[schema.ChunkPayload]{
		MaxConcurrency: s.opts.MaxConcurrentChunks,
		Timeout:        s.opts.ChunkTimeout,
		Cache:          s.cache,
		Limiter:        s.opts.Limiter,
		Logger:         s.opts.Logger,
		OnStart: func(i int) {
			s.setStatus(i, schema.ChunkRunning)
		},
		OnSettle: func(i int, o executor.Outcome[schema.ChunkPayload]) {
			status := schema.ChunkSucceeded
			if o.Result.IsErr() {
				status = schema.ChunkFailed
				s.log.Warn("chunk failed", "chunk", o.UnitID, "err", o.Err())
			}
			s.setStatus(i, status)
			completed++
			notify.send(event{completed: completed, total: total, chunkID: o.UnitID, outcome: o.Result})
		},
	})
	notify.close()

	results := make([]schema.ChunkResult, len(outcomes))
	for i, o := range outcomes {
		results[i] = schema.ChunkResult{ChunkID: o.UnitID, Outcome: o.Result, Elapsed: o.Elapsed}
	}
	return results
}

func (s *Scheduler) setStatus(i int, status schema.ChunkStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks[i].Status = status
}

type event struct {
	completed int
	total     int
	chunkID   string
	outcome   fn.Result[schema.ChunkPayload]
}

// notifier delivers progress events from a single goroutine so a slow or
// panicking reporter never holds up dispatch.
type notifier struct {
	reporter     contract.ProgressReporter
	reclaimEvery int
	log          *slog.Logger
	queue        chan event
	done         chan struct{}
	closeOnce    sync.Once
}

func newNotifier(reporter contract.ProgressReporter, size, reclaimEvery int, log *slog.Logger) *notifier {
	n := &notifier{
		reporter:     reporter,
		reclaimEvery: reclaimEvery,
		log:          log,
		queue:        make(chan event, max(1, size)),
		done:         make(chan struct{}),
	}
	go n.drain()
	return n
}

// send never blocks: the queue holds one slot per chunk.
func (n *notifier) send(e event) {
	n.queue <- e
}

func (n *notifier) close() {
	n.closeOnce.Do(func() { close(n.queue) })
}

func (n *notifier) wait() {
	n.close()
	<-n.done
}

func (n *notifier) drain() {
	defer close(n.done)
	for e := range n.queue {
		if n.reporter != nil {
			n.deliver(e)
		}
		if n.reclaimEvery > 0 && e.completed%n.reclaimEvery == 0 {
			debug.FreeOSMemory()
		}
	}
}

func (n *notifier) deliver(e event) {
	defer func() {
		if p := recover(); p != nil {
			n.log.Error("progress reporter panicked", "chunk", e.chunkID, "panic", p)
		}
	}()
	n.reporter.OnChunkSettled(e.completed, e.total, e.chunkID, e.outcome)
}

// IncrementalPolicy decides whether a range is worth chunking.
type IncrementalPolicy struct {
	DayThreshold    int
	VolumeThreshold int
}

// DefaultIncrementalPolicy chunks ranges over 14 days or 1000 items.
func DefaultIncrementalPolicy() IncrementalPolicy {
	return IncrementalPolicy{DayThreshold: 14, VolumeThreshold: 1000}
}

// ShouldUseIncremental reports whether the range exceeds the day threshold or
// the estimated volume exceeds the volume threshold. Zero thresholds take the
// defaults.
func (p IncrementalPolicy) ShouldUseIncremental(rangeDays, estimatedVolume int) bool {
	def := DefaultIncrementalPolicy()
	return rangeDays > cmp.Or(p.DayThreshold, def.DayThreshold) ||
		estimatedVolume > cmp.Or(p.VolumeThreshold, def.VolumeThreshold)
}

// ShouldUseIncremental applies the default policy.
func ShouldUseIncremental(rangeDays, estimatedVolume int) bool {
	return DefaultIncrementalPolicy().ShouldUseIncremental(rangeDays, estimatedVolume)
}
