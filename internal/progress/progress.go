// Package progress has ProgressReporter implementations for chunk runs.
package progress

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/huangsam/recap/internal/contract"
	"github.com/huangsam/recap/schema"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/schollz/progressbar/v3"
)

// Bar renders a terminal progress bar. The bar is created on the first
// event, once the chunk total is known.
type Bar struct {
	w    io.Writer
	mu   sync.Mutex
	bar  *progressbar.ProgressBar
	fail int
}

var _ contract.ProgressReporter = &Bar{} // Compile-time check

// NewBar creates a progress bar that writes to w.
func NewBar(w io.Writer) *Bar {
	return &Bar{w: w}
}

// OnChunkSettled implements the ProgressReporter interface.
func (b *Bar) OnChunkSettled(completed, total int, chunkID string, outcome fn.Result[schema.ChunkPayload]) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.bar == nil {
		b.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(b.w),
			progressbar.OptionSetDescription("Collecting"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}
	if outcome.IsErr() {
		b.fail++
	}
	desc := fmt.Sprintf("Collecting %s", chunkID)
	if b.fail > 0 {
		desc = fmt.Sprintf("Collecting %s (%d failed)", chunkID, b.fail)
	}
	b.bar.Describe(desc)
	_ = b.bar.Add(1)
	if completed >= total {
		_ = b.bar.Finish()
	}
}

// Log writes one structured record per settled chunk.
type Log struct {
	log *slog.Logger
}

var _ contract.ProgressReporter = &Log{} // Compile-time check

// NewLog creates a reporter that logs through log, or slog.Default when nil.
func NewLog(log *slog.Logger) *Log {
	return &Log{log: contract.LoggerOrDefault(log).With("component", "progress")}
}

// OnChunkSettled implements the ProgressReporter interface.
func (l *Log) OnChunkSettled(completed, total int, chunkID string, outcome fn.Result[schema.ChunkPayload]) {
	payload, err := outcome.Unpack()
	if err != nil {
		l.log.Warn("chunk settled", "chunk", chunkID, "completed", completed, "total", total, "err", err)
		return
	}
	l.log.Info("chunk settled", "chunk", chunkID, "completed", completed, "total", total,
		"items", payload.ItemCount, "entries", payload.EntryCount())
}

// Multi fans every event out to several reporters in order.
type Multi []contract.ProgressReporter

// OnChunkSettled implements the ProgressReporter interface.
func (m Multi) OnChunkSettled(completed, total int, chunkID string, outcome fn.Result[schema.ChunkPayload]) {
	for _, r := range m {
		if r != nil {
			r.OnChunkSettled(completed, total, chunkID, outcome)
		}
	}
}

// Safe isolates a reporter: a panic inside it is logged and swallowed, so
// one bad reporter in a Multi does not starve the others.
type Safe struct {
	Reporter contract.ProgressReporter
	Logger   *slog.Logger
}

// OnChunkSettled implements the ProgressReporter interface.
func (s Safe) OnChunkSettled(completed, total int, chunkID string, outcome fn.Result[schema.ChunkPayload]) {
	defer func() {
		if p := recover(); p != nil {
			contract.LoggerOrDefault(s.Logger).Error("progress reporter panicked", "chunk", chunkID, "panic", p)
		}
	}()
	s.Reporter.OnChunkSettled(completed, total, chunkID, outcome)
}

// Event is one recorded progress notification.
type Event struct {
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
	ChunkID   string `json:"chunk_id"`
	Error     string `json:"error,omitempty"`
}

// Recorder keeps every event in completion order.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// OnChunkSettled implements the ProgressReporter interface.
func (r *Recorder) OnChunkSettled(completed, total int, chunkID string, outcome fn.Result[schema.ChunkPayload]) {
	e := Event{Completed: completed, Total: total, ChunkID: chunkID}
	if err := outcome.Err(); err != nil {
		e.Error = err.Error()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}
