package schema

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors of the collection pipeline. Only ErrInvalidRange and
// ErrAllChunksFailed are returned to callers; the others travel inside outcomes.
var (
	ErrInvalidRange     = errors.New("invalid range")
	ErrAllChunksFailed  = errors.New("all chunks failed")
	ErrTaskTimeout      = errors.New("task timed out")
	ErrCacheCorruption  = errors.New("cache entry has unexpected shape")
	ErrNoSource         = errors.New("no activity source for task kind")
	ErrUnknownTaskShape = errors.New("unknown task spec")
)

// TaskError is the failure reason of one task or chunk.
type TaskError struct {
	TaskID string
	Err    error
}

// NewTaskTimeout builds the failure for a unit that exceeded its budget.
func NewTaskTimeout(id string, budget time.Duration) *TaskError {
	return &TaskError{TaskID: id, Err: fmt.Errorf("%w after %s", ErrTaskTimeout, budget)}
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %s: %v", e.TaskID, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the task failed on its time budget.
func (e *TaskError) Timeout() bool {
	return errors.Is(e.Err, ErrTaskTimeout)
}
