// Package schema has the models, enums and errors shared by all parts of recap.
package schema

import (
	"fmt"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// TimeUnit is the smallest step between two adjacent ranges.
// A range ending at t is followed by a range starting at t + TimeUnit.
const TimeUnit = time.Millisecond

// DateRange is an inclusive [Start, End] window.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Validate rejects zero bounds and inverted ranges.
func (r DateRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return fmt.Errorf("%w: start and end must be set", ErrInvalidRange)
	}
	if r.Start.After(r.End) {
		return fmt.Errorf("%w: start %s is after end %s", ErrInvalidRange,
			r.Start.Format(time.RFC3339), r.End.Format(time.RFC3339))
	}
	return nil
}

// Duration returns the length of the range.
func (r DateRange) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// Days returns the length of the range in whole days, rounded up.
func (r DateRange) Days() int {
	d := r.Duration()
	days := int(d / (24 * time.Hour))
	if d%(24*time.Hour) != 0 {
		days++
	}
	return days
}

// String renders the range for logs and tables.
func (r DateRange) String() string {
	return fmt.Sprintf("%s..%s", r.Start.Format(time.DateOnly), r.End.Format(time.DateOnly))
}

// Scope is an entity a task can be restricted to.
type Scope struct {
	Kind ScopeKind `json:"kind"`
	Key  string    `json:"key"`
}

// TaskSpec is the closed set of task variants. Each variant carries only the
// fields its kind needs.
type TaskSpec interface {
	isTaskSpec()
}

// CommitsSpec fetches commits of one repository.
type CommitsSpec struct {
	Repo string
}

// PullRequestsSpec fetches pull requests of one repository.
type PullRequestsSpec struct {
	Repo string
}

// IssuesSpec fetches issues of one team.
type IssuesSpec struct {
	Team string
}

// MessagesSpec fetches messages of one channel.
type MessagesSpec struct {
	Channel string
}

// GeneralSpec covers everything in range; the source does its own filtering.
type GeneralSpec struct {
	Query string
}

func (CommitsSpec) isTaskSpec()      {}
func (PullRequestsSpec) isTaskSpec() {}
func (IssuesSpec) isTaskSpec()       {}
func (MessagesSpec) isTaskSpec()     {}
func (GeneralSpec) isTaskSpec()      {}

// KindOf maps a task spec to its kind.
func KindOf(spec TaskSpec) (TaskKind, error) {
	switch spec.(type) {
	case CommitsSpec:
		return CommitsKind, nil
	case PullRequestsSpec:
		return PullRequestsKind, nil
	case IssuesSpec:
		return IssuesKind, nil
	case MessagesSpec:
		return MessagesKind, nil
	case GeneralSpec:
		return GeneralKind, nil
	default:
		return "", fmt.Errorf("unknown task spec %T", spec)
	}
}

// Task is one unit of fetch work.
type Task struct {
	ID         string
	Spec       TaskSpec
	RangeStart time.Time
	RangeEnd   time.Time
	ScopeKey   string
	Key        fn.Option[string] // absent means never cache
	Priority   int
	Revision   string // repository state the task reads, empty when unknown
}

// Kind returns the kind of the task spec, or an empty kind if the spec is unknown.
func (t Task) Kind() TaskKind {
	kind, _ := KindOf(t.Spec)
	return kind
}

// Range returns the task bounds.
func (t Task) Range() DateRange {
	return DateRange{Start: t.RangeStart, End: t.RangeEnd}
}

// UnitID identifies the task inside an executor run.
func (t Task) UnitID() string { return t.ID }

// CacheKey returns the cache key of the task, if any.
func (t Task) CacheKey() fn.Option[string] { return t.Key }

// SimilarityKey lets a reworded general query reuse an earlier result for the same window.
func (t Task) SimilarityKey() fn.Option[SimilarityKey] {
	g, ok := t.Spec.(GeneralSpec)
	if !ok || g.Query == "" {
		return fn.None[SimilarityKey]()
	}
	return fn.Some(SimilarityKey{
		Category: fmt.Sprintf("%s|%d|%d|%s", GeneralKind, t.RangeStart.UnixMilli(), t.RangeEnd.UnixMilli(), t.Revision),
		Text:     g.Query,
	})
}

// Activity is a raw item returned by an activity source.
type Activity struct {
	ID         string    `json:"id"`
	Kind       TaskKind  `json:"kind"`
	Scope      string    `json:"scope"`
	Title      string    `json:"title"`
	Body       string    `json:"body,omitempty"`
	Author     string    `json:"author"`
	OccurredAt time.Time `json:"occurred_at"`
	Churn      int       `json:"churn"`
}
