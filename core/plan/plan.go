// Package plan turns a date range and a set of scopes into cacheable fetch tasks.
// It performs no I/O.
package plan

import (
	"cmp"
	"crypto/sha256"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/huangsam/recap/core/algo"
	"github.com/huangsam/recap/schema"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// DefaultSplitThreshold is the longest range a scoped task may cover before it is split.
const DefaultSplitThreshold = 7 * algo.Day

// DefaultPriorities orders initial dispatch; lower runs first.
var DefaultPriorities = map[schema.TaskKind]int{
	schema.GeneralKind:      0,
	schema.CommitsKind:      0,
	schema.PullRequestsKind: 1,
	schema.IssuesKind:       2,
	schema.MessagesKind:     3,
}

// Policy is the unit-size policy of a planning run.
type Policy struct {
	SplitThreshold time.Duration
	Kinds          map[schema.ScopeKind][]schema.TaskKind
	Priorities     map[schema.TaskKind]int
	Query          string // carried by the general task
	Revision       string // repository state, folded into every cache key
}

// DefaultPolicy returns the policy with every scope kind mapped to all of its task kinds.
func DefaultPolicy() Policy {
	return Policy{
		SplitThreshold: DefaultSplitThreshold,
		Kinds:          maps.Clone(schema.ScopeKinds),
		Priorities:     maps.Clone(DefaultPriorities),
	}
}

// Restrict keeps only the task kinds for which supported returns true.
func (p Policy) Restrict(supported func(schema.TaskKind) bool) Policy {
	kinds := make(map[schema.ScopeKind][]schema.TaskKind, len(p.Kinds))
	for scope, list := range p.Kinds {
		kinds[scope] = slices.DeleteFunc(slices.Clone(list), func(k schema.TaskKind) bool {
			return !supported(k)
		})
	}
	p.Kinds = kinds
	return p
}

// Plan emits the ordered task list for rng. With no scopes it emits a single
// general task over the whole range; otherwise one task per (scope, kind),
// split into sub-ranges when the range exceeds the split threshold. Tasks are
// ordered by priority, ties kept in emission order.
func Plan(rng schema.DateRange, scopes []schema.Scope, policy Policy) ([]schema.Task, error) {
	if err := rng.Validate(); err != nil {
		return nil, err
	}

	if len(scopes) == 0 {
		spec := schema.GeneralSpec{Query: policy.Query}
		return []schema.Task{newTask(0, spec, "", rng, policy)}, nil
	}

	threshold := cmp.Or(policy.SplitThreshold, DefaultSplitThreshold)
	windows := []schema.DateRange{rng}
	if rng.Duration() > threshold {
		var err error
		if windows, err = algo.SplitRange(rng, threshold); err != nil {
			return nil, err
		}
	}

	var tasks []schema.Task
	for _, scope := range scopes {
		kinds, ok := policy.Kinds[scope.Kind]
		if !ok {
			return nil, fmt.Errorf("unknown scope kind %q for %q", scope.Kind, scope.Key)
		}
		for _, kind := range kinds {
			spec, err := specFor(kind, scope)
			if err != nil {
				return nil, err
			}
			for _, w := range windows {
				tasks = append(tasks, newTask(len(tasks), spec, scope.Key, w, policy))
			}
		}
	}

	slices.SortStableFunc(tasks, func(a, b schema.Task) int {
		return cmp.Compare(a.Priority, b.Priority)
	})
	return tasks, nil
}

// specFor builds the variant for a task kind over one scope.
func specFor(kind schema.TaskKind, scope schema.Scope) (schema.TaskSpec, error) {
	switch kind {
	case schema.CommitsKind:
		return schema.CommitsSpec{Repo: scope.Key}, nil
	case schema.PullRequestsKind:
		return schema.PullRequestsSpec{Repo: scope.Key}, nil
	case schema.IssuesKind:
		return schema.IssuesSpec{Team: scope.Key}, nil
	case schema.MessagesKind:
		return schema.MessagesSpec{Channel: scope.Key}, nil
	default:
		return nil, fmt.Errorf("%w: kind %q cannot be scoped", schema.ErrUnknownTaskShape, kind)
	}
}

func newTask(seq int, spec schema.TaskSpec, scopeKey string, w schema.DateRange, policy Policy) schema.Task {
	kind, _ := schema.KindOf(spec)
	priority, ok := policy.Priorities[kind]
	if !ok {
		priority = DefaultPriorities[kind]
	}
	return schema.Task{
		ID:         fmt.Sprintf("task-%d-%s", seq, kind),
		Spec:       spec,
		RangeStart: w.Start,
		RangeEnd:   w.End,
		ScopeKey:   scopeKey,
		Key:        fn.Some(revisionKey(CacheKey(spec, scopeKey, w), policy.Revision)),
		Priority:   priority,
		Revision:   policy.Revision,
	}
}

// revisionKey scopes key to a repository state. An empty revision keeps key as is.
func revisionKey(key, revision string) string {
	if revision == "" {
		return key
	}
	return fmt.Sprintf("%x", sha256.Sum256([]byte(revision+"|"+key)))
}

// CacheKey derives the deterministic cache key of a task from its kind, scope and bounds.
func CacheKey(spec schema.TaskSpec, scopeKey string, w schema.DateRange) string {
	kind, _ := schema.KindOf(spec)
	key := fmt.Sprintf("%s|%s|%d|%d", kind, scopeKey, w.Start.UnixMilli(), w.End.UnixMilli())
	if g, ok := spec.(schema.GeneralSpec); ok && g.Query != "" {
		key += "|" + g.Query
	}
	return fmt.Sprintf("%x", sha256.Sum256([]byte(key)))
}
