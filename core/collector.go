package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/huangsam/recap/core/algo"
	"github.com/huangsam/recap/core/executor"
	"github.com/huangsam/recap/core/plan"
	"github.com/huangsam/recap/internal/contract"
	"github.com/huangsam/recap/schema"
	"golang.org/x/time/rate"
)

// Collector is the chunk processor of a collect run. For each chunk it plans
// fetch tasks, runs them through the bounded executor and classifies the
// returned activities.
type Collector struct {
	sources []contract.ActivitySource
	cache   contract.CacheStore
	cfg     *contract.Config
	policy  plan.Policy
	limiter *rate.Limiter
	log     *slog.Logger
}

// NewCollector creates a collector over sources. cache and log may be nil.
func NewCollector(sources []contract.ActivitySource, cache contract.CacheStore, cfg *contract.Config, log *slog.Logger) *Collector {
	c := &Collector{
		sources: sources,
		cache:   cache,
		cfg:     cfg,
		log:     contract.LoggerOrDefault(log).With("component", "collector"),
	}
	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	policy := plan.DefaultPolicy()
	if cfg.SplitDays > 0 {
		policy.SplitThreshold = algo.Days(cfg.SplitDays)
	}
	policy.Query = cfg.Query
	c.policy = policy.Restrict(c.supports)
	return c
}

// WithRevision pins the cache keys of planned tasks to a repository state.
func (c *Collector) WithRevision(revision string) *Collector {
	c.policy.Revision = revision
	return c
}

// supports reports whether any registered source serves kind.
func (c *Collector) supports(kind schema.TaskKind) bool {
	return slices.ContainsFunc(c.sources, func(s contract.ActivitySource) bool {
		return s.Supports(kind)
	})
}

// PlanChunk returns the tasks of one chunk. Tasks cover the inclusion window,
// so an overlap widens what is fetched without moving chunk boundaries.
func (c *Collector) PlanChunk(chunk schema.Chunk) ([]schema.Task, error) {
	tasks, err := plan.Plan(chunk.InclusionRange(), c.cfg.Scopes, c.policy)
	if err != nil {
		return nil, err
	}
	for i := range tasks {
		tasks[i].ID = fmt.Sprintf("%s/%s", chunk.ID, tasks[i].ID)
	}
	return tasks, nil
}

// Process implements contract.ChunkProcessor.
func (c *Collector) Process(ctx context.Context, chunk schema.Chunk) (schema.ChunkPayload, error) {
	tasks, err := c.PlanChunk(chunk)
	if err != nil {
		return schema.ChunkPayload{}, err
	}
	payload := schema.ChunkPayload{Entries: make(map[schema.Category][]schema.Entry)}
	if len(tasks) == 0 {
		payload.Warnings = append(payload.Warnings, fmt.Sprintf("chunk %s: no source serves the configured scopes", chunk.ID))
		return payload, nil
	}

	outcomes := executor.Run(ctx, tasks, c.fetch, executor.Options[[]schema.Activity]{
		MaxConcurrency:      c.cfg.MaxConcurrency,
		Timeout:             c.cfg.Timeout,
		Cache:               c.cache,
		SimilarityThreshold: c.cfg.SimilarityThreshold,
		Limiter:             c.limiter,
		Logger:              c.log,
	})

	var failures []error
	seen := make(map[string]struct{})
	for _, o := range outcomes {
		activities, err := o.Result.Unpack()
		if err != nil {
			failures = append(failures, err)
			payload.Warnings = append(payload.Warnings, err.Error())
			continue
		}
		for _, a := range activities {
			if a.OccurredAt.Before(chunk.InclusionStart()) || a.OccurredAt.After(chunk.RangeEnd) {
				continue
			}
			id := a.Scope + "|" + a.ID
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			payload.ItemCount++
			e := Classify(a)
			payload.Entries[e.Category] = append(payload.Entries[e.Category], e)
		}
	}

	if len(failures) == len(tasks) {
		return schema.ChunkPayload{}, fmt.Errorf("all %d tasks of %s failed: %w", len(tasks), chunk.ID, errors.Join(failures...))
	}
	if len(failures) > 0 {
		c.log.Warn("chunk finished with task failures", "chunk", chunk.ID, "failed", len(failures), "tasks", len(tasks))
	}
	return payload, nil
}

// fetch picks the source for a task by its variant.
func (c *Collector) fetch(ctx context.Context, task schema.Task) ([]schema.Activity, error) {
	switch task.Spec.(type) {
	case schema.CommitsSpec, schema.PullRequestsSpec, schema.IssuesSpec, schema.MessagesSpec, schema.GeneralSpec:
	default:
		return nil, fmt.Errorf("%w: %T", schema.ErrUnknownTaskShape, task.Spec)
	}
	kind := task.Kind()
	for _, src := range c.sources {
		if src.Supports(kind) {
			return src.Fetch(ctx, task)
		}
	}
	return nil, fmt.Errorf("%w: %s", schema.ErrNoSource, kind)
}
