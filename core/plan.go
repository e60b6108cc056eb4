package core

import (
	"context"

	"github.com/huangsam/recap/internal/contract"
	"github.com/huangsam/recap/internal/outwriter"
	"github.com/huangsam/recap/schema"
)

// PlanResult is the dry-run view of a collect: its chunks and their tasks.
type PlanResult struct {
	Chunks  []schema.Chunk
	Tasks   []schema.PlanView
	Chunked bool
}

// ExecutePlan prints the chunks and tasks a collect would run, without
// fetching anything.
func ExecutePlan(ctx context.Context, cfg *contract.Config, deps Deps) error {
	res, err := PlanRun(ctx, cfg, deps)
	if err != nil {
		return err
	}
	return outwriter.WritePlan(res.Chunks, res.Tasks, cfg)
}

// PlanRun splits the range the way Collect would and plans every chunk.
func PlanRun(ctx context.Context, cfg *contract.Config, deps Deps) (*PlanResult, error) {
	rng := cfg.Range()
	if err := rng.Validate(); err != nil {
		return nil, err
	}
	log := contract.LoggerOrDefault(deps.Logger).With("component", "core")
	revision := cacheRevision(ctx, cfg, deps, log)
	collector := NewCollector(deps.sources(cfg), deps.Cache, cfg, deps.Logger).WithRevision(revision)
	scheduler := newScheduler(cfg, deps.Cache, revision, log)

	chunked := shouldChunk(ctx, cfg, deps.Client, log)
	var (
		chunks []schema.Chunk
		err    error
	)
	if chunked {
		chunks, err = scheduler.Split(rng, cfg.ChunkSizeDays)
	} else {
		chunks, err = scheduler.Split(rng, max(cfg.ChunkSizeDays, rng.Days()+1))
	}
	if err != nil {
		return nil, err
	}

	var views []schema.PlanView
	for _, c := range chunks {
		tasks, err := collector.PlanChunk(c)
		if err != nil {
			return nil, err
		}
		for _, t := range tasks {
			views = append(views, schema.NewPlanView(c.ID, t))
		}
	}
	return &PlanResult{Chunks: chunks, Tasks: views, Chunked: chunked}, nil
}
