// Package core wires the planner, executor, chunk scheduler and aggregator
// into collect runs.
package core

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"
	"time"

	"github.com/huangsam/recap/core/agg"
	"github.com/huangsam/recap/core/chunk"
	"github.com/huangsam/recap/internal/contract"
	"github.com/huangsam/recap/internal/gitclient"
	"github.com/huangsam/recap/internal/iocache"
	"github.com/huangsam/recap/internal/outwriter"
	"github.com/huangsam/recap/schema"
)

// Deps are the collaborators of a collect run.
type Deps struct {
	Client   contract.GitClient
	Sources  []contract.ActivitySource // empty = one git commit source over Client
	Cache    contract.CacheStore       // nil disables caching
	Runs     contract.RunStore         // nil disables run history
	Reporter contract.ProgressReporter // nil = silent
	Logger   *slog.Logger
}

// sources returns the configured sources, or the default git source.
func (d Deps) sources(cfg *contract.Config) []contract.ActivitySource {
	if len(d.Sources) > 0 {
		return d.Sources
	}
	return []contract.ActivitySource{gitclient.NewCommitSource(d.Client, cfg.WorkingRepo, d.Logger)}
}

// CollectResult is everything a collect run produced.
type CollectResult struct {
	Document *schema.AggregatedDocument
	Chunks   []schema.Chunk
	Results  []schema.ChunkResult
	Chunked  bool   // false when the range was processed as one unit
	RunID    string // empty when run history is disabled
}

// ExecuteCollect runs a collect and writes the document. It serves as the main
// entry point for the 'collect' command.
func ExecuteCollect(ctx context.Context, cfg *contract.Config, deps Deps) error {
	start := time.Now()
	res, err := Collect(ctx, cfg, deps)
	if err != nil {
		return err
	}
	if res.Document.Metadata.Incomplete {
		contract.LogWarn("Partial recap", fmt.Errorf("%d of %d chunks failed", res.Document.Metadata.Failed, res.Document.Metadata.TotalChunks))
	}
	res.Document.Truncate(cfg.ResultLimit)
	if err := outwriter.WriteDocument(res.Document, cfg, time.Since(start)); err != nil {
		return err
	}
	if cfg.Detail && deps.Cache != nil {
		iocache.PrintCacheStats(os.Stderr, deps.Cache.Stats())
	}
	return nil
}

// Collect runs the full pipeline over cfg.Range(): decide whether to chunk,
// process the chunks, aggregate and record the run.
func Collect(ctx context.Context, cfg *contract.Config, deps Deps) (*CollectResult, error) {
	rng := cfg.Range()
	if err := rng.Validate(); err != nil {
		return nil, err
	}
	log := contract.LoggerOrDefault(deps.Logger).With("component", "core")

	revision := cacheRevision(ctx, cfg, deps, log)
	collector := NewCollector(deps.sources(cfg), deps.Cache, cfg, deps.Logger).WithRevision(revision)
	scheduler := newScheduler(cfg, deps.Cache, revision, log)

	chunked := shouldChunk(ctx, cfg, deps.Client, log)
	log.Info("collect started", "range", rng.String(), "chunked", chunked, "scopes", len(cfg.Scopes))

	runID := beginRun(cfg, deps.Runs)
	if runID != "" {
		ctx = withRunID(ctx, runID)
	}

	var (
		results []schema.ChunkResult
		err     error
	)
	if chunked {
		results, err = scheduler.Process(ctx, rng, cfg.ChunkSizeDays, collector.Process, deps.Reporter)
	} else {
		results, err = scheduler.ProcessWhole(ctx, rng, collector.Process, deps.Reporter)
	}
	if err != nil {
		return nil, err
	}
	chunks := scheduler.Chunks()

	doc, aggErr := agg.Combine(results, rng, agg.Options{
		SimilarityThreshold: cfg.SimilarityThreshold,
		DedupBy:             cfg.DedupBy,
		Keep:                cfg.DedupKeep,
	})
	recordRun(ctx, deps.Runs, chunks, results, doc)
	if aggErr != nil {
		return nil, aggErr
	}

	log.Info("collect finished", "succeeded", doc.Metadata.Succeeded, "failed", doc.Metadata.Failed,
		"entries", len(doc.Flatten()), "elapsed_ms", doc.Metadata.ElapsedMs)
	return &CollectResult{Document: doc, Chunks: chunks, Results: results, Chunked: chunked, RunID: runID}, nil
}

// newScheduler maps the config onto scheduler options.
func newScheduler(cfg *contract.Config, cache contract.CacheStore, revision string, log *slog.Logger) *chunk.Scheduler {
	opts := chunk.Options{
		MaxConcurrentChunks: cfg.MaxConcurrentChunks,
		ChunkTimeout:        cfg.ChunkTimeout,
		Overlap:             cfg.Overlap,
		RunTimeout:          cfg.RunTimeout,
		Logger:              log,
	}
	if cache != nil {
		opts.CacheNamespace = chunkNamespace(cfg, revision)
	}
	return chunk.NewScheduler(cache, opts)
}

// chunkNamespace identifies everything besides the window that shapes a chunk
// payload, including the repository state it was read at.
func chunkNamespace(cfg *contract.Config, revision string) string {
	keys := make([]string, 0, len(cfg.Scopes))
	for _, s := range cfg.Scopes {
		keys = append(keys, string(s.Kind)+":"+s.Key)
	}
	raw := fmt.Sprintf("%s|%s|%s|%d|%s", cfg.WorkingRepo, strings.Join(keys, ","), cfg.Query, cfg.SplitDays, revision)
	return fmt.Sprintf("%x", sha256.Sum256([]byte(raw)))[:16]
}

// gitRepos lists the repositories the run reads commits from.
func gitRepos(cfg *contract.Config) []string {
	repos := make([]string, 0, len(cfg.Scopes))
	for _, s := range cfg.Scopes {
		if s.Kind == schema.RepositoryScope {
			repos = append(repos, s.Key)
		}
	}
	if len(repos) == 0 && cfg.WorkingRepo != "" {
		repos = append(repos, cfg.WorkingRepo)
	}
	return repos
}

// cacheRevision joins the HEAD commit of every repository the run reads, so
// cached results stop matching once new commits land. It is empty when
// caching is off or no git client is available.
func cacheRevision(ctx context.Context, cfg *contract.Config, deps Deps, log *slog.Logger) string {
	if deps.Cache == nil || deps.Client == nil {
		return ""
	}
	repos := gitRepos(cfg)
	heads := make([]string, 0, len(repos))
	for _, repo := range repos {
		hash, err := deps.Client.GetRepoHash(ctx, repo)
		if err != nil {
			log.Debug("repo hash unavailable", "repo", repo, "err", err)
		}
		heads = append(heads, hash)
	}
	return strings.Join(heads, ",")
}

// shouldChunk applies the incremental policy to the range length and a commit
// count estimate. A failed estimate errs on the side of chunking.
func shouldChunk(ctx context.Context, cfg *contract.Config, client contract.GitClient, log *slog.Logger) bool {
	policy := chunk.IncrementalPolicy{DayThreshold: cfg.IncrementalDays, VolumeThreshold: cfg.IncrementalVolume}
	days := cfg.Range().Days()
	if policy.ShouldUseIncremental(days, 0) {
		return true // no estimate needed
	}
	volume := estimateVolume(ctx, cfg, client, log)
	return policy.ShouldUseIncremental(days, volume)
}

// estimateVolume counts commits over every repository the run touches.
func estimateVolume(ctx context.Context, cfg *contract.Config, client contract.GitClient, log *slog.Logger) int {
	if client == nil {
		return math.MaxInt
	}
	repos := gitRepos(cfg)
	if len(repos) < len(cfg.Scopes) || len(repos) == 0 {
		// Scopes without a commit count give no reliable estimate
		return math.MaxInt
	}

	total := 0
	for _, repo := range repos {
		n, err := client.CountCommits(ctx, repo, cfg.StartTime, cfg.EndTime)
		if err != nil {
			log.Debug("volume estimate failed", "repo", repo, "err", err)
			return math.MaxInt
		}
		total += n
	}
	return total
}

// beginRun opens a run history row. Tracking failures never fail the run.
func beginRun(cfg *contract.Config, runs contract.RunStore) string {
	if runs == nil {
		return ""
	}
	runID, err := runs.BeginRun(time.Now(), cfg.ConfigParams())
	if err != nil {
		contract.LogWarn("Run tracking initialization failed", err)
		return ""
	}
	return runID
}

// recordRun writes one row per chunk and closes the run. doc may be nil when
// every chunk failed.
func recordRun(ctx context.Context, runs contract.RunStore, chunks []schema.Chunk, results []schema.ChunkResult, doc *schema.AggregatedDocument) {
	runID, ok := getRunID(ctx)
	if runs == nil || !ok {
		return
	}

	meta := schema.Metadata{TotalChunks: len(results)}
	for i, r := range results {
		rec := schema.ChunkRecord{
			RunID:     runID,
			ChunkID:   r.ChunkID,
			Status:    schema.ChunkSucceeded,
			ElapsedMs: r.ElapsedMs(),
		}
		if i < len(chunks) {
			rec.RangeStart, rec.RangeEnd = chunks[i].RangeStart, chunks[i].RangeEnd
		}
		payload, err := r.Outcome.Unpack()
		if err != nil {
			text := err.Error()
			rec.Status, rec.ErrorText = schema.ChunkFailed, &text
			meta.Failed++
		} else {
			rec.EntryCount = int32(payload.EntryCount())
			meta.Succeeded++
		}
		if err := runs.RecordChunk(rec); err != nil {
			contract.LogWarn(fmt.Sprintf("Run tracking failed for %s", r.ChunkID), err)
		}
	}

	if doc != nil {
		meta = doc.Metadata
	}
	if err := runs.EndRun(runID, time.Now(), meta); err != nil {
		contract.LogWarn("Run tracking finalization failed", err)
	}
}
