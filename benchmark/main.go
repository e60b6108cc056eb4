// Package main provides a performance benchmarking tool for recap collect runs.
// It measures execution times across different repository sizes and chunk sizes,
// running each case multiple times: once without a cache, then with a shared
// cache where the first run is cold and the rest are averaged as warm.
// Results are written as CSV for performance analysis and documentation.
//
// Prerequisites:
// - git available in PATH
// - Test repositories cloned to the specified base directory
// - Git repositories: csv-parser, fd, git, kubernetes
//
// Usage: go run benchmark/main.go [repo-base-dir]
//
//	repo-base-dir: Directory containing test repositories
package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/huangsam/recap/core"
	"github.com/huangsam/recap/internal/contract"
	"github.com/huangsam/recap/internal/iocache"
	"github.com/huangsam/recap/schema"
)

// BenchmarkResult holds the result of a benchmark case (no-cache average, cold run and average of warm runs).
type BenchmarkResult struct {
	Repository  string
	Case        string
	Chunks      int
	NoCacheTime string
	ColdTime    string
	WarmTime    string
}

// BenchmarkConfig holds configuration for the benchmark run.
type BenchmarkConfig struct {
	RepoBase    string
	Timeout     time.Duration
	Lookback    string
	ChunkDays   []int
	NoCacheRuns int
	CacheRuns   int
	TestRepos   []string
}

func main() {
	if len(os.Args) != 2 {
		fmt.Printf("Usage: %s [repo-base-dir]\n", os.Args[0])
		os.Exit(1)
	}

	config := BenchmarkConfig{
		RepoBase:    os.Args[1],
		Timeout:     5 * time.Minute,
		Lookback:    "1 year ago",
		ChunkDays:   []int{7, 30},
		NoCacheRuns: 3,
		CacheRuns:   4,
		TestRepos:   []string{"csv-parser", "fd", "git", "kubernetes"},
	}

	if err := checkPrerequisites(config); err != nil {
		fmt.Printf("Prerequisites check failed: %v\n", err)
		os.Exit(1)
	}

	results := runBenchmarks(config)

	if err := saveResults(results); err != nil {
		fmt.Printf("Failed to save results: %v\n", err)
		os.Exit(1)
	}

	printSummary(results, config)
}

// checkPrerequisites verifies that git and test repositories exist
func checkPrerequisites(config BenchmarkConfig) error {
	if _, err := exec.LookPath("git"); err != nil {
		return fmt.Errorf("git binary not found in PATH")
	}
	for _, repo := range config.TestRepos {
		repoPath := filepath.Join(config.RepoBase, repo)
		if _, err := os.Stat(repoPath); os.IsNotExist(err) {
			return fmt.Errorf("repository %s not found at %s", repo, repoPath)
		}
	}
	return nil
}

// newConfig builds a validated config the same way the CLI does.
func newConfig(ctx context.Context, client contract.GitClient, repoPath, lookback string, chunkDays int) (*contract.Config, error) {
	cfg := &contract.Config{}
	input := &contract.ConfigRawInput{
		RepoPathStrs:        []string{repoPath},
		Start:               lookback,
		ChunkDays:           chunkDays,
		SplitDays:           contract.DefaultSplitDays,
		MaxConcurrency:      contract.DefaultWorkers,
		MaxConcurrentChunks: contract.DefaultMaxConcurrentChunks,
		Timeout:             contract.DefaultTimeout.String(),
		ChunkTimeout:        contract.DefaultChunkTimeout.String(),
		CacheMaxSize:        contract.DefaultCacheMaxSize,
		SimilarityThreshold: contract.DefaultSimilarityThreshold,
		DedupBy:             schema.DedupByTitle,
		DedupKeep:           string(schema.KeepFirst),
		IncrementalDays:     contract.DefaultIncrementalDays,
		IncrementalVolume:   contract.DefaultIncrementalVolume,
		Precision:           contract.DefaultPrecision,
		Output:              string(schema.JSONOut),
		Color:               "no",
		Progress:            "no",
		LogLevel:            "error",
		LogFormat:           "text",
		RunBackend:          string(schema.NoneBackend),
	}
	if err := contract.ProcessAndValidate(ctx, cfg, client, input); err != nil {
		return nil, err
	}
	return cfg, nil
}

// runBenchmarks executes all benchmark cases across configured repositories
func runBenchmarks(config BenchmarkConfig) []BenchmarkResult {
	var results []BenchmarkResult
	client := contract.NewLocalGitClient()

	fmt.Printf("Starting benchmark: %d repos, %v timeout, lookback %q, no-cache: %d runs, cache: %d runs\n",
		len(config.TestRepos), config.Timeout, config.Lookback, config.NoCacheRuns, config.CacheRuns)

	for _, repo := range config.TestRepos {
		fmt.Printf("Benchmarking %s\n", repo)
		repoPath := filepath.Join(config.RepoBase, repo)

		for _, days := range config.ChunkDays {
			cfg, err := newConfig(context.Background(), client, repoPath, config.Lookback, days)
			if err != nil {
				fmt.Printf("  Skipping chunk-days=%d: %v\n", days, err)
				continue
			}
			results = append(results, runBenchmarkSuite(config, repo, cfg, client))
		}
	}
	return results
}

// runBenchmarkSuite runs both no-cache and cache phases for one case
func runBenchmarkSuite(config BenchmarkConfig, repo string, cfg *contract.Config, client contract.GitClient) BenchmarkResult {
	name := fmt.Sprintf("chunk-days=%d", cfg.ChunkSizeDays)
	fmt.Printf("Running %s on %s\n", name, repo)

	// Helper to run a benchmark phase
	runPhase := func(cache contract.CacheStore, numRuns int, phaseName string) (coldTime float64, avgTime string, chunks int) {
		fmt.Printf("  %s phase (%d runs)\n", phaseName, numRuns)
		cold, times, chunks := runBenchmark(config, cfg, core.Deps{Client: client, Cache: cache}, numRuns)
		if len(times) == 0 {
			avgTime = "TIMEOUT"
		} else {
			var sum float64
			for _, t := range times {
				sum += t
			}
			avgTime = fmt.Sprintf("%.3fs", sum/float64(len(times)))
		}
		return cold, avgTime, chunks
	}

	// Phase 1: No-cache runs
	_, noCacheAvg, chunks := runPhase(nil, config.NoCacheRuns, "No-cache")

	// Phase 2: Cache runs share one store
	cache := iocache.NewMemoryStore(iocache.MemoryOptions{TTL: time.Hour, MaxSize: contract.DefaultCacheMaxSize})
	coldTime, warmAvg, _ := runPhase(cache, config.CacheRuns, "Cache")

	coldTimeStr := "TIMEOUT"
	if coldTime > 0 {
		coldTimeStr = fmt.Sprintf("%.3fs", coldTime)
	}

	fmt.Printf("  No-cache average: %s, Cold time: %s, Warm average: %s\n", noCacheAvg, coldTimeStr, warmAvg)

	return BenchmarkResult{
		Repository:  repo,
		Case:        name,
		Chunks:      chunks,
		NoCacheTime: noCacheAvg,
		ColdTime:    coldTimeStr,
		WarmTime:    warmAvg,
	}
}

// runBenchmark collects numRuns times and returns the cold time and warm times
func runBenchmark(config BenchmarkConfig, cfg *contract.Config, deps core.Deps, numRuns int) (coldTime float64, warmTimes []float64, chunks int) {
	var times []float64
	for run := 1; run <= numRuns; run++ {
		ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
		start := time.Now()
		res, err := core.Collect(ctx, cfg, deps)
		elapsed := time.Since(start).Seconds()
		cancel()

		if err == nil && !res.Document.Metadata.Incomplete {
			times = append(times, elapsed)
			chunks = len(res.Chunks)
		}
	}

	if len(times) > 0 {
		coldTime = times[0]
		warmTimes = times[1:]
	}
	return coldTime, warmTimes, chunks
}

// saveResults writes benchmark results to a timestamped CSV file
func saveResults(results []BenchmarkResult) error {
	timestamp := time.Now().Format("20060102_150405")
	filename := filepath.Join(os.TempDir(), fmt.Sprintf("recap_benchmark_%s.csv", timestamp))

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			fmt.Printf("Warning: failed to close file %s: %v\n", filename, closeErr)
		}
	}()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"repo", "case", "chunks", "no_cache_avg", "cold_time", "warm_avg"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, r := range results {
		if err := writer.Write([]string{r.Repository, r.Case, fmt.Sprint(r.Chunks), r.NoCacheTime, r.ColdTime, r.WarmTime}); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	fmt.Printf("Results saved to %s\n", filename)
	return nil
}

// printSummary displays the final benchmark results summary
func printSummary(results []BenchmarkResult, config BenchmarkConfig) {
	fmt.Printf("Benchmark complete\n")
	for _, days := range config.ChunkDays {
		name := fmt.Sprintf("chunk-days=%d", days)
		fmt.Printf("Collect (%s):\n", name)
		for _, r := range results {
			if r.Case == name {
				fmt.Printf("  %-12s: Chunks: %d, No-cache: %s, Cold: %s, Warm: %s\n", r.Repository, r.Chunks, r.NoCacheTime, r.ColdTime, r.WarmTime)
			}
		}
	}
}
