// Package cmd defines the command-line interface for recap.
package cmd

import (
	"github.com/huangsam/recap/internal/contract"
	"github.com/huangsam/recap/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	// Call initConfig on Cobra's initialization
	cobra.OnInitialize(initConfig)

	// Add primary subcommands to the root command
	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(versionCmd)

	// Add the runs subcommands to the parent runs command
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsStatusCmd)
	runsCmd.AddCommand(runsClearCmd)
	runsCmd.AddCommand(runsExportCmd)
	runsCmd.AddCommand(runsMigrateCmd)

	// Bind all persistent flags of rootCmd to Viper
	pf := rootCmd.PersistentFlags()
	pf.String("start", "", "Start date in ISO8601 or time ago (default 30 days ago)")
	pf.String("end", "", "End date in ISO8601 or time ago (default now)")
	pf.StringP("query", "q", "", "Only keep activity whose title or body mentions this text")
	pf.Int("chunk-days", contract.DefaultChunkSizeDays, "Days per chunk when the range is chunked")
	pf.Int("split-days", contract.DefaultSplitDays, "Longest window a scoped fetch task may cover")
	pf.Int("max-concurrency", contract.DefaultWorkers, "Fetch tasks in flight per chunk")
	pf.Int("max-concurrent-chunks", contract.DefaultMaxConcurrentChunks, "Chunks processed at the same time")
	pf.String("timeout", contract.DefaultTimeout.String(), "Time budget per fetch task")
	pf.String("chunk-timeout", contract.DefaultChunkTimeout.String(), "Time budget per chunk")
	pf.String("run-timeout", "", "Deadline for the whole run (empty = none)")
	pf.String("overlap", "", "Event lookback before each chunk start (e.g., 1h)")
	pf.Float64("rate-limit", 0, "Fetch task starts per second (0 = unlimited)")
	pf.String("cache-ttl", contract.DefaultCacheTTL.String(), "Time to live of cached results (empty = forever)")
	pf.Int("cache-max-size", contract.DefaultCacheMaxSize, "Cached results kept before eviction (0 = unbounded)")
	pf.String("cache-sweep", contract.DefaultSweepInterval.String(), "Interval of the expired entry sweeper (empty = off)")
	pf.Float64("similarity-threshold", contract.DefaultSimilarityThreshold, "Title similarity at which entries are merged")
	pf.String("dedup-by", schema.DedupByTitle, "Field compared for duplicates: title")
	pf.String("dedup-keep", string(schema.KeepFirst), "Duplicate survivor: first or confidence")
	pf.Int("incremental-days", contract.DefaultIncrementalDays, "Ranges longer than this are chunked")
	pf.Int("incremental-volume", contract.DefaultIncrementalVolume, "Ranges with more commits than this are chunked")
	pf.IntP("limit", "l", contract.DefaultResultLimit, "Entries per category to display (0 = all)")
	pf.Int("precision", contract.DefaultPrecision, "Decimal precision for numeric columns")
	pf.String("output", string(schema.TextOut), "Output format: text or json or csv or markdown or html or xlsx or parquet")
	pf.String("output-file", "", "Optional path to write output to")
	pf.Int("width", 0, "Terminal width override (0 = auto-detect)")
	pf.Bool("detail", false, "Print description, authors and provenance per entry")
	pf.String("color", "yes", "Enable colored labels in output (yes/no/true/false/1/0)")
	pf.String("progress", "no", "Show a progress bar on stderr (yes/no)")
	pf.String("log-level", "warn", "Log level: debug or info or warn or error")
	pf.String("log-format", "text", "Log format: text or json")
	pf.String("run-backend", string(schema.NoneBackend), "Run history backend: sqlite or mysql or postgresql or none")
	pf.String("run-db-connect", "", "Database connection string for mysql/postgresql run history")
	pf.String("profile", "", "Enable profiling and write profiles to files with this prefix")
	pf.String("config", "", "Path to config file")
	if err := viper.BindPFlags(pf); err != nil {
		contract.LogFatal("Error binding root flags", err)
	}

	// Bind all flags of runsMigrateCmd to Viper
	runsMigrateCmd.Flags().Int("target-version", -1, "Target migration version (-1 means latest, 0 means rollback to initial state)")
	if err := viper.BindPFlags(runsMigrateCmd.Flags()); err != nil {
		contract.LogFatal("Error binding runs migrate flags", err)
	}
}
