package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime/pprof"
	"strings"

	"github.com/huangsam/recap/core"
	"github.com/huangsam/recap/internal/contract"
	"github.com/huangsam/recap/internal/iocache"
	"github.com/huangsam/recap/internal/progress"
	"github.com/huangsam/recap/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// All linker flags will be set by goreleaser infra at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCtx is the root context for all operations.
var rootCtx = context.Background()

// cfg will hold the validated, final configuration.
var cfg = &contract.Config{}

// input holds the raw, unvalidated configuration from all sources (file, env, flags).
// Viper will unmarshal into this struct.
var input = &contract.ConfigRawInput{}

// gitClient is shared by config validation and the collect run.
var gitClient contract.GitClient = contract.NewLocalGitClient()

// profilePrefix is non-empty when profiling is enabled.
var profilePrefix string

// startProfiling starts CPU profiling if enabled.
func startProfiling() error {
	if profilePrefix == "" {
		return nil
	}

	cpuFile, err := os.Create(profilePrefix + ".cpu.prof")
	if err != nil {
		return fmt.Errorf("could not create CPU profile: %w", err)
	}
	if err := pprof.StartCPUProfile(cpuFile); err != nil {
		return fmt.Errorf("could not start CPU profiling: %w", err)
	}

	// Memory profiling will be captured at the end
	_, err = fmt.Fprintf(os.Stderr, "Profiling enabled. CPU profile: %s.cpu.prof, Memory profile: %s.mem.prof\n", profilePrefix, profilePrefix)
	return err
}

// stopProfiling stops profiling and writes memory profile.
func stopProfiling() error {
	if profilePrefix == "" {
		return nil
	}

	pprof.StopCPUProfile()

	memFile, err := os.Create(profilePrefix + ".mem.prof")
	if err != nil {
		return fmt.Errorf("could not create memory profile: %w", err)
	}
	defer func() { _ = memFile.Close() }()

	if err := pprof.WriteHeapProfile(memFile); err != nil {
		return fmt.Errorf("could not write memory profile: %w", err)
	}

	_, err = fmt.Fprintf(os.Stderr, "Profiling complete. Use 'go tool pprof %s.cpu.prof' to analyze.\n", profilePrefix)
	return err
}

// rootCmd is the command-line entrypoint for all other commands.
var rootCmd = &cobra.Command{
	Use:                "recap",
	Short:              "Summarize repository activity over a date range.",
	Long:               `Recap collects activity over long date ranges in bounded, cached chunks and merges it into one categorized, deduplicated report.`,
	Version:            version,
	SilenceErrors:      true,
	SilenceUsage:       true,
	DisableSuggestions: true,
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

// configSearch points viper at the config file.
func configSearch() {
	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName(".recap") // Name of config file (without extension)
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	configSearch()

	viper.SetEnvPrefix("RECAP")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	// Set defaults in Viper
	viper.SetDefault("chunk-days", contract.DefaultChunkSizeDays)
	viper.SetDefault("split-days", contract.DefaultSplitDays)
	viper.SetDefault("max-concurrency", contract.DefaultWorkers)
	viper.SetDefault("max-concurrent-chunks", contract.DefaultMaxConcurrentChunks)
	viper.SetDefault("timeout", contract.DefaultTimeout.String())
	viper.SetDefault("chunk-timeout", contract.DefaultChunkTimeout.String())
	viper.SetDefault("run-timeout", "")
	viper.SetDefault("overlap", "")
	viper.SetDefault("rate-limit", 0.0)
	viper.SetDefault("cache-ttl", contract.DefaultCacheTTL.String())
	viper.SetDefault("cache-max-size", contract.DefaultCacheMaxSize)
	viper.SetDefault("cache-sweep", contract.DefaultSweepInterval.String())
	viper.SetDefault("similarity-threshold", contract.DefaultSimilarityThreshold)
	viper.SetDefault("dedup-by", schema.DedupByTitle)
	viper.SetDefault("dedup-keep", schema.KeepFirst)
	viper.SetDefault("incremental-days", contract.DefaultIncrementalDays)
	viper.SetDefault("incremental-volume", contract.DefaultIncrementalVolume)
	viper.SetDefault("limit", contract.DefaultResultLimit)
	viper.SetDefault("precision", contract.DefaultPrecision)
	viper.SetDefault("output", schema.TextOut)
	viper.SetDefault("color", "yes")
	viper.SetDefault("progress", "no")
	viper.SetDefault("log-level", "warn")
	viper.SetDefault("log-format", "text")
	viper.SetDefault("run-backend", schema.NoneBackend)
	viper.SetDefault("run-db-connect", "")
}

// loadConfigFile reads the config file when one is present.
func loadConfigFile() error {
	configSearch()
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, which is fine; we'll use defaults/env/flags.
	}
	return nil
}

// sharedSetup unmarshals config, runs validation and opens the stores.
func sharedSetup(ctx context.Context, _ *cobra.Command, args []string) error {
	profilePrefix = viper.GetString("profile")
	if err := startProfiling(); err != nil {
		return fmt.Errorf("failed to start profiling: %w", err)
	}

	// 1. Read config file. This merges defaults, file, env, and flags.
	if err := loadConfigFile(); err != nil {
		return err
	}

	// 2. Unmarshal all resolved values from Viper into our raw input struct.
	if err := viper.Unmarshal(input); err != nil {
		return fmt.Errorf("unable to unmarshal config: %w", err)
	}

	// 3. Handle positional arguments (which Viper doesn't do).
	input.RepoPathStrs = args

	// 4. Run all validation and complex parsing.
	if err := contract.ProcessAndValidate(ctx, cfg, gitClient, input); err != nil {
		return err
	}
	slog.SetDefault(contract.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat))

	// 5. Initialize the cache and run history with validated config
	if err := iocache.InitStores(iocache.StoreOptions{
		Memory:        iocache.MemoryOptions{TTL: cfg.CacheTTL, MaxSize: cfg.CacheMaxSize},
		SweepInterval: cfg.CacheSweepInterval,
		RunBackend:    cfg.RunBackend,
		RunConnStr:    cfg.RunDBConnect,
	}); err != nil {
		return fmt.Errorf("failed to initialize persistence: %w", err)
	}
	return nil
}

// sharedSetupWrapper wraps sharedSetup to provide context for Cobra's PreRunE.
func sharedSetupWrapper(cmd *cobra.Command, args []string) error {
	return sharedSetup(rootCtx, cmd, args)
}

// coreDeps builds the collaborators of a run from the initialized stores.
func coreDeps(withProgress bool) core.Deps {
	deps := core.Deps{
		Client: gitClient,
		Runs:   iocache.Manager.GetRunStore(),
		Logger: slog.Default(),
	}
	if cache := iocache.Manager.GetCache(); cache != nil {
		deps.Cache = cache
	}
	reporters := progress.Multi{progress.Safe{Reporter: progress.NewLog(slog.Default())}}
	if withProgress && cfg.Progress {
		reporters = append(reporters, progress.Safe{Reporter: progress.NewBar(os.Stderr)})
	}
	deps.Reporter = reporters
	return deps
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// StopProfiling stops profiling if enabled.
func StopProfiling() error {
	return stopProfiling()
}
