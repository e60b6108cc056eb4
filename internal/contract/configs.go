package contract

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/huangsam/recap/schema"
)

// Default values for configuration.
const (
	DefaultLookbackDays        = 30
	DefaultChunkSizeDays       = 7
	DefaultSplitDays           = 7
	DefaultMaxConcurrentChunks = 3
	DefaultTimeout             = 30 * time.Second
	DefaultChunkTimeout        = 2 * time.Minute
	DefaultCacheTTL            = time.Hour
	DefaultCacheMaxSize        = 500
	DefaultSweepInterval       = 5 * time.Minute
	DefaultSimilarityThreshold = 0.8
	DefaultIncrementalDays     = 14
	DefaultIncrementalVolume   = 1000
	DefaultResultLimit         = 25
	MaxResultLimit             = 1000
	DefaultPrecision           = 2
)

// DefaultWorkers is the default number of tasks in flight per chunk.
var DefaultWorkers = runtime.GOMAXPROCS(0)

// DateTimeFormat is the default date time representation.
var DateTimeFormat = time.RFC3339

// Config holds the final, validated runtime configuration of a collect run.
type Config struct {
	WorkingRepo string         // repository used by the general task
	Scopes      []schema.Scope // explicit scopes; empty means one general task per window
	Query       string

	StartTime time.Time
	EndTime   time.Time

	ChunkSizeDays       int
	SplitDays           int
	MaxConcurrency      int
	MaxConcurrentChunks int
	Timeout             time.Duration
	ChunkTimeout        time.Duration
	RunTimeout          time.Duration // 0 = no global deadline
	Overlap             time.Duration
	RateLimit           float64 // task starts per second, 0 = unlimited

	CacheTTL           time.Duration
	CacheMaxSize       int
	CacheSweepInterval time.Duration

	SimilarityThreshold float64
	DedupBy             string
	DedupKeep           schema.DedupKeep

	IncrementalDays   int
	IncrementalVolume int

	ResultLimit int
	Precision   int
	Output      schema.OutputMode
	OutputFile  string
	Width       int // Terminal width override (0 = auto-detect)
	Detail      bool
	UseColors   bool
	Progress    bool

	LogLevel  slog.Level
	LogFormat string

	RunBackend   schema.DatabaseBackend
	RunDBConnect string // Please use env var as this is plaintext
}

// ConfigRawInput holds the raw inputs from all sources (flags, env, config file).
// Viper unmarshals into this struct.
type ConfigRawInput struct {
	// Set manually from positional args, so no tag
	RepoPathStrs []string

	Start               string  `mapstructure:"start"`
	End                 string  `mapstructure:"end"`
	Query               string  `mapstructure:"query"`
	ChunkDays           int     `mapstructure:"chunk-days"`
	SplitDays           int     `mapstructure:"split-days"`
	MaxConcurrency      int     `mapstructure:"max-concurrency"`
	MaxConcurrentChunks int     `mapstructure:"max-concurrent-chunks"`
	Timeout             string  `mapstructure:"timeout"`
	ChunkTimeout        string  `mapstructure:"chunk-timeout"`
	RunTimeout          string  `mapstructure:"run-timeout"`
	Overlap             string  `mapstructure:"overlap"`
	RateLimit           float64 `mapstructure:"rate-limit"`
	CacheTTL            string  `mapstructure:"cache-ttl"`
	CacheMaxSize        int     `mapstructure:"cache-max-size"`
	CacheSweep          string  `mapstructure:"cache-sweep"`
	SimilarityThreshold float64 `mapstructure:"similarity-threshold"`
	DedupBy             string  `mapstructure:"dedup-by"`
	DedupKeep           string  `mapstructure:"dedup-keep"`
	IncrementalDays     int     `mapstructure:"incremental-days"`
	IncrementalVolume   int     `mapstructure:"incremental-volume"`
	Limit               int     `mapstructure:"limit"`
	Precision           int     `mapstructure:"precision"`
	Output              string  `mapstructure:"output"`
	OutputFile          string  `mapstructure:"output-file"`
	Width               int     `mapstructure:"width"`
	Detail              bool    `mapstructure:"detail"`
	Color               string  `mapstructure:"color"`
	Progress            string  `mapstructure:"progress"`
	LogLevel            string  `mapstructure:"log-level"`
	LogFormat           string  `mapstructure:"log-format"`
	RunBackend          string  `mapstructure:"run-backend"`
	RunDBConnect        string  `mapstructure:"run-db-connect"`
}

// Clone returns a deep copy of the Config struct.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Scopes = slices.Clone(c.Scopes)
	return &clone
}

// CloneWithTimeWindow creates a copy of the Config and sets the new StartTime and EndTime.
func (c *Config) CloneWithTimeWindow(start time.Time, end time.Time) *Config {
	clone := c.Clone()
	clone.StartTime = start
	clone.EndTime = end
	return clone
}

// Range returns the configured collection window.
func (c *Config) Range() schema.DateRange {
	return schema.DateRange{Start: c.StartTime, End: c.EndTime}
}

// ConfigParams returns the run parameters worth recording with a run.
func (c *Config) ConfigParams() map[string]any {
	scopes := make([]string, 0, len(c.Scopes))
	for _, s := range c.Scopes {
		scopes = append(scopes, s.Key)
	}
	return map[string]any{
		"scopes":                scopes,
		"query":                 c.Query,
		"start":                 c.StartTime.Format(DateTimeFormat),
		"end":                   c.EndTime.Format(DateTimeFormat),
		"chunk_days":            c.ChunkSizeDays,
		"max_concurrency":       c.MaxConcurrency,
		"max_concurrent_chunks": c.MaxConcurrentChunks,
		"similarity_threshold":  c.SimilarityThreshold,
		"dedup_keep":            string(c.DedupKeep),
	}
}

// ProcessAndValidate performs all parsing and validation on the raw inputs
// and updates the final Config struct.
func ProcessAndValidate(ctx context.Context, cfg *Config, client GitClient, input *ConfigRawInput) error {
	if err := validateSimpleInputs(cfg, input); err != nil {
		return err
	}
	if err := processPipelineOptions(cfg, input); err != nil {
		return err
	}
	if err := processTimeRange(cfg, input); err != nil {
		return err
	}
	return resolveScopes(ctx, cfg, client, input)
}

// ValidateDatabaseConnectionString validates the format of database connection strings
// for MySQL and PostgreSQL backends.
func ValidateDatabaseConnectionString(backend schema.DatabaseBackend, connStr string) error {
	switch backend {
	case schema.SQLiteBackend, schema.NoneBackend:
		return nil
	case schema.MySQLBackend:
		if connStr == "" {
			return fmt.Errorf("run-db-connect is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "@tcp(") {
			return fmt.Errorf("MySQL connection string must contain '@tcp(' for host:port specification")
		}
		if !strings.Contains(connStr, "/") {
			return fmt.Errorf("MySQL connection string must contain '/' followed by database name")
		}
	case schema.PostgreSQLBackend:
		if connStr == "" {
			return fmt.Errorf("run-db-connect is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "host=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'host=' parameter")
		}
		if !strings.Contains(connStr, "dbname=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'dbname=' parameter")
		}
	}
	return nil
}

// validateSimpleInputs processes the output, logging and backend fields.
func validateSimpleInputs(cfg *Config, input *ConfigRawInput) error {
	cfg.OutputFile = input.OutputFile
	cfg.Width = input.Width
	cfg.Detail = input.Detail
	cfg.Query = strings.TrimSpace(input.Query)

	colors, err := ParseBoolString(input.Color)
	if err != nil {
		return fmt.Errorf("invalid --color value: %w", err)
	}
	cfg.UseColors = colors

	progress, err := ParseBoolString(input.Progress)
	if err != nil {
		return fmt.Errorf("invalid --progress value: %w", err)
	}
	cfg.Progress = progress

	if input.Limit < 0 || input.Limit > MaxResultLimit {
		return fmt.Errorf("limit must be between 0 and %d (received %d)", MaxResultLimit, input.Limit)
	}
	cfg.ResultLimit = input.Limit

	if input.Precision < 1 || input.Precision > 3 {
		return fmt.Errorf("precision must be between 1 and 3 (received %d)", input.Precision)
	}
	cfg.Precision = input.Precision

	cfg.Output = schema.OutputMode(strings.ToLower(input.Output))
	if _, ok := schema.ValidOutputModes[cfg.Output]; !ok {
		return fmt.Errorf("invalid output format '%s'. must be text, json, csv, markdown, html, xlsx, parquet", input.Output)
	}
	if (cfg.Output == schema.XLSXOut || cfg.Output == schema.ParquetOut) && cfg.OutputFile == "" {
		return fmt.Errorf("--output-file is required for %s output", cfg.Output)
	}

	level, err := ParseLogLevel(input.LogLevel)
	if err != nil {
		return err
	}
	cfg.LogLevel = level
	cfg.LogFormat = strings.ToLower(input.LogFormat)
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return fmt.Errorf("invalid log format '%s'. must be text or json", input.LogFormat)
	}

	cfg.RunBackend = schema.DatabaseBackend(strings.ToLower(input.RunBackend))
	if _, ok := schema.ValidRunBackends[cfg.RunBackend]; !ok {
		return fmt.Errorf("invalid run backend '%s'. must be sqlite, mysql, postgresql, none", input.RunBackend)
	}
	cfg.RunDBConnect = input.RunDBConnect
	return ValidateDatabaseConnectionString(cfg.RunBackend, cfg.RunDBConnect)
}

// processPipelineOptions validates the concurrency, cache and dedup knobs.
func processPipelineOptions(cfg *Config, input *ConfigRawInput) error {
	if input.ChunkDays <= 0 {
		return fmt.Errorf("chunk-days must be greater than 0 (received %d)", input.ChunkDays)
	}
	cfg.ChunkSizeDays = input.ChunkDays

	if input.SplitDays <= 0 {
		return fmt.Errorf("split-days must be greater than 0 (received %d)", input.SplitDays)
	}
	cfg.SplitDays = input.SplitDays

	if input.MaxConcurrency < 1 {
		return fmt.Errorf("max-concurrency must be at least 1 (received %d)", input.MaxConcurrency)
	}
	cfg.MaxConcurrency = input.MaxConcurrency

	if input.MaxConcurrentChunks < 1 {
		return fmt.Errorf("max-concurrent-chunks must be at least 1 (received %d)", input.MaxConcurrentChunks)
	}
	cfg.MaxConcurrentChunks = input.MaxConcurrentChunks

	var err error
	if cfg.Timeout, err = ParseLookbackDuration(input.Timeout); err != nil {
		return fmt.Errorf("invalid --timeout: %w", err)
	}
	if cfg.ChunkTimeout, err = ParseLookbackDuration(input.ChunkTimeout); err != nil {
		return fmt.Errorf("invalid --chunk-timeout: %w", err)
	}
	if cfg.RunTimeout, err = ParseOptionalDuration(input.RunTimeout); err != nil {
		return fmt.Errorf("invalid --run-timeout: %w", err)
	}
	if cfg.Overlap, err = ParseOptionalDuration(input.Overlap); err != nil {
		return fmt.Errorf("invalid --overlap: %w", err)
	}
	if cfg.CacheTTL, err = ParseOptionalDuration(input.CacheTTL); err != nil {
		return fmt.Errorf("invalid --cache-ttl: %w", err)
	}
	if cfg.CacheSweepInterval, err = ParseOptionalDuration(input.CacheSweep); err != nil {
		return fmt.Errorf("invalid --cache-sweep: %w", err)
	}

	if input.RateLimit < 0 {
		return fmt.Errorf("rate-limit cannot be negative (received %.2f)", input.RateLimit)
	}
	cfg.RateLimit = input.RateLimit

	if input.CacheMaxSize < 0 {
		return fmt.Errorf("cache-max-size cannot be negative (received %d)", input.CacheMaxSize)
	}
	cfg.CacheMaxSize = input.CacheMaxSize

	if input.SimilarityThreshold <= 0 || input.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity-threshold must be above 0 and at most 1 (received %.2f)", input.SimilarityThreshold)
	}
	cfg.SimilarityThreshold = input.SimilarityThreshold

	cfg.DedupBy = strings.ToLower(input.DedupBy)
	if cfg.DedupBy != schema.DedupByTitle {
		return fmt.Errorf("invalid dedup-by '%s'. must be title", input.DedupBy)
	}
	cfg.DedupKeep = schema.DedupKeep(strings.ToLower(input.DedupKeep))
	if _, ok := schema.ValidDedupKeeps[cfg.DedupKeep]; !ok {
		return fmt.Errorf("invalid dedup-keep '%s'. must be first or confidence", input.DedupKeep)
	}

	if input.IncrementalDays < 0 || input.IncrementalVolume < 0 {
		return fmt.Errorf("incremental thresholds cannot be negative")
	}
	cfg.IncrementalDays = input.IncrementalDays
	cfg.IncrementalVolume = input.IncrementalVolume
	return nil
}

// processTimeRange handles date parsing and time range validation.
func processTimeRange(cfg *Config, input *ConfigRawInput) error {
	now := time.Now()
	cfg.EndTime = now
	cfg.StartTime = now.AddDate(0, 0, -DefaultLookbackDays)

	if input.Start != "" {
		t, err := ParseTimeFlag(input.Start, now)
		if err != nil {
			return fmt.Errorf("invalid start: %w", err)
		}
		cfg.StartTime = t
	}
	if input.End != "" {
		t, err := ParseTimeFlag(input.End, now)
		if err != nil {
			return fmt.Errorf("invalid end: %w", err)
		}
		cfg.EndTime = t
	}
	return cfg.Range().Validate()
}

// resolveScopes turns positional paths into repository scopes rooted at their git top level.
func resolveScopes(ctx context.Context, cfg *Config, client GitClient, input *ConfigRawInput) error {
	paths := input.RepoPathStrs
	explicit := len(paths) > 0
	if !explicit {
		paths = []string{"."}
	}

	cfg.Scopes = nil
	seen := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		root, err := resolveRepoRoot(ctx, client, p)
		if err != nil {
			return err
		}
		if cfg.WorkingRepo == "" {
			cfg.WorkingRepo = root
		}
		if _, dup := seen[root]; dup || !explicit {
			continue
		}
		seen[root] = struct{}{}
		cfg.Scopes = append(cfg.Scopes, schema.Scope{Kind: schema.RepositoryScope, Key: root})
	}
	return nil
}

func resolveRepoRoot(ctx context.Context, client GitClient, searchPath string) (string, error) {
	absPath, err := filepath.Abs(searchPath)
	if err != nil {
		return "", err
	}
	absPath = filepath.Clean(absPath)
	if info, statErr := os.Stat(absPath); statErr == nil && !info.IsDir() {
		absPath = filepath.Dir(absPath)
	}
	return client.GetRepoRoot(ctx, absPath)
}
