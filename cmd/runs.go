package cmd

import (
	"fmt"
	"os"

	"github.com/huangsam/recap/internal/contract"
	"github.com/huangsam/recap/internal/iocache"
	"github.com/huangsam/recap/internal/outwriter"
	"github.com/huangsam/recap/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// runsBackend reads the run history backend without the full shared setup.
func runsBackend() (schema.DatabaseBackend, string, error) {
	if err := loadConfigFile(); err != nil {
		return "", "", err
	}
	backend := schema.DatabaseBackend(viper.GetString("run-backend"))
	if backend == "" {
		backend = schema.NoneBackend
	}
	if _, ok := schema.ValidRunBackends[backend]; !ok {
		return "", "", fmt.Errorf("invalid run backend '%s'. must be sqlite, mysql, postgresql, none", backend)
	}
	connStr := viper.GetString("run-db-connect")
	if err := contract.ValidateDatabaseConnectionString(backend, connStr); err != nil {
		return "", "", err
	}
	return backend, connStr, nil
}

// runsSetup loads minimal configuration needed for run history operations.
func runsSetup() error {
	backend, connStr, err := runsBackend()
	if err != nil {
		return err
	}
	if err := iocache.InitStores(iocache.StoreOptions{RunBackend: backend, RunConnStr: connStr}); err != nil {
		return fmt.Errorf("failed to initialize run history: %w", err)
	}

	cfg.RunBackend = backend
	cfg.RunDBConnect = connStr
	cfg.OutputFile = viper.GetString("output-file")
	cfg.Output = schema.OutputMode(viper.GetString("output"))
	cfg.Precision = viper.GetInt("precision")
	return nil
}

// runsSetupWrapper wraps runsSetup to provide PreRunE for runs commands.
func runsSetupWrapper(_ *cobra.Command, _ []string) error {
	return runsSetup()
}

// runsMigrateSetup does NOT initialize stores or create tables, so that
// migrations can run on a fresh database.
func runsMigrateSetup(_ *cobra.Command, _ []string) error {
	backend, connStr, err := runsBackend()
	if err != nil {
		return err
	}
	if backend == schema.SQLiteBackend && connStr == "" {
		connStr = contract.GetRunDBFilePath()
	}
	cfg.RunBackend = backend
	cfg.RunDBConnect = connStr
	return nil
}

// runsCmd focused on run history management.
//
// Note: runs subcommands use minimal initialization instead of the full
// sharedSetup. This avoids git repo validation for simple store operations.
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Manage the history of collect runs",
	Long: `Manage the history of collect runs.

When a run backend is configured, every collect stores:
- Run metadata (timestamp, configuration, duration, chunk counts)
- One row per chunk with its range, status, timing and entry count

Supported backends: SQLite, MySQL, PostgreSQL, or None (disabled, default)

Subcommands:
  list    - Show recorded runs, newest first
  status  - Show run history statistics
  export  - Export data to Parquet for analytics
  clear   - Remove all run history
  migrate - Run database schema migrations

Examples:
  RECAP_RUN_BACKEND=sqlite recap runs status
  recap runs export --run-backend sqlite --output-file history`,
}

// runsListCmd prints recorded runs.
var runsListCmd = &cobra.Command{
	Use:     "list",
	Short:   "List recorded collect runs, newest first",
	PreRunE: runsSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		runs, err := iocache.Manager.GetRunStore().GetAllRuns()
		if err != nil {
			return fmt.Errorf("failed to list runs: %w", err)
		}
		return outwriter.WriteRuns(runs, cfg)
	},
}

// runsStatusCmd shows run history status.
var runsStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display run history statistics and connection details",
	Long: `Show detailed information about the run history store.

Displays:
- Backend type and connection status
- Total runs and chunk records stored
- Last and oldest run timestamps
- Database table sizes`,
	PreRunE: runsSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		status, err := iocache.Manager.GetRunStore().GetStatus()
		if err != nil {
			contract.LogFatal("Failed to get run status", err)
		}
		iocache.PrintRunStatus(os.Stdout, status)
	},
}

// runsClearCmd clears the run history.
var runsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all run history",
	Long: `Delete all stored runs and chunk records.

For SQLite: Deletes the database file
For MySQL/PostgreSQL: Drops the run tables

WARNING: This action cannot be undone. Consider exporting data first.`,
	PreRunE: runsSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		iocache.CloseStores()
		dbPath := contract.GetRunDBFilePath()
		if cfg.RunBackend == schema.SQLiteBackend && cfg.RunDBConnect != "" {
			dbPath = cfg.RunDBConnect
		}
		if err := iocache.ClearRuns(cfg.RunBackend, dbPath, cfg.RunDBConnect); err != nil {
			contract.LogFatal("Failed to clear run history", err)
		}
		fmt.Println("Run history cleared successfully.")
	},
}

// runsExportCmd exports run history to Parquet files.
var runsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export run history to Parquet files",
	Long: `Export all runs and chunk records to two Parquet files:

  <output-file>.runs.parquet
  <output-file>.chunk_results.parquet

Examples:
  recap runs export --output-file history
  duckdb -c "SELECT status, count(*) FROM 'history.chunk_results.parquet' GROUP BY 1"`,
	PreRunE: runsSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		return iocache.ExecuteRunExport(os.Stdout, iocache.Manager.GetRunStore(), cfg.OutputFile)
	},
}

// runsMigrateCmd runs schema migrations.
var runsMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run run history schema migrations",
	Long: `Apply or roll back run history schema migrations.

Examples:
  # Migrate to the latest version
  recap runs migrate --run-backend sqlite

  # Roll back everything
  recap runs migrate --run-backend sqlite --target-version 0`,
	PreRunE: runsMigrateSetup,
	RunE: func(_ *cobra.Command, _ []string) error {
		return iocache.MigrateRuns(os.Stdout, cfg.RunBackend, cfg.RunDBConnect, viper.GetInt("target-version"))
	},
}
