package cmd

import (
	"github.com/huangsam/recap/core"
	"github.com/spf13/cobra"
)

// collectCmd runs the full pipeline and prints the recap.
var collectCmd = &cobra.Command{
	Use:   "collect [repo-path...]",
	Short: "Collect activity over a date range and print the recap",
	Long: `Collect activity over a date range and merge it into one report.

Long ranges are split into chunks that run with bounded concurrency. Each
chunk plans fetch tasks, classifies what they return into features,
improvements and fixes, and the chunks are merged with duplicates collapsed.
A chunk that fails leaves the rest of the report intact and is listed in the
warnings.

Examples:
  # Recap the last 30 days of the current repository
  recap collect

  # One quarter across two repositories, with a progress bar
  recap collect ../api ../web --start 2025-01-01 --end 2025-03-31 --progress yes

  # Only authentication work, as markdown
  recap collect --start "2 months ago" -q auth --output markdown`,
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		return core.ExecuteCollect(rootCtx, cfg, coreDeps(true))
	},
}

// planCmd shows what collect would do.
var planCmd = &cobra.Command{
	Use:   "plan [repo-path...]",
	Short: "Show the chunks and fetch tasks of a collect without running it",
	Long: `Print the chunk boundaries and the fetch tasks planned for each chunk.

Nothing is fetched. The commit count estimate used to decide on chunking
still runs against git.

Examples:
  recap plan --start 2025-01-01 --end 2025-03-31
  recap plan ../api --output json`,
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		return core.ExecutePlan(rootCtx, cfg, coreDeps(false))
	},
}
