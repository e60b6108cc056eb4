package cmd

import (
	"github.com/huangsam/recap/internal/mcp"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command.
var mcpCmd = &cobra.Command{
	Use:   "mcp [repo-path...]",
	Short: "Start the recap MCP server",
	Long: `Launch an MCP server over stdio that lets AI agents collect recaps and
inspect plans through standard tools. All tool calls share one result cache.`,
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		// Progress bars would pollute stdio, which carries the protocol
		return mcp.StartMCPServer(rootCtx, cfg, coreDeps(false))
	},
}
