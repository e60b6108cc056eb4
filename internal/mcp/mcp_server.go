// Package mcp provides the Model Context Protocol (MCP) server implementation.
package mcp

import (
	"context"

	"github.com/huangsam/recap/core"
	"github.com/huangsam/recap/internal/contract"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer initializes and configures the recap MCP server without starting it.
// All tools share deps, so repeated calls reuse one cache.
func NewMCPServer(baseCfg *contract.Config, deps core.Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"Recap Collection Server",
		"1.0.0",
		server.WithLogging(),
	)

	h := &toolHandler{
		baseCfg: baseCfg,
		deps:    deps,
	}

	// --- 1. Tool: collect_recap ---
	s.AddTool(mcp.NewTool("collect_recap",
		mcp.WithDescription("Collect activity over a date range and return the categorized, deduplicated recap."),
		mcp.WithString("start", mcp.Description("Start of the range in ISO8601 or time ago (e.g., '2 weeks ago').")),
		mcp.WithString("end", mcp.Description("End of the range in ISO8601 or time ago. Defaults to now.")),
		mcp.WithString("query", mcp.Description("Only keep activity whose title or body mentions this text.")),
		mcp.WithString("repo_path", mcp.Description("Path to the Git repository (defaults to the configured repository).")),
		mcp.WithNumber("chunk_days", mcp.Description("Days per chunk when the range is chunked.")),
		mcp.WithNumber("limit", mcp.Description("Limit the number of entries per category.")),
	), h.handleCollectRecap)

	// --- 2. Tool: plan_tasks ---
	s.AddTool(mcp.NewTool("plan_tasks",
		mcp.WithDescription("Show the chunks and fetch tasks a collect would run, without fetching anything."),
		mcp.WithString("start", mcp.Description("Start of the range in ISO8601 or time ago.")),
		mcp.WithString("end", mcp.Description("End of the range in ISO8601 or time ago.")),
		mcp.WithString("query", mcp.Description("Query carried by general tasks.")),
		mcp.WithNumber("chunk_days", mcp.Description("Days per chunk.")),
	), h.handlePlanTasks)

	// --- 3. Tool: cache_stats ---
	s.AddTool(mcp.NewTool("cache_stats",
		mcp.WithDescription("Report hit and miss counts of the result cache shared by all tools."),
	), h.handleCacheStats)

	return s
}

// StartMCPServer starts the recap MCP server over stdio.
func StartMCPServer(_ context.Context, baseCfg *contract.Config, deps core.Deps) error {
	s := NewMCPServer(baseCfg, deps)
	return server.ServeStdio(s)
}
