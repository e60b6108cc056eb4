package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/huangsam/recap/core"
	"github.com/huangsam/recap/internal/contract"
	"github.com/huangsam/recap/schema"
	"github.com/mark3labs/mcp-go/mcp"
)

// toolHandler holds common dependencies for MCP tool handlers.
type toolHandler struct {
	baseCfg *contract.Config
	deps    core.Deps
}

// requestConfig applies the shared range arguments on a copy of the base config.
func (h *toolHandler) requestConfig(request mcp.CallToolRequest) (*contract.Config, error) {
	cfg := h.baseCfg.Clone()
	now := time.Now()
	if s := request.GetString("start", ""); s != "" {
		t, err := contract.ParseTimeFlag(s, now)
		if err != nil {
			return nil, fmt.Errorf("invalid start: %w", err)
		}
		cfg.StartTime = t
	}
	if s := request.GetString("end", ""); s != "" {
		t, err := contract.ParseTimeFlag(s, now)
		if err != nil {
			return nil, fmt.Errorf("invalid end: %w", err)
		}
		cfg.EndTime = t
	}
	if q := request.GetString("query", ""); q != "" {
		cfg.Query = q
	}
	if d := request.GetInt("chunk_days", 0); d != 0 {
		if d < 0 {
			return nil, fmt.Errorf("chunk_days must be at least 1 (received %d)", d)
		}
		cfg.ChunkSizeDays = d
	}
	if err := cfg.Range().Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (h *toolHandler) handleCollectRecap(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg, err := h.requestConfig(request)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid collect parameters: %v", err)), nil
	}
	if p := request.GetString("repo_path", ""); p != "" {
		cfg.WorkingRepo = p
		cfg.Scopes = []schema.Scope{{Kind: schema.RepositoryScope, Key: p}}
	}

	res, err := core.Collect(ctx, cfg, h.deps)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("collect failed: %v", err)), nil
	}
	limit := request.GetInt("limit", cfg.ResultLimit)
	res.Document.Truncate(limit)

	jsonData, _ := json.MarshalIndent(res.Document, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (h *toolHandler) handlePlanTasks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg, err := h.requestConfig(request)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid plan parameters: %v", err)), nil
	}

	res, err := core.PlanRun(ctx, cfg, h.deps)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("planning failed: %v", err)), nil
	}

	out := struct {
		Chunked bool              `json:"chunked"`
		Chunks  int               `json:"chunks"`
		Tasks   []schema.PlanView `json:"tasks"`
	}{res.Chunked, len(res.Chunks), res.Tasks}
	jsonData, _ := json.MarshalIndent(out, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (h *toolHandler) handleCacheStats(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if h.deps.Cache == nil {
		return mcp.NewToolResultError("cache is disabled"), nil
	}
	jsonData, _ := json.MarshalIndent(h.deps.Cache.Stats(), "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}
