package memtools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/LuciformResearch/ragforge-sub003/internal/enrich"
	"github.com/LuciformResearch/ragforge-sub003/internal/memory"
	"github.com/LuciformResearch/ragforge-sub003/internal/retrieval"
)

// EnrichTool handles the mem_enrich_context MCP tool: it assembles the
// budgeted memory context for a query.
type EnrichTool struct {
	store     *memory.Store
	assembler *enrich.Assembler
	locks     *retrieval.Locks
}

// NewEnrichTool creates an EnrichTool.
func NewEnrichTool(store *memory.Store, assembler *enrich.Assembler, locks *retrieval.Locks) *EnrichTool {
	return &EnrichTool{store: store, assembler: assembler, locks: locks}
}

// Definition returns the MCP tool definition for mem_enrich_context.
func (t *EnrichTool) Definition() mcp.Tool {
	return mcp.NewTool("mem_enrich_context",
		mcp.WithDescription(
			"Build the memory context block for a query: recent user questions, recent raw "+
				"turns, relevant past conversation and code, and pending L1 summaries. Splice "+
				"the returned block into the prompt ahead of the query.",
		),
		mcp.WithString("conversation_id",
			mcp.Required(),
			mcp.Description("Conversation to enrich against"),
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The user query the context is being built for"),
		),
		mcp.WithString("workdir",
			mcp.Description("Caller working directory, used to gate code semantic search (default: server cwd)"),
		),
	)
}

// Handle processes the mem_enrich_context tool call.
func (t *EnrichTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	conversationID := req.GetString("conversation_id", "")
	query := req.GetString("query", "")

	if conversationID == "" {
		return mcp.NewToolResultError("'conversation_id' is required"), nil
	}
	if query == "" {
		return mcp.NewToolResultError("'query' is required"), nil
	}

	eligible := semanticEligible(t.store, t.locks, req.GetString("workdir", ""))

	ec, err := t.assembler.Build(ctx, conversationID, query, eligible)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to build context: %v", err)), nil
	}

	return mcp.NewToolResultText(t.assembler.Format(ec)), nil
}
