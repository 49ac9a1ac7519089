package memtools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/LuciformResearch/ragforge-sub003/internal/memory"
	"github.com/LuciformResearch/ragforge-sub003/internal/retrieval"
)

// SearchTool handles the mem_search MCP tool. Semantic mode runs the
// full multi-source retrieval; keyword mode queries the FTS index
// directly.
type SearchTool struct {
	store     *memory.Store
	retriever *retrieval.Retriever
	locks     *retrieval.Locks
}

// NewSearchTool creates a SearchTool.
func NewSearchTool(store *memory.Store, retriever *retrieval.Retriever, locks *retrieval.Locks) *SearchTool {
	return &SearchTool{store: store, retriever: retriever, locks: locks}
}

// Definition returns the MCP tool definition for mem_search.
func (t *SearchTool) Definition() mcp.Tool {
	return mcp.NewTool("mem_search",
		mcp.WithDescription(
			"Search persistent memory. Default mode runs conversation similarity, code "+
				"semantic, and code fuzzy search concurrently and merges the results; "+
				"mode=keyword does an exact full-text search over recorded messages instead.",
		),
		mcp.WithString("conversation_id",
			mcp.Required(),
			mcp.Description("Conversation to search within"),
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Free-text search query"),
		),
		mcp.WithString("mode",
			mcp.Description("semantic (default) or keyword"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum results to return (default 20)"),
		),
	)
}

// Handle processes the mem_search tool call.
func (t *SearchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	conversationID := req.GetString("conversation_id", "")
	query := req.GetString("query", "")

	if conversationID == "" {
		return mcp.NewToolResultError("'conversation_id' is required"), nil
	}
	if query == "" {
		return mcp.NewToolResultError("'query' is required"), nil
	}

	limit := intArg(req, "limit", 20)
	if limit <= 0 {
		limit = 20
	}

	if req.GetString("mode", "semantic") == "keyword" {
		return t.keywordSearch(conversationID, query, limit)
	}

	eligible := semanticEligible(t.store, t.locks, "")
	results, err := t.retriever.Retrieve(ctx, conversationID, query, eligible)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	if len(results) > limit {
		results = results[:limit]
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("No results."), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Search Results (%d)\n\n", len(results))
	for _, res := range results {
		loc := res.NodeID
		if res.IsCode() {
			loc = res.Path
			if res.StartLine > 0 {
				loc = fmt.Sprintf("%s:%d-%d", res.Path, res.StartLine, res.EndLine)
			}
		}
		fmt.Fprintf(&sb, "- [%s] %s (relevance %.0f%%, confidence %.0f%%)\n",
			res.Source, loc, res.Score*100, res.Confidence*100)
		if snippet := strings.TrimSpace(memory.Truncate(res.Snippet, 200)); snippet != "" {
			fmt.Fprintf(&sb, "  %s\n", strings.ReplaceAll(snippet, "\n", " "))
		}
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (t *SearchTool) keywordSearch(conversationID, query string, limit int) (*mcp.CallToolResult, error) {
	hits, err := t.store.SearchMessages(conversationID, query, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("keyword search failed: %v", err)), nil
	}
	if len(hits) == 0 {
		return mcp.NewToolResultText("No results."), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Keyword Results (%d)\n\n", len(hits))
	for _, h := range hits {
		fmt.Fprintf(&sb, "- %s: %s\n", h.MessageID, memory.Truncate(strings.ReplaceAll(h.Content, "\n", " "), 200))
	}
	return mcp.NewToolResultText(sb.String()), nil
}
