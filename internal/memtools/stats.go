package memtools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/LuciformResearch/ragforge-sub003/internal/memory"
)

// StatsTool handles the mem_stats MCP tool.
type StatsTool struct {
	store *memory.Store
}

// NewStatsTool creates a StatsTool with the given memory store.
func NewStatsTool(store *memory.Store) *StatsTool {
	return &StatsTool{store: store}
}

// Definition returns the MCP tool definition for mem_stats.
func (t *StatsTool) Definition() mcp.Tool {
	return mcp.NewTool("mem_stats",
		mcp.WithDescription(
			"Show memory statistics — conversations, messages, tool calls, summaries per tier, and indexed code chunks.",
		),
	)
}

// Handle processes the mem_stats tool call.
func (t *StatsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := t.store.Stats()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get stats: %v", err)), nil
	}

	var sb strings.Builder
	sb.WriteString("## Memory Statistics\n\n")
	fmt.Fprintf(&sb, "- **Conversations**: %d\n", stats.Conversations)
	fmt.Fprintf(&sb, "- **Messages**: %d\n", stats.Messages)
	fmt.Fprintf(&sb, "- **Tool Calls**: %d\n", stats.ToolCalls)
	fmt.Fprintf(&sb, "- **L1 Summaries**: %d\n", stats.L1Summaries)
	fmt.Fprintf(&sb, "- **L2 Summaries**: %d\n", stats.L2Summaries)
	fmt.Fprintf(&sb, "- **Code Chunks**: %d\n", stats.CodeChunks)

	return mcp.NewToolResultText(sb.String()), nil
}
