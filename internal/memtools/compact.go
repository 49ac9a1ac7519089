package memtools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/LuciformResearch/ragforge-sub003/internal/compaction"
	"github.com/LuciformResearch/ragforge-sub003/internal/memory"
)

// CompactTool handles the mem_compact MCP tool: it runs the retention
// policy over a conversation and writes whatever summaries are due.
type CompactTool struct {
	compactor *compaction.Compactor
}

// NewCompactTool creates a CompactTool.
func NewCompactTool(compactor *compaction.Compactor) *CompactTool {
	return &CompactTool{compactor: compactor}
}

// Definition returns the MCP tool definition for mem_compact.
func (t *CompactTool) Definition() mcp.Tool {
	return mcp.NewTool("mem_compact",
		mcp.WithDescription(
			"Run memory compaction for a conversation: fold the oldest uncompacted turns "+
				"into L1 summaries and consolidate accumulated L1 summaries into L2. Safe to "+
				"call repeatedly — ranges and IDs are deterministic, so retries overwrite "+
				"rather than duplicate.",
		),
		mcp.WithString("conversation_id",
			mcp.Required(),
			mcp.Description("Conversation to compact"),
		),
	)
}

// Handle processes the mem_compact tool call.
func (t *CompactTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	conversationID := req.GetString("conversation_id", "")
	if conversationID == "" {
		return mcp.NewToolResultError("'conversation_id' is required"), nil
	}

	created, err := t.compactor.Run(ctx, conversationID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("compaction failed: %v", err)), nil
	}
	if len(created) == 0 {
		return mcp.NewToolResultText("Nothing to compact: pending content is under the threshold."), nil
	}

	var l1, l2 int
	var sb strings.Builder
	sb.WriteString("## Compaction Result\n\n")
	for _, sum := range created {
		switch sum.Tier {
		case memory.TierL1:
			l1++
		case memory.TierL2:
			l2++
		}
		fmt.Fprintf(&sb, "- L%d %s [turns %d-%d]\n", sum.Tier, sum.ID, sum.StartTurn, sum.EndTurn)
	}
	fmt.Fprintf(&sb, "\nCreated %d L1 and %d L2 summaries.\n", l1, l2)

	return mcp.NewToolResultText(sb.String()), nil
}
