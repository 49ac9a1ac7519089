package memtools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/LuciformResearch/ragforge-sub003/internal/conversation"
	"github.com/LuciformResearch/ragforge-sub003/internal/memory"
)

// RecordTool handles the mem_record MCP tool: it appends one message
// to a conversation's log.
type RecordTool struct {
	store    *memory.Store
	embedder memory.Embedder
}

// NewRecordTool creates a RecordTool.
func NewRecordTool(store *memory.Store, embedder memory.Embedder) *RecordTool {
	return &RecordTool{store: store, embedder: embedder}
}

// Definition returns the MCP tool definition for mem_record.
func (t *RecordTool) Definition() mcp.Tool {
	return mcp.NewTool("mem_record",
		mcp.WithDescription(
			"Record one conversation message into persistent memory. Call after every user "+
				"message and every assistant reply so the memory log stays complete; tool calls "+
				"made while answering go on the assistant message that made them.",
		),
		mcp.WithString("conversation_id",
			mcp.Required(),
			mcp.Description("Stable conversation identifier, e.g. a session ID"),
		),
		mcp.WithString("role",
			mcp.Required(),
			mcp.Description("Who produced the message: user, assistant, or system"),
		),
		mcp.WithString("content",
			mcp.Description("Message text. May be empty for assistant messages that only ran tools."),
		),
		mcp.WithString("tool_calls",
			mcp.Description(
				`JSON array of tool invocations, e.g. [{"name":"grep","arguments":"{...}","success":true,"result":"..."}]`,
			),
		),
		mcp.WithString("title",
			mcp.Description("Conversation title, used when the conversation is first seen"),
		),
	)
}

// Handle processes the mem_record tool call.
func (t *RecordTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	conversationID := req.GetString("conversation_id", "")
	role := req.GetString("role", "")

	if conversationID == "" {
		return mcp.NewToolResultError("'conversation_id' is required"), nil
	}
	switch conversation.Role(role) {
	case conversation.RoleUser, conversation.RoleAssistant, conversation.RoleSystem:
	default:
		return mcp.NewToolResultError("'role' must be user, assistant, or system"), nil
	}

	content := req.GetString("content", "")

	var toolCalls []conversation.ToolInvocation
	if raw := req.GetString("tool_calls", ""); raw != "" {
		if err := json.Unmarshal([]byte(raw), &toolCalls); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid 'tool_calls' JSON: %v", err)), nil
		}
	}
	if content == "" && len(toolCalls) == 0 {
		return mcp.NewToolResultError("message needs 'content' or 'tool_calls'"), nil
	}

	if err := t.store.UpsertConversation(conversationID, req.GetString("title", "")); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to upsert conversation: %v", err)), nil
	}

	msg := conversation.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           conversation.Role(role),
		Content:        content,
		ToolCalls:      toolCalls,
		Timestamp:      time.Now(),
	}

	var vector []float32
	if content != "" && t.embedder != nil {
		v, err := t.embedder.Embed(content)
		if err == nil {
			vector = v
		}
		// An embedding failure is not fatal: the message stays
		// reachable through FTS and raw recency.
	}

	if err := t.store.AppendMessage(msg, vector); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to record message: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Recorded %s message %s (%d chars, %d tool calls)",
		role, msg.ID, len(content), len(toolCalls))), nil
}
