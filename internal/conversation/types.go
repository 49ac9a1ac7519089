// Package conversation defines the message-level data model and the
// turn assembler that derives logical exchanges from the raw append-only
// message log.
//
// A Message is one atomic unit of the log; a Turn is a derived grouping
// of one user message plus the assistant messages that answer it. Turns
// are never persisted — they are recomputed from messages on demand.
package conversation

import (
	"fmt"
	"strings"
	"time"
)

// Role identifies who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ToolInvocation is one tool call and its result, attached to a message.
// Immutable once recorded.
type ToolInvocation struct {
	Name       string        `json:"name"`
	Arguments  string        `json:"arguments,omitempty"`
	Success    bool          `json:"success"`
	Result     string        `json:"result,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`
	ResultSize int           `json:"result_size,omitempty"`
}

// Message is one atomic unit of a conversation. Content may be empty for
// assistant messages that only perform tool calls.
type Message struct {
	ID             string           `json:"id"`
	ConversationID string           `json:"conversation_id"`
	Role           Role             `json:"role"`
	Content        string           `json:"content"`
	ToolCalls      []ToolInvocation `json:"tool_calls,omitempty"`
	Timestamp      time.Time        `json:"timestamp"`
	CharCount      int              `json:"char_count"`
}

// Turn is a derived logical exchange: one user message, the tool calls
// made while answering it, and the final assistant reply.
type Turn struct {
	Index          int              `json:"index"`
	UserMessage    Message          `json:"user_message"`
	AssistantReply string           `json:"assistant_reply"`
	ToolCalls      []ToolInvocation `json:"tool_calls,omitempty"`
	Timestamp      time.Time        `json:"timestamp"`
	MessageIDs     []string         `json:"message_ids"`
}

// CharCount returns the size of the turn's dialogue text, the unit the
// retention policy accumulates against.
func (t Turn) CharCount() int {
	return len(t.Dialogue())
}

// Dialogue renders the turn as plain text, the form handed to the
// summarizer during compaction.
func (t Turn) Dialogue() string {
	var b strings.Builder
	fmt.Fprintf(&b, "User: %s\n", t.UserMessage.Content)
	for _, tc := range t.ToolCalls {
		status := "ok"
		if !tc.Success {
			status = "failed"
		}
		fmt.Fprintf(&b, "[tool %s %s] %s\n", tc.Name, status, truncate(tc.Result, 200))
	}
	fmt.Fprintf(&b, "Assistant: %s\n", t.AssistantReply)
	return b.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
