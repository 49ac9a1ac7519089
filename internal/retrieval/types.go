// Package retrieval runs the three memory search strategies —
// conversation-history similarity, code semantic similarity, and code
// fuzzy search — concurrently and merges their results for the context
// assembler.
package retrieval

import "fmt"

// SourceKind identifies where a search result came from.
type SourceKind string

const (
	SourceConversationL0 SourceKind = "conversation-L0"
	SourceConversationL1 SourceKind = "conversation-L1"
	SourceConversationL2 SourceKind = "conversation-L2"
	SourceCodeSemantic   SourceKind = "code-semantic"
	SourceCodeFuzzy      SourceKind = "code-fuzzy"
)

// CodeConfidence is the fixed confidence assigned to code results.
// Conversation results carry the confidence of their memory tier.
const CodeConfidence = 0.5

// Result is one transient search hit. Conversation results are located
// by NodeID; code results by (Path, StartLine, EndLine). It is never
// persisted — results are rebuilt on every query.
type Result struct {
	Source     SourceKind `json:"source"`
	Score      float64    `json:"score"`      // relevance, 0..1
	Confidence float64    `json:"confidence"` // tier confidence, or CodeConfidence

	// Conversation locator.
	NodeID string `json:"node_id,omitempty"`

	// Code locator. StartLine/EndLine of 0 means the whole file.
	Path      string `json:"path,omitempty"`
	StartLine int    `json:"start_line,omitempty"`
	EndLine   int    `json:"end_line,omitempty"`

	Snippet string `json:"snippet,omitempty"`
}

// IsCode reports whether the result points at source code rather than
// conversation memory.
func (r Result) IsCode() bool {
	return r.Source == SourceCodeSemantic || r.Source == SourceCodeFuzzy
}

// key is the dedup locator. Two results with the same key describe the
// same underlying thing regardless of which search surfaced them.
func (r Result) key() string {
	if r.IsCode() {
		return fmt.Sprintf("code|%s|%d|%d", r.Path, r.StartLine, r.EndLine)
	}
	return "conv|" + r.NodeID
}
