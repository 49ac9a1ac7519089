// Package enrich assembles the budgeted memory context injected ahead
// of a query: recent user questions, raw recent turns, merged search
// results, and the unconsolidated L1 summaries, each truncated to its
// own slice of the character budget.
package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/LuciformResearch/ragforge-sub003/internal/conversation"
	"github.com/LuciformResearch/ragforge-sub003/internal/memory"
	"github.com/LuciformResearch/ragforge-sub003/internal/retrieval"
)

// Section budgets as fractions of the total context budget. The
// remaining ~70% is slack: sections never grow past their slice, so a
// downstream prompt builder can rely on the total staying well under
// the configured maximum.
const (
	queriesBudgetPct = 0.05
	turnsBudgetPct   = 0.05
	resultsBudgetPct = 0.10
	l1BudgetPct      = 0.10

	// snippetMaxChars caps each rendered code snippet.
	snippetMaxChars = 500
)

// QueryEntry is one prior user question with the turn it opened.
type QueryEntry struct {
	TurnIndex int    `json:"turn_index"`
	Text      string `json:"text"`
}

// EnrichedContext is the assembled, budgeted output of one query. It
// is transient: rebuilt on every call, never persisted.
type EnrichedContext struct {
	Query           string              `json:"query"`
	LastUserQueries []QueryEntry        `json:"last_user_queries,omitempty"`
	RecentTurns     []conversation.Turn `json:"recent_turns,omitempty"`
	Results         []retrieval.Result  `json:"results,omitempty"`
	RecentL1        []memory.Summary    `json:"recent_l1,omitempty"`
}

// Assembler builds enriched context from the store and the retriever.
type Assembler struct {
	store           *memory.Store
	retriever       *retrieval.Retriever
	maxContextChars int
	log             *slog.Logger
}

// NewAssembler wires an assembler. maxContextChars is the total budget
// the section percentages are taken from.
func NewAssembler(store *memory.Store, retriever *retrieval.Retriever, maxContextChars int, log *slog.Logger) *Assembler {
	if log == nil {
		log = slog.Default()
	}
	if maxContextChars <= 0 {
		maxContextChars = 100_000
	}
	return &Assembler{store: store, retriever: retriever, maxContextChars: maxContextChars, log: log}
}

// Build assembles the context for one query. Sections fill in priority
// order and each truncates independently to its own budget slice; a
// retrieval failure on the conversation path aborts the build, while
// the degradable sources have already been absorbed by the retriever.
func (a *Assembler) Build(ctx context.Context, conversationID, query string, semanticEligible bool) (*EnrichedContext, error) {
	messages, err := a.store.Messages(conversationID)
	if err != nil {
		return nil, fmt.Errorf("enrich: load messages: %w", err)
	}
	turns := conversation.AssembleTurns(messages)

	ec := &EnrichedContext{Query: query}
	ec.LastUserQueries = a.recentQueries(turns, query)
	ec.RecentTurns = a.recentTurns(turns)

	if a.retriever != nil {
		results, err := a.retriever.Retrieve(ctx, conversationID, query, semanticEligible)
		if err != nil {
			return nil, fmt.Errorf("enrich: %w", err)
		}
		ec.Results = a.capResults(results)
	}

	pending, err := a.store.UnconsolidatedL1(conversationID)
	if err != nil {
		return nil, fmt.Errorf("enrich: load pending summaries: %w", err)
	}
	ec.RecentL1 = a.capSummaries(pending)

	return ec, nil
}

// recentQueries keeps the newest prior user questions that fit the
// queries budget, returned oldest-first. The current query is skipped
// when it is already the newest turn.
func (a *Assembler) recentQueries(turns []conversation.Turn, query string) []QueryEntry {
	budget := int(float64(a.maxContextChars) * queriesBudgetPct)

	var picked []QueryEntry
	used := 0
	for i := len(turns) - 1; i >= 0; i-- {
		text := strings.TrimSpace(turns[i].UserMessage.Content)
		if text == "" {
			continue
		}
		// Only the newest turn can be the current query; an earlier
		// turn that happens to repeat the same question is history
		// worth surfacing.
		if i == len(turns)-1 && text == strings.TrimSpace(query) {
			continue
		}
		n := len(text)
		if len(picked) > 0 && used+n > budget {
			break
		}
		picked = append(picked, QueryEntry{TurnIndex: turns[i].Index, Text: text})
		used += n
	}
	// Reverse into oldest-first order.
	for i, j := 0, len(picked)-1; i < j; i, j = i+1, j-1 {
		picked[i], picked[j] = picked[j], picked[i]
	}
	return picked
}

// recentTurns keeps the newest complete turns that fit the raw-turns
// budget, returned oldest-first so the newest turn renders last.
func (a *Assembler) recentTurns(turns []conversation.Turn) []conversation.Turn {
	budget := int(float64(a.maxContextChars) * turnsBudgetPct)

	start := len(turns)
	used := 0
	for i := len(turns) - 1; i >= 0; i-- {
		n := turns[i].CharCount()
		if start < len(turns) && used+n > budget {
			break
		}
		start = i
		used += n
	}
	if start == len(turns) {
		return nil
	}
	return turns[start:]
}

// capResults truncates the merged search results to the results
// budget, counting rendered snippet sizes. Order is preserved: the
// retriever already ranked within each source group.
func (a *Assembler) capResults(results []retrieval.Result) []retrieval.Result {
	budget := int(float64(a.maxContextChars) * resultsBudgetPct)

	used := 0
	for i, res := range results {
		n := len(memory.Truncate(res.Snippet, snippetMaxChars)) + len(res.Path) + len(res.NodeID)
		if i > 0 && used+n > budget {
			return results[:i]
		}
		used += n
	}
	return results
}

// capSummaries keeps the most recent unconsolidated L1 summaries that
// fit the summaries budget, most-recent-first.
func (a *Assembler) capSummaries(pending []memory.Summary) []memory.Summary {
	budget := int(float64(a.maxContextChars) * l1BudgetPct)

	var picked []memory.Summary
	used := 0
	for i := len(pending) - 1; i >= 0; i-- {
		n := len(pending[i].Text())
		if len(picked) > 0 && used+n > budget {
			break
		}
		picked = append(picked, pending[i])
		used += n
	}
	return picked
}
