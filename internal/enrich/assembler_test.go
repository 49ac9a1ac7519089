package enrich

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/LuciformResearch/ragforge-sub003/internal/conversation"
	"github.com/LuciformResearch/ragforge-sub003/internal/memory"
	"github.com/LuciformResearch/ragforge-sub003/internal/retrieval"
)

func newTestStore(t *testing.T) *memory.Store {
	t.Helper()
	cfg := memory.DefaultConfig()
	cfg.DataDir = filepath.Join(t.TempDir(), "data")
	store, err := memory.New(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.UpsertConversation("conv-1", "test"); err != nil {
		t.Fatal(err)
	}
	return store
}

// seedTurns writes n user/assistant message pairs.
func seedTurns(t *testing.T, store *memory.Store, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		for _, m := range []conversation.Message{
			{
				ID:             fmt.Sprintf("msg-u%d", i),
				ConversationID: "conv-1",
				Role:           conversation.RoleUser,
				Content:        fmt.Sprintf("question %d about the retention policy", i),
				Timestamp:      time.Now(),
			},
			{
				ID:             fmt.Sprintf("msg-a%d", i),
				ConversationID: "conv-1",
				Role:           conversation.RoleAssistant,
				Content:        fmt.Sprintf("answer %d covering the threshold rules", i),
				Timestamp:      time.Now(),
			},
		} {
			if err := store.AppendMessage(m, nil); err != nil {
				t.Fatal(err)
			}
		}
	}
}

type stubConv struct{ results []retrieval.Result }

func (s *stubConv) SearchConversation(ctx context.Context, conversationID, query string) ([]retrieval.Result, error) {
	return s.results, nil
}

func stubRetriever(results []retrieval.Result) *retrieval.Retriever {
	return retrieval.NewRetriever(&stubConv{results: results}, nil, nil, time.Second, 0, nil)
}

func TestBuild_PopulatesSections(t *testing.T) {
	store := newTestStore(t)
	seedTurns(t, store, 3)

	sum := memory.Summary{
		ID:             "sum-1",
		ConversationID: "conv-1",
		Tier:           memory.TierL1,
		Confidence:     memory.ConfidenceL1,
		Summary:        "early retention policy discussion",
		StartTurn:      0,
		EndTurn:        2,
		CreatedAt:      memory.Now(),
	}
	if err := store.UpsertSummary(sum, nil); err != nil {
		t.Fatal(err)
	}

	retriever := stubRetriever([]retrieval.Result{
		{Source: retrieval.SourceConversationL0, Score: 0.8, Confidence: 1.0, NodeID: "msg-u0", Snippet: "question 0"},
	})
	a := NewAssembler(store, retriever, 100_000, nil)

	ec, err := a.Build(context.Background(), "conv-1", "what was the retention policy again", false)
	if err != nil {
		t.Fatal(err)
	}

	if len(ec.LastUserQueries) != 3 {
		t.Errorf("got %d queries, want 3", len(ec.LastUserQueries))
	}
	if len(ec.RecentTurns) != 3 {
		t.Errorf("got %d raw turns, want 3", len(ec.RecentTurns))
	}
	if len(ec.Results) != 1 || ec.Results[0].NodeID != "msg-u0" {
		t.Errorf("unexpected results %v", ec.Results)
	}
	if len(ec.RecentL1) != 1 || ec.RecentL1[0].ID != "sum-1" {
		t.Errorf("unexpected pending summaries %v", ec.RecentL1)
	}
}

func TestBuild_QueriesAreOldestFirstAndSkipCurrent(t *testing.T) {
	store := newTestStore(t)
	seedTurns(t, store, 3)

	a := NewAssembler(store, nil, 100_000, nil)
	ec, err := a.Build(context.Background(), "conv-1", "question 2 about the retention policy", false)
	if err != nil {
		t.Fatal(err)
	}

	if len(ec.LastUserQueries) != 2 {
		t.Fatalf("got %d queries, want 2 (current query skipped): %v", len(ec.LastUserQueries), ec.LastUserQueries)
	}
	if ec.LastUserQueries[0].TurnIndex != 0 || ec.LastUserQueries[1].TurnIndex != 1 {
		t.Errorf("queries not oldest-first: %v", ec.LastUserQueries)
	}
}

func TestBuild_KeepsEarlierTurnMatchingQuery(t *testing.T) {
	store := newTestStore(t)
	seedTurns(t, store, 3)

	// The query repeats turn 1's question, but only the newest turn is
	// the current query: the earlier occurrence stays in history.
	a := NewAssembler(store, nil, 100_000, nil)
	ec, err := a.Build(context.Background(), "conv-1", "question 1 about the retention policy", false)
	if err != nil {
		t.Fatal(err)
	}

	if len(ec.LastUserQueries) != 3 {
		t.Fatalf("got %d queries, want 3 (earlier duplicate kept): %v", len(ec.LastUserQueries), ec.LastUserQueries)
	}
	if ec.LastUserQueries[1].TurnIndex != 1 {
		t.Errorf("turn 1 missing from queries: %v", ec.LastUserQueries)
	}
}

func TestBuild_SectionsTruncateIndependently(t *testing.T) {
	store := newTestStore(t)
	seedTurns(t, store, 10)

	// 1000-char budget: 50 chars for queries, 50 for raw turns. Each
	// turn dialogue is ~80 chars, each query ~40, so one of each fits.
	a := NewAssembler(store, nil, 1000, nil)
	ec, err := a.Build(context.Background(), "conv-1", "unrelated", false)
	if err != nil {
		t.Fatal(err)
	}

	if len(ec.LastUserQueries) != 1 {
		t.Errorf("got %d queries, want 1", len(ec.LastUserQueries))
	}
	if len(ec.RecentTurns) != 1 {
		t.Errorf("got %d raw turns, want 1", len(ec.RecentTurns))
	}
	if len(ec.RecentTurns) == 1 && ec.RecentTurns[0].Index != 9 {
		t.Errorf("kept turn %d, want the newest (9)", ec.RecentTurns[0].Index)
	}
	if len(ec.LastUserQueries) == 1 && ec.LastUserQueries[0].TurnIndex != 9 {
		t.Errorf("kept query from turn %d, want the newest (9)", ec.LastUserQueries[0].TurnIndex)
	}
}

func TestCapResults_BudgetBound(t *testing.T) {
	a := NewAssembler(nil, nil, 1000, nil) // results budget: 100 chars

	long := strings.Repeat("x", 60)
	results := []retrieval.Result{
		{Source: retrieval.SourceCodeFuzzy, Path: "a.go", Snippet: long, Score: 0.9},
		{Source: retrieval.SourceCodeFuzzy, Path: "b.go", Snippet: long, Score: 0.8},
		{Source: retrieval.SourceCodeFuzzy, Path: "c.go", Snippet: long, Score: 0.7},
	}
	capped := a.capResults(results)
	if len(capped) != 1 {
		t.Errorf("got %d results, want 1 within 100-char budget", len(capped))
	}

	// An oversized first result is still kept.
	huge := []retrieval.Result{{Source: retrieval.SourceCodeFuzzy, Path: "big.go", Snippet: strings.Repeat("y", 400)}}
	if got := a.capResults(huge); len(got) != 1 {
		t.Errorf("oversized first result dropped, want kept")
	}
}

func TestFormat_FixedSectionOrder(t *testing.T) {
	a := NewAssembler(nil, nil, 100_000, nil)
	ec := &EnrichedContext{
		Query: "q",
		LastUserQueries: []QueryEntry{{TurnIndex: 2, Text: "how does compaction work"}},
		RecentTurns: []conversation.Turn{{
			Index:          3,
			UserMessage:    conversation.Message{Role: conversation.RoleUser, Content: "latest question"},
			AssistantReply: "latest answer",
		}},
		Results: []retrieval.Result{
			{Source: retrieval.SourceConversationL0, Score: 0.9, Confidence: 1.0, NodeID: "msg-1", Snippet: "raw hit"},
			{Source: retrieval.SourceConversationL1, Score: 0.8, Confidence: 0.7, NodeID: "sum-1", Snippet: "summary hit"},
			{Source: retrieval.SourceConversationL2, Score: 0.7, Confidence: 0.5, NodeID: "sum-2", Snippet: "consolidated hit"},
			{Source: retrieval.SourceCodeSemantic, Score: 0.6, Confidence: 0.5, Path: "store.go", StartLine: 10, EndLine: 20, Snippet: "func Open() {}"},
		},
		RecentL1: []memory.Summary{{ID: "sum-3", StartTurn: 0, EndTurn: 4, Summary: "pending summary"}},
	}

	out := a.Format(ec)
	headers := []string{
		"## Last User Queries",
		"## Recent Conversation (Raw)",
		"## Relevant Past Context",
		"### Recent Messages (L0)",
		"### Summaries (L1)",
		"### Consolidated Summaries (L2)",
		"## Relevant Code Context",
		"## Recent L1 Summaries",
	}
	last := -1
	for _, h := range headers {
		idx := strings.Index(out, h)
		if idx < 0 {
			t.Fatalf("missing header %q in:\n%s", h, out)
		}
		if idx < last {
			t.Errorf("header %q out of order", h)
		}
		last = idx
	}

	if !strings.Contains(out, "(relevance 90%, confidence 100%)") {
		t.Errorf("L0 result missing relevance/confidence rendering:\n%s", out)
	}
	if !strings.Contains(out, "store.go:10-20 (relevance 60%, confidence 50%)") {
		t.Errorf("code result missing location rendering:\n%s", out)
	}
}

func TestFormat_TruncatesSnippets(t *testing.T) {
	a := NewAssembler(nil, nil, 100_000, nil)
	ec := &EnrichedContext{
		Results: []retrieval.Result{{
			Source:  retrieval.SourceCodeSemantic,
			Path:    "big.go",
			Snippet: strings.Repeat("z", 2000),
		}},
	}
	out := a.Format(ec)
	if strings.Contains(out, strings.Repeat("z", snippetMaxChars+1)) {
		t.Error("snippet not truncated to the cap")
	}
}
