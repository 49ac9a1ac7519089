package compaction_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/LuciformResearch/ragforge-sub003/internal/compaction"
	"github.com/LuciformResearch/ragforge-sub003/internal/conversation"
	"github.com/LuciformResearch/ragforge-sub003/internal/memory"
)

// fakeSummarizer records calls and returns canned results.
type fakeSummarizer struct {
	calls []string
	fail  bool
}

func (f *fakeSummarizer) Summarize(ctx context.Context, rangeText, instructions string) (compaction.SummaryResult, error) {
	f.calls = append(f.calls, rangeText)
	if f.fail {
		return compaction.SummaryResult{}, errors.New("summarizer unavailable")
	}
	return compaction.SummaryResult{
		ConversationSummary: fmt.Sprintf("summary of %d chars", len(rangeText)),
		ActionsSummary:      "Tools used: none",
		MentionedFiles:      []string{"main.go"},
	}, nil
}

func newTestStore(t *testing.T) *memory.Store {
	t.Helper()
	s, err := memory.New(memory.Config{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testPolicy(maxChars int) compaction.Policy {
	return compaction.Policy{
		MaxContextChars:    maxChars,
		L1ThresholdPercent: 0.10,
		L2ThresholdPercent: 0.10,
		L2TriggerMetric:    compaction.MetricChars,
		L2TriggerCount:     10,
	}
}

func makeTurns(n, charsEach int) []conversation.Turn {
	turns := make([]conversation.Turn, n)
	for i := range turns {
		turns[i] = conversation.Turn{
			Index:          i,
			UserMessage:    conversation.Message{ID: fmt.Sprintf("u%d", i), Role: conversation.RoleUser, Content: strings.Repeat("q", charsEach/2)},
			AssistantReply: strings.Repeat("a", charsEach/2),
			Timestamp:      time.Now(),
		}
	}
	return turns
}

func TestSummaryID_Deterministic(t *testing.T) {
	a := compaction.SummaryID("conv-1", 1, 0, 4)
	b := compaction.SummaryID("conv-1", 1, 0, 4)
	if a != b {
		t.Errorf("same range produced different IDs: %s vs %s", a, b)
	}

	for _, other := range []string{
		compaction.SummaryID("conv-2", 1, 0, 4),
		compaction.SummaryID("conv-1", 2, 0, 4),
		compaction.SummaryID("conv-1", 1, 1, 4),
		compaction.SummaryID("conv-1", 1, 0, 5),
	} {
		if other == a {
			t.Errorf("distinct logical identity collided with %s", a)
		}
	}
}

func TestCompactL1_IdempotentWrites(t *testing.T) {
	store := newTestStore(t)
	if err := store.UpsertConversation("c1", ""); err != nil {
		t.Fatal(err)
	}

	c := compaction.NewCompactor(store, &fakeSummarizer{}, memory.NewHashEmbedder(64), testPolicy(1000), nil)
	turns := makeTurns(4, 50)

	first, err := c.CompactL1(context.Background(), "c1", turns, 0, 4)
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.CompactL1(context.Background(), "c1", turns, 0, 4)
	if err != nil {
		t.Fatal(err)
	}

	if first.ID != second.ID {
		t.Errorf("retried compaction produced different IDs: %s vs %s", first.ID, second.ID)
	}

	stored, err := store.Summaries("c1", memory.TierL1)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 1 {
		t.Errorf("double compaction stored %d records, want 1", len(stored))
	}
	if stored[0].Confidence != 0.7 {
		t.Errorf("L1 confidence = %v, want 0.7", stored[0].Confidence)
	}
}

func TestCompactL1_FailureWritesNothing(t *testing.T) {
	store := newTestStore(t)
	if err := store.UpsertConversation("c1", ""); err != nil {
		t.Fatal(err)
	}

	c := compaction.NewCompactor(store, &fakeSummarizer{fail: true}, nil, testPolicy(1000), nil)
	if _, err := c.CompactL1(context.Background(), "c1", makeTurns(4, 50), 0, 4); err == nil {
		t.Fatal("expected error from failing summarizer")
	}

	stored, err := store.Summaries("c1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 0 {
		t.Errorf("failed compaction wrote %d partial records", len(stored))
	}
}

func TestCompactL2_WritesConsolidatesEdges(t *testing.T) {
	store := newTestStore(t)
	if err := store.UpsertConversation("c1", ""); err != nil {
		t.Fatal(err)
	}

	var l1s []memory.Summary
	for i := 0; i < 3; i++ {
		sum := memory.Summary{
			ID:             compaction.SummaryID("c1", memory.TierL1, i*4, (i+1)*4),
			ConversationID: "c1",
			Tier:           memory.TierL1,
			Confidence:     memory.ConfidenceL1,
			Summary:        fmt.Sprintf("chunk %d", i),
			MentionedFiles: []string{fmt.Sprintf("file%d.go", i)},
			StartTurn:      i * 4,
			EndTurn:        (i + 1) * 4,
		}
		if err := store.UpsertSummary(sum, nil); err != nil {
			t.Fatal(err)
		}
		l1s = append(l1s, sum)
	}

	c := compaction.NewCompactor(store, &fakeSummarizer{}, nil, testPolicy(1000), nil)
	l2, err := c.CompactL2(context.Background(), "c1", l1s)
	if err != nil {
		t.Fatal(err)
	}

	if l2.Tier != memory.TierL2 || l2.Confidence != 0.5 {
		t.Errorf("L2 tier/confidence = %d/%v, want 2/0.5", l2.Tier, l2.Confidence)
	}
	if l2.StartTurn != 0 || l2.EndTurn != 12 {
		t.Errorf("L2 covers %d:%d, want 0:12", l2.StartTurn, l2.EndTurn)
	}
	// Mentioned files are the union of the inputs plus the summarizer's.
	for _, want := range []string{"file0.go", "file1.go", "file2.go", "main.go"} {
		found := false
		for _, f := range l2.MentionedFiles {
			if f == want {
				found = true
			}
		}
		if !found {
			t.Errorf("mentioned files missing %s: %v", want, l2.MentionedFiles)
		}
	}

	// All three inputs are now consolidated.
	pending, err := store.UnconsolidatedL1("c1")
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("%d L1 summaries still unconsolidated after L2", len(pending))
	}
}

// End-to-end: 12 turns against a 1000-char budget with a 10% threshold
// must produce at least one L1 summary with confidence exactly 0.7,
// and sibling ranges must tile the turn space without overlap.
func TestRun_EndToEnd(t *testing.T) {
	store := newTestStore(t)
	if err := store.UpsertConversation("c1", "e2e"); err != nil {
		t.Fatal(err)
	}

	base := time.Now()
	for i := 0; i < 12; i++ {
		user := conversation.Message{
			ID: fmt.Sprintf("u%d", i), ConversationID: "c1",
			Role: conversation.RoleUser, Content: fmt.Sprintf("question %d about the indexer", i),
			Timestamp: base.Add(time.Duration(2*i) * time.Second),
		}
		reply := conversation.Message{
			ID: fmt.Sprintf("a%d", i), ConversationID: "c1",
			Role: conversation.RoleAssistant, Content: fmt.Sprintf("answer %d with some detail", i),
			Timestamp: base.Add(time.Duration(2*i+1) * time.Second),
		}
		if err := store.AppendMessage(user, nil); err != nil {
			t.Fatal(err)
		}
		if err := store.AppendMessage(reply, nil); err != nil {
			t.Fatal(err)
		}
	}

	summarizer := &fakeSummarizer{}
	c := compaction.NewCompactor(store, summarizer, memory.NewHashEmbedder(64), testPolicy(1000), nil)

	created, err := c.Run(context.Background(), "c1")
	if err != nil {
		t.Fatal(err)
	}
	if len(created) == 0 {
		t.Fatal("expected at least one summary from 12 turns over a 100-char threshold")
	}

	l1s, err := store.Summaries("c1", memory.TierL1)
	if err != nil {
		t.Fatal(err)
	}
	if len(l1s) == 0 {
		t.Fatal("no L1 summaries persisted")
	}
	for _, s := range l1s {
		if s.Confidence != 0.7 {
			t.Errorf("L1 confidence = %v, want exactly 0.7", s.Confidence)
		}
	}

	// Coverage invariant: sibling L1 ranges are contiguous from zero
	// with no overlap, and what remains uncovered is below threshold.
	next := 0
	for _, s := range l1s {
		if s.StartTurn != next {
			t.Errorf("L1 range starts at %d, want %d (gap or overlap)", s.StartTurn, next)
		}
		if s.EndTurn <= s.StartTurn {
			t.Errorf("degenerate range %d:%d", s.StartTurn, s.EndTurn)
		}
		next = s.EndTurn
	}

	msgs, _ := store.Messages("c1")
	turns := conversation.AssembleTurns(msgs)
	remaining := 0
	for _, turn := range turns[next:] {
		remaining += turn.CharCount()
	}
	if remaining > 100 {
		t.Errorf("uncompacted tail is %d chars, exceeds the 100-char threshold", remaining)
	}

	// A second run with nothing new creates nothing: append-only
	// compaction never re-opens a summarized range.
	again, err := c.Run(context.Background(), "c1")
	if err != nil {
		t.Fatal(err)
	}
	if len(again) != 0 {
		t.Errorf("idle re-run created %d summaries", len(again))
	}
}

func TestRun_L2CountMetric(t *testing.T) {
	store := newTestStore(t)
	if err := store.UpsertConversation("c1", ""); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		sum := memory.Summary{
			ID:             compaction.SummaryID("c1", memory.TierL1, i, i+1),
			ConversationID: "c1",
			Tier:           memory.TierL1,
			Confidence:     memory.ConfidenceL1,
			Summary:        "s",
			StartTurn:      i,
			EndTurn:        i + 1,
		}
		if err := store.UpsertSummary(sum, nil); err != nil {
			t.Fatal(err)
		}
	}

	policy := testPolicy(1_000_000) // char threshold far away
	policy.L2TriggerMetric = compaction.MetricCount
	policy.L2TriggerCount = 3

	c := compaction.NewCompactor(store, &fakeSummarizer{}, nil, policy, nil)
	created, err := c.Run(context.Background(), "c1")
	if err != nil {
		t.Fatal(err)
	}

	foundL2 := false
	for _, s := range created {
		if s.Tier == memory.TierL2 {
			foundL2 = true
		}
	}
	if !foundL2 {
		t.Error("count metric at threshold should have consolidated into an L2")
	}
}
