package compaction

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/LuciformResearch/ragforge-sub003/internal/conversation"
	"github.com/LuciformResearch/ragforge-sub003/internal/memory"
)

// SummaryResult is what the summarization collaborator returns for one
// compaction request.
type SummaryResult struct {
	ConversationSummary string
	ActionsSummary      string
	MentionedFiles      []string
}

// Summarizer turns a range of dialogue (or lower-tier summaries) into
// a SummaryResult. The LLM-backed implementation lives outside this
// module; ExtractiveSummarizer is the built-in default.
type Summarizer interface {
	Summarize(ctx context.Context, rangeText, instructions string) (SummaryResult, error)
}

const (
	l1Instructions = "Summarize this conversation range: key decisions, " +
		"outcomes, and the tools used. Keep file paths exact."
	l2Instructions = "Consolidate these summaries into one broader summary. " +
		"Preserve decisions and file paths; drop step-by-step detail."
)

// SummaryID derives the deterministic record ID for a compacted range.
// Same conversation, tier, and range always hash to the same ID, which
// turns retried compaction into an overwrite instead of a duplicate.
func SummaryID(conversationID string, tier, startTurn, endTurn int) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%d|%d", conversationID, tier, startTurn, endTurn)))
	return "sum-" + hex.EncodeToString(h[:16])
}

// Compactor drives compaction passes against the store.
type Compactor struct {
	store      *memory.Store
	summarizer Summarizer
	embedder   memory.Embedder
	policy     Policy
	log        *slog.Logger
}

// NewCompactor wires a Compactor. A nil logger falls back to
// slog.Default.
func NewCompactor(store *memory.Store, summarizer Summarizer, embedder memory.Embedder, policy Policy, log *slog.Logger) *Compactor {
	if log == nil {
		log = slog.Default()
	}
	return &Compactor{store: store, summarizer: summarizer, embedder: embedder, policy: policy, log: log}
}

// CompactL1 summarizes turns[startTurn:endTurn] into one L1 record and
// writes it. On summarizer failure nothing is written; the range stays
// pending and the next pass selects it again.
func (c *Compactor) CompactL1(ctx context.Context, conversationID string, turns []conversation.Turn, startTurn, endTurn int) (*memory.Summary, error) {
	if len(turns) == 0 {
		return nil, fmt.Errorf("compaction: empty turn range %d:%d", startTurn, endTurn)
	}

	var b strings.Builder
	for _, t := range turns {
		b.WriteString(t.Dialogue())
		b.WriteString("\n")
	}

	res, err := c.summarizer.Summarize(ctx, b.String(), l1Instructions)
	if err != nil {
		return nil, fmt.Errorf("compaction: summarize L1 %d:%d: %w", startTurn, endTurn, err)
	}

	sum := memory.Summary{
		ID:             SummaryID(conversationID, memory.TierL1, startTurn, endTurn),
		ConversationID: conversationID,
		Tier:           memory.TierL1,
		Confidence:     memory.ConfidenceL1,
		Summary:        res.ConversationSummary,
		ActionsSummary: res.ActionsSummary,
		MentionedFiles: uniqueSorted(res.MentionedFiles),
		StartTurn:      startTurn,
		EndTurn:        endTurn,
	}

	if err := c.store.UpsertSummary(sum, c.embedOrNil(sum)); err != nil {
		return nil, fmt.Errorf("compaction: write L1 summary: %w", err)
	}

	c.log.Info("compacted turns into L1 summary",
		"conversation", conversationID, "start", startTurn, "end", endTurn, "id", sum.ID)
	return &sum, nil
}

// CompactL2 consolidates a run of L1 summaries into one L2 record and
// links it to its inputs with CONSOLIDATES edges.
func (c *Compactor) CompactL2(ctx context.Context, conversationID string, l1s []memory.Summary) (*memory.Summary, error) {
	if len(l1s) == 0 {
		return nil, fmt.Errorf("compaction: no L1 summaries to consolidate")
	}

	var b strings.Builder
	var files []string
	for _, l1 := range l1s {
		fmt.Fprintf(&b, "[turns %d-%d] %s\n", l1.StartTurn, l1.EndTurn, l1.Text())
		files = append(files, l1.MentionedFiles...)
	}

	res, err := c.summarizer.Summarize(ctx, b.String(), l2Instructions)
	if err != nil {
		return nil, fmt.Errorf("compaction: summarize L2: %w", err)
	}

	startTurn := l1s[0].StartTurn
	endTurn := l1s[len(l1s)-1].EndTurn
	files = append(files, res.MentionedFiles...)

	sum := memory.Summary{
		ID:             SummaryID(conversationID, memory.TierL2, startTurn, endTurn),
		ConversationID: conversationID,
		Tier:           memory.TierL2,
		Confidence:     memory.ConfidenceL2,
		Summary:        res.ConversationSummary,
		ActionsSummary: res.ActionsSummary,
		MentionedFiles: uniqueSorted(files),
		StartTurn:      startTurn,
		EndTurn:        endTurn,
	}

	if err := c.store.UpsertSummary(sum, c.embedOrNil(sum)); err != nil {
		return nil, fmt.Errorf("compaction: write L2 summary: %w", err)
	}
	for _, l1 := range l1s {
		if err := c.store.UpsertEdge("CONSOLIDATES", sum.ID, l1.ID); err != nil {
			return nil, fmt.Errorf("compaction: consolidates edge: %w", err)
		}
	}

	c.log.Info("consolidated L1 summaries into L2",
		"conversation", conversationID, "count", len(l1s), "id", sum.ID)
	return &sum, nil
}

// Run performs a full compaction cycle for a conversation: as many L1
// passes as the retention policy demands, then any due L2
// consolidation. Returns the summaries created this cycle.
func (c *Compactor) Run(ctx context.Context, conversationID string) ([]memory.Summary, error) {
	msgs, err := c.store.Messages(conversationID)
	if err != nil {
		return nil, fmt.Errorf("compaction: load messages: %w", err)
	}
	turns := conversation.AssembleTurns(msgs)

	var created []memory.Summary

	// L1: compact raw turns past the highest already-covered index.
	existing, err := c.store.Summaries(conversationID, memory.TierL1)
	if err != nil {
		return nil, fmt.Errorf("compaction: load L1 summaries: %w", err)
	}
	nextStart := 0
	for _, s := range existing {
		if s.EndTurn > nextStart {
			nextStart = s.EndTurn
		}
	}

	for nextStart < len(turns) {
		pending := turns[nextStart:]
		acc := 0
		sizes := make([]int, len(pending))
		for i, t := range pending {
			sizes[i] = t.CharCount()
			acc += sizes[i]
		}
		if !c.policy.ShouldCompact(1, acc) {
			break
		}

		n := c.policy.SelectRange(1, sizes)
		if n == 0 {
			break
		}
		sum, err := c.CompactL1(ctx, conversationID, pending[:n], nextStart, nextStart+n)
		if err != nil {
			return created, err
		}
		created = append(created, *sum)
		nextStart += n
	}

	// L2: consolidate unconsolidated L1 summaries.
	for {
		pending, err := c.store.UnconsolidatedL1(conversationID)
		if err != nil {
			return created, fmt.Errorf("compaction: load unconsolidated L1: %w", err)
		}

		acc := 0
		sizes := make([]int, len(pending))
		for i, s := range pending {
			sizes[i] = len(s.Text())
			acc += sizes[i]
		}
		metric := acc
		if c.policy.L2TriggerMetric == MetricCount {
			metric = len(pending)
		}
		if !c.policy.ShouldCompact(2, metric) {
			break
		}

		n := c.policy.SelectRange(2, sizes)
		if n == 0 {
			break
		}
		sum, err := c.CompactL2(ctx, conversationID, pending[:n])
		if err != nil {
			return created, err
		}
		created = append(created, *sum)
	}

	return created, nil
}

// embedOrNil embeds the summary text, degrading to no vector on
// failure: a summary without an embedding is still reachable through
// its turn range, so losing the vector is not worth losing the record.
func (c *Compactor) embedOrNil(sum memory.Summary) []float32 {
	if c.embedder == nil {
		return nil
	}
	vec, err := c.embedder.Embed(sum.Text())
	if err != nil {
		c.log.Warn("summary embedding failed", "id", sum.ID, "error", err)
		return nil
	}
	return vec
}

func uniqueSorted(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	var out []string
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
