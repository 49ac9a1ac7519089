package compaction

import (
	"context"
	"strings"
	"testing"
)

func TestExtractiveSummarizer_Basic(t *testing.T) {
	text := strings.Join([]string{
		"User: why does the indexer skip vendored files",
		"[tool grep ok] 14 matches in indexer.go",
		"[tool read failed] file too large",
		"Assistant: the indexer skips vendored files because walk prunes vendor dirs in indexer.go",
		"User: unrelated aside",
		"Assistant: short",
	}, "\n")

	res, err := NewExtractiveSummarizer().Summarize(context.Background(), text, l1Instructions)
	if err != nil {
		t.Fatal(err)
	}

	if res.ConversationSummary == "" {
		t.Error("empty conversation summary")
	}
	if !strings.Contains(res.ConversationSummary, "indexer") {
		t.Errorf("summary missed the dominant topic:\n%s", res.ConversationSummary)
	}
	if !strings.Contains(res.ActionsSummary, "grep x1") {
		t.Errorf("actions summary missing grep count: %q", res.ActionsSummary)
	}
	if !strings.Contains(res.ActionsSummary, "read x1 (1 failed)") {
		t.Errorf("actions summary missing failure count: %q", res.ActionsSummary)
	}
	if len(res.MentionedFiles) != 1 || res.MentionedFiles[0] != "indexer.go" {
		t.Errorf("mentioned files = %v, want [indexer.go]", res.MentionedFiles)
	}
}

func TestExtractiveSummarizer_RespectsBudget(t *testing.T) {
	var lines []string
	for i := 0; i < 50; i++ {
		lines = append(lines, "User: a fairly long line about configuring the database connection pool settings")
	}

	s := &ExtractiveSummarizer{MaxSummaryChars: 200}
	res, err := s.Summarize(context.Background(), strings.Join(lines, "\n"), "")
	if err != nil {
		t.Fatal(err)
	}
	if len(res.ConversationSummary) > 200 {
		t.Errorf("summary is %d chars, budget 200", len(res.ConversationSummary))
	}
}

func TestExtractiveSummarizer_EmptyInput(t *testing.T) {
	if _, err := NewExtractiveSummarizer().Summarize(context.Background(), "   \n  ", ""); err == nil {
		t.Error("expected error for empty range text")
	}
}

func TestExtractiveSummarizer_Deterministic(t *testing.T) {
	text := "User: pin the linter version\nAssistant: pinned golangci to v2 in ci.yaml"
	s := NewExtractiveSummarizer()

	a, err := s.Summarize(context.Background(), text, "")
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.Summarize(context.Background(), text, "")
	if err != nil {
		t.Fatal(err)
	}
	if a.ConversationSummary != b.ConversationSummary {
		t.Error("summarizer is not deterministic")
	}
}

func TestFilePattern_FindsPaths(t *testing.T) {
	text := "changed internal/auth/token.go and docs/setup.md, left notes.txt alone"
	files := uniqueSorted(filePattern.FindAllString(text, -1))

	want := map[string]bool{"internal/auth/token.go": true, "docs/setup.md": true}
	for _, f := range files {
		if !want[f] {
			t.Errorf("unexpected file %q", f)
		}
		delete(want, f)
	}
	for f := range want {
		t.Errorf("missing file %q", f)
	}
}
