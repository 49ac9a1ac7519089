package compaction

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// ExtractiveSummarizer is the built-in Summarizer: it selects the most
// representative dialogue lines by term frequency instead of calling a
// language model. Quality is below an LLM's, but it is deterministic,
// offline, and cheap — the right default for a local memory daemon.
type ExtractiveSummarizer struct {
	// MaxSummaryChars caps the conversation-summary text.
	MaxSummaryChars int
}

// NewExtractiveSummarizer returns a summarizer with the default budget.
func NewExtractiveSummarizer() *ExtractiveSummarizer {
	return &ExtractiveSummarizer{MaxSummaryChars: 600}
}

// toolLinePattern matches the "[tool name status] ..." lines that
// Turn.Dialogue emits for tool invocations.
var toolLinePattern = regexp.MustCompile(`^\[tool (\S+) (ok|failed)\]`)

// filePattern matches path-like tokens with a source or config
// extension.
var filePattern = regexp.MustCompile(
	`(?:[A-Za-z0-9_.-]+/)*[A-Za-z0-9_-]+\.(?:go|ts|tsx|js|jsx|py|rs|java|rb|c|h|cpp|hpp|md|json|yaml|yml|toml|sql|sh)\b`,
)

// Summarize implements Summarizer. The instructions parameter is part
// of the collaborator contract but carries no signal for the extractive
// strategy; it is accepted and ignored.
func (e *ExtractiveSummarizer) Summarize(ctx context.Context, rangeText, instructions string) (SummaryResult, error) {
	if err := ctx.Err(); err != nil {
		return SummaryResult{}, err
	}
	if strings.TrimSpace(rangeText) == "" {
		return SummaryResult{}, fmt.Errorf("summarize: empty range text")
	}

	var dialogue []string
	toolCounts := make(map[string]int)
	toolFailures := make(map[string]int)

	for _, line := range strings.Split(rangeText, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if m := toolLinePattern.FindStringSubmatch(line); m != nil {
			toolCounts[m[1]]++
			if m[2] == "failed" {
				toolFailures[m[1]]++
			}
			continue
		}
		dialogue = append(dialogue, line)
	}

	maxChars := e.MaxSummaryChars
	if maxChars <= 0 {
		maxChars = 600
	}

	return SummaryResult{
		ConversationSummary: extractTopLines(dialogue, maxChars),
		ActionsSummary:      describeTools(toolCounts, toolFailures),
		MentionedFiles:      uniqueSorted(filePattern.FindAllString(rangeText, -1)),
	}, nil
}

// extractTopLines scores each line by the cumulative frequency of its
// terms across the whole range and keeps the best ones in their
// original order, up to maxChars.
func extractTopLines(lines []string, maxChars int) string {
	if len(lines) == 0 {
		return ""
	}

	freq := make(map[string]int)
	for _, line := range lines {
		for _, w := range significantWords(line) {
			freq[w]++
		}
	}

	type scored struct {
		idx   int
		score float64
	}
	ranked := make([]scored, len(lines))
	for i, line := range lines {
		words := significantWords(line)
		total := 0
		for _, w := range words {
			total += freq[w]
		}
		score := 0.0
		if len(words) > 0 {
			score = float64(total) / float64(len(words))
		}
		ranked[i] = scored{idx: i, score: score}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	keep := make(map[int]bool)
	used := 0
	for _, r := range ranked {
		n := len(lines[r.idx]) + 1
		if used > 0 && used+n > maxChars {
			continue
		}
		keep[r.idx] = true
		used += n
		if used >= maxChars {
			break
		}
	}

	var b strings.Builder
	for i, line := range lines {
		if keep[i] {
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(line)
		}
	}
	return truncateAt(b.String(), maxChars)
}

func describeTools(counts, failures map[string]int) string {
	if len(counts) == 0 {
		return ""
	}

	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		part := fmt.Sprintf("%s x%d", name, counts[name])
		if f := failures[name]; f > 0 {
			part += fmt.Sprintf(" (%d failed)", f)
		}
		parts = append(parts, part)
	}
	return "Tools used: " + strings.Join(parts, ", ")
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "that": true, "this": true,
	"with": true, "you": true, "are": true, "was": true, "have": true,
	"not": true, "but": true, "its": true, "can": true, "user": true,
	"assistant": true,
}

func significantWords(line string) []string {
	var out []string
	for _, w := range strings.Fields(strings.ToLower(line)) {
		w = strings.Trim(w, ".,:;!?\"'()[]{}")
		if len(w) < 3 || stopwords[w] {
			continue
		}
		out = append(out, w)
	}
	return out
}

func truncateAt(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
