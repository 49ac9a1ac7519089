package enrich

import (
	"fmt"
	"strings"

	"github.com/LuciformResearch/ragforge-sub003/internal/memory"
	"github.com/LuciformResearch/ragforge-sub003/internal/retrieval"
)

// Format renders the context as a Markdown block with fixed section
// order: queries, raw turns, past conversation context by tier, code
// context, then the pending L1 summaries. The most immediately useful
// content comes first so downstream truncation drops the broadest
// context, not the current thread.
func (a *Assembler) Format(ec *EnrichedContext) string {
	var b strings.Builder
	b.WriteString("# Memory Context\n")

	if len(ec.LastUserQueries) > 0 {
		b.WriteString("\n## Last User Queries\n")
		for _, q := range ec.LastUserQueries {
			fmt.Fprintf(&b, "- [turn %d] %s\n", q.TurnIndex, q.Text)
		}
	}

	if len(ec.RecentTurns) > 0 {
		b.WriteString("\n## Recent Conversation (Raw)\n")
		for _, turn := range ec.RecentTurns {
			b.WriteString(turn.Dialogue())
			b.WriteString("\n")
		}
	}

	l0, l1, l2, code := splitResults(ec.Results)
	if len(l0)+len(l1)+len(l2) > 0 {
		b.WriteString("\n## Relevant Past Context\n")
		writeTier(&b, "Recent Messages (L0)", l0)
		writeTier(&b, "Summaries (L1)", l1)
		writeTier(&b, "Consolidated Summaries (L2)", l2)
	}

	if len(code) > 0 {
		b.WriteString("\n## Relevant Code Context\n")
		for _, res := range code {
			loc := res.Path
			if res.StartLine > 0 {
				loc = fmt.Sprintf("%s:%d-%d", res.Path, res.StartLine, res.EndLine)
			}
			fmt.Fprintf(&b, "- %s (relevance %.0f%%, confidence %.0f%%)\n", loc, res.Score*100, res.Confidence*100)
			if snippet := strings.TrimSpace(memory.Truncate(res.Snippet, snippetMaxChars)); snippet != "" && snippet != res.Path {
				fmt.Fprintf(&b, "  %s\n", strings.ReplaceAll(snippet, "\n", "\n  "))
			}
		}
	}

	if len(ec.RecentL1) > 0 {
		b.WriteString("\n## Recent L1 Summaries\n")
		for _, sum := range ec.RecentL1 {
			fmt.Fprintf(&b, "- [turns %d-%d] %s\n", sum.StartTurn, sum.EndTurn, sum.Text())
		}
	}

	return b.String()
}

func splitResults(results []retrieval.Result) (l0, l1, l2, code []retrieval.Result) {
	for _, res := range results {
		switch res.Source {
		case retrieval.SourceConversationL0:
			l0 = append(l0, res)
		case retrieval.SourceConversationL1:
			l1 = append(l1, res)
		case retrieval.SourceConversationL2:
			l2 = append(l2, res)
		default:
			code = append(code, res)
		}
	}
	return l0, l1, l2, code
}

func writeTier(b *strings.Builder, header string, results []retrieval.Result) {
	if len(results) == 0 {
		return
	}
	fmt.Fprintf(b, "\n### %s\n", header)
	for _, res := range results {
		fmt.Fprintf(b, "- (relevance %.0f%%, confidence %.0f%%) %s\n",
			res.Score*100, res.Confidence*100, memory.Truncate(res.Snippet, snippetMaxChars))
	}
}
