package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/junegunn/fzf/src/algo"
	"github.com/junegunn/fzf/src/util"
)

func init() {
	algo.Init("default")
}

// FuzzySearcher implements CodeFuzzySearcher by composing the file
// tools: query terms drive grep over file contents and glob over file
// names, and fzf's matcher ranks the candidates against the query.
type FuzzySearcher struct {
	tools FileTools
	root  string
	limit int
	log   *slog.Logger
}

// NewFuzzySearcher builds a fuzzy searcher rooted at the project
// working tree.
func NewFuzzySearcher(tools FileTools, root string, limit int, log *slog.Logger) *FuzzySearcher {
	if log == nil {
		log = slog.Default()
	}
	if limit <= 0 {
		limit = 100
	}
	return &FuzzySearcher{tools: tools, root: root, limit: limit, log: log}
}

// SearchCodeFuzzy implements CodeFuzzySearcher. Scores are fzf match
// scores normalized against the best candidate, so the top hit always
// carries 1.0.
func (f *FuzzySearcher) SearchCodeFuzzy(ctx context.Context, query string) ([]Result, error) {
	terms := queryTerms(query)
	if len(terms) == 0 || f.root == "" {
		return nil, nil
	}
	entries, err := f.tools.ListDirectory(f.root)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", f.root, err)
	}
	if len(entries) == 0 {
		return nil, nil
	}

	type candidate struct {
		path       string
		start, end int
		text       string
	}
	var candidates []candidate
	seen := make(map[string]bool)
	add := func(c candidate) {
		key := fmt.Sprintf("%s|%d|%d", c.path, c.start, c.end)
		if !seen[key] {
			seen[key] = true
			candidates = append(candidates, c)
		}
	}

	for _, term := range terms {
		hits, err := f.tools.Grep(ctx, term, f.root)
		if err != nil {
			return nil, fmt.Errorf("grep %q: %w", term, err)
		}
		for _, h := range hits {
			add(candidate{path: h.Path, start: h.Line, end: h.Line, text: h.Text})
		}

		paths, err := f.tools.Glob(ctx, f.root, "*"+term+"*")
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", term, err)
		}
		for _, p := range paths {
			add(candidate{path: p, text: p})
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	// Each candidate contains at least one query term, so every raw
	// score is positive and normalization is well defined.
	slab := util.MakeSlab(100*1024, 2048)
	raw := make([]int, len(candidates))
	best := 0
	for i, c := range candidates {
		total := 0
		for _, term := range terms {
			total += fzfScore(c.text, term, slab)
		}
		raw[i] = total
		if total > best {
			best = total
		}
	}
	if best == 0 {
		return nil, nil
	}

	results := make([]Result, 0, len(candidates))
	for i, c := range candidates {
		if raw[i] == 0 {
			continue
		}
		results = append(results, Result{
			Source:     SourceCodeFuzzy,
			Score:      float64(raw[i]) / float64(best),
			Confidence: CodeConfidence,
			Path:       c.path,
			StartLine:  c.start,
			EndLine:    c.end,
			Snippet:    c.text,
		})
	}
	sortByScore(results)
	if len(results) > f.limit {
		results = results[:f.limit]
	}
	return results, nil
}

// fzfScore runs fzf's V2 matcher with both sides lowercased.
func fzfScore(text, pattern string, slab *util.Slab) int {
	chars := util.ToChars([]byte(strings.ToLower(text)))
	res, _ := algo.FuzzyMatchV2(false, true, true, &chars, []rune(strings.ToLower(pattern)), false, slab)
	if res.Score < 0 {
		return 0
	}
	return res.Score
}

// queryStopwords are words too generic to drive a code search.
var queryStopwords = map[string]bool{
	"the": true, "and": true, "for": true, "that": true, "this": true,
	"with": true, "how": true, "what": true, "why": true, "where": true,
	"does": true, "can": true, "are": true, "you": true, "its": true, "file": true,
	"code": true, "function": true,
}

// queryTerms extracts up to five significant search terms from the
// free-text query.
func queryTerms(query string) []string {
	var terms []string
	seen := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(query)) {
		w = strings.Trim(w, ".,:;!?\"'()[]{}`")
		if len(w) < 3 || queryStopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		terms = append(terms, w)
		if len(terms) == 5 {
			break
		}
	}
	return terms
}
