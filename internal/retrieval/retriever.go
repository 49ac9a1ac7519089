package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// ─── Collaborator interfaces ─────────────────────────────────────────

// ConversationSearcher finds past messages and summaries relevant to a
// query. Its failure is fatal to the whole retrieval call: conversation
// history is the minimum viable signal.
type ConversationSearcher interface {
	SearchConversation(ctx context.Context, conversationID, query string) ([]Result, error)
}

// CodeSemanticSearcher finds indexed code chunks by vector similarity.
// It only runs when the eligibility gate allows it, and its failure
// degrades to zero results.
type CodeSemanticSearcher interface {
	SearchCodeSemantic(ctx context.Context, query string) ([]Result, error)
}

// CodeFuzzySearcher finds code by keyword search over the working
// tree. It always runs — it is a parallel strategy, not a fallback for
// semantic search — and its failure degrades to zero results.
type CodeFuzzySearcher interface {
	SearchCodeFuzzy(ctx context.Context, query string) ([]Result, error)
}

// ─── Retriever ───────────────────────────────────────────────────────

// Retriever dispatches the three searches concurrently, applies the
// per-source timeout, and merges the survivors.
type Retriever struct {
	conversation ConversationSearcher
	semantic     CodeSemanticSearcher
	fuzzy        CodeFuzzySearcher
	timeout      time.Duration
	limit        int
	log          *slog.Logger
}

// NewRetriever wires a retriever from its three sources. timeout bounds
// each source independently; limit caps the merged result count.
func NewRetriever(conv ConversationSearcher, sem CodeSemanticSearcher, fuzz CodeFuzzySearcher, timeout time.Duration, limit int, log *slog.Logger) *Retriever {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if limit <= 0 {
		limit = 100
	}
	return &Retriever{
		conversation: conv,
		semantic:     sem,
		fuzzy:        fuzz,
		timeout:      timeout,
		limit:        limit,
		log:          log,
	}
}

// Retrieve runs conversation search, code semantic search (when
// semanticEligible), and code fuzzy search concurrently, then merges
// them. Semantic and fuzzy failures are logged and degrade to empty
// result sets; a conversation-search failure aborts the call.
func (r *Retriever) Retrieve(ctx context.Context, conversationID, query string, semanticEligible bool) ([]Result, error) {
	var (
		wg       sync.WaitGroup
		convHits []Result
		convErr  error
		semHits  []Result
		fuzzHits []Result
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		sctx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		convHits, convErr = r.conversation.SearchConversation(sctx, conversationID, query)
	}()

	if semanticEligible && r.semantic != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sctx, cancel := context.WithTimeout(ctx, r.timeout)
			defer cancel()
			hits, err := r.semantic.SearchCodeSemantic(sctx, query)
			if err != nil {
				r.log.Warn("code semantic search degraded", "error", err)
				return
			}
			semHits = hits
		}()
	}

	if r.fuzzy != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sctx, cancel := context.WithTimeout(ctx, r.timeout)
			defer cancel()
			hits, err := r.fuzzy.SearchCodeFuzzy(sctx, query)
			if err != nil {
				r.log.Warn("code fuzzy search degraded", "error", err)
				return
			}
			fuzzHits = hits
		}()
	}

	wg.Wait()

	if convErr != nil {
		return nil, fmt.Errorf("retrieval: conversation search: %w", convErr)
	}
	return r.merge(convHits, semHits, fuzzHits), nil
}

// merge concatenates the source groups in priority order, deduplicates
// by locator, and truncates to the configured limit. Within a group
// results are ordered by descending score, stable on discovery order;
// across groups the first occurrence of a locator wins, so semantic
// results beat fuzzy results for the same code location.
func (r *Retriever) merge(conv, sem, fuzz []Result) []Result {
	sortByScore(conv)
	sortByScore(sem)
	sortByScore(fuzz)

	seen := make(map[string]bool)
	merged := make([]Result, 0, len(conv)+len(sem)+len(fuzz))
	for _, group := range [][]Result{conv, sem, fuzz} {
		for _, res := range group {
			k := res.key()
			if seen[k] {
				continue
			}
			seen[k] = true
			merged = append(merged, res)
		}
	}

	if len(merged) > r.limit {
		merged = merged[:r.limit]
	}
	return merged
}

func sortByScore(results []Result) {
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
}
