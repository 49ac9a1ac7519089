package retrieval

import (
	"context"
	"fmt"

	"github.com/LuciformResearch/ragforge-sub003/internal/memory"
)

// StoreSearcher adapts the SQLite memory store and an embedder into
// the conversation and code-semantic search interfaces. One embedding
// of the query serves both searches within a call.
type StoreSearcher struct {
	store    *memory.Store
	embedder memory.Embedder
	minScore float64
	limit    int
}

// NewStoreSearcher builds a searcher with the given similarity floor
// and per-source result cap.
func NewStoreSearcher(store *memory.Store, embedder memory.Embedder, minScore float64, limit int) *StoreSearcher {
	if limit <= 0 {
		limit = 100
	}
	return &StoreSearcher{store: store, embedder: embedder, minScore: minScore, limit: limit}
}

// SearchConversation implements ConversationSearcher over message and
// summary embeddings. Tier confidence rides along on each result.
func (s *StoreSearcher) SearchConversation(ctx context.Context, conversationID, query string) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec, err := s.embedder.Embed(query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	records, err := s.store.SearchSimilar(conversationID, vec, s.minScore, s.limit)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(records))
	for _, rec := range records {
		results = append(results, Result{
			Source:     conversationSource(rec.Tier),
			Score:      rec.Score,
			Confidence: memory.TierConfidence(rec.Tier),
			NodeID:     rec.NodeID,
			Snippet:    rec.Text,
		})
	}
	return results, nil
}

// SearchCodeSemantic implements CodeSemanticSearcher over the indexed
// code chunks.
func (s *StoreSearcher) SearchCodeSemantic(ctx context.Context, query string) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec, err := s.embedder.Embed(query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	matches, err := s.store.SearchCodeSimilar(vec, s.minScore, s.limit)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		results = append(results, Result{
			Source:     SourceCodeSemantic,
			Score:      m.Score,
			Confidence: CodeConfidence,
			Path:       m.Chunk.Path,
			StartLine:  m.Chunk.StartLine,
			EndLine:    m.Chunk.EndLine,
			Snippet:    m.Chunk.Content,
		})
	}
	return results, nil
}

func conversationSource(tier int) SourceKind {
	switch tier {
	case memory.TierL1:
		return SourceConversationL1
	case memory.TierL2:
		return SourceConversationL2
	default:
		return SourceConversationL0
	}
}
