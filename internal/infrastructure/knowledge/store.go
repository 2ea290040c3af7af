package knowledge

import (
	"context"
	"fmt"

	"github.com/antonkh/ragline/internal/core/domain"
	"github.com/antonkh/ragline/internal/core/ports"
)

// VectorSearcher is the slice of the vector backend this store needs.
type VectorSearcher interface {
	SearchByVector(ctx context.Context, queryVector []float32, limit int) ([]domain.Passage, error)
}

// Store satisfies the knowledge-store port by embedding the query text and
// searching the vector collection with the resulting vector.
type Store struct {
	embedder ports.Embedder
	searcher VectorSearcher
}

func NewStore(embedder ports.Embedder, searcher VectorSearcher) *Store {
	return &Store{
		embedder: embedder,
		searcher: searcher,
	}
}

func (s *Store) Search(ctx context.Context, query string, limit int) ([]domain.Passage, error) {
	if limit <= 0 {
		limit = 10
	}

	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	passages, err := s.searcher.SearchByVector(ctx, vector, limit)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return passages, nil
}
