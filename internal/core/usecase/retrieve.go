package usecase

import (
	"context"
	"fmt"

	"github.com/antonkh/ragline/internal/core/domain"
	"github.com/antonkh/ragline/internal/core/ports"
)

// thresholdRetriever wraps knowledge store access with relevance filtering.
// Store errors propagate per call; the orchestrator decides what a failed
// sub-query means for the run.
type thresholdRetriever struct {
	store      ports.KnowledgeStore
	maxResults int
	minScore   float64
}

func (r thresholdRetriever) retrieve(ctx context.Context, query string) ([]domain.Passage, error) {
	passages, err := r.store.Search(ctx, query, r.maxResults)
	if err != nil {
		return nil, fmt.Errorf("knowledge search: %w", err)
	}

	out := make([]domain.Passage, 0, len(passages))
	for _, passage := range passages {
		if passage.Score < r.minScore {
			continue
		}
		out = append(out, passage)
	}
	return out, nil
}
