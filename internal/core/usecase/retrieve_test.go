package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/antonkh/ragline/internal/core/domain"
)

type storeFake struct {
	results map[string][]domain.Passage
	err     error
	queries []string
}

func (f *storeFake) Search(_ context.Context, query string, _ int) ([]domain.Passage, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.results[query], nil
}

func TestRetrieveFiltersBelowThreshold(t *testing.T) {
	store := &storeFake{results: map[string][]domain.Passage{
		"q": {
			{Content: "kept exactly at threshold", Source: "a", Score: 0.5},
			{Content: "kept above threshold", Source: "b", Score: 0.81},
			{Content: "dropped below threshold", Source: "c", Score: 0.49},
		},
	}}
	retriever := thresholdRetriever{store: store, maxResults: 10, minScore: 0.5}

	passages, err := retriever.retrieve(context.Background(), "q")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(passages) != 2 {
		t.Fatalf("expected 2 passages above threshold, got %d", len(passages))
	}
	for _, passage := range passages {
		if passage.Score < 0.5 {
			t.Fatalf("passage with score %.2f leaked past threshold", passage.Score)
		}
	}
}

func TestRetrievePropagatesStoreError(t *testing.T) {
	storeErr := errors.New("store unavailable")
	retriever := thresholdRetriever{store: &storeFake{err: storeErr}, maxResults: 10, minScore: 0.5}

	_, err := retriever.retrieve(context.Background(), "q")
	if !errors.Is(err, storeErr) {
		t.Fatalf("expected store error to propagate, got %v", err)
	}
}
