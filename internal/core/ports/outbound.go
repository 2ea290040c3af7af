package ports

import (
	"context"

	"github.com/antonkh/ragline/internal/core/domain"
)

// KnowledgeStore performs semantic search over the indexed knowledge base.
// Any backing vector service satisfying this contract is acceptable.
type KnowledgeStore interface {
	Search(ctx context.Context, query string, limit int) ([]domain.Passage, error)
}

// Completer is the outbound text-completion capability.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteJSON(ctx context.Context, prompt string) (string, error)
}

// Embedder builds vectors for query text.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// RunPublisher hands completed run records to the audit queue.
type RunPublisher interface {
	PublishRunCompleted(ctx context.Context, record domain.RunRecord) error
}

// RunStore persists and reads pipeline run records.
type RunStore interface {
	InsertRun(ctx context.Context, record domain.RunRecord) error
	ListRecentRuns(ctx context.Context, limit int) ([]domain.RunRecord, error)
}
