package ports

import (
	"context"

	"github.com/antonkh/ragline/internal/core/domain"
)

// ContextService is the inbound contract for the retrieval-augmentation
// pipeline. onEvent may be nil when the caller does not observe progress.
type ContextService interface {
	RetrieveContext(ctx context.Context, query string, onEvent domain.ProgressFunc) (*domain.RetrievedContext, error)
	AugmentPrompt(ctx context.Context, userMessage string, onEvent domain.ProgressFunc) (string, error)
}

// AnswerService is the inbound contract for fully generated answers.
type AnswerService interface {
	Answer(ctx context.Context, question string, onEvent domain.ProgressFunc) (*domain.Answer, error)
}
