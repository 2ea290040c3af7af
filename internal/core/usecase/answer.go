package usecase

import (
	"context"
	"fmt"

	"github.com/antonkh/ragline/internal/core/domain"
	"github.com/antonkh/ragline/internal/core/ports"
)

// AnswerUseCase produces a final generated answer grounded on pipeline
// context. Retrieval degradation is invisible here: with an empty context the
// model simply answers the bare question.
type AnswerUseCase struct {
	pipeline  ports.ContextService
	generator ports.Completer
}

func NewAnswerUseCase(pipeline ports.ContextService, generator ports.Completer) *AnswerUseCase {
	return &AnswerUseCase{
		pipeline:  pipeline,
		generator: generator,
	}
}

func (uc *AnswerUseCase) Answer(
	ctx context.Context,
	question string,
	onEvent domain.ProgressFunc,
) (*domain.Answer, error) {
	retrieved, err := uc.pipeline.RetrieveContext(ctx, question, onEvent)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}

	prompt := composeAugmentedPrompt(retrieved.Context, question)
	text, err := uc.generator.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	return &domain.Answer{
		Text:       text,
		Sources:    retrieved.Sources,
		SubQueries: retrieved.SubQueries,
	}, nil
}
