package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/antonkh/ragline/internal/core/domain"
	"github.com/antonkh/ragline/internal/core/ports"
)

// PipelineConfig is the immutable per-process configuration of the pipeline.
type PipelineConfig struct {
	Enabled            bool
	MaxResultsPerQuery int
	MaxSubQueries      int
	MinRelevanceScore  float64
}

func (c PipelineConfig) normalize() PipelineConfig {
	out := c
	if out.MaxResultsPerQuery <= 0 {
		out.MaxResultsPerQuery = 10
	}
	if out.MaxSubQueries <= 0 {
		out.MaxSubQueries = 5
	}
	if out.MinRelevanceScore < 0 || out.MinRelevanceScore > 1 {
		out.MinRelevanceScore = 0.5
	}
	return out
}

// ContextPipeline orchestrates a single linear pass per invocation:
// decompose the question, retrieve per sub-query sequentially, fold results
// into a unique set, rank and format. Each call is request-scoped; the only
// shared state is the immutable config and the injected clients, which must
// be safe for concurrent use.
type ContextPipeline struct {
	cfg        PipelineConfig
	decomposer *Decomposer
	store      ports.KnowledgeStore
}

func NewContextPipeline(cfg PipelineConfig, completer ports.Completer, store ports.KnowledgeStore) *ContextPipeline {
	cfg = cfg.normalize()
	return &ContextPipeline{
		cfg:        cfg,
		decomposer: NewDecomposer(completer, cfg.MaxSubQueries),
		store:      store,
	}
}

func (p *ContextPipeline) RetrieveContext(
	ctx context.Context,
	query string,
	onEvent domain.ProgressFunc,
) (*domain.RetrievedContext, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "retrieve context", fmt.Errorf("query is required"))
	}

	if !p.cfg.Enabled {
		return &domain.RetrievedContext{
			Query:      query,
			Sources:    []string{},
			SubQueries: []string{},
		}, nil
	}
	if p.store == nil {
		return nil, domain.WrapError(domain.ErrStoreUnconfigured, "retrieve context",
			fmt.Errorf("retrieval is enabled but no store endpoint is configured"))
	}

	dispatcher := newProgressDispatcher(onEvent)
	defer dispatcher.close()

	start := time.Now()

	decomposition := p.decomposer.Decompose(ctx, query)
	dispatcher.emit(domain.StageDecomposition,
		fmt.Sprintf("decomposed into %d sub-queries", len(decomposition.SubQueries)),
		map[string]any{
			"sub_queries": decomposition.SubQueries,
			"rationale":   decomposition.Rationale,
			"fallback":    decomposition.Rationale == fallbackRationale,
		})

	retriever := thresholdRetriever{
		store:      p.store,
		maxResults: p.cfg.MaxResultsPerQuery,
		minScore:   p.cfg.MinRelevanceScore,
	}

	acc := newPassageAccumulator()
	failedSubQueries := 0
	for idx, subQuery := range decomposition.SubQueries {
		dispatcher.emit(domain.StageRetrieval,
			fmt.Sprintf("searching %d/%d", idx+1, len(decomposition.SubQueries)),
			map[string]any{
				"sub_query": subQuery,
				"index":     idx,
			})

		passages, err := retriever.retrieve(ctx, subQuery)
		if err != nil {
			// A failed sub-query never aborts the run.
			slog.Warn("sub_query_retrieval_failed",
				"sub_query", subQuery,
				"index", idx,
				"error", err,
			)
			failedSubQueries++
			continue
		}
		acc.add(passages)
	}

	ranked := rankPassages(acc.results())
	sources := uniqueSources(ranked)
	dispatcher.emit(domain.StageAggregation,
		fmt.Sprintf("aggregated %d unique results from %d sources", len(ranked), len(sources)),
		map[string]any{
			"unique_results":     len(ranked),
			"unique_sources":     len(sources),
			"failed_sub_queries": failedSubQueries,
		})

	contextBlock := formatEvidence(ranked, query)
	elapsed := time.Since(start).Milliseconds()
	dispatcher.emit(domain.StageComplete,
		fmt.Sprintf("retrieved %d results in %dms", len(ranked), elapsed),
		map[string]any{
			"total_results":  len(ranked),
			"source_count":   len(sources),
			"elapsed_ms":     elapsed,
			"dropped_events": dispatcher.droppedEvents(),
		})

	return &domain.RetrievedContext{
		Query:            query,
		Context:          contextBlock,
		Sources:          sources,
		SubQueries:       decomposition.SubQueries,
		TotalResults:     len(ranked),
		ProcessingTimeMs: elapsed,
	}, nil
}

func (p *ContextPipeline) AugmentPrompt(
	ctx context.Context,
	userMessage string,
	onEvent domain.ProgressFunc,
) (string, error) {
	if !p.cfg.Enabled {
		return userMessage, nil
	}

	retrieved, err := p.RetrieveContext(ctx, userMessage, onEvent)
	if err != nil {
		return "", err
	}
	return composeAugmentedPrompt(retrieved.Context, userMessage), nil
}

// composeAugmentedPrompt prefixes the user message with retrieved context.
// An empty context means no augmentation: the message passes through as is.
func composeAugmentedPrompt(contextBlock, userMessage string) string {
	if contextBlock == "" {
		return userMessage
	}
	return contextBlock + "\n\n## User Question\n\n" + userMessage
}
