package bootstrap

import (
	"context"
	"fmt"

	"github.com/antonkh/ragline/internal/config"
	"github.com/antonkh/ragline/internal/core/ports"
	"github.com/antonkh/ragline/internal/core/usecase"
	"github.com/antonkh/ragline/internal/infrastructure/knowledge"
	"github.com/antonkh/ragline/internal/infrastructure/llm/ollama"
	"github.com/antonkh/ragline/internal/infrastructure/queue/nats"
	"github.com/antonkh/ragline/internal/infrastructure/repository/postgres"
	"github.com/antonkh/ragline/internal/infrastructure/resilience"
	"github.com/antonkh/ragline/internal/infrastructure/vector/qdrant"
)

// App wires the object graph once at startup. Optional backends stay nil
// when their endpoint is not configured: the pipeline treats a nil store as
// a misconfiguration only when retrieval is enabled, and run publishing and
// the run store degrade to disabled features.
type App struct {
	Config config.Config

	ContextService ports.ContextService
	AnswerService  ports.AnswerService
	RunStore       ports.RunStore
	Publisher      ports.RunPublisher
	Queue          *nats.Queue

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	runner := resilience.NewRunner(resilience.DefaultPolicy())

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, runner)
	completer := ollama.NewCompleter(ollamaClient)
	embedder := ollama.NewEmbedder(ollamaClient)

	var store ports.KnowledgeStore
	if cfg.QdrantURL != "" {
		searcher := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection)
		store = knowledge.NewStore(embedder, searcher)
	}

	pipeline := usecase.NewContextPipeline(usecase.PipelineConfig{
		Enabled:            cfg.RetrievalEnabled,
		MaxResultsPerQuery: cfg.RetrievalMaxResultsPerQuery,
		MaxSubQueries:      cfg.RetrievalMaxSubQueries,
		MinRelevanceScore:  cfg.RetrievalMinScore,
	}, completer, store)
	answerUC := usecase.NewAnswerUseCase(pipeline, completer)

	closers := make([]func(), 0, 2)

	var queue *nats.Queue
	var publisher ports.RunPublisher
	if cfg.NATSURL != "" {
		var err error
		queue, err = nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{Runner: runner})
		if err != nil {
			return nil, fmt.Errorf("init run queue: %w", err)
		}
		publisher = queue
		closers = append(closers, queue.Close)
	}

	var runStore ports.RunStore
	if cfg.PostgresDSN != "" {
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		repo := postgres.NewRunRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		runStore = repo
		closers = append(closers, func() { _ = db.Close() })
	}

	return &App{
		Config: cfg,

		ContextService: pipeline,
		AnswerService:  answerUC,
		RunStore:       runStore,
		Publisher:      publisher,
		Queue:          queue,

		closeFn: func() {
			for _, closeFn := range closers {
				closeFn()
			}
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
