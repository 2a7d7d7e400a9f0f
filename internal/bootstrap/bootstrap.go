package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mkarpov/plc-technical-assistant/internal/config"
	"github.com/mkarpov/plc-technical-assistant/internal/core/ports"
	"github.com/mkarpov/plc-technical-assistant/internal/core/usecase"
	"github.com/mkarpov/plc-technical-assistant/internal/infrastructure/chunking"
	"github.com/mkarpov/plc-technical-assistant/internal/infrastructure/extractor"
	"github.com/mkarpov/plc-technical-assistant/internal/infrastructure/llm/ollama"
	"github.com/mkarpov/plc-technical-assistant/internal/infrastructure/queue/nats"
	"github.com/mkarpov/plc-technical-assistant/internal/infrastructure/repository/postgres"
	"github.com/mkarpov/plc-technical-assistant/internal/infrastructure/resilience"
	"github.com/mkarpov/plc-technical-assistant/internal/infrastructure/vector/qdrant"
	"github.com/mkarpov/plc-technical-assistant/internal/observability/metrics"
)

type App struct {
	Config  config.Config
	Metrics *metrics.PipelineMetrics

	Queue    *nats.Queue
	QueryUC  ports.QueryService
	UploadUC ports.SessionDocumentIngestor
	PurgeUC  ports.SessionJanitor

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, service string, logger *slog.Logger) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	historyRepo := postgres.NewHistoryRepository(db)
	if err := historyRepo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSessionSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, ollama.Options{
		GenerateTimeout:    time.Duration(cfg.OllamaGenTimeoutSeconds) * time.Second,
		EmbedTimeout:       time.Duration(cfg.OllamaEmbedTimeoutSeconds) * time.Second,
		ResilienceExecutor: executor,
	})
	embedder := ollama.NewEmbedder(ollamaClient)
	generator := ollama.NewGenerator(ollamaClient)

	vectorStore := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection)

	promptProfile, err := config.LoadPromptProfile(cfg.PromptProfilePath)
	if err != nil {
		queue.Close()
		_ = db.Close()
		return nil, fmt.Errorf("load prompt profile: %w", err)
	}
	promptProfile.MaxHistoryTurns = cfg.RAGHistoryTurns
	promptProfile.MaxContextChars = cfg.RAGMaxContextChars

	var preprocessorCfg usecase.PreprocessorConfig
	if cfg.StopWordsEnabled {
		preprocessorCfg.StopWords = usecase.DefaultStopWords()
	}

	preprocessor := usecase.NewPreprocessor(preprocessorCfg)
	rewriter := usecase.NewRewriter(generator, cfg.RAGMaxVariants, logger)
	retriever := usecase.NewRetriever(embedder, vectorStore, logger)
	reranker := usecase.NewReranker(cfg.RAGBlendWeight)
	assembler := usecase.NewPromptAssembler(promptProfile)
	evaluator := usecase.NewEvaluator(usecase.EvaluatorConfig{
		Mode:           cfg.EvaluatorMode,
		MinAnswerChars: cfg.EvaluatorMinAnswerChars,
	}, generator, logger)

	queryUC := usecase.NewAnswerUseCase(
		preprocessor, rewriter, retriever, reranker, assembler, evaluator,
		generator, historyRepo,
		usecase.AnswerConfig{
			TopK:          cfg.RAGTopK,
			MaxIterations: cfg.RAGMaxIterations,
			HistoryTurns:  cfg.RAGHistoryTurns,
		},
		logger,
	)
	uploadUC := usecase.NewUploadUseCase(
		extractor.New(cfg.MaxUploadBytes),
		chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
		embedder,
		vectorStore,
	)
	purgeUC := usecase.NewPurgeUseCase(vectorStore, logger)

	return &App{
		Config:  cfg,
		Metrics: metrics.NewPipelineMetrics(service),

		Queue:    queue,
		QueryUC:  queryUC,
		UploadUC: uploadUC,
		PurgeUC:  purgeUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
