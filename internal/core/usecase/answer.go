package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mkarpov/plc-technical-assistant/internal/core/domain"
	"github.com/mkarpov/plc-technical-assistant/internal/core/ports"
)

type pipelineState string

const (
	stateAnalyze  pipelineState = "analyze"
	stateRetrieve pipelineState = "retrieve"
	stateGenerate pipelineState = "generate"
	stateEvaluate pipelineState = "evaluate"
	stateDone     pipelineState = "done"
)

// AnswerConfig bounds the pipeline. MaxIterations is the total number of
// analyze-retrieve-generate-evaluate cycles; the cap guarantees termination.
type AnswerConfig struct {
	TopK          int
	MaxIterations int
	HistoryTurns  int
}

// AnswerUseCase is the generation and refinement controller. It walks one
// request through the pipeline states and loops back into analysis when the
// evaluator judges the answer insufficient, up to the iteration cap.
type AnswerUseCase struct {
	preprocessor *Preprocessor
	rewriter     *Rewriter
	retriever    *Retriever
	reranker     *Reranker
	assembler    *PromptAssembler
	evaluator    *Evaluator
	llm          ports.LanguageModel
	history      ports.ChatHistoryStore
	cfg          AnswerConfig
	logger       *slog.Logger
}

func NewAnswerUseCase(
	preprocessor *Preprocessor,
	rewriter *Rewriter,
	retriever *Retriever,
	reranker *Reranker,
	assembler *PromptAssembler,
	evaluator *Evaluator,
	llm ports.LanguageModel,
	history ports.ChatHistoryStore,
	cfg AnswerConfig,
	logger *slog.Logger,
) *AnswerUseCase {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 2
	}
	if cfg.HistoryTurns <= 0 {
		cfg.HistoryTurns = 6
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AnswerUseCase{
		preprocessor: preprocessor,
		rewriter:     rewriter,
		retriever:    retriever,
		reranker:     reranker,
		assembler:    assembler,
		evaluator:    evaluator,
		llm:          llm,
		history:      history,
		cfg:          cfg,
		logger:       logger,
	}
}

// Ask runs the full query-to-answer pipeline for one request.
func (uc *AnswerUseCase) Ask(ctx context.Context, sessionID, rawQuery string) (*domain.Answer, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidQuery, "ask", errors.New("session id is required"))
	}

	qc := domain.QueryContext{
		SessionID:       sessionID,
		RawQuery:        rawQuery,
		NormalizedQuery: uc.preprocessor.Normalize(rawQuery),
	}
	if qc.NormalizedQuery == "" {
		return nil, domain.WrapError(domain.ErrInvalidQuery, "ask", errors.New("query is empty after normalization"))
	}

	history, err := uc.history.Recent(ctx, sessionID, uc.cfg.HistoryTurns)
	if err != nil {
		uc.logger.Warn("chat_history_read_failed", "session_id", sessionID, "error", err)
		history = nil
	}

	var (
		candidates  []domain.RetrievedCandidate
		answerText  string
		priorAnswer string
		degraded    bool
	)

	state := stateAnalyze
	for state != stateDone {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		switch state {
		case stateAnalyze:
			qc.Iteration++
			qc.RewrittenVariants = uc.rewriter.Rewrite(ctx, qc.NormalizedQuery, history, priorAnswer)
			state = stateRetrieve

		case stateRetrieve:
			result, err := uc.retriever.Retrieve(ctx, qc.RewrittenVariants, sessionID, uc.cfg.TopK)
			if err != nil {
				return nil, err
			}
			if result.Degraded {
				degraded = true
				uc.logger.Warn("degraded_retrieval",
					"session_id", sessionID,
					"failed_scopes", result.FailedScopes,
					"iteration", qc.Iteration,
				)
			}
			candidates = uc.reranker.Rerank(qc.NormalizedQuery, result.Candidates, uc.cfg.TopK)
			state = stateGenerate

		case stateGenerate:
			messages := uc.assembler.Assemble(qc.RawQuery, candidates, history)
			answerText, err = uc.llm.Generate(ctx, messages)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return nil, err
				}
				return nil, domain.WrapError(domain.ErrGenerationUnavailable, "generate answer", err)
			}
			state = stateEvaluate

		case stateEvaluate:
			if qc.Iteration >= uc.cfg.MaxIterations {
				// The cap wins over the verdict: return the last answer as is.
				state = stateDone
				break
			}
			if uc.evaluator.Evaluate(ctx, qc.NormalizedQuery, answerText) == VerdictSufficient {
				state = stateDone
				break
			}
			priorAnswer = answerText
			state = stateAnalyze

		default:
			return nil, fmt.Errorf("unexpected pipeline state: %s", state)
		}
	}

	if err := ctx.Err(); err != nil {
		// Cancelled between generation and completion: no history is written.
		return nil, err
	}
	uc.appendTurns(ctx, sessionID, rawQuery, answerText)

	return &domain.Answer{
		Text:       answerText,
		Sources:    candidates,
		Iterations: qc.Iteration,
		Degraded:   degraded,
	}, nil
}

// appendTurns records the completed exchange. The user turn is written first;
// if it fails the assistant turn is skipped so the log never holds a
// half-written exchange.
func (uc *AnswerUseCase) appendTurns(ctx context.Context, sessionID, query, answer string) {
	now := time.Now().UTC()
	if err := uc.history.Append(ctx, domain.ChatTurn{
		SessionID: sessionID,
		Role:      domain.RoleUser,
		Text:      query,
		Timestamp: now,
	}); err != nil {
		uc.logger.Warn("chat_history_append_failed", "session_id", sessionID, "role", domain.RoleUser, "error", err)
		return
	}
	if err := uc.history.Append(ctx, domain.ChatTurn{
		SessionID: sessionID,
		Role:      domain.RoleAssistant,
		Text:      answer,
		Timestamp: now,
	}); err != nil {
		uc.logger.Warn("chat_history_append_failed", "session_id", sessionID, "role", domain.RoleAssistant, "error", err)
	}
}
