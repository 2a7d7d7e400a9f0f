package usecase

import (
	"context"
	"log/slog"
	"strings"

	"github.com/mkarpov/plc-technical-assistant/internal/core/domain"
	"github.com/mkarpov/plc-technical-assistant/internal/core/ports"
)

// Verdict is the evaluator's classification of a generated answer.
type Verdict string

const (
	VerdictSufficient      Verdict = "sufficient"
	VerdictNeedsRefinement Verdict = "needs_refinement"
)

// EvaluatorConfig tunes the sufficiency check. Mode is "heuristic" or "llm".
type EvaluatorConfig struct {
	Mode             string
	MinAnswerChars   int
	OverlapThreshold float64
}

// Evaluator decides whether a generated answer is good enough or whether the
// controller should loop back into retrieval. An evaluator failure is treated
// as sufficient: evaluation never turns a generated answer into an error.
type Evaluator struct {
	cfg    EvaluatorConfig
	llm    ports.LanguageModel
	logger *slog.Logger
}

func NewEvaluator(cfg EvaluatorConfig, llm ports.LanguageModel, logger *slog.Logger) *Evaluator {
	if cfg.Mode == "" {
		cfg.Mode = "heuristic"
	}
	if cfg.MinAnswerChars <= 0 {
		cfg.MinAnswerChars = 40
	}
	if cfg.OverlapThreshold <= 0 {
		cfg.OverlapThreshold = 0.2
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{cfg: cfg, llm: llm, logger: logger}
}

var refusalMarkers = []string{
	"not available in the provided",
	"cannot answer",
	"no relevant information",
	"insufficient context",
	"i don't know",
}

func (ev *Evaluator) Evaluate(ctx context.Context, query, answer string) Verdict {
	if ev.cfg.Mode == "llm" && ev.llm != nil {
		return ev.evaluateWithModel(ctx, query, answer)
	}
	return ev.evaluateHeuristic(query, answer)
}

func (ev *Evaluator) evaluateHeuristic(query, answer string) Verdict {
	trimmed := strings.TrimSpace(answer)
	if len(trimmed) < ev.cfg.MinAnswerChars {
		return VerdictNeedsRefinement
	}
	lower := strings.ToLower(trimmed)
	for _, marker := range refusalMarkers {
		if strings.Contains(lower, marker) {
			return VerdictNeedsRefinement
		}
	}
	if tokenOverlap(toTokenSet(query), toTokenSet(trimmed)) < ev.cfg.OverlapThreshold {
		return VerdictNeedsRefinement
	}
	return VerdictSufficient
}

func (ev *Evaluator) evaluateWithModel(ctx context.Context, query, answer string) Verdict {
	raw, err := ev.llm.Generate(ctx, []domain.Message{
		{Role: domain.RoleSystem, Content: "You grade answers. Reply with exactly one word: sufficient or needs_refinement."},
		{Role: domain.RoleUser, Content: "Question:\n" + query + "\n\nAnswer:\n" + answer},
	})
	if err != nil {
		ev.logger.Warn("answer_evaluation_degraded", "error", err)
		return VerdictSufficient
	}
	if strings.Contains(strings.ToLower(raw), string(VerdictNeedsRefinement)) {
		return VerdictNeedsRefinement
	}
	return VerdictSufficient
}
