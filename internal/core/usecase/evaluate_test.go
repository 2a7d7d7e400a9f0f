package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/mkarpov/plc-technical-assistant/internal/core/domain"
)

type evalLLMFake struct {
	response string
	err      error
}

func (f *evalLLMFake) Generate(context.Context, []domain.Message) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func TestEvaluatorHeuristicSufficient(t *testing.T) {
	ev := NewEvaluator(EvaluatorConfig{}, nil, nil)
	answer := "To reset the plc fault, open the fault register, acknowledge the active fault, and cycle the controller to run mode."
	if got := ev.Evaluate(context.Background(), "reset plc fault", answer); got != VerdictSufficient {
		t.Fatalf("Evaluate() = %v, want %v", got, VerdictSufficient)
	}
}

func TestEvaluatorHeuristicShortAnswer(t *testing.T) {
	ev := NewEvaluator(EvaluatorConfig{}, nil, nil)
	if got := ev.Evaluate(context.Background(), "reset plc fault", "Press reset."); got != VerdictNeedsRefinement {
		t.Fatalf("Evaluate() = %v, want %v", got, VerdictNeedsRefinement)
	}
}

func TestEvaluatorHeuristicRefusalMarker(t *testing.T) {
	ev := NewEvaluator(EvaluatorConfig{}, nil, nil)
	answer := "There is no relevant information about that fault code in the documentation I can access right now."
	if got := ev.Evaluate(context.Background(), "fault code f9000", answer); got != VerdictNeedsRefinement {
		t.Fatalf("Evaluate() = %v, want %v", got, VerdictNeedsRefinement)
	}
}

func TestEvaluatorHeuristicOffTopicAnswer(t *testing.T) {
	ev := NewEvaluator(EvaluatorConfig{}, nil, nil)
	answer := "Conveyor belts should be inspected weekly and greased monthly according to the maintenance calendar for rotating equipment."
	if got := ev.Evaluate(context.Background(), "plc watchdog timer fault", answer); got != VerdictNeedsRefinement {
		t.Fatalf("Evaluate() = %v, want %v", got, VerdictNeedsRefinement)
	}
}

func TestEvaluatorModelMode(t *testing.T) {
	cases := []struct {
		name     string
		response string
		want     Verdict
	}{
		{"sufficient", "sufficient", VerdictSufficient},
		{"needs refinement", "needs_refinement", VerdictNeedsRefinement},
		{"verbose needs refinement", "I judge this answer: NEEDS_REFINEMENT.", VerdictNeedsRefinement},
		{"unparseable", "maybe", VerdictSufficient},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ev := NewEvaluator(EvaluatorConfig{Mode: "llm"}, &evalLLMFake{response: tc.response}, nil)
			if got := ev.Evaluate(context.Background(), "q", "a"); got != tc.want {
				t.Fatalf("Evaluate() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestEvaluatorModelFailureDefaultsSufficient(t *testing.T) {
	ev := NewEvaluator(EvaluatorConfig{Mode: "llm"}, &evalLLMFake{err: errors.New("model offline")}, nil)
	if got := ev.Evaluate(context.Background(), "q", "a"); got != VerdictSufficient {
		t.Fatalf("Evaluate() = %v, want %v", got, VerdictSufficient)
	}
}
