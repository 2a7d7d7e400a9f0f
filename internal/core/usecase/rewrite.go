package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mkarpov/plc-technical-assistant/internal/core/domain"
	"github.com/mkarpov/plc-technical-assistant/internal/core/ports"
)

// Rewriter expands a normalized query into retrieval variants. The normalized
// query itself is always the first variant; expansion failures degrade to the
// identity variant alone and are never surfaced as errors.
type Rewriter struct {
	llm         ports.LanguageModel
	maxVariants int
	logger      *slog.Logger
}

func NewRewriter(llm ports.LanguageModel, maxVariants int, logger *slog.Logger) *Rewriter {
	if maxVariants <= 0 {
		maxVariants = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Rewriter{
		llm:         llm,
		maxVariants: maxVariants,
		logger:      logger,
	}
}

// Rewrite returns up to maxVariants query strings. History and priorAnswer give
// the expansion prompt conversational grounding; priorAnswer is non-empty only
// on refinement iterations.
func (rw *Rewriter) Rewrite(ctx context.Context, normalized string, history []domain.ChatTurn, priorAnswer string) []string {
	variants := []string{normalized}
	if rw.llm == nil || rw.maxVariants <= 1 {
		return variants
	}

	raw, err := rw.llm.Generate(ctx, []domain.Message{
		{Role: domain.RoleSystem, Content: rewriteSystemPrompt},
		{Role: domain.RoleUser, Content: buildRewritePrompt(normalized, history, priorAnswer, rw.maxVariants-1)},
	})
	if err != nil {
		rw.logger.Warn("query_rewrite_degraded", "error", err)
		return variants
	}

	for _, line := range strings.Split(raw, "\n") {
		candidate := cleanVariantLine(line)
		if candidate == "" || strings.EqualFold(candidate, normalized) {
			continue
		}
		if containsFold(variants, candidate) {
			continue
		}
		variants = append(variants, candidate)
		if len(variants) == rw.maxVariants {
			break
		}
	}
	return variants
}

const rewriteSystemPrompt = `You rewrite search queries for a technical document retrieval system.
Produce alternative phrasings that widen recall: substitute synonyms, expand
domain abbreviations (PLC, HMI, I/O), and add an English gloss when the query
is in another language. Return one rewrite per line, nothing else.`

func buildRewritePrompt(normalized string, history []domain.ChatTurn, priorAnswer string, n int) string {
	var b strings.Builder
	if len(history) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, turn := range history {
			fmt.Fprintf(&b, "%s: %s\n", turn.Role, turn.Text)
		}
		b.WriteString("\n")
	}
	if strings.TrimSpace(priorAnswer) != "" {
		b.WriteString("A previous answer attempt was judged insufficient:\n")
		b.WriteString(priorAnswer)
		b.WriteString("\n\nRewrite the query to retrieve what that answer was missing.\n\n")
	}
	fmt.Fprintf(&b, "Query: %s\n\nReturn %d rewrites, one per line.", normalized, n)
	return b.String()
}

func cleanVariantLine(line string) string {
	line = strings.TrimSpace(line)
	line = strings.TrimLeft(line, "-*0123456789.) ")
	line = strings.Trim(line, `"`)
	return strings.TrimSpace(line)
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}
