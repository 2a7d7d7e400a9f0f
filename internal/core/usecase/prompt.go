package usecase

import (
	"fmt"
	"strings"

	"github.com/mkarpov/plc-technical-assistant/internal/core/domain"
)

// PromptAssembler renders the ordered message list handed to the language
// model: system instructions, recent history, a context block, and the final
// user message carrying the original raw query.
type PromptAssembler struct {
	cfg      domain.PromptConfig
	sections []sectionRenderer
}

// sectionRenderer appends one system prompt section to the accumulating draft.
type sectionRenderer func(b *strings.Builder, cfg domain.PromptConfig)

func NewPromptAssembler(cfg domain.PromptConfig) *PromptAssembler {
	if cfg.MaxHistoryTurns <= 0 {
		cfg.MaxHistoryTurns = 6
	}
	if cfg.MaxContextChars <= 0 {
		cfg.MaxContextChars = 6000
	}
	return &PromptAssembler{
		cfg: cfg,
		sections: []sectionRenderer{
			renderRoleSection,
			renderContextRulesSection,
			renderOutputFormatSection,
		},
	}
}

// Assemble renders messages in fixed order. The final user message carries the
// raw query, not a rewritten variant, so user intent reaches the model
// literally. The context block drops lowest-ranked candidates first and never
// truncates mid-chunk.
func (pa *PromptAssembler) Assemble(rawQuery string, context []domain.RetrievedCandidate, history []domain.ChatTurn) []domain.Message {
	messages := make([]domain.Message, 0, len(history)+3)

	var system strings.Builder
	for _, render := range pa.sections {
		render(&system, pa.cfg)
	}
	if s := strings.TrimSpace(system.String()); s != "" {
		messages = append(messages, domain.Message{Role: domain.RoleSystem, Content: s})
	}

	if len(history) > pa.cfg.MaxHistoryTurns {
		history = history[len(history)-pa.cfg.MaxHistoryTurns:]
	}
	for _, turn := range history {
		messages = append(messages, domain.Message{Role: turn.Role, Content: turn.Text})
	}

	if block := pa.renderContextBlock(context); block != "" {
		messages = append(messages, domain.Message{Role: domain.RoleSystem, Content: block})
	}

	messages = append(messages, domain.Message{Role: domain.RoleUser, Content: rawQuery})
	return messages
}

func (pa *PromptAssembler) renderContextBlock(candidates []domain.RetrievedCandidate) string {
	if len(candidates) == 0 {
		return "Retrieved Context:\n(no relevant passages were found for this query)"
	}

	var b strings.Builder
	b.WriteString("Retrieved Context:\n")
	used := 0
	for idx, c := range candidates {
		entry := fmt.Sprintf("[%d] source=%s\n%s\n\n", idx+1, c.SourceRef, c.Text)
		if used+len(entry) > pa.cfg.MaxContextChars && used > 0 {
			break
		}
		b.WriteString(entry)
		used += len(entry)
	}
	return strings.TrimSpace(b.String())
}

func renderRoleSection(b *strings.Builder, cfg domain.PromptConfig) {
	if strings.TrimSpace(cfg.RoleDefinition) == "" {
		return
	}
	b.WriteString("### Role\n")
	b.WriteString(strings.TrimSpace(cfg.RoleDefinition))
	b.WriteString("\n\n")
}

func renderContextRulesSection(b *strings.Builder, cfg domain.PromptConfig) {
	if strings.TrimSpace(cfg.ContextUsageRules) == "" {
		return
	}
	b.WriteString("### Context Usage Rules\n")
	b.WriteString(strings.TrimSpace(cfg.ContextUsageRules))
	b.WriteString("\n\n")
}

func renderOutputFormatSection(b *strings.Builder, cfg domain.PromptConfig) {
	if strings.TrimSpace(cfg.OutputFormatRules) == "" {
		return
	}
	b.WriteString("### Output Format\n")
	b.WriteString(strings.TrimSpace(cfg.OutputFormatRules))
	b.WriteString("\n\n")
}
