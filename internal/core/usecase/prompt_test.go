package usecase

import (
	"strings"
	"testing"

	"github.com/mkarpov/plc-technical-assistant/internal/core/domain"
)

func testPromptConfig() domain.PromptConfig {
	return domain.PromptConfig{
		RoleDefinition:    "You are a PLC assistant.",
		ContextUsageRules: "Use only the retrieved context.",
		OutputFormatRules: "Answer with numbered steps.",
		MaxHistoryTurns:   4,
		MaxContextChars:   200,
	}
}

func TestPromptAssemblerMessageOrder(t *testing.T) {
	pa := NewPromptAssembler(testPromptConfig())

	history := []domain.ChatTurn{
		{Role: domain.RoleUser, Text: "earlier question"},
		{Role: domain.RoleAssistant, Text: "earlier answer"},
	}
	context := []domain.RetrievedCandidate{
		{ChunkID: "c1", Text: "fault reset steps", SourceRef: "manual.pdf#3"},
	}

	messages := pa.Assemble("How do I reset the fault?", context, history)
	if len(messages) != 5 {
		t.Fatalf("expected 5 messages, got %d: %v", len(messages), messages)
	}
	if messages[0].Role != domain.RoleSystem || !strings.Contains(messages[0].Content, "### Role") {
		t.Fatalf("expected system sections first, got %v", messages[0])
	}
	if messages[1].Content != "earlier question" || messages[2].Content != "earlier answer" {
		t.Fatalf("expected history in order, got %v", messages[1:3])
	}
	if messages[3].Role != domain.RoleSystem || !strings.HasPrefix(messages[3].Content, "Retrieved Context:") {
		t.Fatalf("expected context block before the final message, got %v", messages[3])
	}
	last := messages[len(messages)-1]
	if last.Role != domain.RoleUser || last.Content != "How do I reset the fault?" {
		t.Fatalf("expected raw query as final user message, got %v", last)
	}
}

func TestPromptAssemblerSystemSections(t *testing.T) {
	pa := NewPromptAssembler(testPromptConfig())
	messages := pa.Assemble("q", nil, nil)

	system := messages[0].Content
	roleIdx := strings.Index(system, "### Role")
	rulesIdx := strings.Index(system, "### Context Usage Rules")
	formatIdx := strings.Index(system, "### Output Format")
	if roleIdx < 0 || rulesIdx < 0 || formatIdx < 0 {
		t.Fatalf("missing system section headings:\n%s", system)
	}
	if !(roleIdx < rulesIdx && rulesIdx < formatIdx) {
		t.Fatalf("system sections out of order:\n%s", system)
	}
}

func TestPromptAssemblerHistoryCap(t *testing.T) {
	pa := NewPromptAssembler(testPromptConfig())

	history := make([]domain.ChatTurn, 0, 10)
	for i := 0; i < 10; i++ {
		history = append(history, domain.ChatTurn{Role: domain.RoleUser, Text: string(rune('a' + i))})
	}

	messages := pa.Assemble("q", nil, history)
	var turns []string
	for _, m := range messages[1 : len(messages)-2] {
		turns = append(turns, m.Content)
	}
	if len(turns) != 4 {
		t.Fatalf("expected history capped at 4 turns, got %d: %v", len(turns), turns)
	}
	if turns[0] != "g" || turns[3] != "j" {
		t.Fatalf("expected the most recent turns kept, got %v", turns)
	}
}

func TestPromptAssemblerContextCharCap(t *testing.T) {
	pa := NewPromptAssembler(testPromptConfig())

	long := strings.Repeat("x", 120)
	context := []domain.RetrievedCandidate{
		{ChunkID: "best", Text: long, SourceRef: "a"},
		{ChunkID: "second", Text: long, SourceRef: "b"},
		{ChunkID: "third", Text: long, SourceRef: "c"},
	}

	messages := pa.Assemble("q", context, nil)
	block := messages[1].Content
	if !strings.Contains(block, "[1]") {
		t.Fatalf("expected highest-ranked chunk always included:\n%s", block)
	}
	if strings.Contains(block, "[2]") || strings.Contains(block, "[3]") {
		t.Fatalf("expected lower-ranked chunks dropped whole, got:\n%s", block)
	}
	if strings.Count(block, long) != 1 {
		t.Fatalf("expected exactly one full chunk text, got:\n%s", block)
	}
}

func TestPromptAssemblerFirstChunkAlwaysIncluded(t *testing.T) {
	pa := NewPromptAssembler(testPromptConfig())

	// Larger than the whole budget on its own.
	oversized := strings.Repeat("y", 500)
	messages := pa.Assemble("q", []domain.RetrievedCandidate{
		{ChunkID: "only", Text: oversized, SourceRef: "a"},
	}, nil)

	if !strings.Contains(messages[1].Content, oversized) {
		t.Fatalf("expected the top chunk included even when oversized")
	}
}

func TestPromptAssemblerEmptyContext(t *testing.T) {
	pa := NewPromptAssembler(testPromptConfig())
	messages := pa.Assemble("q", nil, nil)

	block := messages[1].Content
	if !strings.Contains(block, "no relevant passages") {
		t.Fatalf("expected explicit empty-context marker, got:\n%s", block)
	}
}
