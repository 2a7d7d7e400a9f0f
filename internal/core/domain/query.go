package domain

import "time"

// QueryContext tracks one request across refinement iterations. Discarded after
// the response is produced.
type QueryContext struct {
	SessionID        string   `json:"session_id"`
	RawQuery         string   `json:"raw_query"`
	NormalizedQuery  string   `json:"normalized_query"`
	RewrittenVariants []string `json:"rewritten_variants"`
	Iteration        int      `json:"iteration"`
}

// ChatTurn is one message in a session's conversation log.
type ChatTurn struct {
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is one entry of the ordered prompt handed to the language model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// PromptConfig enumerates the recognized prompt sections and hard limits on
// history and context size.
type PromptConfig struct {
	RoleDefinition    string `yaml:"role_definition" json:"role_definition"`
	ContextUsageRules string `yaml:"context_usage_rules" json:"context_usage_rules"`
	OutputFormatRules string `yaml:"output_format_rules" json:"output_format_rules"`
	MaxHistoryTurns   int    `yaml:"max_history_turns" json:"max_history_turns"`
	MaxContextChars   int    `yaml:"max_context_chars" json:"max_context_chars"`
}
