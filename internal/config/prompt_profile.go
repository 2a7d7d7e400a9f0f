package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mkarpov/plc-technical-assistant/internal/core/domain"
)

// DefaultPromptProfile is used when no profile file is configured. The role
// text pins the assistant to PLC troubleshooting so generic chit-chat answers
// do not leak through.
func DefaultPromptProfile() domain.PromptConfig {
	return domain.PromptConfig{
		RoleDefinition: "You are a technical assistant for industrial PLC systems. " +
			"You help engineers diagnose faults, interpret error codes, and follow " +
			"documented procedures for programmable logic controllers.",
		ContextUsageRules: "Answer using the retrieved context passages when they are relevant. " +
			"Cite the bracketed passage numbers you relied on. If the context does not " +
			"cover the question, say so explicitly instead of guessing.",
		OutputFormatRules: "Respond with concise numbered steps for procedures. " +
			"Quote register names, error codes, and parameter values exactly as written " +
			"in the context.",
		MaxHistoryTurns: 6,
		MaxContextChars: 6000,
	}
}

// LoadPromptProfile reads a YAML prompt profile. Fields absent from the file
// fall back to the default profile, so a partial override stays valid.
func LoadPromptProfile(path string) (domain.PromptConfig, error) {
	profile := DefaultPromptProfile()
	if path == "" {
		return profile, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.PromptConfig{}, fmt.Errorf("read prompt profile %s: %w", path, err)
	}

	var loaded domain.PromptConfig
	if err := yaml.Unmarshal(raw, &loaded); err != nil {
		return domain.PromptConfig{}, fmt.Errorf("parse prompt profile %s: %w", path, err)
	}

	if loaded.RoleDefinition != "" {
		profile.RoleDefinition = loaded.RoleDefinition
	}
	if loaded.ContextUsageRules != "" {
		profile.ContextUsageRules = loaded.ContextUsageRules
	}
	if loaded.OutputFormatRules != "" {
		profile.OutputFormatRules = loaded.OutputFormatRules
	}
	if loaded.MaxHistoryTurns > 0 {
		profile.MaxHistoryTurns = loaded.MaxHistoryTurns
	}
	if loaded.MaxContextChars > 0 {
		profile.MaxContextChars = loaded.MaxContextChars
	}
	return profile, nil
}
