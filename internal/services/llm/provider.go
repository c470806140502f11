package llm

import (
	"fmt"
	"strings"
)

// ProviderType represents the AI provider type
type ProviderType string

const (
	// ProviderGemini uses Google Gemini API
	ProviderGemini ProviderType = "gemini"
	// ProviderClaude uses Anthropic Claude API
	ProviderClaude ProviderType = "claude"
)

// ParseProviderType accepts provider names and common aliases
func ParseProviderType(name string) (ProviderType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "gemini", "google":
		return ProviderGemini, nil
	case "claude", "anthropic":
		return ProviderClaude, nil
	default:
		return "", fmt.Errorf("unsupported narrative provider '%s': must be 'gemini' or 'claude'", name)
	}
}

// NormalizeModel removes a provider prefix such as "gemini/" from a model name
func NormalizeModel(model string) string {
	prefixes := []string{"claude/", "anthropic/", "gemini/", "google/"}
	for _, prefix := range prefixes {
		if strings.HasPrefix(strings.ToLower(model), prefix) {
			return model[len(prefix):]
		}
	}
	return model
}
