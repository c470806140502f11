package llm

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/finsight/internal/common"
	"github.com/ternarybob/finsight/internal/interfaces"
)

// NewTextProvider creates the provider selected by narrative.provider
func NewTextProvider(ctx context.Context, cfg *common.Config, logger arbor.ILogger) (interfaces.TextProvider, error) {
	providerType, err := ParseProviderType(cfg.Narrative.Provider)
	if err != nil {
		return nil, err
	}

	logger.Info().Str("provider", string(providerType)).Msg("Initializing narrative provider")

	switch providerType {
	case ProviderClaude:
		provider, err := NewClaudeProvider(cfg.Claude, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create Claude provider: %w", err)
		}
		return provider, nil
	default:
		provider, err := NewGeminiProvider(ctx, cfg.Gemini, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini provider: %w", err)
		}
		return provider, nil
	}
}
