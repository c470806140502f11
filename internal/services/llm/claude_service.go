package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/finsight/internal/common"
	"github.com/ternarybob/finsight/internal/interfaces"
)

// ClaudeProvider generates text with an Anthropic Claude model.
type ClaudeProvider struct {
	client  anthropic.Client
	model   string
	timeout time.Duration
	logger  arbor.ILogger
}

var _ interfaces.TextProvider = (*ClaudeProvider)(nil)

// NewClaudeProvider creates a Claude provider from the [claude] config section.
func NewClaudeProvider(config common.ClaudeConfig, logger arbor.ILogger, opts ...option.RequestOption) (*ClaudeProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required (set FINSIGHT_CLAUDE_API_KEY, ANTHROPIC_API_KEY, or claude.api_key in config)")
	}

	model := NormalizeModel(config.Model)
	if model == "" {
		model = "claude-3-5-haiku-latest"
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	client := anthropic.NewClient(append([]option.RequestOption{
		option.WithAPIKey(config.APIKey),
		// Retries belong to the narrative retry policy
		option.WithMaxRetries(0),
	}, opts...)...)

	logger.Debug().
		Str("model", model).
		Dur("timeout", timeout).
		Msg("Claude provider initialized")

	return &ClaudeProvider{
		client:  client,
		model:   model,
		timeout: timeout,
		logger:  logger,
	}, nil
}

// Name returns "claude"
func (p *ClaudeProvider) Name() string {
	return string(ProviderClaude)
}

// GenerateText sends one prompt and returns the concatenated text blocks.
func (p *ClaudeProvider) GenerateText(ctx context.Context, request *interfaces.GenerationRequest) (string, error) {
	if request == nil || strings.TrimSpace(request.Prompt) == "" {
		return "", fmt.Errorf("prompt cannot be empty")
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	maxTokens := request.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = 800
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(request.Prompt)),
		},
		Temperature: anthropic.Float(float64(request.Temperature)),
	}
	if request.SystemInstruction != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: request.SystemInstruction},
		}
	}

	startTime := time.Now()
	resp, err := p.client.Messages.New(timeoutCtx, params)
	if err != nil {
		return "", fmt.Errorf("Claude API call failed: %w", err)
	}

	var response strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			response.WriteString(block.Text)
		}
	}

	if strings.TrimSpace(response.String()) == "" {
		return "", fmt.Errorf("no response generated from Claude model %s", p.model)
	}

	p.logger.Debug().
		Str("model", p.model).
		Int("response_length", response.Len()).
		Dur("duration", time.Since(startTime)).
		Msg("Claude generation completed")

	return response.String(), nil
}

// Close releases nothing; the Anthropic client needs no cleanup.
func (p *ClaudeProvider) Close() error {
	return nil
}
