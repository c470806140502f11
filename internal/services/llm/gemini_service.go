package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"google.golang.org/genai"

	"github.com/ternarybob/finsight/internal/common"
	"github.com/ternarybob/finsight/internal/interfaces"
)

// GeminiProvider generates text with a Google Gemini model.
type GeminiProvider struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	logger  arbor.ILogger
}

var _ interfaces.TextProvider = (*GeminiProvider)(nil)

// GeminiOption adjusts the genai client configuration.
type GeminiOption func(*genai.ClientConfig)

// WithGeminiBaseURL points the client at a different API endpoint.
func WithGeminiBaseURL(baseURL string) GeminiOption {
	return func(c *genai.ClientConfig) {
		c.HTTPOptions.BaseURL = baseURL
	}
}

// NewGeminiProvider creates a Gemini provider from the [gemini] config section.
func NewGeminiProvider(ctx context.Context, config common.GeminiConfig, logger arbor.ILogger, opts ...GeminiOption) (*GeminiProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required (set FINSIGHT_GEMINI_API_KEY, GEMINI_API_KEY, or gemini.api_key in config)")
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	for _, opt := range opts {
		opt(clientConfig)
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}

	model := NormalizeModel(config.Model)
	if model == "" {
		model = "gemini-2.0-flash-lite"
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	logger.Debug().
		Str("model", model).
		Dur("timeout", timeout).
		Msg("Gemini provider initialized")

	return &GeminiProvider{
		client:  client,
		model:   model,
		timeout: timeout,
		logger:  logger,
	}, nil
}

// Name returns "gemini"
func (p *GeminiProvider) Name() string {
	return string(ProviderGemini)
}

// GenerateText sends one prompt and returns the response text. API errors
// are wrapped with their original text intact.
func (p *GeminiProvider) GenerateText(ctx context.Context, request *interfaces.GenerationRequest) (string, error) {
	if request == nil || strings.TrimSpace(request.Prompt) == "" {
		return "", fmt.Errorf("prompt cannot be empty")
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(request.Temperature),
	}
	if request.MaxOutputTokens > 0 {
		config.MaxOutputTokens = int32(request.MaxOutputTokens)
	}
	if request.SystemInstruction != "" {
		config.SystemInstruction = genai.NewContentFromText(request.SystemInstruction, genai.RoleUser)
	}

	contents := []*genai.Content{
		genai.NewContentFromText(request.Prompt, genai.RoleUser),
	}

	startTime := time.Now()
	resp, err := p.client.Models.GenerateContent(timeoutCtx, p.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("Gemini API call failed: %w", err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		if reason := geminiBlockReason(resp); reason != "" {
			return "", fmt.Errorf("no response generated from Gemini model %s: blocked by safety filters (%s)", p.model, reason)
		}
		if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != "" {
			return "", fmt.Errorf("no response generated from Gemini model %s (finish reason %s)", p.model, resp.Candidates[0].FinishReason)
		}
		return "", fmt.Errorf("no response generated from Gemini model %s", p.model)
	}

	p.logger.Debug().
		Str("model", p.model).
		Int("response_length", len(text)).
		Dur("duration", time.Since(startTime)).
		Msg("Gemini generation completed")

	return text, nil
}

// Close is a no-op; the genai client holds no resources that need releasing.
func (p *GeminiProvider) Close() error {
	return nil
}

// geminiBlockReason reports why a response carries no text when a content
// filter stopped it, either on the prompt or on the first candidate.
func geminiBlockReason(resp *genai.GenerateContentResponse) string {
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "prompt " + string(resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return ""
	}
	switch reason := resp.Candidates[0].FinishReason; reason {
	case genai.FinishReasonSafety, genai.FinishReasonBlocklist,
		genai.FinishReasonProhibitedContent, genai.FinishReasonSPII:
		return "finish " + string(reason)
	}
	return ""
}
