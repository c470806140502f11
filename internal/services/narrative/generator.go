package narrative

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/finsight/internal/common"
	"github.com/ternarybob/finsight/internal/interfaces"
	"github.com/ternarybob/finsight/internal/models"
	"github.com/ternarybob/finsight/internal/services/llm"
)

// Generator implements interfaces.NarrativeService on top of a TextProvider.
type Generator struct {
	provider    interfaces.TextProvider
	policy      *llm.RetryPolicy
	limiter     *rate.Limiter
	audit       llm.AuditLogger
	logger      arbor.ILogger
	temperature float32
	maxTokens   int
}

// Option configures a Generator
type Option func(*Generator)

// WithRetryPolicy replaces the policy built from config
func WithRetryPolicy(policy *llm.RetryPolicy) Option {
	return func(g *Generator) {
		g.policy = policy
	}
}

// WithSleeper swaps the sleeper used between retries
func WithSleeper(sleep llm.Sleeper) Option {
	return func(g *Generator) {
		g.policy.Sleep = sleep
	}
}

// WithAuditLogger records every generation request
func WithAuditLogger(audit llm.AuditLogger) Option {
	return func(g *Generator) {
		g.audit = audit
	}
}

// NewGenerator creates a generator. A zero config.RateLimit disables the
// request limiter.
func NewGenerator(provider interfaces.TextProvider, config common.NarrativeConfig, logger arbor.ILogger, opts ...Option) *Generator {
	g := &Generator{
		provider:    provider,
		policy:      llm.NewRetryPolicy(config.MaxAttempts, config.InitialBackoff),
		logger:      logger,
		temperature: config.Temperature,
		maxTokens:   config.MaxOutputTokens,
	}
	if config.RateLimit > 0 {
		g.limiter = rate.NewLimiter(rate.Every(config.RateLimit), 1)
	}
	if g.maxTokens <= 0 {
		g.maxTokens = 800
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate asks the provider for a narrative about entityName. An error
// map is refused without calling the provider.
func (g *Generator) Generate(ctx context.Context, entityName string, metrics models.MetricMap) models.Narrative {
	if metrics.HasError() {
		return models.Narrative{Status: models.NarrativeUnavailable}
	}

	requestID := common.RequestIDFromContext(ctx)
	logger := g.logger
	if requestID != "" {
		logger = logger.WithCorrelationId(requestID)
	}

	request := &interfaces.GenerationRequest{
		Prompt:            BuildPrompt(entityName, metrics),
		SystemInstruction: systemInstruction,
		Temperature:       g.temperature,
		MaxOutputTokens:   g.maxTokens,
	}

	policy := *g.policy
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		logger.Warn().
			Str("entity", entityName).
			Int("attempt", attempt).
			Int("max_attempts", policy.MaxAttempts).
			Dur("delay", delay).
			Err(err).
			Msg("Narrative generation rate limited, retrying")
	}

	start := time.Now()
	result := policy.Run(ctx, func(ctx context.Context) (string, error) {
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return "", err
			}
		}
		return g.provider.GenerateText(ctx, request)
	})

	narrative := models.Narrative{
		Attempts: result.Attempts,
		Provider: g.provider.Name(),
		Failure:  result.Kind,
	}

	switch {
	case result.Succeeded():
		narrative.Status = models.NarrativeSuccess
		narrative.Text = result.Text
	case result.Kind == models.ErrorKindQuotaExhausted:
		logger.Warn().Str("entity", entityName).Msg("Free tier daily quota exhausted, quota resets at midnight UTC")
		narrative.Status = models.NarrativeQuotaExhausted
		narrative.Text = QuotaExhaustedNotice
	default:
		logger.Error().
			Str("entity", entityName).
			Str("error_kind", string(result.Kind)).
			Int("attempts", result.Attempts).
			Err(result.Err).
			Msg("Narrative generation failed")
		narrative.Status = models.NarrativeUnavailable
	}

	if g.audit != nil {
		entry := llm.AuditLog{
			RequestID: requestID,
			Provider:  narrative.Provider,
			Entity:    entityName,
			Status:    string(narrative.Status),
			ErrorKind: result.Kind,
			Attempts:  result.Attempts,
			Duration:  time.Since(start).Milliseconds(),
		}
		if result.Err != nil {
			entry.Error = result.Err.Error()
		}
		if err := g.audit.LogGeneration(entry); err != nil {
			logger.Warn().Err(err).Msg("Failed to record narrative audit entry")
		}
	}

	return narrative
}

// Close releases the underlying provider
func (g *Generator) Close() error {
	return g.provider.Close()
}
