package llm

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ternarybob/finsight/internal/models"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    models.ErrorKind
	}{
		{"gemini transient", "Error 429, Message: Resource has been exhausted (e.g. check quota)., Status: RESOURCE_EXHAUSTED", models.ErrorKindRateLimited},
		{"per-minute quota", "Quota exceeded for metric: generate_content_requests_per_minute. Please retry in 12s.", models.ErrorKindRateLimited},
		{"anthropic rate limit", `429 Too Many Requests {"type":"error","error":{"type":"rate_limit_error"}}`, models.ErrorKindRateLimited},
		{"resource exhausted only", "rpc error: RESOURCE_EXHAUSTED", models.ErrorKindRateLimited},
		{"free tier", "Error 429, Quota exceeded for metric: generativelanguage.googleapis.com/generate_content_free_tier_requests", models.ErrorKindQuotaExhausted},
		{"zero limit with 429", "Error 429, Message: quota exceeded, limit: 0, model: gemini-2.0-flash", models.ErrorKindQuotaExhausted},
		{"zero limit without 429", "quota: limit: 0 reached", models.ErrorKindRateLimited},
		{"unauthorized", "Error 401, Message: API key not valid", models.ErrorKindAuth},
		{"forbidden", "403 Forbidden", models.ErrorKindAuth},
		{"invalid key", "INVALID_ARGUMENT: API key invalid", models.ErrorKindAuth},
		{"safety", "response blocked: SAFETY", models.ErrorKindSafety},
		{"other", "connection reset by peer", models.ErrorKindUnknown},
		{"empty", "", models.ErrorKindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyError(tt.message))
		})
	}
}

func TestClassify(t *testing.T) {
	assert.Equal(t, models.ErrorKindNone, Classify(nil))
	assert.Equal(t, models.ErrorKindRateLimited, Classify(errors.New("status 429")))
}

func TestExtractRetryDelay(t *testing.T) {
	tests := []struct {
		message string
		want    time.Duration
	}{
		{"Please retry in 45.387061394s., Status: RESOURCE_EXHAUSTED", time.Duration(45.387061394 * float64(time.Second))},
		{"please RETRY IN 3 s", 3 * time.Second},
		{`"retryDelay": "17s"`, 17 * time.Second},
		{"retryDelay:5s", 5 * time.Second},
		{"Error 429 without a hint", 0},
		{"", 0},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractRetryDelay(tt.message))
		})
	}
}

func TestErrorKindRetryable(t *testing.T) {
	assert.True(t, models.ErrorKindRateLimited.Retryable())
	for _, k := range []models.ErrorKind{models.ErrorKindQuotaExhausted, models.ErrorKindAuth, models.ErrorKindSafety, models.ErrorKindUnknown, models.ErrorKindNone} {
		assert.False(t, k.Retryable(), string(k))
	}
}
