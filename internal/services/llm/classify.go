package llm

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/finsight/internal/models"
)

var (
	// Markers for rate limiting and quota errors. Gemini reports 429 and
	// RESOURCE_EXHAUSTED; Anthropic reports rate_limit_error.
	rateLimitMarkers = []string{"429", "quota", "rate_limit", "resource_exhausted"}

	authMarkers = []string{"401", "403", "invalid"}
)

// retryDelayRegex matches "Please retry in 45.3s" and "retryDelay": "45s"
var retryDelayRegex = regexp.MustCompile(`(?i)(?:retry in |retryDelay["':\s]+)(\d+(?:\.\d+)?)\s*s`)

// ClassifyError maps a provider error message to an ErrorKind. It is a
// pure function of the text.
//
// Rate-limit markers win over everything else. Within them, a free-tier
// marker, or "limit: 0" together with 429, means the daily quota is gone.
func ClassifyError(message string) models.ErrorKind {
	lower := strings.ToLower(message)

	switch {
	case containsAny(lower, rateLimitMarkers...):
		if strings.Contains(lower, "free_tier") ||
			(strings.Contains(lower, "limit: 0") && strings.Contains(lower, "429")) {
			return models.ErrorKindQuotaExhausted
		}
		return models.ErrorKindRateLimited
	case containsAny(lower, authMarkers...):
		return models.ErrorKindAuth
	case strings.Contains(lower, "safety"):
		return models.ErrorKindSafety
	default:
		return models.ErrorKindUnknown
	}
}

// Classify is ClassifyError for an error value. A nil error is ErrorKindNone.
func Classify(err error) models.ErrorKind {
	if err == nil {
		return models.ErrorKindNone
	}
	return ClassifyError(err.Error())
}

// ExtractRetryDelay parses the server-suggested delay from an error message.
// Returns 0 if no delay is found.
//
// Example error message:
// "Error 429, Message: ... Please retry in 45.387061394s., Status: RESOURCE_EXHAUSTED"
func ExtractRetryDelay(message string) time.Duration {
	matches := retryDelayRegex.FindStringSubmatch(message)
	if len(matches) < 2 {
		return 0
	}

	seconds, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0
	}

	return time.Duration(seconds * float64(time.Second))
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
