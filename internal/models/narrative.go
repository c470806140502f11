package models

// ErrorKind classifies a failed text-generation call.
type ErrorKind string

const (
	ErrorKindNone           ErrorKind = ""
	ErrorKindRateLimited    ErrorKind = "rate_limited"    // transient, retried with backoff
	ErrorKindQuotaExhausted ErrorKind = "quota_exhausted" // daily cap, never retried
	ErrorKindAuth           ErrorKind = "auth"
	ErrorKindSafety         ErrorKind = "safety"
	ErrorKindUnknown        ErrorKind = "unknown"
)

// Retryable reports whether a failure of this kind may be retried.
func (k ErrorKind) Retryable() bool {
	return k == ErrorKindRateLimited
}

// NarrativeStatus is the terminal state of one narrative request.
type NarrativeStatus string

const (
	NarrativeSuccess        NarrativeStatus = "success"
	NarrativeQuotaExhausted NarrativeStatus = "quota_exhausted"
	NarrativeUnavailable    NarrativeStatus = "unavailable"
)

// Narrative is the result of a narrative request. Text holds the model
// output on success and the fixed quota notice on quota exhaustion; it is
// empty when the narrative is unavailable.
type Narrative struct {
	Status   NarrativeStatus `json:"status"`
	Text     string          `json:"text,omitempty"`
	Failure  ErrorKind       `json:"failure,omitempty"`
	Attempts int             `json:"attempts"`
	Provider string          `json:"provider,omitempty"`
}

// HasText reports whether the narrative carries something to show the user.
func (n Narrative) HasText() bool {
	return n.Text != "" && n.Status != NarrativeUnavailable
}
