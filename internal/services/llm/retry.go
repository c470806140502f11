package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/finsight/internal/models"
)

// Default retry constants for generation calls.
const (
	DefaultMaxAttempts    = 3
	DefaultInitialBackoff = 2 * time.Second
)

// ErrRetryPastDeadline is wrapped into the result when the next retry delay
// would outlast the context deadline.
var ErrRetryPastDeadline = errors.New("retry delay exceeds request deadline")

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the production Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RetryPolicy retries a generation call on transient rate limits only.
//
// States: attempting -> success | retryable failure -> attempting |
// terminal failure. Quota exhaustion, auth, safety and unclassified errors
// are terminal on the attempt they occur.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	Sleep          Sleeper

	// OnRetry is called before each sleep, if set.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// NewRetryPolicy returns a policy using real sleeps. Non-positive values
// fall back to the defaults.
func NewRetryPolicy(maxAttempts int, initialBackoff time.Duration) *RetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if initialBackoff <= 0 {
		initialBackoff = DefaultInitialBackoff
	}
	return &RetryPolicy{
		MaxAttempts:    maxAttempts,
		InitialBackoff: initialBackoff,
		Sleep:          SleepContext,
	}
}

// RetryResult is the terminal state of one Run.
type RetryResult struct {
	Text     string           // trimmed response text on success
	Kind     models.ErrorKind // ErrorKindNone on success
	Attempts int
	Delays   []time.Duration // sleeps actually taken, in order
	Err      error           // last error, nil on success
}

// Succeeded reports whether the call produced text.
func (r RetryResult) Succeeded() bool {
	return r.Err == nil && r.Kind == models.ErrorKindNone
}

// Run calls fn until it succeeds, fails terminally, attempts run out or the
// next delay would pass the context deadline.
// Before each retry the delay becomes the larger of the current delay and
// the server hint (rounded down to the second, plus one second); after the
// sleep it doubles.
func (p *RetryPolicy) Run(ctx context.Context, fn func(ctx context.Context) (string, error)) RetryResult {
	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepContext
	}

	var res RetryResult
	delay := p.InitialBackoff

	for attempt := 1; ; attempt++ {
		res.Attempts = attempt

		text, err := fn(ctx)
		if err == nil {
			res.Text = strings.TrimSpace(text)
			res.Kind = models.ErrorKindNone
			res.Err = nil
			return res
		}

		res.Err = err
		res.Kind = Classify(err)

		if !res.Kind.Retryable() || attempt >= p.MaxAttempts {
			return res
		}

		if hint := ExtractRetryDelay(err.Error()); hint > 0 {
			if hinted := hint.Truncate(time.Second) + time.Second; hinted > delay {
				delay = hinted
			}
		}

		// A sleep that cannot finish before the deadline only delays the
		// caller's answer
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < delay {
			res.Err = fmt.Errorf("%w (%s): %v", ErrRetryPastDeadline, delay, err)
			return res
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}

		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			res.Err = sleepErr
			return res
		}
		res.Delays = append(res.Delays, delay)
		delay *= 2
	}
}
