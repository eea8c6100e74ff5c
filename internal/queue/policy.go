package queue

import (
	"time"

	"github.com/scrypster/stash/pkg/types"
)

// RetryPolicy controls how a job kind is retried after a failure.
type RetryPolicy struct {
	MaxAttempts int

	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration

	// Multiplier scales the backoff per attempt. 1 means a fixed interval.
	Multiplier float64
}

// BackoffFor returns the delay before the given retry attempt (1-based).
func (p RetryPolicy) BackoffFor(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	backoff := p.InitialBackoff
	for i := 1; i < attempt; i++ {
		backoff = time.Duration(float64(backoff) * p.Multiplier)
	}
	return backoff
}

// Retry policies per job kind. Capture processing backs off aggressively
// because its failures are usually upstream model outages. Reminder sending
// retries quickly so a due reminder is not late by much.
var retryPolicies = map[types.JobKind]RetryPolicy{
	types.JobCaptureProcessing: {MaxAttempts: 3, InitialBackoff: 30 * time.Second, Multiplier: 2},
	types.JobReminderSending:   {MaxAttempts: 5, InitialBackoff: 5 * time.Second, Multiplier: 2},
	types.JobProactiveAgent:    {MaxAttempts: 2, InitialBackoff: time.Minute, Multiplier: 2},
	types.JobPatternLearning:   {MaxAttempts: 2, InitialBackoff: 5 * time.Minute, Multiplier: 1},
}

// PolicyFor returns the retry policy for a job kind. Unknown kinds get a
// conservative single-retry policy.
func PolicyFor(kind types.JobKind) RetryPolicy {
	if p, ok := retryPolicies[kind]; ok {
		return p
	}
	return RetryPolicy{MaxAttempts: 2, InitialBackoff: time.Minute, Multiplier: 2}
}
