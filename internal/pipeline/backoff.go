package pipeline

import (
	"time"

	"github.com/nyralabs/contact-pipeline/internal/domain"
)

// RetryPolicy is the single backoff policy owned by the state machine.
// Handlers never retry on their own; every retryable failure flows through
// this policy so all agents share identical retry semantics.
type RetryPolicy struct {
	MaxAttempts        int
	InitialBackoff     time.Duration
	BackoffMultiplier  float64
	MaxBackoff         time.Duration
	MaxAttemptsByState map[domain.State]int
}

// DefaultRetryPolicy mirrors the pipeline config defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       3,
		InitialBackoff:    200 * time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxBackoff:        5 * time.Second,
	}
}

// AttemptsFor returns the attempt limit for a state, falling back to the
// policy-wide maximum. A non-positive limit is normalized to 1.
func (p RetryPolicy) AttemptsFor(state domain.State) int {
	max := p.MaxAttempts
	if override, ok := p.MaxAttemptsByState[state]; ok {
		max = override
	}
	if max <= 0 {
		return 1
	}
	return max
}

// Delay computes the backoff before retry number attempt (1-based).
// Exponential growth from InitialBackoff, capped at MaxBackoff.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if p.InitialBackoff <= 0 || attempt <= 0 {
		return 0
	}
	multiplier := p.BackoffMultiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}
	delay := p.InitialBackoff
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * multiplier)
		if p.MaxBackoff > 0 && delay >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if p.MaxBackoff > 0 && delay > p.MaxBackoff {
		return p.MaxBackoff
	}
	return delay
}
