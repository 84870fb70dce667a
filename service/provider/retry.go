package provider

import "time"

// RetryPolicy is a bounded-retry schedule shared by every provider call.
// MaxAttempts counts the first attempt, so MaxAttempts consecutive failures
// exhaust the budget.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryPolicy is tuned for public API tiers: small attempt budget so a
// dead provider fails a stage quickly instead of burning rate-limit budget.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts:    5,
	InitialBackoff: 500 * time.Millisecond,
	MaxBackoff:     8 * time.Second,
}

// Backoff returns the sleep duration before the given retry attempt
// (attempt 0 is the first retry). The schedule doubles each attempt and is
// capped at MaxBackoff.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	d := p.InitialBackoff
	if d <= 0 {
		d = DefaultRetryPolicy.InitialBackoff
	}
	for i := 0; i < attempt; i++ {
		d *= 2
		if p.MaxBackoff > 0 && d >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		return p.MaxBackoff
	}
	return d
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts <= 0 {
		return DefaultRetryPolicy.MaxAttempts
	}
	return p.MaxAttempts
}
