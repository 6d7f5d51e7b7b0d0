package container

import (
	"context"
	"time"

	"codeforge/pkg/clock"
)

// RetryPolicy is a bounded exponential backoff schedule. Container startup
// is asynchronous relative to the command that triggers it, so discovery of
// an indirectly launched container has to poll; the bound keeps a container
// that never appears from turning the poll into a hang.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 6,
		BaseDelay:   500 * time.Millisecond,
		Multiplier:  1.5,
	}
}

// Delay returns the backoff before the given zero-based attempt. Attempt 0
// has no delay.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	delay := float64(p.BaseDelay)
	for i := 1; i < attempt; i++ {
		delay *= p.Multiplier
	}
	return time.Duration(delay)
}

// Run invokes fn up to MaxAttempts times, sleeping the scheduled backoff
// between attempts. It stops early when fn reports done or the context is
// cancelled, and returns whether fn ever reported done.
func (p RetryPolicy) Run(ctx context.Context, clk clock.Clock, fn func(attempt int) bool) bool {
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if d := p.Delay(attempt); d > 0 {
			if err := clk.Sleep(ctx, d); err != nil {
				return false
			}
		}
		if fn(attempt) {
			return true
		}
	}
	return false
}
