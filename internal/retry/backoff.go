package retry

import (
	"context"
	"time"
)

// ExponentialBackoff returns delay based on attempt number.
// The delay doubles with each attempt: base * 2^attempt
func ExponentialBackoff(attempt int, base time.Duration) time.Duration {
	return base * (1 << attempt)
}

// Policy describes how a failed external call is retried.
// Rate limiting and ordinary failures are budgeted separately.
type Policy struct {
	// RateLimitCooldown is slept after every rate-limit response before retrying the same request.
	RateLimitCooldown time.Duration
	// MaxRateLimitWait caps the total cooldown spent on one request. Zero means no cap.
	MaxRateLimitWait time.Duration
	// ErrorDelay is slept after an ordinary failure before the next attempt.
	ErrorDelay time.Duration
	// ErrorRetries is how many extra attempts an ordinary failure gets.
	ErrorRetries int
}

// DefaultPolicy waits a minute on rate limits without a cap and retries other failures once.
func DefaultPolicy() Policy {
	return Policy{
		RateLimitCooldown: 60 * time.Second,
		ErrorDelay:        7 * time.Second,
		ErrorRetries:      1,
	}
}

// AllowRateLimitWait reports whether another cooldown still fits into MaxRateLimitWait
// given the total already waited.
func (p Policy) AllowRateLimitWait(waited time.Duration) bool {
	if p.MaxRateLimitWait <= 0 {
		return true
	}
	return waited+p.RateLimitCooldown <= p.MaxRateLimitWait
}

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep waits for d, returning early with ctx.Err() if the context ends first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
