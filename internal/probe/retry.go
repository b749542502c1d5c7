package probe

import (
	"context"
	"fmt"
	"time"
)

const (
	// DefaultMaxRetries is the number of reconnects after the first failed dial
	DefaultMaxRetries = 5
	// DefaultBackoff is the fixed delay between connect attempts
	DefaultBackoff = 30 * time.Millisecond
)

// RetryPolicy bounds the connect phase
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
}

// DefaultRetryPolicy returns the standard 5 x 30ms policy
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: DefaultMaxRetries,
		Backoff:    DefaultBackoff,
	}
}

// Validate checks the policy values
func (r RetryPolicy) Validate() error {
	if r.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if r.Backoff < 0 {
		return fmt.Errorf("backoff cannot be negative")
	}
	return nil
}

// Attempts returns the total number of dials the policy allows
func (r RetryPolicy) Attempts() int {
	return r.MaxRetries + 1
}

// Exhausted reports whether retry is the last permitted retry
func (r RetryPolicy) Exhausted(retry int) bool {
	return retry >= r.MaxRetries
}

// Wait sleeps for the backoff delay or until ctx is done
func (r RetryPolicy) Wait(ctx context.Context) error {
	if r.Backoff <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(r.Backoff)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
