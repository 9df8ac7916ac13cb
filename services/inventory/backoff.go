package inventory

import (
	"context"
	"time"
)

// Backoff describes a bounded retry schedule. Attempts counts every call,
// the first one included.
type Backoff struct {
	Attempts int
	Base     time.Duration
	Pause    time.Duration
}

func DefaultBackoff() Backoff {
	return Backoff{Attempts: 3, Base: time.Second, Pause: 500 * time.Millisecond}
}

// Delay is the wait before retry number n (0-based) after a rate-limit answer.
func (b Backoff) Delay(n int) time.Duration {
	if n < 0 {
		n = 0
	}
	return b.Base << uint(n)
}

// MaxAttempts returns Attempts, never less than one.
func (b Backoff) MaxAttempts() int {
	if b.Attempts < 1 {
		return 1
	}
	return b.Attempts
}

// Sleep waits for d or until ctx is done.
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
