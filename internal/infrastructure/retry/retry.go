package retry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Policy is an exponential backoff schedule: the base delay doubles per
// attempt, capped at MaxDelay, with up to 10% jitter added on top. The
// jitter is additive so observed delays stay monotonically non-decreasing
// while the schedule is still below the cap.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	// Sleep is swappable for tests. Defaults to a context-aware wait.
	Sleep func(ctx context.Context, d time.Duration) error
	// Rand is the jitter source. Defaults to the global source.
	Rand func() float64
}

// Default mirrors the configuration defaults.
var Default = Policy{
	MaxAttempts: 3,
	BaseDelay:   500 * time.Millisecond,
	MaxDelay:    15 * time.Second,
}

// Delay returns the backoff delay before retry number attempt (1-based).
func (p Policy) Delay(attempt int) time.Duration {
	backoff := time.Duration(float64(p.BaseDelay) * math.Pow(2, float64(attempt-1)))
	if backoff > p.MaxDelay {
		backoff = p.MaxDelay
	}
	jitter := time.Duration(p.randFloat() * float64(backoff) * 0.1)
	return backoff + jitter
}

// Wait sleeps for the attempt's delay, returning early on cancellation.
func (p Policy) Wait(ctx context.Context, attempt int) error {
	return p.sleep(ctx, p.Delay(attempt))
}

// WaitFor sleeps for an externally supplied delay, e.g. a Retry-After
// hint, returning early on cancellation.
func (p Policy) WaitFor(ctx context.Context, d time.Duration) error {
	return p.sleep(ctx, d)
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
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

func (p Policy) randFloat() float64 {
	if p.Rand != nil {
		return p.Rand()
	}
	return rand.Float64()
}
