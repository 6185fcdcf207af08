// Package retry runs an operation with exponential backoff and full jitter.
package retry

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

const (
	DefaultAttempts  = 5
	DefaultBaseDelay = 100 * time.Millisecond
	DefaultFactor    = 2.0
)

// Policy configures Do. Zero fields take the package defaults; MaxDelay of
// zero leaves the delay unbounded.
type Policy struct {
	Attempts  int
	BaseDelay time.Duration
	Factor    float64
	MaxDelay  time.Duration

	// OnRetry is called before each sleep.
	OnRetry func(attempt int, delay time.Duration, err error)

	jitter func() float64
	sleep  func(ctx context.Context, d time.Duration) error
}

// Default is five attempts starting at 100ms, doubling.
func Default() Policy {
	return Policy{Attempts: DefaultAttempts, BaseDelay: DefaultBaseDelay, Factor: DefaultFactor}
}

// WithoutSleep returns a copy that never waits. Used by tests.
func (p Policy) WithoutSleep() Policy {
	p.sleep = func(context.Context, time.Duration) error { return nil }
	return p
}

// Delay returns the capped backoff ceiling before jitter for the given
// 1-based attempt.
func (p Policy) Delay(attempt int) time.Duration {
	p = p.normalized()
	d := float64(p.BaseDelay)
	for i := 1; i < attempt; i++ {
		d *= p.Factor
	}
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// Do calls fn until it succeeds, the attempts are used up, or ctx is done.
// The returned error wraps the last failure.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	p = p.normalized()

	var err error
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt == p.Attempts {
			break
		}

		delay := time.Duration(p.jitter() * float64(p.Delay(attempt)))
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}
		if sleepErr := p.sleep(ctx, delay); sleepErr != nil {
			return fmt.Errorf("retry aborted after %d attempts: %w", attempt, err)
		}
	}
	return fmt.Errorf("after %d attempts: %w", p.Attempts, err)
}

func (p Policy) normalized() Policy {
	if p.Attempts <= 0 {
		p.Attempts = DefaultAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	if p.Factor < 1 {
		p.Factor = DefaultFactor
	}
	if p.jitter == nil {
		p.jitter = rand.Float64
	}
	if p.sleep == nil {
		p.sleep = sleepContext
	}
	return p
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
