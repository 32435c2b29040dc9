// Package backoff provides pluggable delay strategies. The pool uses a
// strategy to pace crash-replacement attempts when a prover factory keeps
// failing, the pwp client uses one to pace reconnects, and submitters can
// use one to build their own retry policies (the dispatcher itself never
// retries a crashed job). All strategies are stateless and safe for
// concurrent use.
package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// Strategy decides how long to wait before a retry.
type Strategy interface {
	// Delay reports the wait before the given attempt. Attempts count
	// from 1: the first retry after the initial failure is attempt 1.
	Delay(attempt int) time.Duration
}

// ──────────────────────────────────────────────────
// Constant
// ──────────────────────────────────────────────────

// Constant waits the same interval between every attempt.
type Constant struct {
	Interval time.Duration
}

// NewConstant returns a strategy with a fixed interval.
func NewConstant(interval time.Duration) *Constant {
	return &Constant{Interval: interval}
}

// Delay ignores the attempt number.
func (c *Constant) Delay(_ int) time.Duration {
	return c.Interval
}

// ──────────────────────────────────────────────────
// Exponential
// ──────────────────────────────────────────────────

// Exponential starts at Initial and doubles per attempt, never
// exceeding Max. A zero Max leaves the growth uncapped.
type Exponential struct {
	Initial time.Duration
	Max     time.Duration
}

// NewExponential returns a doubling strategy bounded by maxDelay.
func NewExponential(initial, maxDelay time.Duration) *Exponential {
	return &Exponential{Initial: initial, Max: maxDelay}
}

// Delay grows as Initial * 2^(attempt-1) until it hits Max.
func (e *Exponential) Delay(attempt int) time.Duration {
	d := time.Duration(float64(e.Initial) * math.Pow(2, float64(attempt-1)))
	if e.Max > 0 && d > e.Max {
		return e.Max
	}
	return d
}

// ──────────────────────────────────────────────────
// ExponentialWithJitter (full jitter)
// ──────────────────────────────────────────────────

// ExponentialWithJitter draws the delay uniformly from [0, d], where d
// is the capped exponential delay for the attempt. The randomness keeps
// a burst of simultaneous retriers from lining up on the same schedule.
type ExponentialWithJitter struct {
	Initial time.Duration
	Max     time.Duration
}

// NewExponentialWithJitter returns a full-jitter exponential strategy.
func NewExponentialWithJitter(initial, maxDelay time.Duration) *ExponentialWithJitter {
	return &ExponentialWithJitter{Initial: initial, Max: maxDelay}
}

// Delay picks a random duration up to the capped exponential bound.
func (e *ExponentialWithJitter) Delay(attempt int) time.Duration {
	base := float64(e.Initial) * math.Pow(2, float64(attempt-1))
	if e.Max > 0 && base > float64(e.Max) {
		base = float64(e.Max)
	}
	return time.Duration(rand.Float64() * base) //nolint:gosec // retry jitter has no need for crypto rand
}

// ──────────────────────────────────────────────────
// Default
// ──────────────────────────────────────────────────

// DefaultStrategy returns the default backoff used for context
// replacement: Exponential with 100ms initial and 10s max. Replacement
// is a local, single-writer concern, so jitter buys nothing here.
func DefaultStrategy() Strategy {
	return NewExponential(100*time.Millisecond, 10*time.Second)
}
