// Package ratelimit implements the token-bucket rate limiter attached to
// each unit's start_limit and auto_stop_ratelimit (§9): monotonic-clock
// refill, with the token count and last-refill instant exposed so the
// serializer can round-trip a limiter's state across reload/reexec.
package ratelimit

import "time"

// Limiter is a token bucket: burst tokens refill continuously over
// interval, one full bucket's worth per interval.
type Limiter struct {
	interval time.Duration
	burst    uint

	tokens     float64
	lastRefill time.Time
}

// New creates a Limiter with a full bucket, refilling burst tokens every
// interval. A zero interval or burst disables limiting: Allow always succeeds.
func New(interval time.Duration, burst uint, now time.Time) *Limiter {
	return &Limiter{
		interval:   interval,
		burst:      burst,
		tokens:     float64(burst),
		lastRefill: now,
	}
}

// Restore rebuilds a Limiter from serialized state, used by deserialize on
// reexec to preserve the exact rate-limit window instead of resetting it.
func Restore(interval time.Duration, burst uint, tokens float64, lastRefill time.Time) *Limiter {
	return &Limiter{interval: interval, burst: burst, tokens: tokens, lastRefill: lastRefill}
}

func (l *Limiter) refill(now time.Time) {
	if l.interval <= 0 || l.burst == 0 {
		return
	}
	elapsed := now.Sub(l.lastRefill)
	if elapsed <= 0 {
		return
	}
	l.tokens += elapsed.Seconds() / l.interval.Seconds() * float64(l.burst)
	if l.tokens > float64(l.burst) {
		l.tokens = float64(l.burst)
	}
	l.lastRefill = now
}

// Allow consumes one token if available and reports whether the caller may
// proceed, used by notify() to gate an activating transition (§4.4).
func (l *Limiter) Allow(now time.Time) bool {
	if l.interval <= 0 || l.burst == 0 {
		return true
	}
	l.refill(now)
	if l.tokens < 1 {
		return false
	}
	l.tokens--
	return true
}

// Tokens returns the current token count, refilled as of now.
func (l *Limiter) Tokens(now time.Time) float64 {
	l.refill(now)
	return l.tokens
}

// LastRefill returns the instant tokens were last topped up, the value the
// serializer persists alongside Tokens (§4.7).
func (l *Limiter) LastRefill() time.Time {
	return l.lastRefill
}

// Burst returns the configured bucket size.
func (l *Limiter) Burst() uint {
	return l.burst
}

// Interval returns the configured refill interval.
func (l *Limiter) Interval() time.Duration {
	return l.interval
}
