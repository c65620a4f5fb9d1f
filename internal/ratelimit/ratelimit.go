// Package ratelimit provides a global queries-per-second gate that the scan
// driver composes in front of its concurrency gate. It is a token bucket:
// tokens accrue at the configured rate up to one second of burst, and Wait
// sleeps until a token is available or the context is cancelled.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ErrBadRate is returned when a non-positive rate is supplied.
var ErrBadRate = fmt.Errorf("rate must be positive")

// Limiter is a token-bucket rate limiter. A nil *Limiter is valid and
// imposes no limit, so callers can hold one unconditionally.
type Limiter struct {
	mu       sync.Mutex
	interval time.Duration // time per token
	burst    int
	tokens   float64
	last     time.Time
}

// New creates a Limiter that allows qps admissions per second with a burst
// of up to qps tokens.
func New(qps int) (*Limiter, error) {
	if qps <= 0 {
		return nil, ErrBadRate
	}
	return &Limiter{
		interval: time.Second / time.Duration(qps),
		burst:    qps,
		tokens:   float64(qps),
		last:     time.Now(),
	}, nil
}

// Wait blocks until a token is available or ctx is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}

	d := l.reserve(time.Now())
	if d <= 0 {
		return nil
	}

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// reserve takes one token, going negative if none are available, and returns
// how long the caller must wait before its reservation comes due.
func (l *Limiter) reserve(now time.Time) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	elapsed := now.Sub(l.last)
	l.last = now

	l.tokens += elapsed.Seconds() * float64(time.Second/l.interval)
	if l.tokens > float64(l.burst) {
		l.tokens = float64(l.burst)
	}

	l.tokens--
	if l.tokens >= 0 {
		return 0
	}
	return time.Duration(-l.tokens * float64(l.interval))
}
