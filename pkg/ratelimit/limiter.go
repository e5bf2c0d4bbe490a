// Package ratelimit paces outbound REST calls so the client stays within
// the per-key request budget the exchange enforces. The implementation
// wraps Uber's leaky-bucket limiter behind a small interface so the pace
// can be tuned (or stubbed out in tests) without touching the session.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/ratelimit"
)

// Rate is a human-readable limit: Limit operations per Interval.
// Coinbase Advanced Trade allows 30 private REST requests per second per
// key, which is the default the session uses.
type Rate struct {
	// Limit specifies the maximum number of operations allowed within
	// the interval.
	Limit int

	// Interval defines the time window over which the limit applies.
	Interval time.Duration
}

// RateLimiter controls the pace of operations by forcing callers to wait
// when necessary to comply with a configured rate.
type RateLimiter interface {
	// Wait blocks until an operation is permitted or the context is
	// cancelled.
	Wait(ctx context.Context) error

	// SetLimit replaces the limiter's rate configuration.
	SetLimit(limit Rate) error
}

// uberLimiter implements RateLimiter using Uber's leaky bucket.
type uberLimiter struct {
	limiter ratelimit.Limiter
	rate    Rate
}

// NewTokenBucketLimiter creates a rate limiter allowing rate.Limit
// operations per rate.Interval. The interval is normalized to operations
// per second for the underlying limiter.
func NewTokenBucketLimiter(rate Rate) RateLimiter {
	rps := float64(rate.Limit) / rate.Interval.Seconds()
	return &uberLimiter{
		limiter: ratelimit.New(int(rps)),
		rate:    rate,
	}
}

// Wait implements the RateLimiter interface.
func (l *uberLimiter) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("rate limit wait cancelled: %w", ctx.Err())
	default:
		l.limiter.Take()
		return nil
	}
}

// SetLimit implements the RateLimiter interface.
func (l *uberLimiter) SetLimit(rate Rate) error {
	if rate.Limit <= 0 || rate.Interval <= 0 {
		return fmt.Errorf("invalid rate limit: %+v", rate)
	}
	rps := float64(rate.Limit) / rate.Interval.Seconds()
	l.limiter = ratelimit.New(int(rps))
	l.rate = rate
	return nil
}
