package resilience

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrRateLimited is returned when a request is blocked by the sliding
// window or by an active 429 backoff.
var ErrRateLimited = eris.New("rate limit exceeded")

// RateLimiterConfig controls the per-source sliding window limiter.
type RateLimiterConfig struct {
	// Threshold is the maximum number of requests per window. Default: 10.
	Threshold int
	// Window is the sliding window size. Default: 60s.
	Window time.Duration
}

// DefaultRateLimiterConfig returns sensible defaults.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{Threshold: 10, Window: 60 * time.Second}
}

// RateLimiter combines a sliding-window request budget with exponential
// backoff on HTTP 429 responses. The two gates are independent of circuit
// breaker state: a closed breaker can still be rate limited, and the 429
// backoff clears on any non-429 success regardless of breaker transitions.
type RateLimiter struct {
	name string
	cfg  RateLimiterConfig

	mu              sync.Mutex
	requestTimes    []time.Time
	consecutive429s int
	backoffUntil    time.Time

	nowFunc func() time.Time
}

// NewRateLimiter creates a rate limiter for the named source.
func NewRateLimiter(name string, cfg RateLimiterConfig) *RateLimiter {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 10
	}
	if cfg.Window <= 0 {
		cfg.Window = 60 * time.Second
	}
	return &RateLimiter{
		name:    name,
		cfg:     cfg,
		nowFunc: time.Now,
	}
}

// Allow reports whether a request may proceed, recording it against the
// window budget if so.
func (rl *RateLimiter) Allow() error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.nowFunc()

	if now.Before(rl.backoffUntil) {
		zap.L().Warn("rate limit backoff active",
			zap.String("source", rl.name),
			zap.Duration("remaining", rl.backoffUntil.Sub(now)),
		)
		return ErrRateLimited
	}

	// Drop requests that have slid out of the window.
	windowStart := now.Add(-rl.cfg.Window)
	kept := rl.requestTimes[:0]
	for _, t := range rl.requestTimes {
		if t.After(windowStart) {
			kept = append(kept, t)
		}
	}
	rl.requestTimes = kept

	if len(rl.requestTimes) >= rl.cfg.Threshold {
		return ErrRateLimited
	}

	rl.requestTimes = append(rl.requestTimes, now)
	return nil
}

// Handle429 records a 429 response. The backoff is the server's
// Retry-After when present, otherwise min(60 * 2^(n-1), 1800) seconds
// for the nth consecutive 429.
func (rl *RateLimiter) Handle429(retryAfter time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.consecutive429s++

	backoff := retryAfter
	if backoff <= 0 {
		// Clamp the exponent: 60*2^5 already exceeds the 1800s cap, and
		// larger shifts would overflow.
		exp := rl.consecutive429s - 1
		if exp > 5 {
			exp = 5
		}
		secs := 60 * (1 << exp)
		if secs > 1800 {
			secs = 1800
		}
		backoff = time.Duration(secs) * time.Second
	}
	rl.backoffUntil = rl.nowFunc().Add(backoff)

	zap.L().Warn("rate limit hit",
		zap.String("source", rl.name),
		zap.Int("consecutive_429s", rl.consecutive429s),
		zap.Duration("backoff", backoff),
	)
}

// RecordSuccess clears the 429 backoff state after a non-429 response.
func (rl *RateLimiter) RecordSuccess() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.consecutive429s = 0
	rl.backoffUntil = time.Time{}
}

// BackoffRemaining returns how long the active 429 backoff has left,
// or zero when none is active.
func (rl *RateLimiter) BackoffRemaining() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.nowFunc()
	if now.Before(rl.backoffUntil) {
		return rl.backoffUntil.Sub(now)
	}
	return 0
}

// LimiterRegistry manages rate limiters per source name.
type LimiterRegistry struct {
	mu       sync.Mutex
	limiters map[string]*RateLimiter
	cfg      RateLimiterConfig
}

// NewLimiterRegistry creates a limiter registry with a shared config.
func NewLimiterRegistry(cfg RateLimiterConfig) *LimiterRegistry {
	return &LimiterRegistry{
		limiters: make(map[string]*RateLimiter),
		cfg:      cfg,
	}
}

// Get returns the limiter for the named source, creating one if needed.
func (lr *LimiterRegistry) Get(source string) *RateLimiter {
	lr.mu.Lock()
	defer lr.mu.Unlock()
	rl, ok := lr.limiters[source]
	if !ok {
		rl = NewRateLimiter(source, lr.cfg)
		lr.limiters[source] = rl
	}
	return rl
}
