// Package ratelimit enforces the inter-request delay and retry backoff the
// harvester applies toward the source site.
package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"
)

// Config holds delay and backoff settings for one harvest run.
type Config struct {
	// Delay is the minimum spacing between consecutive requests.
	Delay time.Duration `yaml:"delay"`
	// MaxRetries is the retry ceiling for a single page.
	MaxRetries int `yaml:"max_retries"`
	// InitialBackoff is the wait before the first retry; each further retry
	// doubles it (bounded by MaxBackoff).
	InitialBackoff    time.Duration `yaml:"initial_backoff"`
	MaxBackoff        time.Duration `yaml:"max_backoff"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// DefaultConfig returns the delays used against the production source site.
func DefaultConfig() Config {
	return Config{
		Delay:             1500 * time.Millisecond,
		MaxRetries:        4,
		InitialBackoff:    2 * time.Second,
		MaxBackoff:        60 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

func applyDefaults(cfg Config) Config {
	def := DefaultConfig()
	if cfg.Delay <= 0 {
		cfg.Delay = def.Delay
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	if cfg.BackoffMultiplier <= 0 {
		cfg.BackoffMultiplier = def.BackoffMultiplier
	}
	return cfg
}

// Backoff computes the wait before retry number attempt (1-based),
// doubling from InitialBackoff up to MaxBackoff. Deliberately jitter-free:
// the single-threaded harvest loop has no thundering-herd problem and
// deterministic waits keep retry behavior testable.
func Backoff(attempt int, cfg Config) time.Duration {
	cfg = applyDefaults(cfg)
	if attempt <= 0 {
		return 0
	}

	d := float64(cfg.InitialBackoff) * math.Pow(cfg.BackoffMultiplier, float64(attempt-1))
	if d > float64(cfg.MaxBackoff) {
		d = float64(cfg.MaxBackoff)
	}
	return time.Duration(d)
}

// Limiter enforces a fixed delay between requests. One limiter is scoped to
// one category run; it is never shared across categories.
type Limiter struct {
	delay       time.Duration
	lastRequest time.Time
	mu          sync.Mutex
}

// NewLimiter creates a fixed-delay limiter.
func NewLimiter(cfg Config) *Limiter {
	cfg = applyDefaults(cfg)
	return &Limiter{delay: cfg.Delay}
}

// Wait blocks until the configured delay since the previous request has
// elapsed, or until ctx is canceled.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	now := time.Now()
	wait := l.reserve(now)
	l.lastRequest = now.Add(wait)
	l.mu.Unlock()

	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Reserve reports how long a caller would currently have to wait.
func (l *Limiter) Reserve() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reserve(time.Now())
}

// Reset forgets the last request time.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastRequest = time.Time{}
}

func (l *Limiter) reserve(now time.Time) time.Duration {
	if l.lastRequest.IsZero() {
		return 0
	}
	elapsed := now.Sub(l.lastRequest)
	if elapsed >= l.delay {
		return 0
	}
	return l.delay - elapsed
}
