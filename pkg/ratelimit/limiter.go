// Package ratelimit implements the client-side admission gate shared by every
// request of one export. It is a token bucket: with the default configuration
// it admits one request every 1.5 seconds, and callers waiting concurrently are
// admitted in the order they called Wait.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prometheus metrics for admission control.
var (
	admissionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tosdr_ratelimit_admissions_total",
		Help: "Total number of requests admitted by the client-side rate limiter",
	})

	waitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tosdr_ratelimit_wait_seconds",
		Help:    "Time spent waiting for rate limiter admission",
		Buckets: []float64{0.01, 0.1, 0.5, 1, 1.5, 5, 15, 60, 300},
	})
)

const (
	// DefaultInterval is the minimum spacing between two admissions.
	DefaultInterval = 1500 * time.Millisecond

	// DefaultBurst is the number of requests that may be admitted back to back.
	DefaultBurst = 1
)

// Config holds limiter configuration.
type Config struct {
	// Interval between admissions. Zero or negative disables limiting.
	Interval time.Duration

	// Burst is the bucket size (default: 1).
	Burst int
}

// DefaultConfig returns the admission rate the ToS;DR API tolerates.
func DefaultConfig() Config {
	return Config{
		Interval: DefaultInterval,
		Burst:    DefaultBurst,
	}
}

// Limiter gates outgoing requests. A single Limiter must be shared by all
// fetches of one export so that the configured rate holds across goroutines.
type Limiter struct {
	limiter  *rate.Limiter
	interval time.Duration
	logger   zerolog.Logger
}

// NewLimiter creates a limiter from cfg.
func NewLimiter(cfg Config, logger zerolog.Logger) *Limiter {
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultBurst
	}

	limit := rate.Inf
	if cfg.Interval > 0 {
		limit = rate.Every(cfg.Interval)
	}

	return &Limiter{
		limiter:  rate.NewLimiter(limit, cfg.Burst),
		interval: cfg.Interval,
		logger:   logger,
	}
}

// Wait blocks until the caller is admitted or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	start := time.Now()

	if err := l.limiter.Wait(ctx); err != nil {
		l.logger.Debug().Err(err).Msg("Rate limiter wait aborted")
		return fmt.Errorf("rate limiter wait: %w", err)
	}

	waited := time.Since(start)
	admissionsTotal.Inc()
	waitSeconds.Observe(waited.Seconds())

	if l.interval > 0 && waited > l.interval {
		l.logger.Debug().
			Dur("waited", waited).
			Msg("Request admitted after queueing")
	}

	return nil
}

// Interval returns the configured admission interval.
func (l *Limiter) Interval() time.Duration {
	return l.interval
}
