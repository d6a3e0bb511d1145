package client

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tosdr_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tosdr_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"error_class"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tosdr_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// RetryPolicy decides which failures are retried and how long to wait
// between attempts.
type RetryPolicy struct {
	// MaxAttempts is the maximum number of attempts (including the initial request).
	MaxAttempts int

	// InitialBackoff is the wait after the first failed attempt.
	InitialBackoff time.Duration

	// MaxBackoff caps a single wait.
	MaxBackoff time.Duration

	// BackoffMultiplier is the growth factor between waits.
	BackoffMultiplier float64

	// Jitter is the randomization factor applied to each wait (0.2 = ±20%).
	Jitter float64

	// Retryable reports whether err should be retried.
	// Defaults to IsRateLimited.
	Retryable func(err error) bool
}

// DefaultRetryPolicy retries 429 responses with exponential backoff,
// up to 10 attempts in total.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       10,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        60 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            0.2,
		Retryable:         IsRateLimited,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = def.InitialBackoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = def.MaxBackoff
	}
	if p.MaxBackoff < p.InitialBackoff {
		p.MaxBackoff = p.InitialBackoff
	}
	if p.BackoffMultiplier < 1 {
		p.BackoffMultiplier = def.BackoffMultiplier
	}
	if p.Jitter < 0 || p.Jitter >= 1 {
		p.Jitter = def.Jitter
	}
	if p.Retryable == nil {
		p.Retryable = def.Retryable
	}
	return p
}

// newBackOff builds the wait schedule for one Do call.
func (p RetryPolicy) newBackOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.InitialBackoff
	exp.MaxInterval = p.MaxBackoff
	exp.Multiplier = p.BackoffMultiplier
	exp.RandomizationFactor = p.Jitter
	// Attempts are bounded by count, not elapsed time.
	exp.MaxElapsedTime = 0
	exp.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(p.MaxAttempts-1)), ctx)
}

// Do runs op until it succeeds, returns an error the policy does not retry,
// the attempt ceiling is reached, or ctx is done. op receives the 1-based
// attempt number.
//
// A non-retryable error is returned unchanged. Exhaustion returns an error
// wrapping both ErrRetryExhausted and the last error.
func (p RetryPolicy) Do(ctx context.Context, logger zerolog.Logger, op func(attempt int) error) error {
	p = p.withDefaults()

	attempt := 0
	var lastErr error

	err := backoff.RetryNotify(func() error {
		attempt++
		err := op(attempt)
		if err == nil {
			if attempt > 1 {
				logger.Info().
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return nil
		}

		lastErr = err
		if !p.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, p.newBackOff(ctx), func(err error, wait time.Duration) {
		class := string(errorClassOf(err))
		retriesTotal.WithLabelValues(class).Inc()
		retryBackoffSeconds.WithLabelValues(class).Observe(wait.Seconds())

		logger.Debug().
			Str("error_class", class).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("Retrying request after backoff")
	})
	if err == nil {
		return nil
	}

	if lastErr != nil && p.Retryable(lastErr) && attempt >= p.MaxAttempts {
		class := string(errorClassOf(lastErr))
		retryExhaustedTotal.WithLabelValues(class).Inc()
		logger.Warn().
			Str("error_class", class).
			Int("max_attempts", p.MaxAttempts).
			Msg("Retry attempts exhausted")

		return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, p.MaxAttempts, lastErr)
	}

	return err
}
