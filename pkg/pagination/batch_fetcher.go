package pagination

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/Sternrassler/tosdr-export/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Prometheus metrics for paginated exports.
var (
	pagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tosdr_pages_total",
		Help: "Total pages fetched by endpoint and result",
	}, []string{"endpoint", "result"})

	paginationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tosdr_pagination_duration_seconds",
		Help:    "Duration of a full paginated fetch by endpoint",
		Buckets: []float64{1, 10, 60, 300, 900, 1800, 3600},
	}, []string{"endpoint"})
)

// progressEvery controls how often progress is logged.
const progressEvery = 50

// Config holds batch fetcher configuration.
type Config struct {
	// Name identifies the endpoint in logs and metrics (e.g. "services").
	Name string

	// MaxConcurrency caps the number of page tasks in flight.
	// Zero starts one task per page; the shared rate limiter inside the
	// PageFetcher is what bounds the request rate.
	MaxConcurrency int
}

// DefaultConfig returns the default configuration for the named endpoint.
func DefaultConfig(name string) Config {
	return Config{
		Name:           name,
		MaxConcurrency: 0,
	}
}

// BatchFetcher fetches every page of one endpoint.
type BatchFetcher[T any] struct {
	fetcher PageFetcher[T]
	config  Config
	logger  zerolog.Logger
}

// NewBatchFetcher creates a new batch fetcher.
func NewBatchFetcher[T any](fetcher PageFetcher[T], config Config) *BatchFetcher[T] {
	if config.Name == "" {
		config.Name = "default"
	}
	if config.MaxConcurrency < 0 {
		config.MaxConcurrency = 0
	}

	return &BatchFetcher[T]{
		fetcher: fetcher,
		config:  config,
		logger:  logging.NewLogger(logging.ComponentPagination).With().Str("endpoint", config.Name).Logger(),
	}
}

// WithLogger replaces the logger used for progress and failure reporting.
func (bf *BatchFetcher[T]) WithLogger(logger zerolog.Logger) *BatchFetcher[T] {
	bf.logger = logger
	return bf
}

// FetchAll fetches page 1, then all remaining pages concurrently.
// It fails only when page 1 fails, with a *BootstrapError. Any other page
// failure is reported in Result.FailedPages.
func (bf *BatchFetcher[T]) FetchAll(ctx context.Context) (Result[T], error) {
	start := time.Now()
	defer func() {
		paginationDuration.WithLabelValues(bf.config.Name).Observe(time.Since(start).Seconds())
	}()

	// Fetch first page to get total page count
	first, err := bf.fetcher.FetchPage(ctx, 1)
	if err != nil {
		pagesTotal.WithLabelValues(bf.config.Name, "failed").Inc()
		bf.logger.Error().Err(err).Msg("Failed to fetch first page, aborting")
		return Result[T]{}, &BootstrapError{Err: err}
	}
	pagesTotal.WithLabelValues(bf.config.Name, "success").Inc()

	totalPages := first.TotalPages
	if totalPages < 1 {
		totalPages = 1
	}

	bf.logger.Info().
		Int("total_pages", totalPages).
		Msg("Starting concurrent page fetch")

	outcomes := make([]Outcome[T], totalPages)
	outcomes[0] = Outcome[T]{Index: 1, Page: first}

	if totalPages > 1 {
		var fetched atomic.Int64
		fetched.Store(1)

		var g errgroup.Group
		if bf.config.MaxConcurrency > 0 {
			g.SetLimit(bf.config.MaxConcurrency)
		}

		for index := 2; index <= totalPages; index++ {
			index := index
			g.Go(func() error {
				outcomes[index-1] = bf.fetch(ctx, index)

				if n := fetched.Add(1); n%progressEvery == 0 {
					bf.logger.Info().
						Int64("fetched", n).
						Int("total", totalPages).
						Float64("progress_pct", float64(n)/float64(totalPages)*100).
						Msg("Fetch progress")
				}
				// Page failures live in the outcome; returning nil keeps
				// siblings running.
				return nil
			})
		}

		_ = g.Wait()
	}

	result := Aggregate(bf.logger, outcomes)
	result.TotalPages = totalPages

	bf.logger.Info().
		Int("pages", totalPages-len(result.FailedPages)).
		Int("total", totalPages).
		Int("failed", len(result.FailedPages)).
		Int("records", len(result.Records)).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return result, nil
}

// fetch runs a single page task and converts its result into an outcome.
func (bf *BatchFetcher[T]) fetch(ctx context.Context, index int) Outcome[T] {
	page, err := bf.fetcher.FetchPage(ctx, index)
	if err != nil {
		pagesTotal.WithLabelValues(bf.config.Name, "failed").Inc()
		return Failure[T](index, err)
	}

	pagesTotal.WithLabelValues(bf.config.Name, "success").Inc()
	page.Index = index
	return Success(page)
}
