// Package metrics exposes the Prometheus registry used by the exporter.
// All metrics are defined in their respective packages (client, ratelimit,
// pagination, cache) to maintain modularity and avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler serves every metric registered on the default registry in the
// Prometheus text format. All exporter metrics are registered there via
// promauto in their respective packages.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - tosdr_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status
//   - tosdr_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - tosdr_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network, decode)
//
// Retry Metrics (pkg/client):
//   - tosdr_retries_total{error_class} (Counter): Retry attempts by error class
//   - tosdr_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - tosdr_retry_exhausted_total{error_class} (Counter): Requests that exhausted max attempts
//
// Rate Limit Metrics (pkg/ratelimit):
//   - tosdr_ratelimit_admissions_total (Counter): Requests admitted by the client-side limiter
//   - tosdr_ratelimit_wait_seconds (Histogram): Time spent waiting for admission
//
// Pagination Metrics (pkg/pagination):
//   - tosdr_pages_total{endpoint, result} (Counter): Pages fetched by endpoint and result (success, failed)
//   - tosdr_pagination_duration_seconds{endpoint} (Histogram): Duration of a full paginated fetch
//
// Cache Metrics (pkg/cache):
//   - tosdr_cache_hits_total (Counter): Lookup cache hits
//   - tosdr_cache_misses_total (Counter): Lookup cache misses
//   - tosdr_cache_errors_total{operation} (Counter): Cache operation errors
//
// Example Prometheus Queries:
//
//   # Page Failure Rate
//   sum(rate(tosdr_pages_total{result="failed"}[5m])) / sum(rate(tosdr_pages_total[5m]))
//
//   # Throttling Rate
//   rate(tosdr_requests_total{status="429"}[5m])
//
//   # Average Limiter Queueing
//   rate(tosdr_ratelimit_wait_seconds_sum[5m]) / rate(tosdr_ratelimit_wait_seconds_count[5m])
//
//   # Cache Hit Rate
//   sum(rate(tosdr_cache_hits_total[5m])) /
//   (sum(rate(tosdr_cache_hits_total[5m])) + sum(rate(tosdr_cache_misses_total[5m])))
