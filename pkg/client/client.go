// Package client provides the ToS;DR HTTP client with client-side rate
// limiting, retry on throttling, and an optional Redis lookup cache.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/tosdr-export/pkg/cache"
	"github.com/Sternrassler/tosdr-export/pkg/logging"
	"github.com/Sternrassler/tosdr-export/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for ToS;DR client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tosdr_requests_total",
		Help: "Total ToS;DR requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tosdr_request_duration_seconds",
		Help:    "ToS;DR request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tosdr_errors_total",
		Help: "Total ToS;DR errors by class",
	}, []string{"class"})
)

const (
	// DefaultBaseURL is the public ToS;DR API.
	DefaultBaseURL = "https://api.tosdr.org"

	// DefaultUserAgent identifies this tool to the API.
	DefaultUserAgent = "tosdr-export/1.0"

	// ServicesEndpoint serves both the paginated service listing (?page=N)
	// and single-service lookups (?id=N).
	ServicesEndpoint = "/service/v2/"

	// CasesEndpoint serves the paginated case listing.
	CasesEndpoint = "/case/v2/"

	// maxErrorBody bounds how much of an error response is kept in messages.
	maxErrorBody = 512
)

// Client is the ToS;DR API client. One Client, and therefore one rate
// limiter, should be used per export.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *ratelimit.Limiter
	cache      *cache.Manager
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the API, without trailing slash.
	BaseURL string

	// User-Agent header sent with every request.
	UserAgent string

	// Rate Limiting
	RequestInterval time.Duration // Minimum spacing between requests
	Burst           int           // Requests admitted back to back

	// Limiter overrides RequestInterval/Burst with a shared limiter instance.
	Limiter *ratelimit.Limiter

	// HTTPTimeout bounds a single HTTP attempt.
	HTTPTimeout time.Duration

	// Retry controls retry of throttled requests.
	Retry RetryPolicy

	// Redis enables the single-service lookup cache. Optional.
	Redis          *redis.Client
	LookupCacheTTL time.Duration
}

// DefaultConfig returns a configuration that respects the public API's
// rate limit.
func DefaultConfig() Config {
	return Config{
		BaseURL:         DefaultBaseURL,
		UserAgent:       DefaultUserAgent,
		RequestInterval: ratelimit.DefaultInterval,
		Burst:           ratelimit.DefaultBurst,
		HTTPTimeout:     30 * time.Second,
		Retry:           DefaultRetryPolicy(),
		LookupCacheTTL:  24 * time.Hour,
	}
}

// New creates a new ToS;DR client.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}

	if cfg.RequestInterval < 0 {
		return nil, fmt.Errorf("request_interval must be >= 0 (got %s)", cfg.RequestInterval)
	}
	if cfg.RequestInterval == 0 && cfg.Limiter == nil {
		cfg.RequestInterval = ratelimit.DefaultInterval
	}

	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}

	if cfg.Redis != nil && cfg.LookupCacheTTL <= 0 {
		return nil, fmt.Errorf("lookup_cache_ttl must be > 0 when redis is configured")
	}

	cfg.Retry = cfg.Retry.withDefaults()

	// Initialize logger
	logger := logging.NewLogger(logging.ComponentClient)

	limiter := cfg.Limiter
	if limiter == nil {
		limiter = ratelimit.NewLimiter(ratelimit.Config{
			Interval: cfg.RequestInterval,
			Burst:    cfg.Burst,
		}, logging.NewLogger(logging.ComponentRateLimit))
	}

	var cacheManager *cache.Manager
	if cfg.Redis != nil {
		cacheManager = cache.NewManager(cfg.Redis)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		limiter: limiter,
		cache:   cacheManager,
		config:  cfg,
		logger:  logger,
	}, nil
}

// get performs one GET attempt and returns the response body.
//
// A 429 response yields a *RateLimitedError. Any other status >= 400 and any
// transport failure yield an *APIError. get neither waits on the limiter nor
// retries; callers do both.
func (c *Client) get(ctx context.Context, endpoint string, query url.Values) ([]byte, error) {
	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	target := c.baseURL + endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return nil, &APIError{
			ErrorClass: ErrorClassNetwork,
			Message:    "request failed",
			Err:        err,
		}
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode == http.StatusTooManyRequests {
		errorsTotal.WithLabelValues(string(ErrorClassRateLimit)).Inc()
		_, _ = io.Copy(io.Discard, resp.Body)

		c.logger.Debug().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Msg("Request throttled")

		return nil, &RateLimitedError{
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Message:    resp.Status,
		}
	}

	if resp.StatusCode >= 400 {
		class := classifyStatus(resp.StatusCode)
		errorsTotal.WithLabelValues(string(class)).Inc()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("ToS;DR request error")

		message := resp.Status
		if s := strings.TrimSpace(string(snippet)); s != "" {
			message += ": " + s
		}
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: class,
			Message:    message,
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassNetwork,
			Message:    "read body",
			Err:        err,
		}
	}

	return body, nil
}

// parseRetryAfter accepts both delta-seconds and HTTP-date forms.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// WithLogger replaces the client logger.
func (c *Client) WithLogger(logger zerolog.Logger) *Client {
	c.logger = logger
	return c
}

// Limiter returns the rate limiter shared by all requests of this client.
func (c *Client) Limiter() *ratelimit.Limiter {
	return c.limiter
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
