// Package cli implements the tosdr-export command line.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Sternrassler/tosdr-export/pkg/client"
	"github.com/Sternrassler/tosdr-export/pkg/export"
	"github.com/Sternrassler/tosdr-export/pkg/logging"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	buildVersion = "dev"
	buildCommit  = "unknown"
	buildDate    = "unknown"
)

// Default output file names, relative to the data directory.
const (
	servicesMetadataFile = "all_services_metadata.ndjson.gz"
	servicesFile         = "all_services.ndjson.gz"
	casesFile            = "all_cases.ndjson.gz"
)

// options holds the global flags shared by every export command.
type options struct {
	baseURL           string
	userAgent         string
	dataDir           string
	redisURL          string
	logLevel          string
	pretty            bool
	metricsAddr       string
	requestInterval   time.Duration
	pageConcurrency   int
	lookupConcurrency int

	logger zerolog.Logger
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "tosdr-export",
		Short: "Export ToS;DR services and cases to gzipped NDJSON files",
		Long: `tosdr-export downloads records from the ToS;DR API and writes them to
gzip-compressed newline-delimited JSON files.

Requests are paced by a client-side rate limiter (one request per 1.5s by
default) and throttled requests are retried with exponential backoff. Pages or
services that still fail are logged and skipped; the export only fails when the
first page cannot be fetched.

Examples:
	# Export the service listing, then every full service record
	tosdr-export services-metadata
	tosdr-export services

	# Export all cases to a custom file
	tosdr-export cases -o /tmp/cases.ndjson.gz

	# Print build info
	tosdr-export version

Environment:
	TOSDR_BASE_URL, TOSDR_USER_AGENT, TOSDR_DATA_DIR, REDIS_URL, LOG_LEVEL and
	METRICS_ADDR provide defaults for the matching flags.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if _, err := logging.ParseLevel(opts.logLevel); err != nil {
				return err
			}
			logging.Setup(logging.Config{
				Level:  logging.LogLevel(opts.logLevel),
				Pretty: opts.pretty,
				Output: cmd.ErrOrStderr(),
			})
			opts.logger = logging.NewLogger(logging.ComponentCLI)
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.baseURL, "base-url", getEnv("TOSDR_BASE_URL", client.DefaultBaseURL), "ToS;DR API base URL")
	flags.StringVar(&opts.userAgent, "user-agent", getEnv("TOSDR_USER_AGENT", "tosdr-export/"+buildVersion), "User-Agent header sent to the API")
	flags.StringVar(&opts.dataDir, "data-dir", getEnv("TOSDR_DATA_DIR", filepath.Join("data", "tosdr")), "Directory for default output files")
	flags.StringVar(&opts.redisURL, "redis-url", getEnv("REDIS_URL", ""), "Redis URL for the service lookup cache (disabled when empty)")
	flags.StringVar(&opts.logLevel, "log-level", getEnv("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")
	flags.BoolVar(&opts.pretty, "pretty", false, "Human-readable console logs instead of JSON")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", getEnv("METRICS_ADDR", ""), "Serve Prometheus metrics on this address while exporting (e.g. :9090)")
	flags.DurationVar(&opts.requestInterval, "request-interval", client.DefaultConfig().RequestInterval, "Minimum spacing between API requests")
	flags.IntVar(&opts.pageConcurrency, "page-concurrency", export.DefaultConfig().PageConcurrency, "Maximum page fetches in flight (0 = one per page)")
	flags.IntVar(&opts.lookupConcurrency, "lookup-concurrency", export.DefaultConfig().LookupConcurrency, "Maximum service lookups in flight")

	rootCmd.AddCommand(
		newServicesMetadataCmd(opts),
		newServicesCmd(opts),
		newCasesCmd(opts),
		newVersionCmd(),
	)

	rootCmd.Version = fmt.Sprintf("%s (%s) %s", buildVersion, buildCommit, buildDate)
	rootCmd.SetVersionTemplate("{{.Version}}\n")

	return rootCmd
}

// newExporter builds the client and exporter for one command run. The
// returned cleanup closes the client and the Redis connection.
func newExporter(ctx context.Context, opts *options) (*export.Exporter, func(), error) {
	cfg := client.DefaultConfig()
	cfg.BaseURL = opts.baseURL
	cfg.UserAgent = opts.userAgent
	cfg.RequestInterval = opts.requestInterval

	var redisClient *redis.Client
	if opts.redisURL != "" {
		redisOpts, err := redis.ParseURL(opts.redisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse redis url: %w", err)
		}
		redisClient = redis.NewClient(redisOpts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			redisClient.Close()
			return nil, nil, fmt.Errorf("connect to redis: %w", err)
		}
		opts.logger.Info().Str("addr", redisOpts.Addr).Msg("Connected to Redis")
		cfg.Redis = redisClient
	}

	c, err := client.New(cfg)
	if err != nil {
		if redisClient != nil {
			redisClient.Close()
		}
		return nil, nil, fmt.Errorf("create client: %w", err)
	}

	exporter := export.New(c, export.Config{
		PageConcurrency:   opts.pageConcurrency,
		LookupConcurrency: opts.lookupConcurrency,
	})

	cleanup := func() {
		c.Close()
		if redisClient != nil {
			redisClient.Close()
		}
	}

	return exporter, cleanup, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// SetBuildInfo records the version information printed by "version".
func SetBuildInfo(version, commit, date string) {
	if version != "" {
		buildVersion = version
	}
	if commit != "" {
		buildCommit = commit
	}
	if date != "" {
		buildDate = date
	}
}

// BuildInfo returns the recorded version information.
func BuildInfo() (version, commit, date string) {
	return buildVersion, buildCommit, buildDate
}

// Execute runs the command line until it completes or the process is
// interrupted.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
