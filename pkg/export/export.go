// Package export runs complete ToS;DR exports: it drives the paginated
// fetches and single-service lookups of pkg/client and persists the records
// with pkg/ndjson.
//
// Exports are best-effort. A page or lookup that fails terminally is logged
// and listed in the Report; the remaining records are still written. Only a
// failure to fetch page 1, to read the input file, or to write the output
// fails the export as a whole. A cancelled context also fails it, leaving any
// previous output file untouched.
package export

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Sternrassler/tosdr-export/pkg/client"
	"github.com/Sternrassler/tosdr-export/pkg/logging"
	"github.com/Sternrassler/tosdr-export/pkg/ndjson"
	"github.com/Sternrassler/tosdr-export/pkg/pagination"
	"github.com/Sternrassler/tosdr-export/pkg/tosdr"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// lookupProgressEvery controls how often lookup progress is logged.
const lookupProgressEvery = 100

// Config holds exporter configuration.
type Config struct {
	// PageConcurrency caps in-flight page tasks. Zero starts one task per
	// page.
	PageConcurrency int

	// LookupConcurrency caps in-flight single-service lookups.
	LookupConcurrency int
}

// DefaultConfig returns the default exporter configuration.
func DefaultConfig() Config {
	return Config{
		PageConcurrency:   0,
		LookupConcurrency: 8,
	}
}

// Report summarizes one export.
type Report struct {
	// Output is the file the records were written to.
	Output string
	// Written is the number of records in Output.
	Written int
	// TotalPages is the page count of a paginated export.
	TotalPages int
	// FailedPages lists pages that contributed no records.
	FailedPages []int
	// FailedIDs lists service ids whose lookup failed.
	FailedIDs []int
	Duration  time.Duration
}

// Complete reports whether nothing was dropped.
func (r Report) Complete() bool {
	return len(r.FailedPages) == 0 && len(r.FailedIDs) == 0
}

// Exporter runs exports against one client. All exports of an Exporter share
// the client's rate limiter.
type Exporter struct {
	client *client.Client
	config Config
	logger zerolog.Logger
}

// New creates an exporter.
func New(c *client.Client, cfg Config) *Exporter {
	if cfg.PageConcurrency < 0 {
		cfg.PageConcurrency = 0
	}
	if cfg.LookupConcurrency <= 0 {
		cfg.LookupConcurrency = DefaultConfig().LookupConcurrency
	}

	return &Exporter{
		client: c,
		config: cfg,
		logger: logging.NewLogger(logging.ComponentExport),
	}
}

// WithLogger replaces the exporter logger.
func (e *Exporter) WithLogger(logger zerolog.Logger) *Exporter {
	e.logger = logger
	return e
}

// ServicesMetadata exports the paginated service listing to out.
func (e *Exporter) ServicesMetadata(ctx context.Context, out string) (Report, error) {
	return exportPages[tosdr.ServiceMetadata](ctx, e, "services", client.ServiceMetadataPages(e.client), out)
}

// Cases exports the paginated case listing to out.
func (e *Exporter) Cases(ctx context.Context, out string) (Report, error) {
	return exportPages[tosdr.Case](ctx, e, "cases", client.CasePages(e.client), out)
}

func exportPages[T any](ctx context.Context, e *Exporter, name string, fetcher pagination.PageFetcher[T], out string) (Report, error) {
	start := time.Now()

	bf := pagination.NewBatchFetcher[T](fetcher, pagination.Config{
		Name:           name,
		MaxConcurrency: e.config.PageConcurrency,
	}).WithLogger(e.logger.With().Str("endpoint", name).Logger())

	result, err := bf.FetchAll(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("export %s: %w", name, err)
	}
	// A cancelled export must not replace the previous output.
	if err := ctx.Err(); err != nil {
		return Report{}, fmt.Errorf("export %s: %w", name, err)
	}

	if err := ndjson.WriteFile(out, result.Records); err != nil {
		return Report{}, fmt.Errorf("export %s: write %s: %w", name, out, err)
	}

	report := Report{
		Output:      out,
		Written:     len(result.Records),
		TotalPages:  result.TotalPages,
		FailedPages: result.FailedIndices(),
		Duration:    time.Since(start),
	}
	e.logReport(name, report)

	return report, nil
}

// Services reads the service ids from a metadata file written by
// ServicesMetadata, looks up every service, and writes the full records to
// out in metadata order.
func (e *Exporter) Services(ctx context.Context, metadataFile, out string) (Report, error) {
	start := time.Now()

	ids, err := readServiceIDs(metadataFile)
	if err != nil {
		return Report{}, fmt.Errorf("export services: %w", err)
	}

	e.logger.Info().
		Int("services", len(ids)).
		Str("metadata_file", metadataFile).
		Msg("Downloading services")

	services := make([]tosdr.Service, len(ids))
	failed := make([]bool, len(ids))

	var done atomic.Int64
	g := new(errgroup.Group)
	g.SetLimit(e.config.LookupConcurrency)

	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			svc, err := e.client.GetService(ctx, id)
			if err != nil {
				failed[i] = true
				e.logger.Error().
					Err(err).
					Int("service_id", id).
					Msg("Failed to download service")
			} else {
				services[i] = svc
			}

			if n := done.Add(1); n%lookupProgressEvery == 0 {
				e.logger.Info().
					Int64("fetched", n).
					Int("total", len(ids)).
					Msg("Lookup progress")
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return Report{}, fmt.Errorf("export services: %w", err)
	}

	var (
		records   = make([]tosdr.Service, 0, len(ids))
		failedIDs []int
	)
	for i, id := range ids {
		if failed[i] {
			failedIDs = append(failedIDs, id)
			continue
		}
		records = append(records, services[i])
	}

	if err := ndjson.WriteFile(out, records); err != nil {
		return Report{}, fmt.Errorf("export services: write %s: %w", out, err)
	}

	report := Report{
		Output:    out,
		Written:   len(records),
		FailedIDs: failedIDs,
		Duration:  time.Since(start),
	}
	e.logReport("service lookups", report)

	return report, nil
}

// readServiceIDs returns the distinct service ids of a metadata file in file
// order. Any invalid record fails the read.
func readServiceIDs(path string) ([]int, error) {
	raws, err := ndjson.ReadFile(path)
	if err != nil {
		return nil, err
	}

	ids := make([]int, 0, len(raws))
	seen := make(map[int]struct{}, len(raws))
	for i, raw := range raws {
		meta, err := tosdr.DecodeServiceMetadata(raw)
		if err != nil {
			return nil, fmt.Errorf("%s record %d: %w", path, i+1, err)
		}
		if _, dup := seen[meta.ID]; dup {
			continue
		}
		seen[meta.ID] = struct{}{}
		ids = append(ids, meta.ID)
	}

	return ids, nil
}

func (e *Exporter) logReport(name string, r Report) {
	event := e.logger.Info()
	if !r.Complete() {
		event = e.logger.Warn().
			Ints("failed_pages", r.FailedPages).
			Ints("failed_ids", r.FailedIDs)
	}

	event.
		Str("export", name).
		Str("output", r.Output).
		Int("written", r.Written).
		Int("total_pages", r.TotalPages).
		Dur("duration", r.Duration).
		Msg("Export written")
}
