package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/Sternrassler/tosdr-export/pkg/export"
	"github.com/spf13/cobra"
)

func newServicesMetadataCmd(opts *options) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "services-metadata",
		Short: "Download the paginated service listing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := defaultPath(output, opts.dataDir, servicesMetadataFile)
			return runExport(cmd, opts, "services-metadata", func(ctx context.Context, e *export.Exporter) (export.Report, error) {
				return e.ServicesMetadata(ctx, out)
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output-file", "o", "", "Output file (default <data-dir>/"+servicesMetadataFile+")")
	return cmd
}

func newServicesCmd(opts *options) *cobra.Command {
	var output, metadata string

	cmd := &cobra.Command{
		Use:   "services",
		Short: "Download every service listed in a services-metadata export",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := defaultPath(metadata, opts.dataDir, servicesMetadataFile)
			out := defaultPath(output, opts.dataDir, servicesFile)
			return runExport(cmd, opts, "services", func(ctx context.Context, e *export.Exporter) (export.Report, error) {
				return e.Services(ctx, in, out)
			})
		},
	}

	cmd.Flags().StringVar(&metadata, "metadata-file", "", "Input written by services-metadata (default <data-dir>/"+servicesMetadataFile+")")
	cmd.Flags().StringVarP(&output, "output-file", "o", "", "Output file (default <data-dir>/"+servicesFile+")")
	return cmd
}

func newCasesCmd(opts *options) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "cases",
		Short: "Download the paginated case listing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := defaultPath(output, opts.dataDir, casesFile)
			return runExport(cmd, opts, "cases", func(ctx context.Context, e *export.Exporter) (export.Report, error) {
				return e.Cases(ctx, out)
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output-file", "o", "", "Output file (default <data-dir>/"+casesFile+")")
	return cmd
}

// runExport wires the exporter and metrics server around one export. Partial
// exports succeed; the summary names what was dropped.
func runExport(cmd *cobra.Command, opts *options, name string, run func(context.Context, *export.Exporter) (export.Report, error)) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	shutdown, err := startMetricsServer(opts.metricsAddr, opts.logger)
	if err != nil {
		return fmt.Errorf("start metrics server: %w", err)
	}
	defer shutdown()

	exporter, cleanup, err := newExporter(ctx, opts)
	if err != nil {
		return err
	}
	defer cleanup()

	report, err := run(ctx, exporter)
	if err != nil {
		opts.logger.Error().Err(err).Str("export", name).Msg("Export failed")
		return err
	}

	writeSummary(cmd.OutOrStdout(), name, report)
	return nil
}

func writeSummary(w io.Writer, name string, r export.Report) {
	fmt.Fprintf(w, "%s: wrote %d records to %s", name, r.Written, r.Output)
	if len(r.FailedPages) > 0 {
		fmt.Fprintf(w, " (failed pages: %v)", r.FailedPages)
	}
	if len(r.FailedIDs) > 0 {
		fmt.Fprintf(w, " (failed services: %v)", r.FailedIDs)
	}
	fmt.Fprintln(w)
}

func defaultPath(flagValue, dataDir, name string) string {
	if flagValue != "" {
		return flagValue
	}
	return filepath.Join(dataDir, name)
}
