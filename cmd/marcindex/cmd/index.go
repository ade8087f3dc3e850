package cmd

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	ierrors "github.com/Aman-CERP/marcindex/internal/errors"
	"github.com/Aman-CERP/marcindex/internal/index"
	"github.com/Aman-CERP/marcindex/internal/ui"
)

type indexOptions struct {
	plain      bool
	format     string
	workers    int
	batchSize  int
	jsonOutput bool
}

func newIndexCmd() *cobra.Command {
	var opts indexOptions

	cmd := &cobra.Command{
		Use:   "index <file|dir>...",
		Short: "Index MARC files",
		Long: `Read MARC files, build one index document per record and write the
documents to the configured output (a local bleve index by default).

Directories are searched recursively for files matching watch.patterns.
Records whose leader marks them deleted (leader/05 = d) are removed from
the output and flagged in the change tracker.

Malformed records are counted and skipped; the run fails only when the
output or the tracker database cannot be written.`,
		Example: `  # Index a nightly export
  marcindex index exports/2026-03-01.mrc

  # Index every MARC file under a directory, forcing MARCXML
  marcindex index --format xml incoming/

  # Machine-readable counts
  marcindex index --json records.mrc`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runIndex(ctx, cmd, args, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.plain, "plain", false, "Line-by-line progress even on a terminal")
	cmd.Flags().StringVar(&opts.format, "format", "", "Input format: binary or xml (default: by file extension)")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "Records built concurrently (default: index.workers)")
	cmd.Flags().IntVar(&opts.batchSize, "batch-size", 0, "Documents per output write (default: index.batch_size)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Print the run counts as JSON")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, args []string, opts indexOptions) error {
	p, err := loadProject(cmd)
	if err != nil {
		return err
	}
	if opts.format != "" {
		p.cfg.Index.Format = opts.format
	}
	if opts.workers > 0 {
		p.cfg.Index.Workers = opts.workers
	}
	if opts.batchSize > 0 {
		p.cfg.Index.BatchSize = opts.batchSize
	}
	if err := p.cfg.Validate(); err != nil {
		return err
	}

	inputs, err := expandInputs(args, p.cfg.Watch.Patterns)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return ierrors.ValidationError("no MARC files found", nil).
			WithDetail("inputs", strings.Join(args, " ")).
			WithSuggestion("Check watch.patterns, or name the files directly")
	}

	pl, err := p.openPipeline()
	if err != nil {
		return err
	}
	defer func() {
		if err := pl.Close(); err != nil {
			slog.Warn("pipeline_close_failed", slog.String("error", err.Error()))
		}
	}()

	renderer := ui.NewRenderer(ui.NewConfig(cmd.ErrOrStderr(), ui.WithForcePlain(opts.plain)))
	if err := renderer.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = renderer.Stop() }()

	runner, err := index.NewRunner(index.RunnerDependencies{
		Builder:  pl.builder,
		Sink:     pl.sink,
		Renderer: renderer,
		Metrics:  pl.metrics,
		Logger:   slog.Default(),
	})
	if err != nil {
		return err
	}

	result, err := runner.Run(ctx, p.runnerConfig(inputs))
	if err != nil {
		return err
	}
	pl.writeMetrics()

	if opts.jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	return nil
}
