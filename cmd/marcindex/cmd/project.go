package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/marcindex/internal/config"
	ierrors "github.com/Aman-CERP/marcindex/internal/errors"
	"github.com/Aman-CERP/marcindex/internal/fulltext"
	"github.com/Aman-CERP/marcindex/internal/index"
	"github.com/Aman-CERP/marcindex/internal/marc"
	"github.com/Aman-CERP/marcindex/internal/metrics"
	"github.com/Aman-CERP/marcindex/internal/store"
	"github.com/Aman-CERP/marcindex/internal/tracker"
	"github.com/Aman-CERP/marcindex/internal/watcher"
)

// project is a loaded project directory.
type project struct {
	root string
	cfg  *config.Config
}

func projectDir(cmd *cobra.Command) string {
	if f := cmd.Flag("dir"); f != nil && f.Value.String() != "" {
		return f.Value.String()
	}
	return "."
}

// loadProject reads the configuration for the --dir project and applies
// its logging section.
func loadProject(cmd *cobra.Command) (*project, error) {
	root, err := filepath.Abs(projectDir(cmd))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project directory: %w", err)
	}
	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	if err := configureLogging(cfg); err != nil {
		return nil, fmt.Errorf("failed to setup logging: %w", err)
	}
	return &project{root: root, cfg: cfg}, nil
}

func (p *project) dataDir() string {
	return p.cfg.DataDir(p.root)
}

func (p *project) metricsPath() string {
	path := p.cfg.Metrics.Textfile
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.root, path)
}

func (p *project) runnerConfig(inputs []string) index.RunnerConfig {
	return index.RunnerConfig{
		Inputs:    inputs,
		Format:    marc.Format(strings.ToLower(p.cfg.Index.Format)),
		Workers:   p.cfg.Index.Workers,
		BatchSize: p.cfg.Index.BatchSize,
	}
}

// openTracker returns nil when tracking is disabled.
func (p *project) openTracker() (*tracker.Tracker, error) {
	dsn := p.cfg.TrackerDSN(p.root)
	if dsn == "" {
		return nil, nil
	}
	return tracker.New(dsn, tracker.WithLogger(slog.Default()))
}

// pipeline holds everything an indexing run writes to. The data directory
// lock is held until Close.
type pipeline struct {
	lock     *index.DirLock
	sink     store.Sink
	tracker  *tracker.Tracker
	metrics  *metrics.Recorder
	builder  *index.Builder
	textfile string
}

func (p *project) openPipeline() (*pipeline, error) {
	lock := index.NewDirLock(p.dataDir())
	if err := lock.TryLock(); err != nil {
		return nil, err
	}
	pl := &pipeline{lock: lock, metrics: metrics.New(), textfile: p.metricsPath()}

	path := p.cfg.OutputPath(p.root)
	sink, err := store.Open(p.cfg.Output.Backend, path)
	if err != nil {
		_ = pl.Close()
		return nil, ierrors.IOError("cannot open output", err).WithDetail("path", path)
	}
	pl.sink = sink

	tr, err := p.openTracker()
	if err != nil {
		_ = pl.Close()
		return nil, err
	}
	pl.tracker = tr

	harvester := fulltext.New(p.cfg.HarvesterConfig(), fulltext.WithLogger(slog.Default()))
	slog.Debug("pipeline_opened",
		slog.String("output", path),
		slog.Bool("tracker", tr != nil),
		slog.String("fulltext", string(harvester.Backend())))

	pl.builder = index.NewBuilder(index.BuilderConfig{
		Core:            p.cfg.Index.Core,
		IDSpec:          p.cfg.Index.IDSpec,
		Fields:          p.cfg.Fields,
		CallNumberTypes: callNumberTypes(p.cfg),
		Tracker:         tr,
		Harvester:       harvester,
		Metrics:         pl.metrics,
		Logger:          slog.Default(),
	})
	return pl, nil
}

// callNumberTypes converts the index.callnumber_type section. Validate has
// checked the subfield length.
func callNumberTypes(cfg *config.Config) index.CallNumberTypes {
	ct := cfg.Index.CallNumberType
	if ct == nil || ct.Subfield == "" {
		return index.CallNumberTypes{}
	}
	return index.CallNumberTypes{Spec: ct.Spec, Subfield: ct.Subfield[0], LC: ct.LC, Dewey: ct.Dewey}
}

// writeMetrics dumps the run metrics when a textfile is configured.
func (pl *pipeline) writeMetrics() {
	if pl.textfile == "" {
		return
	}
	if err := pl.metrics.WriteTextfile(pl.textfile); err != nil {
		slog.Warn("metrics_write_failed", slog.String("path", pl.textfile), slog.String("error", err.Error()))
	}
}

// Close releases the sink, tracker and lock, in that order.
func (pl *pipeline) Close() error {
	var errs []error
	if pl.sink != nil {
		errs = append(errs, pl.sink.Close())
	}
	if pl.tracker != nil {
		errs = append(errs, pl.tracker.Close())
	}
	errs = append(errs, pl.lock.Unlock())
	return errors.Join(errs...)
}

// expandInputs replaces directory arguments with the MARC files below
// them, skipping dot-directories. Other arguments are kept as given so the
// runner reports the ones that cannot be opened.
func expandInputs(args, patterns []string) ([]string, error) {
	opts := watcher.Options{Patterns: patterns}.WithDefaults()
	var out []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil || !info.IsDir() {
			out = append(out, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != arg && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if opts.Matches(path) {
				out = append(out, path)
			}
			return nil
		})
		if err != nil {
			return nil, ierrors.IOError("cannot list input directory", err).WithDetail("path", arg)
		}
	}
	return out, nil
}
