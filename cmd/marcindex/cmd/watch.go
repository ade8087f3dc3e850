package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	ierrors "github.com/Aman-CERP/marcindex/internal/errors"
	"github.com/Aman-CERP/marcindex/internal/index"
	"github.com/Aman-CERP/marcindex/internal/output"
	"github.com/Aman-CERP/marcindex/internal/ui"
	"github.com/Aman-CERP/marcindex/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	var initial bool

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Index MARC files as they arrive in a directory",
		Long: `Watch a drop directory and index every MARC file that is created or
changed in it. Events are debounced (watch.debounce) so a file still being
copied is indexed once, after it settles.

Removed files are logged only: their records stay indexed until a
deletion record for them arrives. The data directory stays locked while
the watcher runs.`,
		Example: `  # Index the backlog, then keep watching
  marcindex watch --initial /srv/marc/incoming`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, cmd, args[0], initial)
		},
	}

	cmd.Flags().BoolVar(&initial, "initial", false, "Index files already in the directory before watching")

	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, dir string, initial bool) error {
	p, err := loadProject(cmd)
	if err != nil {
		return err
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to resolve watch directory: %w", err)
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return ierrors.New(ierrors.ErrCodeFileNotFound, "watch directory not found", err).WithDetail("path", root)
	}

	w, err := watcher.NewHybridWatcher(watcher.Options{
		DebounceWindow: p.cfg.WatchDebounce(),
		Patterns:       p.cfg.Watch.Patterns,
	})
	if err != nil {
		return ierrors.ConfigError("invalid watch settings", err)
	}
	defer func() { _ = w.Stop() }()

	pl, err := p.openPipeline()
	if err != nil {
		return err
	}
	defer func() {
		if err := pl.Close(); err != nil {
			slog.Warn("pipeline_close_failed", slog.String("error", err.Error()))
		}
	}()

	runner, err := index.NewRunner(index.RunnerDependencies{
		Builder:  pl.builder,
		Sink:     pl.sink,
		Renderer: ui.NewPlainRenderer(ui.NewConfig(cmd.ErrOrStderr())),
		Metrics:  pl.metrics,
		Logger:   slog.Default(),
	})
	if err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())

	if initial {
		inputs, err := expandInputs([]string{root}, p.cfg.Watch.Patterns)
		if err != nil {
			return err
		}
		if len(inputs) > 0 {
			if _, err := runner.Run(ctx, p.runnerConfig(inputs)); err != nil {
				return err
			}
			pl.writeMetrics()
		}
	}

	coord := index.NewCoordinator(index.CoordinatorConfig{
		Runner:   runner,
		RootPath: root,
		Run:      p.runnerConfig(nil),
		OnResult: func(_ *index.RunnerResult, err error) {
			if err == nil {
				pl.writeMetrics()
			}
		},
		Logger: slog.Default(),
	})

	errCh := make(chan error, 1)
	go func() { errCh <- w.Start(ctx, root) }()

	out.Statusf("👀", "Watching %s (%s)", root, w.WatcherType())

	for {
		select {
		case <-ctx.Done():
			out.Status("", "Stopped.")
			return nil

		case err := <-errCh:
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("watcher stopped: %w", err)
			}
			return nil

		case batch, ok := <-w.Events():
			if !ok {
				return nil
			}
			if _, err := coord.HandleEvents(ctx, batch); err != nil {
				if ierrors.IsFatal(err) || errors.Is(err, context.Canceled) {
					return err
				}
				out.Warningf("Run failed: %v", err)
			}

		case err, ok := <-w.Errors():
			if !ok {
				return nil
			}
			slog.Warn("watch_error", slog.String("error", err.Error()))
		}
	}
}
