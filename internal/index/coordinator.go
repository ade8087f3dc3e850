package index

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/Aman-CERP/marcindex/internal/watcher"
)

// CoordinatorConfig contains configuration for the Coordinator.
type CoordinatorConfig struct {
	// Runner indexes the files of each batch (required).
	Runner *Runner

	// RootPath is the watched directory; event paths are relative to it.
	RootPath string

	// Run is the template for each run; Inputs is replaced per batch.
	Run RunnerConfig

	// OnResult is called after every run, successful or not.
	OnResult func(*RunnerResult, error)

	Logger *slog.Logger
}

// Coordinator turns debounced watcher batches into indexing runs. Runs are
// serialized: a batch that arrives while one is in flight waits for it.
type Coordinator struct {
	config CoordinatorConfig
	mu     sync.Mutex
}

// NewCoordinator creates a new index coordinator.
func NewCoordinator(config CoordinatorConfig) *Coordinator {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Coordinator{config: config}
}

// HandleEvents indexes every created or modified file in events. Removed
// files are only logged: their records stay indexed until a deletion
// record for them arrives.
func (c *Coordinator) HandleEvents(ctx context.Context, events []watcher.FileEvent) (*RunnerResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	inputs := c.inputs(events)
	if len(inputs) == 0 {
		return nil, nil
	}

	cfg := c.config.Run
	cfg.Inputs = inputs
	c.config.Logger.Info("watch_batch",
		slog.Int("files", len(inputs)),
		slog.String("first", inputs[0]))

	result, err := c.config.Runner.Run(ctx, cfg)
	if c.config.OnResult != nil {
		c.config.OnResult(result, err)
	}
	return result, err
}

// inputs selects the files of a batch that still exist, in batch order.
func (c *Coordinator) inputs(events []watcher.FileEvent) []string {
	var out []string
	seen := make(map[string]bool, len(events))
	for _, ev := range events {
		path := ev.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(c.config.RootPath, path)
		}

		if !ev.Operation.Indexable() {
			if ev.Operation == watcher.OpDelete {
				c.config.Logger.Info("watch_file_removed", slog.String("path", ev.Path))
			}
			continue
		}

		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue // gone again before the batch was handled
		}
		if !seen[path] {
			seen[path] = true
			out = append(out, path)
		}
	}
	return out
}
