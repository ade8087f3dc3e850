package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// HybridWatcher watches a drop directory for MARC files. It uses fsnotify
// when the platform allows and falls back to a PollingWatcher. Raw events
// pass through a Settler and come out as batches of settled files.
type HybridWatcher struct {
	opts     Options
	notify   *fsnotify.Watcher
	poller   *PollingWatcher
	settler  *Settler
	batches  chan []FileEvent
	errs     chan error
	done     chan struct{}
	rootPath string

	mu      sync.RWMutex
	stopped bool
	dropped atomic.Uint64
}

// NewHybridWatcher creates a watcher with the given options.
func NewHybridWatcher(opts Options) (*HybridWatcher, error) {
	opts = opts.WithDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	h := &HybridWatcher{
		opts:    opts,
		batches: make(chan []FileEvent, opts.EventBufferSize),
		errs:    make(chan error, 10),
		done:    make(chan struct{}),
	}
	h.settler = NewSettler(opts.DebounceWindow, h.statRel)

	if w, err := fsnotify.NewWatcher(); err == nil {
		h.notify = w
	} else {
		slog.Warn("fsnotify_unavailable", slog.String("error", err.Error()))
		h.poller = NewPollingWatcher(opts)
	}
	return h, nil
}

// statRel sizes a file relative to the watched directory.
func (h *HybridWatcher) statRel(rel string) (int64, bool) {
	info, err := os.Stat(filepath.Join(h.RootPath(), rel))
	if err != nil || info.IsDir() {
		return 0, false
	}
	return info.Size(), true
}

// Start watches path until ctx is done or Stop is called.
func (h *HybridWatcher) Start(ctx context.Context, path string) error {
	root, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve absolute path: %w", err)
	}
	h.mu.Lock()
	h.rootPath = root
	h.mu.Unlock()

	go h.forward(ctx)

	if h.notify == nil {
		go h.drainPoller(ctx)
		return h.poller.Start(ctx, root)
	}

	if err := h.watchTree(root); err != nil {
		return fmt.Errorf("add directories to watcher: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			_ = h.Stop()
			return ctx.Err()
		case <-h.done:
			return nil
		case ev, ok := <-h.notify.Events:
			if !ok {
				return nil
			}
			h.onNotify(ev)
		case err, ok := <-h.notify.Errors:
			if !ok {
				return nil
			}
			h.emitError(err)
		}
	}
}

func (h *HybridWatcher) drainPoller(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case ev, ok := <-h.poller.Events():
			if !ok {
				return
			}
			h.settler.Add(ev)
		case err, ok := <-h.poller.Errors():
			if !ok {
				return
			}
			h.emitError(err)
		}
	}
}

// notifyOp maps an fsnotify event to an Operation. Chmod-only events are
// not reported.
func notifyOp(op fsnotify.Op) (Operation, bool) {
	switch {
	case op.Has(fsnotify.Create):
		return OpCreate, true
	case op.Has(fsnotify.Write):
		return OpModify, true
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return OpDelete, true
	}
	return 0, false
}

// onNotify handles one fsnotify event. New subdirectories join the watch.
func (h *HybridWatcher) onNotify(ev fsnotify.Event) {
	rel, err := filepath.Rel(h.rootPath, ev.Name)
	if err != nil {
		rel = ev.Name
	}

	if ev.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if !hiddenDir(rel) {
				if err := h.watchTree(ev.Name); err != nil {
					h.emitError(err)
				}
			}
			return
		}
	}

	if hiddenDir(filepath.Dir(rel)) || !h.opts.Matches(rel) {
		return
	}
	op, ok := notifyOp(ev.Op)
	if !ok {
		return
	}
	h.settler.Add(FileEvent{Path: rel, Operation: op, Timestamp: time.Now()})
}

func (h *HybridWatcher) forward(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case batch, ok := <-h.settler.Output():
			if !ok {
				return
			}
			h.emitBatch(batch)
		}
	}
}

// watchTree adds dir and every directory below it that is not hidden.
func (h *HybridWatcher) watchTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if rel, _ := filepath.Rel(h.rootPath, path); rel != "." && hiddenDir(rel) {
			return filepath.SkipDir
		}
		return h.notify.Add(path)
	})
}

func (h *HybridWatcher) emitBatch(batch []FileEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.stopped || len(batch) == 0 {
		return
	}

	select {
	case h.batches <- batch:
	default:
		n := h.dropped.Add(1)
		slog.Warn("watch_batch_dropped",
			slog.Int("batch_size", len(batch)),
			slog.Uint64("total_dropped_batches", n))
	}
}

func (h *HybridWatcher) emitError(err error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.stopped {
		return
	}
	select {
	case h.errs <- err:
	default:
	}
}

// DroppedBatches counts batches dropped because the consumer fell behind.
func (h *HybridWatcher) DroppedBatches() uint64 {
	return h.dropped.Load()
}

// Stop releases the watcher and closes its channels. Safe to call more
// than once.
func (h *HybridWatcher) Stop() error {
	// The settler calls back into statRel, which takes h.mu.
	h.settler.Stop()

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return nil
	}
	h.stopped = true

	close(h.done)
	if h.notify != nil {
		_ = h.notify.Close()
	}
	if h.poller != nil {
		_ = h.poller.Stop()
	}
	close(h.batches)
	close(h.errs)
	return nil
}

// Events returns the channel of settled batches.
func (h *HybridWatcher) Events() <-chan []FileEvent {
	return h.batches
}

// Errors returns the channel of non-fatal watcher errors.
func (h *HybridWatcher) Errors() <-chan error {
	return h.errs
}

// WatcherType returns "fsnotify" or "polling".
func (h *HybridWatcher) WatcherType() string {
	if h.notify != nil {
		return "fsnotify"
	}
	return "polling"
}

// RootPath returns the absolute path being watched.
func (h *HybridWatcher) RootPath() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rootPath
}
