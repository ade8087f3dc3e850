package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// PollingWatcher finds changed MARC files by rescanning the directory on
// an interval. It is the fallback where fsnotify does not work, such as
// NFS or SMB mounts where catalog exports are often dropped.
type PollingWatcher struct {
	opts     Options
	rootPath string
	known    snapshot
	events   chan FileEvent
	errs     chan error
	done     chan struct{}

	mu      sync.Mutex
	stopped bool
}

// snapshot maps relative paths of matching files to their state.
type snapshot map[string]fileState

type fileState struct {
	modTime time.Time
	size    int64
}

// NewPollingWatcher creates a polling watcher for files matching opts.Patterns.
func NewPollingWatcher(opts Options) *PollingWatcher {
	return &PollingWatcher{
		opts:   opts.WithDefaults(),
		known:  make(snapshot),
		events: make(chan FileEvent, 100),
		errs:   make(chan error, 10),
		done:   make(chan struct{}),
	}
}

// Start takes a baseline scan and then polls until ctx is done or Stop is
// called. Files present at the baseline are not reported.
func (p *PollingWatcher) Start(ctx context.Context, path string) error {
	root, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve absolute path: %w", err)
	}

	base, err := scan(root, p.opts)
	if err != nil {
		return fmt.Errorf("perform initial scan: %w", err)
	}
	p.mu.Lock()
	p.rootPath = root
	p.known = base
	p.mu.Unlock()

	ticker := time.NewTicker(p.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = p.Stop()
			return ctx.Err()
		case <-p.done:
			return nil
		case <-ticker.C:
			p.poll()
		}
	}
}

func (p *PollingWatcher) poll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}

	cur, err := scan(p.rootPath, p.opts)
	if err != nil {
		select {
		case p.errs <- fmt.Errorf("walk directory for changes: %w", err):
		default:
		}
		return
	}

	for _, ev := range diff(p.known, cur, time.Now()) {
		select {
		case p.events <- ev:
		default:
			slog.Warn("watch_event_dropped",
				slog.String("path", ev.Path),
				slog.String("op", ev.Operation.String()))
		}
	}
	p.known = cur
}

// scan walks root and records every matching file outside dot-directories.
func scan(root string, opts Options) (snapshot, error) {
	out := make(snapshot)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." {
			return nil
		}
		if d.IsDir() {
			if hiddenDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !opts.Matches(rel) {
			return nil
		}
		if info, err := d.Info(); err == nil {
			out[rel] = fileState{modTime: info.ModTime(), size: info.Size()}
		}
		return nil
	})
	return out, err
}

// diff reports the changes between two scans, sorted by path.
func diff(prev, cur snapshot, at time.Time) []FileEvent {
	var out []FileEvent
	for rel, st := range cur {
		old, ok := prev[rel]
		switch {
		case !ok:
			out = append(out, FileEvent{Path: rel, Operation: OpCreate, Size: st.size, Timestamp: at})
		case old != st:
			out = append(out, FileEvent{Path: rel, Operation: OpModify, Size: st.size, Timestamp: at})
		}
	}
	for rel := range prev {
		if _, ok := cur[rel]; !ok {
			out = append(out, FileEvent{Path: rel, Operation: OpDelete, Timestamp: at})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Stop stops polling and closes the channels. Safe to call more than once.
func (p *PollingWatcher) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return nil
	}
	p.stopped = true
	close(p.done)
	close(p.events)
	close(p.errs)
	return nil
}

// Events returns the channel of raw file events.
func (p *PollingWatcher) Events() <-chan FileEvent {
	return p.events
}

// Errors returns the channel of scan errors.
func (p *PollingWatcher) Errors() <-chan error {
	return p.errs
}
