package ui

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// PlainRenderer outputs plain text progress (for CI/pipes). Indexing
// progress is printed once every cfg.Every records.
type PlainRenderer struct {
	mu     sync.Mutex
	out    io.Writer
	every  int
	last   int
	errors []ErrorEvent
}

// NewPlainRenderer creates a plain text renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	every := cfg.Every
	if every <= 0 {
		every = 1
	}
	return &PlainRenderer{
		out:   cfg.Output,
		every: every,
	}
}

// Start implements Renderer.
func (r *PlainRenderer) Start(ctx context.Context) error {
	return nil
}

// UpdateProgress implements Renderer.
func (r *PlainRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if event.Stage == StageIndexing && event.Message == "" {
		if event.Current-r.last < r.every {
			return
		}
		r.last = event.Current
	}

	msg := event.Message
	if msg == "" {
		msg = event.File
	}

	switch {
	case event.Total > 0:
		_, _ = fmt.Fprintf(r.out, "[%s] %d/%d - %s\n", event.Stage.Icon(), event.Current, event.Total, msg)
	case event.Current > 0:
		_, _ = fmt.Fprintf(r.out, "[%s] %d records - %s\n", event.Stage.Icon(), event.Current, msg)
	case msg != "":
		_, _ = fmt.Fprintf(r.out, "[%s] %s\n", event.Stage.Icon(), msg)
	}
}

// AddError implements Renderer.
func (r *PlainRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.errors = append(r.errors, event)
	writeError(r.out, event)
}

// Complete implements Renderer.
func (r *PlainRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	writeSummary(r.out, stats)
}

// Stop implements Renderer.
func (r *PlainRenderer) Stop() error {
	return nil
}

// Errors returns the events reported so far.
func (r *PlainRenderer) Errors() []ErrorEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ErrorEvent, len(r.errors))
	copy(out, r.errors)
	return out
}

func writeError(w io.Writer, event ErrorEvent) {
	prefix := "ERROR"
	if event.IsWarn {
		prefix = "WARN"
	}
	where := event.File
	if event.Record != "" {
		if where != "" {
			where += " "
		}
		where += "record " + event.Record
	}
	if where != "" {
		_, _ = fmt.Fprintf(w, "%s: %s: %v\n", prefix, where, event.Err)
	} else {
		_, _ = fmt.Fprintf(w, "%s: %v\n", prefix, event.Err)
	}
}

func writeSummary(w io.Writer, stats CompletionStats) {
	_, _ = fmt.Fprintf(w, "Complete: %d records, %d documents from %d files in %s",
		stats.Records, stats.Documents, stats.Files, stats.Duration.Round(100*time.Millisecond))

	if stats.Malformed > 0 || stats.Skipped > 0 || stats.Warnings > 0 {
		_, _ = fmt.Fprintf(w, " (%d malformed, %d skipped, %d warnings)", stats.Malformed, stats.Skipped, stats.Warnings)
	}
	_, _ = fmt.Fprintln(w)

	if stats.Deleted > 0 {
		_, _ = fmt.Fprintf(w, "Deleted: %d documents\n", stats.Deleted)
	}
	if stats.New+stats.Changed+stats.Unchanged > 0 {
		_, _ = fmt.Fprintf(w, "Tracker: %d new, %d changed, %d unchanged\n", stats.New, stats.Changed, stats.Unchanged)
	}
}
