package ui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// redrawInterval throttles terminal redraws.
const redrawInterval = 100 * time.Millisecond

// InlineRenderer redraws a single status line in place. Errors and the
// summary are printed on lines of their own.
type InlineRenderer struct {
	mu        sync.Mutex
	out       io.Writer
	start     time.Time
	lastDraw  time.Time
	lineWidth int
	now       func() time.Time
}

// NewInlineRenderer creates a renderer for interactive terminals.
func NewInlineRenderer(cfg Config) *InlineRenderer {
	return &InlineRenderer{out: cfg.Output, now: time.Now}
}

// Start implements Renderer.
func (r *InlineRenderer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.start = r.now()
	return nil
}

// UpdateProgress implements Renderer.
func (r *InlineRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if event.Stage == StageIndexing && now.Sub(r.lastDraw) < redrawInterval {
		return
	}
	r.lastDraw = now

	line := fmt.Sprintf("%s %s", event.Stage.String(), event.File)
	if event.Current > 0 {
		rate := 0.0
		if el := now.Sub(r.start).Seconds(); el > 0 {
			rate = float64(event.Current) / el
		}
		line = fmt.Sprintf("%s: %d records (%.0f/s) %s", event.Stage.String(), event.Current, rate, event.File)
	}
	if event.Message != "" {
		line += " " + event.Message
	}
	r.draw(line)
}

// AddError implements Renderer.
func (r *InlineRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clear()
	writeError(r.out, event)
}

// Complete implements Renderer.
func (r *InlineRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clear()
	writeSummary(r.out, stats)
}

// Stop implements Renderer.
func (r *InlineRenderer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clear()
	return nil
}

// draw overwrites the current line, padding over leftovers of a longer one.
// Must be called with the lock held.
func (r *InlineRenderer) draw(line string) {
	pad := ""
	if n := r.lineWidth - len(line); n > 0 {
		pad = strings.Repeat(" ", n)
	}
	_, _ = fmt.Fprintf(r.out, "\r%s%s", line, pad)
	r.lineWidth = len(line)
}

// clear erases the status line. Must be called with the lock held.
func (r *InlineRenderer) clear() {
	if r.lineWidth == 0 {
		return
	}
	_, _ = fmt.Fprintf(r.out, "\r%s\r", strings.Repeat(" ", r.lineWidth))
	r.lineWidth = 0
}
