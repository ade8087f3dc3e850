package watcher

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Operation is what happened to a MARC file. A file renamed out of the
// directory is reported as deleted.
type Operation int

const (
	OpCreate Operation = iota + 1
	OpModify
	OpDelete
)

var opNames = map[Operation]string{
	OpCreate: "CREATE",
	OpModify: "MODIFY",
	OpDelete: "DELETE",
}

func (op Operation) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return "UNKNOWN"
}

// Indexable reports whether the file should be (re)read.
func (op Operation) Indexable() bool {
	return op == OpCreate || op == OpModify
}

// FileEvent is a settled change to a MARC file.
type FileEvent struct {
	// Path is relative to the watched directory.
	Path      string
	Operation Operation
	// Size in bytes when the file settled; zero for deletions.
	Size      int64
	Timestamp time.Time
}

// Options configures the watcher behavior.
type Options struct {
	// DebounceWindow is the quiet time a file needs, with an unchanged
	// size, before it is released for indexing.
	// Default: 500ms
	DebounceWindow time.Duration

	// PollInterval is the interval for polling mode (fallback).
	// Default: 5s
	PollInterval time.Duration

	// EventBufferSize is the number of batches buffered for the consumer.
	// Default: 100
	EventBufferSize int

	// Patterns are base-name globs of files to report.
	// Default: *.mrc, *.marc, *.xml
	Patterns []string
}

// DefaultPatterns match the MARC serializations the readers understand.
var DefaultPatterns = []string{"*.mrc", "*.marc", "*.xml"}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		DebounceWindow:  500 * time.Millisecond,
		PollInterval:    5 * time.Second,
		EventBufferSize: 100,
		Patterns:        DefaultPatterns,
	}
}

// Validate reports malformed glob patterns.
func (o Options) Validate() error {
	for _, p := range o.Patterns {
		if _, err := filepath.Match(p, "x"); err != nil {
			return fmt.Errorf("invalid watch pattern %q: %w", p, err)
		}
	}
	return nil
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.DebounceWindow == 0 {
		o.DebounceWindow = defaults.DebounceWindow
	}
	if o.PollInterval == 0 {
		o.PollInterval = defaults.PollInterval
	}
	if o.EventBufferSize == 0 {
		o.EventBufferSize = defaults.EventBufferSize
	}
	if len(o.Patterns) == 0 {
		o.Patterns = defaults.Patterns
	}
	return o
}

// Matches reports whether the base name of path matches a pattern.
// Matching is case-insensitive so "RECORDS.MRC" is picked up too.
func (o Options) Matches(path string) bool {
	name := strings.ToLower(filepath.Base(path))
	for _, p := range o.Patterns {
		if ok, _ := filepath.Match(strings.ToLower(p), name); ok {
			return true
		}
	}
	return false
}

// hiddenDir reports whether a relative directory path is or lies under a
// dot-directory, such as the data directory or .git.
func hiddenDir(rel string) bool {
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if len(part) > 1 && part[0] == '.' && part != ".." {
			return true
		}
	}
	return false
}
