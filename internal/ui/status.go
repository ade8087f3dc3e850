package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// EntryInfo is the displayable state of one tracked record.
type EntryInfo struct {
	Core            string     `json:"core"`
	ID              string     `json:"id"`
	FirstIndexed    time.Time  `json:"first_indexed"`
	LastIndexed     time.Time  `json:"last_indexed"`
	LastTransaction time.Time  `json:"last_record_change"`
	Deleted         *time.Time `json:"deleted,omitempty"`
}

// StatusRenderer displays tracker entries.
type StatusRenderer struct {
	out io.Writer
	now func() time.Time
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer) *StatusRenderer {
	return &StatusRenderer{out: out, now: time.Now}
}

// Render displays one entry.
func (r *StatusRenderer) Render(info EntryInfo) error {
	_, _ = fmt.Fprintf(r.out, "Record %s (core %s)\n\n", info.ID, info.Core)
	_, _ = fmt.Fprintf(r.out, "  First indexed:  %s\n", r.formatTime(info.FirstIndexed))
	_, _ = fmt.Fprintf(r.out, "  Last indexed:   %s\n", r.formatTime(info.LastIndexed))
	_, _ = fmt.Fprintf(r.out, "  Record changed: %s\n", info.LastTransaction.UTC().Format(time.RFC3339))
	if info.Deleted != nil {
		_, _ = fmt.Fprintf(r.out, "  Deleted:        %s\n", r.formatTime(*info.Deleted))
	}
	return nil
}

// RenderJSON outputs the entry as JSON.
func (r *StatusRenderer) RenderJSON(info EntryInfo) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

// formatTime shows the UTC timestamp followed by a relative age.
func (r *StatusRenderer) formatTime(t time.Time) string {
	return fmt.Sprintf("%s (%s)", t.UTC().Format(time.RFC3339), since(r.now().Sub(t)))
}

func since(diff time.Duration) string {
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	default:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	}
}
