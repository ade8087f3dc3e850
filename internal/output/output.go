// Package output formats human-readable command output: status lines and
// aligned field listings for extracted documents and search hits.
package output

import (
	"fmt"
	"io"
	"strings"
)

// Writer provides formatted output for CLI.
type Writer struct {
	out io.Writer
}

// New creates a new output Writer.
func New(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Status prints a status message with an icon.
// Errors from writing are intentionally ignored for console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success message with checkmark.
func (w *Writer) Success(msg string) {
	w.Status("✅", msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status("⚠️ ", msg)
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status("❌", msg)
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// Heading prints a record or hit header, e.g. "== ocm0001 ==".
func (w *Writer) Heading(title string) {
	_, _ = fmt.Fprintf(w.out, "== %s ==\n", title)
}

// Fields prints one line per name, with names padded to a common width.
// Repeated values are joined with " | ". Names with no values are skipped.
func (w *Writer) Fields(names []string, values func(name string) []string) {
	width := 0
	for _, name := range names {
		if len(values(name)) > 0 && len(name) > width {
			width = len(name)
		}
	}
	for _, name := range names {
		vs := values(name)
		if len(vs) == 0 {
			continue
		}
		_, _ = fmt.Fprintf(w.out, "  %-*s  %s\n", width, name, strings.Join(vs, " | "))
	}
}
