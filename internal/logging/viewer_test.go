package logging

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLog = `{"time":"2026-03-01T10:00:00.000Z","level":"DEBUG","msg":"pipeline_opened","output":"/data/index.bleve"}
{"time":"2026-03-01T10:00:01.000Z","level":"INFO","msg":"watch_batch","files":2}
not json at all
{"time":"2026-03-01T10:00:02.500Z","level":"WARN","msg":"malformed_record","path":"a.mrc"}
{"time":"2026-03-01T10:00:03.000Z","level":"ERROR","msg":"tracker_unreachable","core":"biblio"}
`

func writeLog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "indexer.log")
	require.NoError(t, os.WriteFile(path, []byte(sampleLog), 0o644))
	return path
}

func TestParseLine(t *testing.T) {
	entry := ParseLine(`{"time":"2026-03-01T10:00:02.500Z","level":"WARN","msg":"malformed_record","path":"a.mrc"}`)

	require.True(t, entry.IsValid)
	assert.Equal(t, "WARN", entry.Level)
	assert.Equal(t, "malformed_record", entry.Msg)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 2, 500e6, time.UTC), entry.Time.UTC())
	assert.Equal(t, map[string]any{"path": "a.mrc"}, entry.Attrs)

	bad := ParseLine("plain text")
	assert.False(t, bad.IsValid)
	assert.Equal(t, "plain text", bad.Raw)
}

func TestViewer_Tail(t *testing.T) {
	path := writeLog(t)

	t.Run("last n lines", func(t *testing.T) {
		v := NewViewer(ViewerConfig{NoColor: true}, nil)
		entries, err := v.Tail(path, 2)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "malformed_record", entries[0].Msg)
		assert.Equal(t, "tracker_unreachable", entries[1].Msg)
	})

	t.Run("level filter keeps unparsed lines", func(t *testing.T) {
		v := NewViewer(ViewerConfig{Level: "warn", NoColor: true}, nil)
		entries, err := v.Tail(path, 50)
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.False(t, entries[0].IsValid)
		assert.Equal(t, "WARN", entries[1].Level)
		assert.Equal(t, "ERROR", entries[2].Level)
	})

	t.Run("pattern filter", func(t *testing.T) {
		v := NewViewer(ViewerConfig{Pattern: regexp.MustCompile(`biblio`)}, nil)
		entries, err := v.Tail(path, 50)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "tracker_unreachable", entries[0].Msg)
	})

	t.Run("missing file", func(t *testing.T) {
		v := NewViewer(ViewerConfig{}, nil)
		_, err := v.Tail(filepath.Join(t.TempDir(), "nope.log"), 10)
		assert.Error(t, err)
	})
}

func TestViewer_FormatEntry(t *testing.T) {
	v := NewViewer(ViewerConfig{NoColor: true}, nil)

	entry := ParseLine(`{"time":"2026-03-01T10:00:01.000Z","level":"INFO","msg":"run_done","records":5,"core":"biblio"}`)
	line := v.FormatEntry(entry)

	assert.True(t, strings.HasSuffix(line, "INFO  run_done core=biblio records=5"), line)
	assert.Equal(t, "garbage", v.FormatEntry(ParseLine("garbage")))

	colored := NewViewer(ViewerConfig{}, nil).FormatEntry(entry)
	assert.Contains(t, colored, "\033[32mINFO \033[0m")
}

func TestViewer_Print(t *testing.T) {
	var buf bytes.Buffer
	v := NewViewer(ViewerConfig{NoColor: true}, &buf)

	entries, err := v.Tail(writeLog(t), 1)
	require.NoError(t, err)
	v.Print(entries)

	assert.Contains(t, buf.String(), "ERROR tracker_unreachable core=biblio\n")
}

func TestViewer_Follow(t *testing.T) {
	path := writeLog(t)
	v := NewViewer(ViewerConfig{Level: "error"}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	entries := make(chan LogEntry, 10)
	done := make(chan error, 1)
	go func() { done <- v.Follow(ctx, path, entries) }()

	// Follow starts at the end of the file; give it a moment to seek.
	time.Sleep(150 * time.Millisecond)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"time":"2026-03-01T11:00:00Z","level":"INFO","msg":"ignored"}` + "\n" +
		`{"time":"2026-03-01T11:00:01Z","level":"ERROR","msg":"sink_failed"}` + "\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	select {
	case entry := <-entries:
		assert.Equal(t, "sink_failed", entry.Msg)
	case <-time.After(3 * time.Second):
		t.Fatal("no entry followed")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Follow did not stop")
	}
}
