package logging

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPaths(t *testing.T) {
	assert.True(t, strings.HasSuffix(DefaultLogDir(), filepath.Join(".marcindex", "logs")))
	assert.Equal(t, "indexer.log", filepath.Base(DefaultLogPath()))
}

func TestConfigs(t *testing.T) {
	def := DefaultConfig()
	assert.Equal(t, "warn", def.Level)
	assert.Empty(t, def.FilePath)
	assert.True(t, def.WriteToStderr)

	dbg := DebugConfig()
	assert.Equal(t, "debug", dbg.Level)
	assert.Equal(t, DefaultLogPath(), dbg.FilePath)
}

func TestLevelFromString(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, LevelFromString(in), in)
	}
}

func TestSetup_WritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "indexer.log")

	logger, cleanup, err := Setup(Config{Level: "debug", FilePath: path})
	require.NoError(t, err)

	logger.Debug("coordinate_rejected", slog.String("west", "W999"))
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"coordinate_rejected"`)
	assert.Contains(t, string(data), `"west":"W999"`)
}

func TestSetup_LevelFilters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "indexer.log")

	logger, cleanup, err := Setup(Config{Level: "warn", FilePath: path})
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown")
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "shown")
}

func TestFanout(t *testing.T) {
	var debugBuf, warnBuf bytes.Buffer
	h := fanout{
		slog.NewJSONHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewJSONHandler(&warnBuf, &slog.HandlerOptions{Level: slog.LevelWarn}),
	}
	logger := slog.New(h).With(slog.String("core", "biblio"))

	assert.True(t, h.Enabled(context.Background(), slog.LevelDebug))
	logger.Debug("debug only")
	logger.Warn("both")

	assert.Contains(t, debugBuf.String(), "debug only")
	assert.Contains(t, debugBuf.String(), `"core":"biblio"`)
	assert.NotContains(t, warnBuf.String(), "debug only")
	assert.Contains(t, warnBuf.String(), "both")
}

func TestFindLogFile(t *testing.T) {
	_, err := FindLogFile("/nonexistent/indexer.log")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "x.log")
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0o644))
	found, err := FindLogFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, found)
}

func newSmallWriter(t *testing.T, maxFiles int) (*RotatingWriter, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rotate.log")
	w, err := NewRotatingWriter(path, 1, maxFiles)
	require.NoError(t, err)
	w.maxSize = 1024
	t.Cleanup(func() { _ = w.Close() })
	return w, path
}

func TestRotatingWriter_Rotates(t *testing.T) {
	w, path := newSmallWriter(t, 3)
	chunk := bytes.Repeat([]byte("x"), 800)

	_, err := w.Write(chunk)
	require.NoError(t, err)
	_, err = w.Write(chunk)
	require.NoError(t, err)

	assert.FileExists(t, path)
	assert.FileExists(t, path+".1")
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(800), info.Size())
}

func TestRotatingWriter_MaxFilesLimit(t *testing.T) {
	w, path := newSmallWriter(t, 2)
	chunk := bytes.Repeat([]byte("y"), 1000)

	for i := 0; i < 6; i++ {
		_, _ = w.Write(chunk)
	}

	assert.FileExists(t, path+".1")
	assert.FileExists(t, path+".2")
	assert.NoFileExists(t, path+".3")
}

func TestRotatingWriter_SyncAndClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.log")
	w, err := NewRotatingWriter(path, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(defaultMaxSizeMB)*1024*1024, w.maxSize)
	assert.Equal(t, defaultMaxFiles, w.maxFiles)

	_, err = w.Write([]byte("test data to sync\n"))
	require.NoError(t, err)
	require.NoError(t, w.Sync())
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "test data to sync")
}

func TestRotatingWriter_ConcurrentWrites(t *testing.T) {
	w, path := newSmallWriter(t, 3)
	w.maxSize = 10 * 1024 * 1024

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, _ = fmt.Fprintf(w, `{"id":%d,"iter":%d}`+"\n", id, j)
			}
		}(i)
	}
	wg.Wait()
	require.NoError(t, w.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1000, strings.Count(string(data), "\n"))
}
