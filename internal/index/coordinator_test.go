package index

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/marcindex/internal/watcher"
)

func newTestCoordinator(t *testing.T, root string, sink *memSink, onResult func(*RunnerResult, error)) *Coordinator {
	t.Helper()
	return NewCoordinator(CoordinatorConfig{
		Runner:   newTestRunner(t, nil, sink, nil),
		RootPath: root,
		Run:      RunnerConfig{Workers: 1},
		OnResult: onResult,
	})
}

func TestCoordinator_HandleEvents_IndexesChangedFiles(t *testing.T) {
	// Given: two dropped files and a callback
	root := t.TempDir()
	writeFile(t, root, "a.mrc", encode(t, book("a1")))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	writeFile(t, filepath.Join(root, "sub"), "b.mrc", encode(t, book("b1"), book("b2")))

	sink := newMemSink()
	var calls int
	c := newTestCoordinator(t, root, sink, func(r *RunnerResult, err error) {
		calls++
		assert.NoError(t, err)
	})

	// When: a batch names them, one twice
	now := time.Now()
	result, err := c.HandleEvents(context.Background(), []watcher.FileEvent{
		{Path: "a.mrc", Operation: watcher.OpCreate, Timestamp: now},
		{Path: filepath.Join("sub", "b.mrc"), Operation: watcher.OpModify, Timestamp: now},
		{Path: "a.mrc", Operation: watcher.OpModify, Timestamp: now},
	})

	// Then: each file is indexed once
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 2, result.Files)
	assert.Equal(t, 3, result.Documents)
	assert.Equal(t, []string{"a1", "b1", "b2"}, sink.ids())
	assert.Equal(t, 1, calls)
}

func TestCoordinator_HandleEvents_IgnoresRemovedAndMissing(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "dir.mrc"), 0o755))

	sink := newMemSink()
	called := false
	c := newTestCoordinator(t, root, sink, func(*RunnerResult, error) { called = true })

	result, err := c.HandleEvents(context.Background(), []watcher.FileEvent{
		{Path: "gone.mrc", Operation: watcher.OpDelete},
		{Path: "odd.mrc"},
		{Path: "vanished.mrc", Operation: watcher.OpCreate},
		{Path: "dir.mrc", Operation: watcher.OpCreate},
	})

	require.NoError(t, err)
	assert.Nil(t, result)
	assert.False(t, called, "no run without inputs")
	assert.Empty(t, sink.ids())
}

func TestCoordinator_HandleEvents_AbsolutePaths(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "abs.mrc", encode(t, book("x1")))

	sink := newMemSink()
	c := newTestCoordinator(t, t.TempDir(), sink, nil)

	result, err := c.HandleEvents(context.Background(), []watcher.FileEvent{
		{Path: path, Operation: watcher.OpCreate},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Documents)
}

func TestCoordinator_HandleEvents_ReportsFailure(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.mrc", encode(t, book("a1")))

	sink := newMemSink()
	sink.writeErr = errors.New("index offline")

	var got error
	c := newTestCoordinator(t, root, sink, func(_ *RunnerResult, err error) { got = err })

	_, err := c.HandleEvents(context.Background(), []watcher.FileEvent{
		{Path: "a.mrc", Operation: watcher.OpCreate},
	})
	require.Error(t, err)
	assert.Equal(t, err, got)
}
