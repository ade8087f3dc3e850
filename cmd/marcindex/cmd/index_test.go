package cmd

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ierrors "github.com/Aman-CERP/marcindex/internal/errors"
	"github.com/Aman-CERP/marcindex/internal/index"
)

func readJSONL(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	var rows []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var row map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &row))
		rows = append(rows, row)
	}
	require.NoError(t, scanner.Err())
	return rows
}

func TestIndexCmd_JSONLBackend(t *testing.T) {
	// Given: a project writing JSON lines and a file with a deletion
	dir := newProject(t)
	t.Setenv("MARCINDEX_OUTPUT_BACKEND", "jsonl")
	input := writeMARC(t, dir, "exports/nightly.mrc",
		book("b1", "Weather of the lakes"), book("b2", "Lake ice"), deletion("b0"))

	// When: the file is indexed
	stdout, _, err := run(t, dir, "index", "--json", "--plain", input)

	// Then: the counts are reported and the documents written
	require.NoError(t, err)
	var result index.RunnerResult
	require.NoError(t, json.Unmarshal([]byte(stdout), &result))
	assert.Equal(t, 1, result.Files)
	assert.Equal(t, 3, result.Records)
	assert.Equal(t, 2, result.Documents)
	assert.Equal(t, 1, result.Deleted)
	assert.Equal(t, 2, result.New)

	rows := readJSONL(t, filepath.Join(dir, ".marcindex", "documents.jsonl"))
	require.Len(t, rows, 3)
	byID := map[string]map[string]any{}
	for _, row := range rows {
		byID[row["id"].(string)] = row
	}
	assert.Equal(t, "Weather of the lakes", byID["b1"]["title"])
	assert.Equal(t, "QC981 .W4 1999", byID["b1"]["callnumber-raw"])
	assert.NotEmpty(t, byID["b1"]["first_indexed"])
	assert.Equal(t, true, byID["b0"]["delete"])

	// And: the data directory lock is released for the next run
	_, _, err = run(t, dir, "index", "--plain", input)
	assert.NoError(t, err)
}

func TestIndexCmd_ExpandsDirectories(t *testing.T) {
	// Given: MARC files below a directory, one of them hidden
	dir := newProject(t)
	t.Setenv("MARCINDEX_OUTPUT_BACKEND", "jsonl")
	t.Setenv("MARCINDEX_TRACKER_DISABLED", "true")
	writeMARC(t, dir, "in/a.mrc", book("a1", "First"))
	writeMARC(t, dir, "in/sub/b.marc", book("b1", "Second"))
	writeMARC(t, dir, "in/.staging/c.mrc", book("c1", "Hidden"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "in", "notes.txt"), []byte("x"), 0o644))

	// When: the directory is indexed
	stdout, _, err := run(t, dir, "index", "--json", "--plain", filepath.Join(dir, "in"))

	// Then: only the visible MARC files are read
	require.NoError(t, err)
	var result index.RunnerResult
	require.NoError(t, json.Unmarshal([]byte(stdout), &result))
	assert.Equal(t, 2, result.Files)
	assert.Equal(t, 2, result.Documents)
	assert.Zero(t, result.New, "tracker disabled")
}

func TestIndexCmd_NoInputs(t *testing.T) {
	dir := newProject(t)
	empty := filepath.Join(dir, "empty")
	require.NoError(t, os.MkdirAll(empty, 0o755))

	_, _, err := run(t, dir, "index", empty)

	require.Error(t, err)
	assert.Equal(t, ierrors.ErrCodeInvalidInput, ierrors.GetCode(err))
	assert.Contains(t, err.Error(), "no MARC files found")
}

func TestIndexCmd_FlagOverridesAreValidated(t *testing.T) {
	dir := newProject(t)
	input := writeMARC(t, dir, "a.mrc", book("a1", "First"))

	_, _, err := run(t, dir, "index", "--format", "csv", input)

	require.Error(t, err)
	assert.Equal(t, ierrors.ErrCodeConfigInvalid, ierrors.GetCode(err))
}

func TestIndexCmd_DataDirLocked(t *testing.T) {
	// Given: another process holds the data directory
	dir := newProject(t)
	input := writeMARC(t, dir, "a.mrc", book("a1", "First"))
	lock := index.NewDirLock(filepath.Join(dir, ".marcindex"))
	require.NoError(t, lock.TryLock())
	defer func() { _ = lock.Unlock() }()

	// When: indexing
	_, _, err := run(t, dir, "index", input)

	// Then: it fails fast
	require.Error(t, err)
	assert.Equal(t, ierrors.ErrCodeIndexLocked, ierrors.GetCode(err))
}

func TestIndexCmd_WritesMetricsTextfile(t *testing.T) {
	dir := newProject(t)
	t.Setenv("MARCINDEX_OUTPUT_BACKEND", "jsonl")
	t.Setenv("MARCINDEX_METRICS_TEXTFILE", "metrics/marcindex.prom")
	input := writeMARC(t, dir, "a.mrc", book("a1", "First"), book("a2", "Second"))

	_, _, err := run(t, dir, "index", "--plain", input)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "metrics", "marcindex.prom"))
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "marcindex_"), string(data))
}
