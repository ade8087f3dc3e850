package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/marcindex/internal/marc"
)

// newProject returns an empty project directory with the user config and
// home directory isolated from the machine running the tests.
func newProject(t *testing.T) string {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	return t.TempDir()
}

// run executes the root command against project dir and returns stdout
// and stderr.
func run(t *testing.T, dir string, args ...string) (string, string, error) {
	t.Helper()
	return runContext(context.Background(), t, dir, args...)
}

func runContext(ctx context.Context, t *testing.T, dir string, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"-C", dir}, args...))
	err := cmd.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

func book(id, title string) *marc.Record {
	return marc.NewRecord("00000cam a2200000 a 4500").
		AddControlField("001", id).
		AddControlField("005", "20200115103000.0").
		AddDataField("050", ' ', '0', marc.Sub('a', "QC981"), marc.Sub('b', ".W4 1999")).
		AddDataField("245", '1', '0', marc.Sub('a', title+"."))
}

// mappedBook is a single point at 95W 45N.
func mappedBook(id string) *marc.Record {
	return book(id, "Atlas of the lakes").
		AddDataField("034", '1', ' ',
			marc.Sub('a', "a"),
			marc.Sub('d', "W0950000"), marc.Sub('e', "W0950000"),
			marc.Sub('f', "N0450000"), marc.Sub('g', "N0450000"))
}

func deletion(id string) *marc.Record {
	return marc.NewRecord("00000dam a2200000 a 4500").AddControlField("001", id)
}

func writeMARC(t *testing.T, dir, name string, recs ...*marc.Record) string {
	t.Helper()
	var data []byte
	for _, rec := range recs {
		b, err := rec.MarshalBinary()
		require.NoError(t, err)
		data = append(data, b...)
	}
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}
