// Package integration exercises the indexing pipeline end to end: MARC
// files through the runner into a bleve index and a sqlite change tracker.
package integration

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/marcindex/internal/index"
	"github.com/Aman-CERP/marcindex/internal/marc"
	"github.com/Aman-CERP/marcindex/internal/metrics"
	"github.com/Aman-CERP/marcindex/internal/store"
	"github.com/Aman-CERP/marcindex/internal/tracker"
)

// pipeline is a runner writing to an on-disk bleve index and tracker.
type pipeline struct {
	dir     string
	index   *store.BleveIndex
	tracker *tracker.Tracker
	metrics *metrics.Recorder
	runner  *index.Runner
	now     time.Time
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	dir := t.TempDir()
	p := &pipeline{dir: dir, now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}

	idx, err := store.NewBleveIndex(filepath.Join(dir, "index.bleve"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	p.index = idx

	tr, err := tracker.New("sqlite://"+filepath.Join(dir, "tracker.db"),
		tracker.WithClock(func() time.Time { return p.now }))
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })
	p.tracker = tr

	p.metrics = metrics.New()
	runner, err := index.NewRunner(index.RunnerDependencies{
		Builder: index.NewBuilder(index.BuilderConfig{Tracker: tr, Metrics: p.metrics}),
		Sink:    idx,
		Metrics: p.metrics,
	})
	require.NoError(t, err)
	p.runner = runner
	return p
}

func record(id, stamp, title string) *marc.Record {
	return marc.NewRecord("00000cam a2200000 a 4500").
		AddControlField("001", id).
		AddControlField("005", stamp).
		AddDataField("082", '0', '4', marc.Sub('a', "551.6")).
		AddDataField("245", '1', '0', marc.Sub('a', title+"."))
}

func deletion(id string) *marc.Record {
	return marc.NewRecord("00000dam a2200000 a 4500").AddControlField("001", id)
}

func writeMARC(t *testing.T, path string, recs ...*marc.Record) string {
	t.Helper()
	var data []byte
	for _, rec := range recs {
		b, err := rec.MarshalBinary()
		require.NoError(t, err)
		data = append(data, b...)
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}
