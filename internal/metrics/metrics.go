// Package metrics counts what an indexing run did and writes the counts in
// Prometheus text format for node_exporter's textfile collector.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "marcindex"

// Record outcomes.
const (
	RecordIndexed   = "indexed"
	RecordMalformed = "malformed"
	RecordSkipped   = "skipped"
)

// Recorder holds one run's metrics on a private registry, so runs in the
// same process (watch mode, tests) never collide.
type Recorder struct {
	registry *prometheus.Registry

	records       *prometheus.CounterVec
	tracker       *prometheus.CounterVec
	harvests      *prometheus.CounterVec
	batchDuration prometheus.Histogram
	lastRun       prometheus.Gauge
}

// New creates a Recorder with all metrics registered.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		records: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_total",
				Help:      "Records read, by outcome",
			},
			[]string{"outcome"},
		),
		tracker: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tracker_records_total",
				Help:      "Change tracker results, by status",
			},
			[]string{"core", "status"},
		),
		harvests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fulltext_harvests_total",
				Help:      "Full-text harvests, by backend and result",
			},
			[]string{"backend", "result"},
		),
		batchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "batch_write_duration_seconds",
				Help:      "Time spent writing one document batch to the sink",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
		),
		lastRun: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time the last run finished",
			},
		),
	}
	r.registry.MustRegister(r.records, r.tracker, r.harvests, r.batchDuration, r.lastRun)
	return r
}

// Registry exposes the registry for tests and custom exporters.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Record counts one record outcome.
func (r *Recorder) Record(outcome string) {
	r.records.WithLabelValues(outcome).Inc()
}

// Tracked counts a change tracker result.
func (r *Recorder) Tracked(core, status string) {
	r.tracker.WithLabelValues(core, status).Inc()
}

// Harvested counts a full-text harvest. ok is false when the tool failed.
func (r *Recorder) Harvested(backend string, ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	r.harvests.WithLabelValues(backend, result).Inc()
}

// ObserveBatch records how long a sink write took.
func (r *Recorder) ObserveBatch(d time.Duration) {
	r.batchDuration.Observe(d.Seconds())
}

// Finish stamps the run completion time.
func (r *Recorder) Finish(at time.Time) {
	r.lastRun.Set(float64(at.Unix()))
}

// WriteTextfile writes all metrics to path atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
