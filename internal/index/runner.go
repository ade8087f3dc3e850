// Package index turns MARC input files into index documents: the Builder
// composes the field extractors, change tracker and full-text harvester for
// one record, and the Runner streams files through a worker pool into a
// store.Sink.
package index

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	ierrors "github.com/Aman-CERP/marcindex/internal/errors"
	"github.com/Aman-CERP/marcindex/internal/marc"
	"github.com/Aman-CERP/marcindex/internal/metrics"
	"github.com/Aman-CERP/marcindex/internal/store"
	"github.com/Aman-CERP/marcindex/internal/tracker"
	"github.com/Aman-CERP/marcindex/internal/ui"
)

const (
	// DefaultBatchSize is the number of documents per sink write.
	DefaultBatchSize = 500

	// maxConsecutiveMalformed stops reading a file whose framing is lost.
	maxConsecutiveMalformed = 10
)

// RunnerConfig configures an indexing run.
type RunnerConfig struct {
	// Inputs are the MARC files to read, in order.
	Inputs []string

	// Format forces a serialization. Empty detects it from each file's
	// extension.
	Format marc.Format

	// Workers bounds concurrent record builds (defaults to NumCPU).
	Workers int

	// BatchSize is the number of documents per sink write.
	BatchSize int
}

// RunnerResult contains the outcome of an indexing operation.
type RunnerResult struct {
	// Files is the number of input files opened.
	Files int `json:"files"`

	// Records is the number of records decoded.
	Records int `json:"records"`

	// Documents is the number of documents written to the sink.
	Documents int `json:"documents"`

	// Deleted is the number of deletion records applied.
	Deleted int `json:"deleted"`

	// Malformed is the number of records that could not be decoded.
	Malformed int `json:"malformed"`

	// Skipped is the number of decoded records that produced no document.
	Skipped int `json:"skipped"`

	// Warnings is the count of non-fatal problems, malformed and skipped
	// records included.
	Warnings int `json:"warnings"`

	// Tracker outcomes.
	New       int `json:"tracker_new"`
	Changed   int `json:"tracker_changed"`
	Unchanged int `json:"tracker_unchanged"`

	// Duration is the total indexing time.
	Duration time.Duration `json:"duration_ns"`
}

// RunnerDependencies contains the injected dependencies for Runner.
type RunnerDependencies struct {
	// Builder turns records into documents (required).
	Builder *Builder

	// Sink receives the documents (required).
	Sink store.Sink

	// Renderer for progress display. Defaults to ui.Discard.
	Renderer ui.Renderer

	// Metrics records outcomes when set.
	Metrics *metrics.Recorder

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Runner executes indexing runs with progress reporting.
type Runner struct {
	builder  *Builder
	sink     store.Sink
	renderer ui.Renderer
	metrics  *metrics.Recorder
	logger   *slog.Logger
}

// NewRunner creates a Runner with injected dependencies.
func NewRunner(deps RunnerDependencies) (*Runner, error) {
	if deps.Builder == nil {
		return nil, fmt.Errorf("builder is required")
	}
	if deps.Sink == nil {
		return nil, fmt.Errorf("sink is required")
	}

	r := &Runner{
		builder:  deps.Builder,
		sink:     deps.Sink,
		renderer: deps.Renderer,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
	}
	if r.renderer == nil {
		r.renderer = ui.Discard{}
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r, nil
}

// job is one record to process. seq is its position in read order.
type job struct {
	seq  int
	file string
	rec  *marc.Record
}

type outcome struct {
	seq     int
	file    string
	id      string
	deleted bool
	res     Result
	err     error
}

// readStats is written only by the reader goroutine and read after Wait.
type readStats struct {
	files     int
	records   int
	malformed int
	warnings  int
	sent      int
}

// sequencer hands outcomes back in read order. Workers finish out of
// order, but a deletion and a later re-add of the same id must reach the
// sink in the order they appear in the input.
type sequencer struct {
	next int
	held map[int]outcome
}

func newSequencer() *sequencer {
	return &sequencer{held: make(map[int]outcome)}
}

// push stores o and returns the outcomes that are now in order.
func (q *sequencer) push(o outcome) []outcome {
	q.held[o.seq] = o
	var ready []outcome
	for {
		next, ok := q.held[q.next]
		if !ok {
			return ready
		}
		delete(q.held, q.next)
		ready = append(ready, next)
		q.next++
	}
}

// Run reads every input, builds documents on a bounded worker pool and
// writes them to the sink in batches. Per-record problems are counted and
// reported; a fatal store error or a sink failure aborts the run.
func (r *Runner) Run(ctx context.Context, cfg RunnerConfig) (*RunnerResult, error) {
	startTime := time.Now()

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	jobs := make(chan job, workers*2)
	outcomes := make(chan outcome, workers*2)

	var stats readStats
	g.Go(func() error {
		defer close(jobs)
		return r.read(gctx, cfg, jobs, &stats)
	})

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		g.Go(func() error {
			defer wg.Done()
			for j := range jobs {
				o := r.process(gctx, j)
				select {
				case outcomes <- o:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}
	go func() {
		wg.Wait()
		close(outcomes)
	}()

	result := &RunnerResult{}
	pending := make([]*store.Document, 0, batchSize)
	var deletes []string
	// ids in the current batch; an id seen again with the other operation
	// flushes first, since a batch writes documents before deletes
	added := make(map[string]bool)
	removed := make(map[string]bool)
	var runErr error

	flush := func() error {
		if len(pending) > 0 {
			start := time.Now()
			if err := r.sink.Write(ctx, pending); err != nil {
				return ierrors.New(ierrors.ErrCodeIndexFailed, "failed to write documents", err).
					WithDetail("batch", fmt.Sprintf("%d", len(pending)))
			}
			if r.metrics != nil {
				r.metrics.ObserveBatch(time.Since(start))
			}
			result.Documents += len(pending)
			pending = make([]*store.Document, 0, batchSize)
		}
		if len(deletes) > 0 {
			if err := r.sink.Delete(ctx, deletes); err != nil {
				return ierrors.New(ierrors.ErrCodeIndexFailed, "failed to delete documents", err)
			}
			result.Deleted += len(deletes)
			deletes = nil
		}
		clear(added)
		clear(removed)
		return nil
	}

	handle := func(o outcome) error {
		switch {
		case o.err != nil:
			return r.recordFailure(o, result)
		case o.deleted:
			if added[o.id] {
				if err := flush(); err != nil {
					return err
				}
			}
			deletes = append(deletes, o.id)
			removed[o.id] = true
			r.count(metrics.RecordIndexed)
		default:
			if removed[o.id] {
				if err := flush(); err != nil {
					return err
				}
			}
			pending = append(pending, o.res.Document)
			added[o.id] = true
			r.count(metrics.RecordIndexed)
			switch o.res.Status {
			case tracker.StatusNew:
				result.New++
			case tracker.StatusChanged:
				result.Changed++
			case tracker.StatusUnchanged:
				result.Unchanged++
			}
		}

		if len(pending) >= batchSize || len(deletes) >= batchSize {
			return flush()
		}
		return nil
	}

	seq := newSequencer()
	processed := 0
	for o := range outcomes {
		if runErr != nil {
			continue // drain
		}
		for _, ready := range seq.push(o) {
			processed++
			if err := handle(ready); err != nil {
				runErr = err
				cancel()
				break
			}
			r.renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageIndexing, Current: processed, File: ready.file})
		}
	}

	if err := g.Wait(); err != nil && runErr == nil && !errors.Is(err, context.Canceled) {
		runErr = err
	}
	if runErr == nil {
		if err := ctx.Err(); err != nil {
			runErr = err
		}
	}
	if runErr == nil {
		runErr = flush()
	}

	result.Files = stats.files
	result.Records = stats.records
	result.Malformed = stats.malformed
	result.Warnings += stats.warnings + stats.malformed + result.Skipped
	result.Duration = time.Since(startTime)

	if runErr != nil {
		r.logger.Error("index_failed",
			slog.Int("records", result.Records),
			slog.Int("documents", result.Documents),
			slog.String("error", runErr.Error()))
		return result, runErr
	}

	if r.metrics != nil {
		r.metrics.Finish(time.Now())
	}

	r.renderer.Complete(ui.CompletionStats{
		Files:     result.Files,
		Records:   result.Records,
		Documents: result.Documents,
		Deleted:   result.Deleted,
		Malformed: result.Malformed,
		Skipped:   result.Skipped,
		Warnings:  result.Warnings,
		New:       result.New,
		Changed:   result.Changed,
		Unchanged: result.Unchanged,
		Duration:  result.Duration,
	})

	recordsPerSec := 0.0
	if result.Duration.Seconds() > 0 {
		recordsPerSec = float64(result.Records) / result.Duration.Seconds()
	}
	r.logger.Info("index_complete",
		slog.Int("files", result.Files),
		slog.Int("records", result.Records),
		slog.Int("documents", result.Documents),
		slog.Int("deleted", result.Deleted),
		slog.Int("malformed", result.Malformed),
		slog.Int("skipped", result.Skipped),
		slog.Int("tracker_new", result.New),
		slog.Int("tracker_changed", result.Changed),
		slog.Int("tracker_unchanged", result.Unchanged),
		slog.String("duration_total", result.Duration.String()),
		slog.Int64("duration_total_ms", result.Duration.Milliseconds()),
		slog.Float64("records_per_sec", recordsPerSec))

	return result, nil
}

// process builds or deletes one record.
func (r *Runner) process(ctx context.Context, j job) outcome {
	if IsDeleted(j.rec) {
		id, err := r.builder.Delete(ctx, j.rec)
		return outcome{seq: j.seq, file: j.file, id: id, deleted: true, err: err}
	}
	res, err := r.builder.Build(ctx, j.rec)
	o := outcome{seq: j.seq, file: j.file, res: res, err: err}
	if res.Document != nil {
		o.id = res.Document.ID
	}
	return o
}

// recordFailure counts a record that produced no document. Fatal store
// errors are returned and end the run. Failures caused by an interrupt or
// a closing tracker are shutdown noise and are counted quietly; the run
// reports the cancellation itself.
func (r *Runner) recordFailure(o outcome, result *RunnerResult) error {
	if errors.Is(o.err, tracker.ErrClosed) || errors.Is(o.err, context.Canceled) ||
		errors.Is(o.err, context.DeadlineExceeded) {
		result.Skipped++
		r.count(metrics.RecordSkipped)
		return nil
	}
	if ierrors.IsFatal(o.err) {
		return o.err
	}

	result.Skipped++
	r.count(metrics.RecordSkipped)

	r.logger.Warn("record_skipped",
		slog.String("file", o.file),
		slog.String("id", o.id),
		slog.String("error", o.err.Error()))
	r.renderer.AddError(ui.ErrorEvent{File: o.file, Record: o.id, Err: o.err, IsWarn: true})
	return nil
}

// read streams every input into jobs. Files that cannot be opened or read
// are reported and skipped.
func (r *Runner) read(ctx context.Context, cfg RunnerConfig, jobs chan<- job, stats *readStats) error {
	for i, path := range cfg.Inputs {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.renderer.UpdateProgress(ui.ProgressEvent{
			Stage:   ui.StageReading,
			Current: i + 1,
			Total:   len(cfg.Inputs),
			File:    path,
		})

		reader, closer, err := r.open(path, cfg.Format)
		if err != nil {
			stats.warnings++
			r.logger.Warn("input_open_failed", slog.String("file", path), slog.String("error", err.Error()))
			r.renderer.AddError(ui.ErrorEvent{File: path, Err: err})
			continue
		}
		stats.files++

		err = r.readFile(ctx, path, reader, jobs, stats)
		_ = closer.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) open(path string, format marc.Format) (marc.Reader, io.Closer, error) {
	if format == "" {
		reader, closer, err := marc.OpenFile(path)
		if err != nil {
			return nil, nil, ierrors.IOError("cannot open input", err).WithDetail("file", path)
		}
		return reader, closer, nil
	}
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, nil, ierrors.IOError("cannot open input", err).WithDetail("file", path)
	}
	return marc.NewReader(f, format), f, nil
}

// readFile sends the records of one file. Only context cancellation is
// returned; decoding problems are counted.
func (r *Runner) readFile(ctx context.Context, path string, reader marc.Reader, jobs chan<- job, stats *readStats) error {
	consecutive := 0
	for {
		rec, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if !errors.Is(err, marc.ErrMalformedRecord) {
				stats.warnings++
				r.logger.Warn("input_read_failed", slog.String("file", path), slog.String("error", err.Error()))
				r.renderer.AddError(ui.ErrorEvent{File: path, Err: err})
				return nil
			}

			stats.malformed++
			consecutive++
			r.count(metrics.RecordMalformed)
			r.logger.Warn("record_malformed", slog.String("file", path), slog.String("error", err.Error()))
			r.renderer.AddError(ui.ErrorEvent{File: path, Err: err, IsWarn: true})
			if consecutive >= maxConsecutiveMalformed {
				stats.warnings++
				r.logger.Warn("input_abandoned",
					slog.String("file", path),
					slog.Int("consecutive_malformed", consecutive))
				return nil
			}
			continue
		}
		consecutive = 0
		stats.records++

		select {
		case jobs <- job{seq: stats.sent, file: path, rec: rec}:
			stats.sent++
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (r *Runner) count(outcome string) {
	if r.metrics != nil {
		r.metrics.Record(outcome)
	}
}
