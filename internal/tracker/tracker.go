// Package tracker records when each record was first and last indexed.
//
// The data lives outside the search index so it survives full rebuilds.
// Rows are keyed by (core, id) and only move last_indexed forward when the
// record's own transaction date changes.
package tracker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	// SQL drivers selectable through the tracker DSN.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	ierrors "github.com/Aman-CERP/marcindex/internal/errors"
	"github.com/Aman-CERP/marcindex/internal/marc"
)

const (
	// DefaultCore is the core used when none is given.
	DefaultCore = "biblio"
	// DefaultIDSpec selects the record identifier.
	DefaultIDSpec = "001"
)

// ErrClosed is returned once Close has started. Callers treat it as an
// expected shutdown condition, not a failure.
var ErrClosed = errors.New("tracker closed")

// Status describes what Index did with a record.
type Status string

const (
	StatusNew       Status = "new"
	StatusChanged   Status = "changed"
	StatusUnchanged Status = "unchanged"
)

// Entry is one tracked record.
type Entry struct {
	Core            string
	ID              string
	FirstIndexed    time.Time
	LastIndexed     time.Time
	LastTransaction time.Time
	// Deleted is set by MarkDeleted and cleared by the next Index.
	Deleted *time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithRetry overrides the connect retry policy.
func WithRetry(cfg ierrors.RetryConfig) Option {
	return func(t *Tracker) { t.retry = cfg }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

// Tracker is safe for concurrent use; calls are serialized on one connection.
type Tracker struct {
	src    Source
	now    func() time.Time
	retry  ierrors.RetryConfig
	logger *slog.Logger

	mu      sync.Mutex
	db      *sql.DB
	ownsDB  bool
	closing atomic.Bool
}

// New creates a tracker for a connection string. Nothing is opened until
// the first call that needs the database.
func New(dsn string, opts ...Option) (*Tracker, error) {
	src, err := ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	t := newTracker(src, opts)
	t.ownsDB = true
	return t, nil
}

// NewWithDB wraps an already open database. The caller keeps ownership of db.
func NewWithDB(db *sql.DB, dialect Dialect, opts ...Option) (*Tracker, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	t := newTracker(Source{Dialect: dialect}, opts)
	if err := initSchema(context.Background(), db); err != nil {
		return nil, ierrors.StoreError("failed to create tracker schema", err)
	}
	t.db = db
	return t, nil
}

func newTracker(src Source, opts []Option) *Tracker {
	t := &Tracker{
		src:    src,
		now:    time.Now,
		retry:  ierrors.DefaultRetryConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// acquire takes mu unless Close has started. Close may win the lock after
// the first check, so the flag is read again under the lock.
func (t *Tracker) acquire() bool {
	if t.closing.Load() {
		return false
	}
	t.mu.Lock()
	if t.closing.Load() {
		t.mu.Unlock()
		return false
	}
	return true
}

// conn returns the open database, connecting on first use. Callers hold mu.
// No new connection is opened once Close has started.
func (t *Tracker) conn(ctx context.Context) (*sql.DB, error) {
	if t.db != nil {
		return t.db, nil
	}
	if t.closing.Load() {
		return nil, ErrClosed
	}

	db, err := ierrors.RetryWithResult(ctx, t.retry, func() (*sql.DB, error) {
		return t.open(ctx)
	})
	if err != nil {
		return nil, ierrors.New(ierrors.ErrCodeStoreUnreachable, "cannot connect to tracker database", err).
			WithDetail("driver", t.src.Driver)
	}
	t.db = db
	t.logger.Info("tracker_connected", slog.String("driver", t.src.Driver))
	return db, nil
}

func (t *Tracker) open(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open(t.src.Driver, t.src.DSN)
	if err != nil {
		return nil, err
	}
	if t.src.Dialect == DialectSQLite {
		// single writer; pragmas go through the one connection
		db.SetMaxOpenConns(1)
		for _, pragma := range []string{
			"PRAGMA journal_mode = WAL",
			"PRAGMA busy_timeout = 5000",
			"PRAGMA synchronous = NORMAL",
		} {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("set pragma: %w", err)
			}
		}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func initSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS change_tracker (
			core VARCHAR(30) NOT NULL,
			id VARCHAR(120) NOT NULL,
			first_indexed VARCHAR(19) NOT NULL,
			last_indexed VARCHAR(19) NOT NULL,
			last_record_change VARCHAR(19) NOT NULL,
			deleted VARCHAR(19),
			PRIMARY KEY (core, id)
		)`)
	if err != nil {
		return fmt.Errorf("create change_tracker: %w", err)
	}
	return nil
}

// Index records that (core, id) was indexed with the given transaction date.
// A new row gets first = last = now. An existing row moves last_indexed to
// now only when the transaction date differs or the row was marked deleted.
func (t *Tracker) Index(ctx context.Context, core, id string, txDate time.Time) (Entry, Status, error) {
	if !t.acquire() {
		return Entry{}, "", ErrClosed
	}
	defer t.mu.Unlock()

	entry, status, err := t.index(ctx, core, id, txDate)
	if err != nil {
		return Entry{}, "", t.suppress(ctx, err)
	}
	return entry, status, nil
}

func (t *Tracker) index(ctx context.Context, core, id string, txDate time.Time) (Entry, Status, error) {
	db, err := t.conn(ctx)
	if err != nil {
		return Entry{}, "", err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return Entry{}, "", ierrors.StoreError("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := t.now().UTC().Truncate(time.Second)
	txDate = txDate.UTC().Truncate(time.Second)

	existing, found, err := t.get(ctx, tx, core, id)
	if err != nil {
		return Entry{}, "", err
	}

	var status Status
	switch {
	case !found:
		_, err = tx.ExecContext(ctx, rebind(t.src.Dialect, `
			INSERT INTO change_tracker (core, id, first_indexed, last_indexed, last_record_change, deleted)
			VALUES (?, ?, ?, ?, ?, NULL)`),
			core, id, toStore(now), toStore(now), toStore(txDate))
		existing = Entry{Core: core, ID: id, FirstIndexed: now, LastIndexed: now, LastTransaction: txDate}
		status = StatusNew

	case !existing.LastTransaction.Equal(txDate) || existing.Deleted != nil:
		_, err = tx.ExecContext(ctx, rebind(t.src.Dialect, `
			UPDATE change_tracker SET last_indexed = ?, last_record_change = ?, deleted = NULL
			WHERE core = ? AND id = ?`),
			toStore(now), toStore(txDate), core, id)
		existing.LastIndexed = now
		existing.LastTransaction = txDate
		existing.Deleted = nil
		status = StatusChanged

	default:
		status = StatusUnchanged
	}
	if err != nil {
		return Entry{}, "", ierrors.StoreError("write tracker row", err).
			WithDetail("core", core).WithDetail("id", id)
	}

	if err := tx.Commit(); err != nil {
		return Entry{}, "", ierrors.StoreError("commit transaction", err)
	}
	return existing, status, nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (t *Tracker) get(ctx context.Context, q querier, core, id string) (Entry, bool, error) {
	var first, last, change string
	var deleted sql.NullString
	err := q.QueryRowContext(ctx, rebind(t.src.Dialect, `
		SELECT first_indexed, last_indexed, last_record_change, deleted
		FROM change_tracker WHERE core = ? AND id = ?`), core, id).
		Scan(&first, &last, &change, &deleted)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, ierrors.StoreError("read tracker row", err)
	}

	e := Entry{Core: core, ID: id}
	for _, f := range []struct {
		dst *time.Time
		src string
	}{{&e.FirstIndexed, first}, {&e.LastIndexed, last}, {&e.LastTransaction, change}} {
		if *f.dst, err = fromStore(f.src); err != nil {
			return Entry{}, false, ierrors.StoreError("corrupt tracker timestamp", err)
		}
	}
	if deleted.Valid {
		d, err := fromStore(deleted.String)
		if err != nil {
			return Entry{}, false, ierrors.StoreError("corrupt tracker timestamp", err)
		}
		e.Deleted = &d
	}
	return e, true, nil
}

// Get returns the tracked entry for (core, id).
func (t *Tracker) Get(ctx context.Context, core, id string) (Entry, bool, error) {
	if !t.acquire() {
		return Entry{}, false, ErrClosed
	}
	defer t.mu.Unlock()

	db, err := t.conn(ctx)
	if err != nil {
		return Entry{}, false, t.suppress(ctx, err)
	}
	e, ok, err := t.get(ctx, db, core, id)
	return e, ok, t.suppress(ctx, err)
}

// MarkDeleted flags a tracked record as deleted. It reports whether a row
// was found.
func (t *Tracker) MarkDeleted(ctx context.Context, core, id string) (bool, error) {
	if !t.acquire() {
		return false, ErrClosed
	}
	defer t.mu.Unlock()

	db, err := t.conn(ctx)
	if err != nil {
		return false, t.suppress(ctx, err)
	}
	res, err := db.ExecContext(ctx, rebind(t.src.Dialect,
		`UPDATE change_tracker SET deleted = ? WHERE core = ? AND id = ?`),
		toStore(t.now()), core, id)
	if err != nil {
		return false, t.suppress(ctx, ierrors.StoreError("mark deleted", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, t.suppress(ctx, ierrors.StoreError("mark deleted", err))
	}
	return n > 0, nil
}

// FirstIndexed tracks rec and returns its first-indexed timestamp.
// Empty idSpec and core fall back to DefaultIDSpec and DefaultCore.
func (t *Tracker) FirstIndexed(ctx context.Context, rec *marc.Record, idSpec, core string) (string, error) {
	e, err := t.track(ctx, rec, idSpec, core)
	if err != nil {
		return "", err
	}
	return FormatTimestamp(e.FirstIndexed), nil
}

// LastIndexed tracks rec and returns its last-indexed timestamp.
func (t *Tracker) LastIndexed(ctx context.Context, rec *marc.Record, idSpec, core string) (string, error) {
	e, err := t.track(ctx, rec, idSpec, core)
	if err != nil {
		return "", err
	}
	return FormatTimestamp(e.LastIndexed), nil
}

// Track indexes rec under core using the identifier selected by idSpec.
func (t *Tracker) Track(ctx context.Context, rec *marc.Record, idSpec, core string) (Entry, Status, error) {
	if idSpec == "" {
		idSpec = DefaultIDSpec
	}
	if core == "" {
		core = DefaultCore
	}
	id, ok := rec.FirstFieldVal(idSpec)
	if !ok || id == "" {
		return Entry{}, "", ierrors.New(ierrors.ErrCodeRecordIDMissing, "record has no identifier", nil).
			WithDetail("spec", idSpec)
	}
	return t.Index(ctx, core, id, LatestTransaction(rec))
}

func (t *Tracker) track(ctx context.Context, rec *marc.Record, idSpec, core string) (Entry, error) {
	e, _, err := t.Track(ctx, rec, idSpec, core)
	return e, err
}

// suppress maps errors raised during shutdown to non-fatal ones: ErrClosed
// while Close is running, and the bare context error once ctx is done, since
// in-flight statements fail as the run is interrupted.
func (t *Tracker) suppress(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if t.closing.Load() {
		t.logger.Debug("tracker_error_during_shutdown", slog.String("error", err.Error()))
		return ErrClosed
	}
	if cerr := ctx.Err(); cerr != nil {
		t.logger.Debug("tracker_error_after_cancel", slog.String("error", err.Error()))
		return cerr
	}
	return err
}

// Close releases the connection. Calls that race with Close return ErrClosed.
func (t *Tracker) Close() error {
	if t.closing.Swap(true) {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.db == nil || !t.ownsDB {
		return nil
	}
	err := t.db.Close()
	t.db = nil
	return err
}
