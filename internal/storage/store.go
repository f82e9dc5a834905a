package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// DefaultLockTimeout bounds how long Append waits for the writer slot.
const DefaultLockTimeout = 5 * time.Second

var (
	// ErrLockTimeout is returned when the writer slot could not be acquired
	// within the configured lock timeout.
	ErrLockTimeout = errors.New("timed out waiting for write lock")

	// ErrClosed is returned by operations on a closed log.
	ErrClosed = errors.New("event log is closed")
)

// EventLog is the append-only store of page views.
type EventLog interface {
	Append(ctx context.Context, event *ViewEvent) error
	Snapshot(ctx context.Context, filter Filter, limit int) (*Snapshot, error)
	Daily(ctx context.Context, filter Filter) ([]DailyCount, error)
	Overview(ctx context.Context) (*Overview, error)
	Ping(ctx context.Context) error
	Close() error
}

// LogOptions tunes a SQLiteLog. Zero values select defaults.
type LogOptions struct {
	LockTimeout time.Duration
	Now         func() time.Time
}

// SQLiteLog implements EventLog backed by a SQLite database. It is the only
// writer of the views table; appends are serialized through a single
// writer slot while reads run concurrently under WAL.
type SQLiteLog struct {
	db *sql.DB

	writer      *semaphore.Weighted
	lockTimeout time.Duration
	now         func() time.Time

	insertView *sql.Stmt

	closed atomic.Bool
}

// NewSQLiteLog creates a SQLiteLog from an already-opened and migrated database.
func NewSQLiteLog(db *sql.DB, opts LogOptions) (*SQLiteLog, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle is required")
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = DefaultLockTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	l := &SQLiteLog{
		db:          db,
		writer:      semaphore.NewWeighted(1),
		lockTimeout: opts.LockTimeout,
		now:         opts.Now,
	}

	var err error
	l.insertView, err = db.Prepare(`INSERT INTO views (ts, domain, page) VALUES (?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("prepare statements: %w", err)
	}

	return l, nil
}

// Append durably records event. The timestamp is assigned here from the
// log's clock; any caller-supplied ID or Timestamp is overwritten.
func (l *SQLiteLog) Append(ctx context.Context, event *ViewEvent) error {
	if l.closed.Load() {
		return ErrClosed
	}

	if err := l.acquireWriter(ctx); err != nil {
		return err
	}
	defer l.writer.Release(1)

	ts := l.now().Unix()
	res, err := l.insertView.ExecContext(ctx, ts, event.Domain, event.Page)
	if err != nil {
		return fmt.Errorf("insert view: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("read view id: %w", err)
	}

	event.ID = id
	event.Timestamp = time.Unix(ts, 0).UTC()
	return nil
}

// acquireWriter waits for the writer slot, giving up after lockTimeout.
func (l *SQLiteLog) acquireWriter(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.lockTimeout)
	defer cancel()

	if err := l.writer.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrLockTimeout
	}
	return nil
}

// Snapshot returns the filtered event count, the distinct (domain, page)
// count and up to limit most recent events, newest first. All three are
// read in one transaction.
func (l *SQLiteLog) Snapshot(ctx context.Context, filter Filter, limit int) (*Snapshot, error) {
	if l.closed.Load() {
		return nil, ErrClosed
	}
	if limit < 0 {
		limit = 0
	}

	where, args := filter.clause()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin read: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	snap := &Snapshot{}

	err = tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM views"+where, args...).Scan(&snap.TotalEvents)
	if err != nil {
		return nil, fmt.Errorf("count views: %w", err)
	}

	err = tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM (SELECT DISTINCT domain, page FROM views"+where+")", args...,
	).Scan(&snap.UniquePages)
	if err != nil {
		return nil, fmt.Errorf("count pages: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		"SELECT id, ts, domain, page FROM views"+where+" ORDER BY id DESC LIMIT ?",
		append(args, limit)...,
	)
	if err != nil {
		return nil, fmt.Errorf("query latest: %w", err)
	}
	defer rows.Close()

	snap.Latest = []ViewEvent{}
	for rows.Next() {
		var e ViewEvent
		var ts int64
		if err := rows.Scan(&e.ID, &ts, &e.Domain, &e.Page); err != nil {
			return nil, fmt.Errorf("scan view: %w", err)
		}
		e.Timestamp = time.Unix(ts, 0).UTC()
		snap.Latest = append(snap.Latest, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read latest: %w", err)
	}

	return snap, nil
}

// Daily returns per-day view counts for each (domain, page) pair, most
// recent day first. Days are UTC.
func (l *SQLiteLog) Daily(ctx context.Context, filter Filter) ([]DailyCount, error) {
	if l.closed.Load() {
		return nil, ErrClosed
	}

	where, args := filter.clause()
	rows, err := l.db.QueryContext(ctx, `
		SELECT domain, page, date(ts, 'unixepoch') AS day, COUNT(*)
		FROM views`+where+`
		GROUP BY domain, page, day
		ORDER BY day DESC, domain, page`, args...)
	if err != nil {
		return nil, fmt.Errorf("query daily views: %w", err)
	}
	defer rows.Close()

	counts := []DailyCount{}
	for rows.Next() {
		var dc DailyCount
		if err := rows.Scan(&dc.Domain, &dc.Page, &dc.Date, &dc.ViewCount); err != nil {
			return nil, fmt.Errorf("scan daily view: %w", err)
		}
		counts = append(counts, dc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read daily views: %w", err)
	}
	return counts, nil
}

// Overview returns aggregate statistics about the whole log.
func (l *SQLiteLog) Overview(ctx context.Context) (*Overview, error) {
	if l.closed.Load() {
		return nil, ErrClosed
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin read: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ov := &Overview{}

	err = tx.QueryRowContext(ctx, "SELECT COUNT(*), COUNT(DISTINCT domain) FROM views").
		Scan(&ov.TotalEvents, &ov.Domains)
	if err != nil {
		return nil, fmt.Errorf("count views: %w", err)
	}

	err = tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM (SELECT DISTINCT domain, page FROM views)",
	).Scan(&ov.UniquePages)
	if err != nil {
		return nil, fmt.Errorf("count pages: %w", err)
	}

	// MIN/MAX are NULL on an empty table
	if ov.TotalEvents > 0 {
		var oldest, newest int64
		err = tx.QueryRowContext(ctx, "SELECT MIN(ts), MAX(ts) FROM views").Scan(&oldest, &newest)
		if err != nil {
			return nil, fmt.Errorf("view time range: %w", err)
		}
		ov.OldestEvent = time.Unix(oldest, 0).UTC()
		ov.NewestEvent = time.Unix(newest, 0).UTC()
	}

	rows, err := tx.QueryContext(ctx,
		"SELECT domain, COUNT(*) AS cnt FROM views GROUP BY domain ORDER BY cnt DESC, domain LIMIT 10",
	)
	if err != nil {
		return nil, fmt.Errorf("top domains: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var dc DomainCount
		if err := rows.Scan(&dc.Domain, &dc.Count); err != nil {
			return nil, fmt.Errorf("scan top domain: %w", err)
		}
		ov.TopDomains = append(ov.TopDomains, dc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read top domains: %w", err)
	}

	return ov, nil
}

// Ping reports whether the database is reachable.
func (l *SQLiteLog) Ping(ctx context.Context) error {
	if l.closed.Load() {
		return ErrClosed
	}
	return l.db.PingContext(ctx)
}

// Close releases prepared statements. The underlying *sql.DB is NOT
// closed; that is the caller's responsibility.
func (l *SQLiteLog) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	if l.insertView != nil {
		return l.insertView.Close()
	}
	return nil
}

func (f Filter) clause() (string, []any) {
	if !f.ByDomain {
		return "", nil
	}
	return " WHERE domain = ?", []any{f.Domain}
}
