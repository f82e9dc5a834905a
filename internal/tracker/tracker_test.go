package tracker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/pixelcount/internal/logging"
	"github.com/runnerr0/pixelcount/internal/storage"
)

// newTestService builds a Service over a fresh file-backed log.
func newTestService(t *testing.T, opts Options, logOpts storage.LogOptions) *Service {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "views.db"), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log, err := storage.NewSQLiteLog(db, logOpts)
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })

	return New(log, opts)
}

// brokenLog fails every call with err.
type brokenLog struct {
	err error
}

func (b *brokenLog) Append(context.Context, *storage.ViewEvent) error { return b.err }
func (b *brokenLog) Snapshot(context.Context, storage.Filter, int) (*storage.Snapshot, error) {
	return nil, b.err
}
func (b *brokenLog) Daily(context.Context, storage.Filter) ([]storage.DailyCount, error) {
	return nil, b.err
}
func (b *brokenLog) Overview(context.Context) (*storage.Overview, error) { return nil, b.err }
func (b *brokenLog) Ping(context.Context) error                         { return b.err }
func (b *brokenLog) Close() error                                       { return nil }

func TestRecordView_ConcurrentWritesAllVisible(t *testing.T) {
	svc := newTestService(t, Options{}, storage.LogOptions{LockTimeout: 10 * time.Second})
	ctx := context.Background()

	const n = 100
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- svc.RecordView(ctx, fmt.Sprintf("site%d.test", i%4), "/")
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	summary, err := svc.QueryStats(ctx, StatsRequest{Limit: n})
	require.NoError(t, err)
	assert.Equal(t, int64(n), summary.TotalEvents)
	assert.Equal(t, int64(4), summary.UniquePages)
	assert.Len(t, summary.Latest, n)
}

func TestQueryStats_Example(t *testing.T) {
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	tick := 0
	svc := newTestService(t, Options{}, storage.LogOptions{Now: func() time.Time {
		ts := base.Add(time.Duration(tick) * time.Second)
		tick++
		return ts
	}})
	ctx := context.Background()

	require.NoError(t, svc.RecordView(ctx, "example.com", "/home"))
	require.NoError(t, svc.RecordView(ctx, "example.com", "/home"))
	require.NoError(t, svc.RecordView(ctx, "other.com", "/about"))

	all, err := svc.QueryStats(ctx, StatsRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), all.TotalEvents)
	assert.Equal(t, int64(2), all.UniquePages)
	require.NotEmpty(t, all.Latest)
	assert.Equal(t, "/about", all.Latest[0].Page)
	assert.Equal(t, base.Add(2*time.Second).Unix(), all.Latest[0].Timestamp.Unix())

	filtered, err := svc.QueryStats(ctx, StatsRequest{Domain: "example.com", ByDomain: true})
	require.NoError(t, err)
	assert.Equal(t, int64(2), filtered.TotalEvents)
	assert.Equal(t, int64(1), filtered.UniquePages)
}

func TestQueryStats_UnknownDomain(t *testing.T) {
	svc := newTestService(t, Options{}, storage.LogOptions{})
	ctx := context.Background()
	require.NoError(t, svc.RecordView(ctx, "example.com", "/"))

	summary, err := svc.QueryStats(ctx, StatsRequest{Domain: "never.test", ByDomain: true})
	require.NoError(t, err)
	assert.Equal(t, int64(0), summary.TotalEvents)
	assert.Equal(t, int64(0), summary.UniquePages)
	assert.NotNil(t, summary.Latest)
	assert.Empty(t, summary.Latest)
}

func TestQueryStats_EmptyDomainIsAFilterValue(t *testing.T) {
	svc := newTestService(t, Options{}, storage.LogOptions{})
	ctx := context.Background()
	require.NoError(t, svc.RecordView(ctx, "", ""))
	require.NoError(t, svc.RecordView(ctx, "example.com", "/"))

	summary, err := svc.QueryStats(ctx, StatsRequest{Domain: "", ByDomain: true})
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.TotalEvents)

	summary, err = svc.QueryStats(ctx, StatsRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.TotalEvents)
}

func TestQueryStats_RepeatedPairsCollapse(t *testing.T) {
	svc := newTestService(t, Options{}, storage.LogOptions{})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, svc.RecordView(ctx, "a.com", "/same"))
	}
	require.NoError(t, svc.RecordView(ctx, "a.com", "/other"))
	require.NoError(t, svc.RecordView(ctx, "b.com", "/same"))

	summary, err := svc.QueryStats(ctx, StatsRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(7), summary.TotalEvents)
	assert.Equal(t, int64(3), summary.UniquePages)
}

func TestQueryStats_DefaultAndMaxLimit(t *testing.T) {
	svc := newTestService(t, Options{DefaultLimit: 3, MaxLimit: 5}, storage.LogOptions{})
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		require.NoError(t, svc.RecordView(ctx, "a.com", fmt.Sprintf("/%d", i)))
	}

	summary, err := svc.QueryStats(ctx, StatsRequest{})
	require.NoError(t, err)
	assert.Len(t, summary.Latest, 3)
	assert.Equal(t, int64(12), summary.TotalEvents)

	summary, err = svc.QueryStats(ctx, StatsRequest{Limit: 500})
	require.NoError(t, err)
	assert.Len(t, summary.Latest, 5)

	// newest first
	assert.Equal(t, "/11", summary.Latest[0].Page)
	assert.Equal(t, "/7", summary.Latest[4].Page)
}

func TestQueryStats_Idempotent(t *testing.T) {
	svc := newTestService(t, Options{}, storage.LogOptions{})
	ctx := context.Background()
	require.NoError(t, svc.RecordView(ctx, "a.com", "/1"))
	require.NoError(t, svc.RecordView(ctx, "b.com", "/2"))

	first, err := svc.QueryStats(ctx, StatsRequest{})
	require.NoError(t, err)
	second, err := svc.QueryStats(ctx, StatsRequest{})
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestEffectiveLimit(t *testing.T) {
	svc := New(&brokenLog{}, Options{DefaultLimit: 10, MaxLimit: 100})

	assert.Equal(t, 10, svc.EffectiveLimit(0))
	assert.Equal(t, 10, svc.EffectiveLimit(-4))
	assert.Equal(t, 42, svc.EffectiveLimit(42))
	assert.Equal(t, 100, svc.EffectiveLimit(1000))
}

func TestNew_MaxBelowDefaultIsRaised(t *testing.T) {
	svc := New(&brokenLog{}, Options{DefaultLimit: 50, MaxLimit: 5})
	assert.Equal(t, 50, svc.EffectiveLimit(500))
}

func TestRecordView_StorageFailureIsWriteError(t *testing.T) {
	cause := errors.New("disk full")
	svc := New(&brokenLog{err: cause}, Options{})

	err := svc.RecordView(context.Background(), "a.com", "/")
	require.Error(t, err)

	var werr *WriteError
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, "a.com", werr.Domain)
	assert.ErrorIs(t, err, cause)
	assert.False(t, IsTimeout(err))
}

func TestRecordView_LockTimeoutIsWriteError(t *testing.T) {
	svc := New(&brokenLog{err: storage.ErrLockTimeout}, Options{})

	err := svc.RecordView(context.Background(), "a.com", "/")
	var werr *WriteError
	require.ErrorAs(t, err, &werr)
	assert.True(t, IsTimeout(err))
}

func TestQueryStats_StorageFailureIsQueryError(t *testing.T) {
	svc := New(&brokenLog{err: errors.New("unable to open database file")}, Options{})

	summary, err := svc.QueryStats(context.Background(), StatsRequest{})
	assert.Nil(t, summary)

	var qerr *QueryError
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, "query stats", qerr.Op)
}

func TestDailyViews_StorageFailureIsQueryError(t *testing.T) {
	svc := New(&brokenLog{err: errors.New("boom")}, Options{})

	_, err := svc.DailyViews(context.Background(), StatsRequest{})
	var qerr *QueryError
	assert.ErrorAs(t, err, &qerr)
}

func TestOverview_StorageFailureIsLoggedQueryError(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "error", Console: &buf})
	require.NoError(t, err)

	cause := errors.New("scan top domain: bad row")
	svc := New(&brokenLog{err: cause}, Options{Logger: logger})

	ov, err := svc.Overview(context.Background())
	assert.Nil(t, ov)

	var qerr *QueryError
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, "query overview", qerr.Op)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, buf.String(), "ERROR: query overview: scan top domain: bad row")
}

func TestQueryStats_ConsistentWhileRecording(t *testing.T) {
	svc := newTestService(t, Options{}, storage.LogOptions{LockTimeout: 10 * time.Second})
	ctx := context.Background()

	const writers, perWriter = 8, 25
	var wg sync.WaitGroup
	errs := make(chan error, writers*perWriter)
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				errs <- svc.RecordView(ctx, "example.com", fmt.Sprintf("/w%d/%d", w, i))
			}
		}(w)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	var last int64
	for reading := true; reading; {
		select {
		case <-done:
			reading = false
		default:
		}
		summary, err := svc.QueryStats(ctx, StatsRequest{Limit: 1})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, summary.TotalEvents, last, "total went backwards")
		assert.Equal(t, summary.TotalEvents, summary.UniquePages)
		if summary.TotalEvents > 0 {
			require.Len(t, summary.Latest, 1)
			assert.Equal(t, summary.TotalEvents, summary.Latest[0].ID)
		}
		last = summary.TotalEvents
	}

	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	summary, err := svc.QueryStats(ctx, StatsRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(writers*perWriter), summary.TotalEvents)
}

func TestDailyViews(t *testing.T) {
	svc := newTestService(t, Options{}, storage.LogOptions{Now: func() time.Time {
		return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	}})
	ctx := context.Background()
	require.NoError(t, svc.RecordView(ctx, "a.com", "/"))
	require.NoError(t, svc.RecordView(ctx, "a.com", "/"))

	counts, err := svc.DailyViews(ctx, StatsRequest{Domain: "a.com", ByDomain: true})
	require.NoError(t, err)
	require.Len(t, counts, 1)
	assert.Equal(t, "2024-05-01", counts[0].Date)
	assert.Equal(t, int64(2), counts[0].ViewCount)
}

func TestIsTimeout(t *testing.T) {
	assert.True(t, IsTimeout(context.DeadlineExceeded))
	assert.True(t, IsTimeout(fmt.Errorf("insert view: %w", sqlite3.Error{Code: sqlite3.ErrBusy})))
	assert.False(t, IsTimeout(sqlite3.Error{Code: sqlite3.ErrFull}))
	assert.False(t, IsTimeout(errors.New("nope")))
}
