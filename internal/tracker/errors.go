package tracker

import (
	"context"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/runnerr0/pixelcount/internal/storage"
)

// WriteError reports a view that could not be recorded. The caller decides
// whether to retry; the service never does.
type WriteError struct {
	Domain string
	Page   string
	Err    error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("record view (domain=%q page=%q): %v", e.Domain, e.Page, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// QueryError reports a read that could not be answered. No partial result
// accompanies it.
type QueryError struct {
	Op  string
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// IsTimeout reports whether err was caused by lock contention or an
// expired deadline rather than a hard storage failure.
func IsTimeout(err error) bool {
	if errors.Is(err, storage.ErrLockTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}
