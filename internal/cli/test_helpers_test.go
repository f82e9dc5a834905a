package cli

import (
	"bytes"
	"database/sql"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/runnerr0/pixelcount/internal/storage"
	"github.com/runnerr0/pixelcount/internal/tracker"
)

// captureOutput captures stdout during fn execution and returns it as a string.
func captureOutput(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}

// newTestService opens a migrated database in a temp dir and returns a
// tracker over it along with the raw db and its path.
func newTestService(t *testing.T) (*tracker.Service, *sql.DB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "analytics.db")
	db, err := storage.Open(path, time.Second)
	require.NoError(t, err)

	log, err := storage.NewSQLiteLog(db, storage.LogOptions{LockTimeout: time.Second})
	require.NoError(t, err)
	t.Cleanup(func() {
		log.Close()
		db.Close()
	})

	return tracker.New(log, tracker.Options{}), db, path
}
