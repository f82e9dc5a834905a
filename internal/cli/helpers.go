package cli

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/runnerr0/pixelcount/internal/config"
	"github.com/runnerr0/pixelcount/internal/logging"
	"github.com/runnerr0/pixelcount/internal/storage"
	"github.com/runnerr0/pixelcount/internal/tracker"
)

// runtime bundles everything a subcommand needs against the configured store.
type runtime struct {
	cfg    *config.Config
	dbPath string
	db     *sql.DB
	log    *storage.SQLiteLog
	svc    *tracker.Service
	logger *logging.Logger
}

// openRuntime resolves configuration, opens and migrates the database and
// builds the tracker. fileLogging enables the rotating log file; one-shot
// commands log to the console only.
func openRuntime(g *GlobalFlags, fileLogging bool) (*runtime, error) {
	var configPath string
	if g != nil {
		configPath = g.Config
	}
	cfg, err := config.Resolve(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	dbPath, err := cfg.DatabasePath()
	if err != nil {
		return nil, err
	}
	if g != nil && g.DB != "" {
		dbPath = g.DB
	}

	logger, err := newLogger(cfg, g, fileLogging)
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}

	db, err := storage.Open(dbPath, cfg.BusyTimeout())
	if err != nil {
		logger.Close()
		return nil, err
	}

	log, err := storage.NewSQLiteLog(db, storage.LogOptions{LockTimeout: cfg.WriteLockTimeout()})
	if err != nil {
		db.Close()
		logger.Close()
		return nil, fmt.Errorf("init event log: %w", err)
	}

	svc := tracker.New(log, tracker.Options{
		DefaultLimit: cfg.Query.DefaultLimit,
		MaxLimit:     cfg.Query.MaxLimit,
		Logger:       logger,
	})

	return &runtime{cfg: cfg, dbPath: dbPath, db: db, log: log, svc: svc, logger: logger}, nil
}

func (r *runtime) Close() {
	r.log.Close()
	r.db.Close()
	r.logger.Close()
}

func newLogger(cfg *config.Config, g *GlobalFlags, fileLogging bool) (*logging.Logger, error) {
	opts := logging.Options{
		Level:      cfg.Logging.Level,
		MaxSizeMB:  cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAge,
		Compress:   cfg.Logging.Compress,
	}
	if !fileLogging {
		opts.Level = "warn"
	} else {
		file, err := cfg.LogFilePath()
		if err != nil {
			return nil, err
		}
		opts.File = file
	}
	if g != nil && g.Verbose {
		opts.Level = "debug"
	}
	return logging.New(opts)
}

// domainRequest turns the --domain flag into a StatsRequest. The flag is a
// slice only so that an explicit empty domain can be told apart from no
// flag at all; giving it more than once is an error.
func domainRequest(domains []string, limit int) (tracker.StatsRequest, error) {
	req := tracker.StatsRequest{Limit: limit}
	switch len(domains) {
	case 0:
	case 1:
		req.Domain = domains[0]
		req.ByDomain = true
	default:
		return req, fmt.Errorf("--domain may be given only once, got %d", len(domains))
	}
	return req, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// getDatabaseSize returns the database file size in bytes, including the
// WAL file. Falls back to page_count * page_size.
func getDatabaseSize(db *sql.DB, dbPath string) int64 {
	if info, err := os.Stat(dbPath); err == nil {
		size := info.Size()
		if wal, err := os.Stat(dbPath + "-wal"); err == nil {
			size += wal.Size()
		}
		return size
	}

	var pageCount, pageSize int64
	if err := db.QueryRow("PRAGMA page_count").Scan(&pageCount); err != nil {
		return 0
	}
	if err := db.QueryRow("PRAGMA page_size").Scan(&pageSize); err != nil {
		return 0
	}
	return pageCount * pageSize
}

// formatBytes formats a byte count into a human-readable string.
func formatBytes(b int64) string {
	switch {
	case b >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// formatNumber formats an int64 with comma separators.
func formatNumber(n int64) string {
	s := fmt.Sprintf("%d", n)
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	if len(s) <= 3 {
		return s
	}

	var result strings.Builder
	remainder := len(s) % 3
	if remainder > 0 {
		result.WriteString(s[:remainder])
	}
	for i := remainder; i < len(s); i += 3 {
		if i > 0 {
			result.WriteString(",")
		}
		result.WriteString(s[i : i+3])
	}
	return result.String()
}

// displayName renders an empty domain or page visibly.
func displayName(s string) string {
	if s == "" {
		return "(empty)"
	}
	return s
}
