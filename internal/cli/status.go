package cli

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/runnerr0/pixelcount/internal/storage"
	"github.com/runnerr0/pixelcount/internal/tracker"
)

// statusJSON is the JSON output structure for the status command.
type statusJSON struct {
	Version           string            `json:"version"`
	DatabasePath      string            `json:"database_path"`
	DatabaseSizeBytes int64             `json:"database_size_bytes"`
	TotalEvents       int64             `json:"total_events"`
	UniquePages       int64             `json:"unique_pages"`
	Domains           int64             `json:"domains"`
	OldestEvent       string            `json:"oldest_event,omitempty"`
	NewestEvent       string            `json:"newest_event,omitempty"`
	TopDomains        []domainCountJSON `json:"top_domains"`
}

type domainCountJSON struct {
	Domain string `json:"domain"`
	Count  int64  `json:"count"`
}

// Execute implements the go-flags Commander interface for StatusCommand.
func (c *StatusCommand) Execute(args []string) error {
	rt, err := openRuntime(c.globals, false)
	if err != nil {
		return err
	}
	defer rt.Close()

	return c.executeWithService(rt.svc, rt.db, rt.dbPath)
}

// executeWithService runs status against a provided service and db (for testing).
func (c *StatusCommand) executeWithService(svc *tracker.Service, db *sql.DB, dbPath string) error {
	ov, err := svc.Overview(context.Background())
	if err != nil {
		return err
	}

	dbSize := getDatabaseSize(db, dbPath)

	if c.globals != nil && c.globals.JSON {
		return c.printStatusJSON(ov, dbPath, dbSize)
	}
	return c.printStatusHuman(ov, dbPath, dbSize)
}

func (c *StatusCommand) printStatusHuman(ov *storage.Overview, dbPath string, dbSize int64) error {
	fmt.Println("pixelcount status")
	fmt.Println("=================")
	fmt.Printf("Version:       %s\n", c.version)
	fmt.Printf("Database:      %s (%s)\n", dbPath, formatBytes(dbSize))
	fmt.Printf("Views:         %s\n", formatNumber(ov.TotalEvents))
	fmt.Printf("Unique pages:  %s\n", formatNumber(ov.UniquePages))
	fmt.Printf("Domains:       %s\n", formatNumber(ov.Domains))

	if ov.TotalEvents > 0 {
		fmt.Printf("Oldest:        %s\n", ov.OldestEvent.Local().Format("2006-01-02"))
		fmt.Printf("Newest:        %s\n", ov.NewestEvent.Local().Format("2006-01-02"))
	}

	if len(ov.TopDomains) > 0 {
		fmt.Println()
		fmt.Println("Top Domains:")
		for _, d := range ov.TopDomains {
			fmt.Printf("  %-20s %s\n", displayName(d.Domain), formatNumber(d.Count))
		}
	}

	return nil
}

func (c *StatusCommand) printStatusJSON(ov *storage.Overview, dbPath string, dbSize int64) error {
	out := statusJSON{
		Version:           c.version,
		DatabasePath:      dbPath,
		DatabaseSizeBytes: dbSize,
		TotalEvents:       ov.TotalEvents,
		UniquePages:       ov.UniquePages,
		Domains:           ov.Domains,
		TopDomains:        make([]domainCountJSON, len(ov.TopDomains)),
	}

	if ov.TotalEvents > 0 {
		out.OldestEvent = ov.OldestEvent.UTC().Format(time.RFC3339)
		out.NewestEvent = ov.NewestEvent.UTC().Format(time.RFC3339)
	}

	for i, d := range ov.TopDomains {
		out.TopDomains[i] = domainCountJSON{Domain: d.Domain, Count: d.Count}
	}

	return printJSON(out)
}
