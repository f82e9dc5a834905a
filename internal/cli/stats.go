package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/runnerr0/pixelcount/internal/tracker"
)

type latestJSON struct {
	TS     int64  `json:"ts"`
	Domain string `json:"domain"`
	Page   string `json:"page"`
}

type statsOutput struct {
	TotalEvents int64        `json:"total_events"`
	UniquePages int64        `json:"unique_pages"`
	Latest      []latestJSON `json:"latest"`
}

// Execute implements the go-flags Commander interface for StatsCommand.
func (c *StatsCommand) Execute(args []string) error {
	rt, err := openRuntime(c.globals, false)
	if err != nil {
		return err
	}
	defer rt.Close()

	return c.executeWithService(rt.svc)
}

// executeWithService runs the query against svc (used by tests).
func (c *StatsCommand) executeWithService(svc *tracker.Service) error {
	req, err := domainRequest(c.Domain, c.Limit)
	if err != nil {
		return err
	}

	summary, err := svc.QueryStats(context.Background(), req)
	if err != nil {
		return err
	}

	if c.globals != nil && c.globals.JSON {
		out := statsOutput{
			TotalEvents: summary.TotalEvents,
			UniquePages: summary.UniquePages,
			Latest:      make([]latestJSON, len(summary.Latest)),
		}
		for i, e := range summary.Latest {
			out.Latest[i] = latestJSON{TS: e.Timestamp.Unix(), Domain: e.Domain, Page: e.Page}
		}
		return printJSON(out)
	}

	if len(c.Domain) > 0 {
		fmt.Printf("Domain:        %s\n", displayName(c.Domain[0]))
	}
	fmt.Printf("Total views:   %s\n", formatNumber(summary.TotalEvents))
	fmt.Printf("Unique pages:  %s\n", formatNumber(summary.UniquePages))

	if len(summary.Latest) == 0 {
		fmt.Println()
		fmt.Println("No views recorded.")
		return nil
	}

	fmt.Println()
	fmt.Println("Latest:")
	for _, e := range summary.Latest {
		fmt.Printf("  %s  %s  %s\n",
			e.Timestamp.Local().Format(time.DateTime), displayName(e.Domain), displayName(e.Page))
	}
	return nil
}
