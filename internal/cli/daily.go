package cli

import (
	"context"
	"fmt"

	"github.com/runnerr0/pixelcount/internal/tracker"
)

type dailyOutput struct {
	Domain    string `json:"domain"`
	Page      string `json:"page"`
	Date      string `json:"date"`
	ViewCount int64  `json:"view_count"`
}

// Execute implements the go-flags Commander interface for DailyCommand.
func (c *DailyCommand) Execute(args []string) error {
	rt, err := openRuntime(c.globals, false)
	if err != nil {
		return err
	}
	defer rt.Close()

	return c.executeWithService(rt.svc)
}

func (c *DailyCommand) executeWithService(svc *tracker.Service) error {
	req, err := domainRequest(c.Domain, 0)
	if err != nil {
		return err
	}

	counts, err := svc.DailyViews(context.Background(), req)
	if err != nil {
		return err
	}

	if c.globals != nil && c.globals.JSON {
		out := make([]dailyOutput, len(counts))
		for i, dc := range counts {
			out[i] = dailyOutput{Domain: dc.Domain, Page: dc.Page, Date: dc.Date, ViewCount: dc.ViewCount}
		}
		return printJSON(map[string]any{"days": out})
	}

	if len(counts) == 0 {
		fmt.Println("No views recorded.")
		return nil
	}

	for _, dc := range counts {
		fmt.Printf("%s  %8s  %s  %s\n", dc.Date, formatNumber(dc.ViewCount), displayName(dc.Domain), displayName(dc.Page))
	}
	return nil
}
