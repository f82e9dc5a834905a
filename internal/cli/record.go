package cli

import (
	"context"
	"fmt"

	"github.com/runnerr0/pixelcount/internal/tracker"
)

// Execute implements the go-flags Commander interface for RecordCommand.
func (c *RecordCommand) Execute(args []string) error {
	rt, err := openRuntime(c.globals, false)
	if err != nil {
		return err
	}
	defer rt.Close()

	return c.executeWithService(rt.svc)
}

// executeWithService records the view through svc (used by tests).
func (c *RecordCommand) executeWithService(svc *tracker.Service) error {
	if err := svc.RecordView(context.Background(), c.Domain, c.Page); err != nil {
		return err
	}

	if c.globals != nil && c.globals.JSON {
		return printJSON(map[string]any{
			"recorded": true,
			"domain":   c.Domain,
			"page":     c.Page,
		})
	}

	fmt.Printf("Recorded view of %s%s\n", displayName(c.Domain), c.Page)
	return nil
}
