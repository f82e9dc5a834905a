package cli

import (
	"fmt"
	"os"

	goflags "github.com/jessevdk/go-flags"
)

// commands holds references to all subcommand structs for inspection/testing.
type commands struct {
	Serve  *ServeCommand
	Record *RecordCommand
	Stats  *StatsCommand
	Daily  *DailyCommand
	Status *StatusCommand
}

// buildParser constructs the go-flags parser with all subcommands registered.
func buildParser(version string) (*goflags.Parser, *GlobalFlags, *commands) {
	var globals GlobalFlags

	parser := goflags.NewParser(&globals, goflags.Default)
	parser.Name = "pixelcount"
	parser.LongDescription = "Self-hosted page view counter: a tracking pixel plus a JSON summary of recorded views."

	cmds := &commands{
		Serve:  &ServeCommand{globals: &globals, version: version},
		Record: &RecordCommand{globals: &globals, version: version},
		Stats:  &StatsCommand{globals: &globals, version: version},
		Daily:  &DailyCommand{globals: &globals, version: version},
		Status: &StatusCommand{globals: &globals, version: version},
	}

	parser.AddCommand("serve", "Run the HTTP server", "Serve /counter.gif, /stats.json, /daily.json and /healthz until interrupted.", cmds.Serve)
	parser.AddCommand("record", "Record a page view", "Record one page view for a domain and page, as the pixel would.", cmds.Record)
	parser.AddCommand("stats", "Show view summary", "Show total views, distinct pages and the most recent views.", cmds.Stats)
	parser.AddCommand("daily", "Show views per day", "Show view counts per domain, page and UTC day.", cmds.Daily)
	parser.AddCommand("status", "Show database statistics", "Show database location, size and aggregate statistics.", cmds.Status)

	return parser, &globals, cmds
}

// Run is the main entry point for the CLI using os.Args.
func Run(version string) error {
	return RunWithArgs(version, nil)
}

// RunWithArgs parses the given args (or os.Args if nil) and executes the matched subcommand.
func RunWithArgs(version string, args []string) error {
	// Handle --version before parser (go-flags requires a subcommand, but
	// --version is valid without one).
	checkArgs := args
	if checkArgs == nil {
		checkArgs = os.Args[1:]
	}
	for _, arg := range checkArgs {
		if arg == "--version" {
			fmt.Printf("pixelcount %s\n", version)
			return nil
		}
		if arg == "--" {
			break
		}
	}

	parser, _, _ := buildParser(version)

	var err error
	if args != nil {
		_, err = parser.ParseArgs(args)
	} else {
		_, err = parser.Parse()
	}

	if err != nil {
		if flagsErr, ok := err.(*goflags.Error); ok {
			if flagsErr.Type == goflags.ErrHelp {
				return nil
			}
		}
		return err
	}

	return nil
}
