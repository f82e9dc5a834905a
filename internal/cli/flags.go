package cli

// GlobalFlags holds flags available to all subcommands.
type GlobalFlags struct {
	Config  string `long:"config" description:"Path to config file" default:""`
	DB      string `long:"db" description:"Override the SQLite database path"`
	JSON    bool   `long:"json" description:"Output in JSON format"`
	Verbose bool   `long:"verbose" description:"Enable debug logging"`
	Version bool   `long:"version" description:"Show version and exit"`
}

// ServeCommand: run the HTTP server.
type ServeCommand struct {
	Host string `long:"host" description:"Override listen host"`
	Port int    `long:"port" description:"Override listen port"`

	globals *GlobalFlags
	version string
}

// RecordCommand: record a single view by hand.
type RecordCommand struct {
	Domain string `long:"domain" description:"Domain of the viewed page (empty if omitted)"`
	Page   string `long:"page" description:"Path or key of the viewed page (empty if omitted)"`

	globals *GlobalFlags
	version string
}

// StatsCommand: summary plus most recent views.
type StatsCommand struct {
	Domain []string `long:"domain" description:"Only count views of this domain (exact match, at most once)"`
	Limit  int      `long:"limit" description:"Maximum recent views to list (0 = configured default)" default:"0"`

	globals *GlobalFlags
	version string
}

// DailyCommand: per-day view counts.
type DailyCommand struct {
	Domain []string `long:"domain" description:"Only count views of this domain (exact match, at most once)"`

	globals *GlobalFlags
	version string
}

// StatusCommand: database location, size and statistics.
type StatusCommand struct {
	globals *GlobalFlags
	version string
}
