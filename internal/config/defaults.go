package config

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:                   "0.0.0.0",
			Port:                   8080,
			ReadTimeoutSeconds:     10,
			ShutdownTimeoutSeconds: 10,
			GinMode:                "release",
		},
		Storage: StorageConfig{
			Path:               "~/.local/share/pixelcount",
			SQLiteFile:         "analytics.db",
			BusyTimeoutMS:      5000,
			WriteLockTimeoutMS: 5000,
		},
		Query: QueryConfig{
			DefaultLimit: 10,
			MaxLimit:     1000,
		},
		Logging: LoggingConfig{
			Level:      "info",
			File:       "pixelcount.log",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
			AccessLog:  true,
		},
	}
}
