package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/runnerr0/pixelcount/internal/logging"
)

// Default config file path.
const DefaultConfigPath = "~/.config/pixelcount/config.yaml"

// Config holds all pixelcount configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Query   QueryConfig   `yaml:"query"`
	Logging LoggingConfig `yaml:"logging"`
}

type ServerConfig struct {
	Host                   string `yaml:"host" env:"PIXELCOUNT_HOST"`
	Port                   int    `yaml:"port" env:"PIXELCOUNT_PORT"`
	ReadTimeoutSeconds     int    `yaml:"read_timeout_seconds" env:"PIXELCOUNT_READ_TIMEOUT_SECONDS"`
	ShutdownTimeoutSeconds int    `yaml:"shutdown_timeout_seconds" env:"PIXELCOUNT_SHUTDOWN_TIMEOUT_SECONDS"`
	GinMode                string `yaml:"gin_mode" env:"PIXELCOUNT_GIN_MODE"`
}

type StorageConfig struct {
	Path               string `yaml:"path" env:"PIXELCOUNT_DATA_DIR"`
	SQLiteFile         string `yaml:"sqlite_file" env:"PIXELCOUNT_DB_FILE"`
	BusyTimeoutMS      int    `yaml:"busy_timeout_ms" env:"PIXELCOUNT_BUSY_TIMEOUT_MS"`
	WriteLockTimeoutMS int    `yaml:"write_lock_timeout_ms" env:"PIXELCOUNT_WRITE_LOCK_TIMEOUT_MS"`
}

type QueryConfig struct {
	DefaultLimit int `yaml:"default_limit" env:"PIXELCOUNT_DEFAULT_LIMIT"`
	MaxLimit     int `yaml:"max_limit" env:"PIXELCOUNT_MAX_LIMIT"`
}

type LoggingConfig struct {
	Level      string `yaml:"level" env:"PIXELCOUNT_LOG_LEVEL"`
	File       string `yaml:"file" env:"PIXELCOUNT_LOG_FILE"`
	MaxSize    int    `yaml:"max_size"` // megabytes
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"` // days
	Compress   bool   `yaml:"compress"`
	AccessLog  bool   `yaml:"access_log" env:"PIXELCOUNT_ACCESS_LOG"`
}

// Load reads a YAML config file at path and merges it with defaults.
// Returns an error if the file cannot be read or contains invalid YAML.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}

// expandPath replaces a leading ~ with the user's home directory.
func expandPath(path string) (string, error) {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// LoadOrCreate loads the config from the default path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreate() (*Config, error) {
	path, err := expandPath(DefaultConfigPath)
	if err != nil {
		return nil, err
	}
	return LoadOrCreateAt(path)
}

// LoadOrCreateAt loads the config from the given path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreateAt(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()

		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating config directory: %w", err)
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("marshaling default config: %w", err)
		}

		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, fmt.Errorf("writing default config: %w", err)
		}

		return cfg, nil
	}

	return Load(path)
}

// Resolve produces the effective configuration: the file at path (or the
// default path, created on first use), then environment overrides, then
// validation.
func Resolve(path string) (*Config, error) {
	var (
		cfg *Config
		err error
	)
	if path == "" {
		cfg, err = LoadOrCreate()
	} else {
		var expanded string
		expanded, err = expandPath(path)
		if err != nil {
			return nil, err
		}
		cfg, err = Load(expanded)
	}
	if err != nil {
		return nil, err
	}

	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the server cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Storage.SQLiteFile == "" {
		return fmt.Errorf("storage.sqlite_file is required")
	}
	if c.Query.DefaultLimit <= 0 {
		return fmt.Errorf("query.default_limit must be positive, got %d", c.Query.DefaultLimit)
	}
	if c.Query.MaxLimit < c.Query.DefaultLimit {
		return fmt.Errorf("query.max_limit (%d) must be >= query.default_limit (%d)", c.Query.MaxLimit, c.Query.DefaultLimit)
	}
	switch c.Server.GinMode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("server.gin_mode must be one of debug, release, test; got %q", c.Server.GinMode)
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	return nil
}

// DatabasePath returns the expanded path of the SQLite file.
func (c *Config) DatabasePath() (string, error) {
	if filepath.IsAbs(c.Storage.SQLiteFile) {
		return c.Storage.SQLiteFile, nil
	}
	dir, err := expandPath(c.Storage.Path)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, c.Storage.SQLiteFile), nil
}

// LogFilePath returns the expanded log file path, relative files being
// placed next to the database. Empty means console only.
func (c *Config) LogFilePath() (string, error) {
	if c.Logging.File == "" || filepath.IsAbs(c.Logging.File) {
		return c.Logging.File, nil
	}
	dir, err := expandPath(c.Storage.Path)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, c.Logging.File), nil
}

// Addr returns the host:port the HTTP server listens on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) BusyTimeout() time.Duration {
	return time.Duration(c.Storage.BusyTimeoutMS) * time.Millisecond
}

func (c *Config) WriteLockTimeout() time.Duration {
	return time.Duration(c.Storage.WriteLockTimeoutMS) * time.Millisecond
}

func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.Server.ReadTimeoutSeconds) * time.Second
}

func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}
