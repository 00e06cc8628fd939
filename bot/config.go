package bot

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/The-Earth/catbot/internal/logger"
	"github.com/The-Earth/catbot/pkg/constants"
	"github.com/The-Earth/catbot/store"
	"github.com/The-Earth/catbot/telegram"
	"gopkg.in/yaml.v3"
)

// Config is the full bot configuration. It is immutable after Start;
// reloading means building a new Bot from a freshly loaded Config.
type Config struct {
	Token   string        `yaml:"token"`
	APIHost string        `yaml:"api_host"`
	Proxy   ProxyConfig   `yaml:"proxy"`
	Poll    PollConfig    `yaml:"poll"`
	Retry   RetryConfig   `yaml:"retry"`
	Workers WorkerConfig  `yaml:"workers"`
	Storage StorageConfig `yaml:"storage"`
	Logging LoggingConfig `yaml:"logging"`
}

// ProxyConfig routes Bot API traffic through an HTTP proxy.
type ProxyConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
}

// PollConfig tunes the getUpdates long poll.
type PollConfig struct {
	TimeoutSeconds int `yaml:"timeout_seconds"`
	Limit          int `yaml:"limit"`
}

// Timeout returns the long-poll timeout as a duration.
func (p PollConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// RetryConfig tunes transport retry behavior. Delays are duration
// strings such as "500ms" or "2s".
type RetryConfig struct {
	MaxRetries   int    `yaml:"max_retries"`
	InitialDelay string `yaml:"initial_delay"`
	MaxDelay     string `yaml:"max_delay"`
}

// WorkerConfig bounds concurrent handler execution.
type WorkerConfig struct {
	MaxConcurrent int `yaml:"max_concurrent"`
}

// StorageConfig selects the cursor store backend. Exactly one of
// CursorFile or SQLitePath is used; with both empty a cursor file next
// to the process is the default.
type StorageConfig struct {
	CursorFile string `yaml:"cursor_file"`
	SQLitePath string `yaml:"sqlite_path"`
}

// LoggingConfig mirrors logger.Config in YAML form.
type LoggingConfig struct {
	Level        string `yaml:"level"`
	File         string `yaml:"file"`
	MaxSize      int    `yaml:"max_size"`
	MaxBackups   int    `yaml:"max_backups"`
	MaxAge       int    `yaml:"max_age"`
	Compress     bool   `yaml:"compress"`
	EnableStdout bool   `yaml:"enable_stdout"`
}

const (
	defaultCursorFile = "catbot.cursor"
	defaultLogLevel   = "info"
)

// LoadConfig reads a YAML config file, expands ${VAR} environment
// references, validates and applies defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded, err := expandEnv(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to expand environment variables: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// expandEnv replaces ${VAR_NAME} patterns with environment variable
// values, failing on any unset variable.
func expandEnv(input string) (string, error) {
	var missing []string

	result := os.Expand(input, func(key string) string {
		if val := os.Getenv(key); val != "" {
			return val
		}
		missing = append(missing, key)
		return ""
	})

	if len(missing) > 0 {
		return "", fmt.Errorf("missing required environment variables: %s",
			strings.Join(missing, ", "))
	}

	return result, nil
}

// Validate checks the configuration and fills in defaults.
func (c *Config) Validate() error {
	if c.Token == "" {
		return fmt.Errorf("token is required")
	}

	if c.Proxy.Enabled && c.Proxy.URL == "" {
		return fmt.Errorf("proxy.url is required when proxy is enabled")
	}

	if c.Poll.TimeoutSeconds == 0 {
		c.Poll.TimeoutSeconds = int(constants.DefaultPollTimeout.Seconds())
	}
	if c.Poll.TimeoutSeconds < 0 {
		return fmt.Errorf("poll.timeout_seconds must not be negative (got %d)", c.Poll.TimeoutSeconds)
	}
	if max := int(constants.MaxPollTimeout.Seconds()); c.Poll.TimeoutSeconds > max {
		return fmt.Errorf("poll.timeout_seconds must be at most %d (got %d)", max, c.Poll.TimeoutSeconds)
	}
	if c.Poll.Limit == 0 {
		c.Poll.Limit = constants.MaxUpdatesPerBatch
	}
	if c.Poll.Limit < 1 || c.Poll.Limit > constants.MaxUpdatesPerBatch {
		return fmt.Errorf("poll.limit must be between 1 and %d (got %d)",
			constants.MaxUpdatesPerBatch, c.Poll.Limit)
	}

	if c.Retry.MaxRetries == 0 {
		c.Retry.MaxRetries = constants.DefaultMaxRetries
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must not be negative (got %d)", c.Retry.MaxRetries)
	}
	if c.Retry.InitialDelay == "" {
		c.Retry.InitialDelay = constants.DefaultInitialRetryDelay.String()
	}
	if _, err := time.ParseDuration(c.Retry.InitialDelay); err != nil {
		return fmt.Errorf("invalid retry.initial_delay: %w", err)
	}
	if c.Retry.MaxDelay == "" {
		c.Retry.MaxDelay = constants.DefaultMaxRetryDelay.String()
	}
	if _, err := time.ParseDuration(c.Retry.MaxDelay); err != nil {
		return fmt.Errorf("invalid retry.max_delay: %w", err)
	}

	if c.Workers.MaxConcurrent == 0 {
		c.Workers.MaxConcurrent = constants.DefaultMaxConcurrentHandlers
	}
	if c.Workers.MaxConcurrent < 1 {
		return fmt.Errorf("workers.max_concurrent must be at least 1 (got %d)", c.Workers.MaxConcurrent)
	}

	if c.Storage.CursorFile != "" && c.Storage.SQLitePath != "" {
		return fmt.Errorf("storage.cursor_file and storage.sqlite_path are mutually exclusive")
	}
	if c.Storage.CursorFile == "" && c.Storage.SQLitePath == "" {
		c.Storage.CursorFile = defaultCursorFile
	}

	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}

	return nil
}

// ClientConfig derives the transport configuration.
func (c *Config) ClientConfig() telegram.ClientConfig {
	initialDelay, _ := time.ParseDuration(c.Retry.InitialDelay)
	maxDelay, _ := time.ParseDuration(c.Retry.MaxDelay)

	cfg := telegram.ClientConfig{
		Token:             c.Token,
		APIHost:           c.APIHost,
		MaxRetries:        c.Retry.MaxRetries,
		InitialRetryDelay: initialDelay,
		MaxRetryDelay:     maxDelay,
	}
	if c.Proxy.Enabled {
		cfg.ProxyURL = c.Proxy.URL
	}
	return cfg
}

// LoggerConfig derives the logger configuration.
func (c *Config) LoggerConfig() logger.Config {
	return logger.Config{
		Level:        c.Logging.Level,
		File:         c.Logging.File,
		MaxSize:      c.Logging.MaxSize,
		MaxBackups:   c.Logging.MaxBackups,
		MaxAge:       c.Logging.MaxAge,
		Compress:     c.Logging.Compress,
		EnableStdout: c.Logging.EnableStdout,
	}
}

// OpenStore opens the configured cursor store backend.
func (c *Config) OpenStore() (store.CursorStore, error) {
	if c.Storage.SQLitePath != "" {
		return store.NewSQLiteStore(c.Storage.SQLitePath)
	}
	path := c.Storage.CursorFile
	if path == "" {
		path = defaultCursorFile
	}
	return store.NewFileStore(path)
}
