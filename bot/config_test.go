package bot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig_AppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, "token: abc123\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "abc123", cfg.Token)
	assert.Equal(t, 50, cfg.Poll.TimeoutSeconds)
	assert.Equal(t, 100, cfg.Poll.Limit)
	assert.Equal(t, 3, cfg.Retry.MaxRetries)
	assert.Equal(t, "500ms", cfg.Retry.InitialDelay)
	assert.Equal(t, "10s", cfg.Retry.MaxDelay)
	assert.Equal(t, 64, cfg.Workers.MaxConcurrent)
	assert.Equal(t, "catbot.cursor", cfg.Storage.CursorFile)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadConfig_ExpandsEnvironment(t *testing.T) {
	t.Setenv("CATBOT_TOKEN", "secret-token")
	path := writeConfigFile(t, "token: ${CATBOT_TOKEN}\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "secret-token", cfg.Token)
}

func TestLoadConfig_MissingEnvironmentVariable(t *testing.T) {
	path := writeConfigFile(t, "token: ${CATBOT_DEFINITELY_UNSET}\n")

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CATBOT_DEFINITELY_UNSET")
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := writeConfigFile(t, "token: [unclosed\n")

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestLoadConfig_FileMissing(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing token",
			mutate:  func(c *Config) { c.Token = "" },
			wantErr: "token is required",
		},
		{
			name:    "proxy enabled without url",
			mutate:  func(c *Config) { c.Proxy.Enabled = true },
			wantErr: "proxy.url",
		},
		{
			name:    "poll timeout too long",
			mutate:  func(c *Config) { c.Poll.TimeoutSeconds = 120 },
			wantErr: "poll.timeout_seconds",
		},
		{
			name:    "negative poll timeout",
			mutate:  func(c *Config) { c.Poll.TimeoutSeconds = -1 },
			wantErr: "poll.timeout_seconds",
		},
		{
			name:    "poll limit too large",
			mutate:  func(c *Config) { c.Poll.Limit = 500 },
			wantErr: "poll.limit",
		},
		{
			name:    "negative retries",
			mutate:  func(c *Config) { c.Retry.MaxRetries = -2 },
			wantErr: "retry.max_retries",
		},
		{
			name:    "bad initial delay",
			mutate:  func(c *Config) { c.Retry.InitialDelay = "soon" },
			wantErr: "retry.initial_delay",
		},
		{
			name:    "bad max delay",
			mutate:  func(c *Config) { c.Retry.MaxDelay = "later" },
			wantErr: "retry.max_delay",
		},
		{
			name:    "negative worker cap",
			mutate:  func(c *Config) { c.Workers.MaxConcurrent = -1 },
			wantErr: "workers.max_concurrent",
		},
		{
			name: "both storage backends",
			mutate: func(c *Config) {
				c.Storage.CursorFile = "a.cursor"
				c.Storage.SQLitePath = "a.db"
			},
			wantErr: "mutually exclusive",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{Token: "abc123"}
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestConfigValidate_ZeroValuesGetDefaults(t *testing.T) {
	cfg := &Config{Token: "abc123"}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 50*time.Second, cfg.Poll.Timeout())
	assert.Equal(t, 100, cfg.Poll.Limit)
	assert.Equal(t, 64, cfg.Workers.MaxConcurrent)
	assert.Equal(t, "catbot.cursor", cfg.Storage.CursorFile)
}

func TestConfig_ClientConfig(t *testing.T) {
	cfg := &Config{
		Token:   "abc123",
		APIHost: "tg.example.com",
	}
	require.NoError(t, cfg.Validate())

	cc := cfg.ClientConfig()
	assert.Equal(t, "abc123", cc.Token)
	assert.Equal(t, "tg.example.com", cc.APIHost)
	assert.Equal(t, 3, cc.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cc.InitialRetryDelay)
	assert.Equal(t, 10*time.Second, cc.MaxRetryDelay)
	assert.Empty(t, cc.ProxyURL, "proxy url only set when proxy is enabled")

	cfg.Proxy = ProxyConfig{Enabled: true, URL: "http://127.0.0.1:7890"}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "http://127.0.0.1:7890", cfg.ClientConfig().ProxyURL)
}

func TestConfig_OpenStoreSelectsBackend(t *testing.T) {
	dir := t.TempDir()

	cfg := &Config{Token: "abc123"}
	cfg.Storage.CursorFile = filepath.Join(dir, "bot.cursor")
	require.NoError(t, cfg.Validate())

	s, err := cfg.OpenStore()
	require.NoError(t, err)
	require.NoError(t, s.Save(3))
	require.NoError(t, s.Close())

	cfg = &Config{Token: "abc123"}
	cfg.Storage.SQLitePath = filepath.Join(dir, "bot.db")
	require.NoError(t, cfg.Validate())

	s, err = cfg.OpenStore()
	require.NoError(t, err)
	require.NoError(t, s.Save(4))
	cursor, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, int64(4), cursor)
	require.NoError(t, s.Close())
}
