package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

const sampleYAML = `
client:
  host: 10.0.0.2
  port: 6701
  access_token: from-file
  send_timeout: 5s
  rate_limit: 2.5
  reconnection:
    enabled: true
    attempts: 3
    delay: 500ms
log_level: debug
journal:
  path: data/journal.db
`

func TestLoadFileAndDefaults(t *testing.T) {
	as := assert.New(t)
	path := filepath.Join(t.TempDir(), "cqsocket.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	as.Equal("10.0.0.2", cfg.Client.Host)
	as.Equal(6701, cfg.Client.Port)
	as.Equal("ws", cfg.Client.Protocol, "default survives a partial file")
	as.Equal("from-file", cfg.Client.AccessToken)
	as.Equal(5*time.Second, cfg.Client.SendTimeout)
	as.InDelta(2.5, cfg.Client.RateLimit, 1e-9)
	as.Equal(3, cfg.Client.Reconnection.Attempts)
	as.Equal(500*time.Millisecond, cfg.Client.Reconnection.Delay)
	as.Equal("debug", cfg.LogLevel)
	as.Equal("data/journal.db", cfg.Journal.Path)
	as.Equal(24*time.Hour, cfg.Journal.TTL)
}

func TestEnvOverrides(t *testing.T) {
	as := assert.New(t)
	path := filepath.Join(t.TempDir(), "cqsocket.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	t.Setenv("CQ_ACCESS_TOKEN", "from-env")
	t.Setenv("CQ_BASE_URL", "wss://bot.example.com")
	t.Setenv("CQ_RECONNECTION_ATTEMPTS", "7")
	t.Setenv("CQ_JOURNAL_TTL", "1h")
	t.Setenv("CQ_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)

	as.Equal("from-env", cfg.Client.AccessToken)
	as.Equal("wss://bot.example.com", cfg.Client.BaseURL)
	as.Equal(7, cfg.Client.Reconnection.Attempts)
	as.Equal(time.Hour, cfg.Journal.TTL)
	as.Equal("warn", cfg.LogLevel)
	as.Equal(6701, cfg.Client.Port, "file value kept when no env is set")
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", cfg.Client.Host)
	assert.True(t, cfg.Client.Reconnection.Enabled)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := Default()
	cfg.Client.Port = 7000
	cfg.Client.SendTimeout = 3 * time.Second
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7000, loaded.Client.Port)
	assert.Equal(t, 3*time.Second, loaded.Client.SendTimeout)
}

func TestNewLoggerLevel(t *testing.T) {
	assert.True(t, NewLogger("warn").Core().Enabled(zapcore.WarnLevel))
	assert.False(t, NewLogger("warn").Core().Enabled(zapcore.InfoLevel))
	assert.True(t, NewLogger("bogus").Core().Enabled(zapcore.InfoLevel))
}
