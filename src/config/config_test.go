package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
name: gateway-test
host: 127.0.0.1
port: 9301
log_level: INFO
auth:
  enabled: false
storage:
  db_type: sqlite
  db_path: test.db
network:
  timeout: 10
  retries: 2
  concurrent_requests: 4
feeds:
  sources:
    - name: sim-fx
      type: sim
      symbols: [EURUSD]
      timeframes: [1m]
      interval_seconds: 1
`

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestNewConfigAppliesDefaults(t *testing.T) {
	cfg, err := NewConfig(writeTemp(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, "gateway-test", cfg.Name)
	assert.Equal(t, 256, cfg.Gateway.ClientBuffer)
	assert.Equal(t, 5, cfg.RateLimit.FailureThreshold)
	assert.Equal(t, 30, cfg.RateLimit.CooldownSeconds)
	assert.Equal(t, 5, cfg.Cache.TTLSeconds.MarketData)
	assert.Equal(t, 900, cfg.Cache.TTLSeconds.Sentiment)
	assert.Equal(t, 10000, cfg.Analysis.DefaultTimeoutMs)
	assert.Equal(t, 7, cfg.Storage.RetentionDays)
}

func TestNewConfigRejectsBadPort(t *testing.T) {
	bad := `
name: gateway-test
host: 127.0.0.1
port: 80
storage: {db_type: sqlite, db_path: t.db}
network: {timeout: 10, retries: 1, concurrent_requests: 1}
feeds:
  sources:
    - {name: s, type: sim, symbols: [X], timeframes: [1m]}
`
	_, err := NewConfig(writeTemp(t, bad))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port")
}

func TestNewConfigRejectsUnknownTimeframe(t *testing.T) {
	bad := `
name: gateway-test
host: 127.0.0.1
port: 9301
storage: {db_type: sqlite, db_path: t.db}
network: {timeout: 10, retries: 1, concurrent_requests: 1}
feeds:
  sources:
    - {name: s, type: sim, symbols: [X], timeframes: [7m]}
`
	_, err := NewConfig(writeTemp(t, bad))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeframe")
}

func TestNewConfigRejectsAuthWithoutTokens(t *testing.T) {
	t.Setenv("GATEWAY_AUTH_TOKEN", "")
	bad := `
name: gateway-test
host: 127.0.0.1
port: 9301
auth: {enabled: true}
storage: {db_type: sqlite, db_path: t.db}
network: {timeout: 10, retries: 1, concurrent_requests: 1}
feeds:
  sources:
    - {name: s, type: sim, symbols: [X], timeframes: [1m]}
`
	_, err := NewConfig(writeTemp(t, bad))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth")
}

func TestSaveRoundTrips(t *testing.T) {
	cfg, err := NewConfig(writeTemp(t, validYAML))
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "saved.yaml")
	require.NoError(t, cfg.Save(out))

	reloaded, err := NewConfig(out)
	require.NoError(t, err)
	assert.Equal(t, cfg.Feeds.Sources[0].Name, reloaded.Feeds.Sources[0].Name)
	assert.Equal(t, cfg.Port, reloaded.Port)
}
