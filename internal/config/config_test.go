package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaultsFillsZeroValues(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, DefaultDBName, cfg.Database.DBName)
	assert.Equal(t, DefaultRedisKeyPrefix, cfg.Redis.KeyPrefix)
	assert.Equal(t, 5*time.Minute, cfg.Redis.DefaultTTL)
	assert.Equal(t, []string{DefaultKafkaBroker}, cfg.Kafka.Brokers)
	assert.Equal(t, DefaultMFDSBaseURL, cfg.MFDS.BaseURL)
	assert.Equal(t, DefaultMetricsNamespace, cfg.Metrics.Namespace)
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := &Config{}
	cfg.Server.Port = 9000
	cfg.Database.Host = "db.internal"
	ApplyDefaults(cfg)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "db.internal", cfg.Database.Host)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"bad mode", func(c *Config) { c.Server.Mode = "prod" }},
		{"missing db host", func(c *Config) { c.Database.Host = "" }},
		{"missing redis addr", func(c *Config) { c.Redis.Addr = "" }},
		{"no kafka brokers", func(c *Config) { c.Kafka.Brokers = nil }},
		{"bad log level", func(c *Config) { c.Log.Level = "trace" }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	assert.NoError(t, NewDefaultConfig().Validate())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
server:
  port: 8181
  mode: test
database:
  host: pg.test
  user: app
  password: secret
redis:
  addr: redis.test:6379
log:
  level: debug
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8181, cfg.Server.Port)
	assert.Equal(t, "test", cfg.Server.Mode)
	assert.Equal(t, "pg.test", cfg.Database.Host)
	assert.Equal(t, "redis.test:6379", cfg.Redis.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Defaults still fill the rest.
	assert.Equal(t, DefaultDBName, cfg.Database.DBName)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
