package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xeptore/mpdq/config"
	"github.com/xeptore/mpdq/unit"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	name := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(name, []byte(content), 0o600))

	return name
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	conf, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "info", conf.Log.Level)
	assert.Equal(t, "pretty", conf.Log.Format)
	assert.Equal(t, 30*time.Second, conf.Fetch.Timeout.Duration)
	assert.Equal(t, uint64(5), conf.Fetch.MaxRetries)
	assert.Equal(t, int64(16*unit.Mebibyte), conf.Fetch.MaxManifestSize)
	assert.False(t, conf.Fetch.Proxy.Enabled())
	assert.Equal(t, time.Second, conf.Refresh.MinInterval.Duration)
	assert.Equal(t, time.Minute, conf.Refresh.MaxInterval.Duration)
	assert.Equal(t, "mpdq.db", conf.Store.Path)
	assert.Equal(t, 4, conf.Download.Workers)
	assert.Equal(t, 10, conf.Download.ChunkSegments)
}

func TestLoad(t *testing.T) {
	t.Setenv(config.ProxyPasswordEnv, "hunter22")

	dl := t.TempDir()
	name := writeConfig(t, `
log:
  level: debug
  format: json
fetch:
  timeout: 5s
  max_retries: 2
  proxy:
    host: 127.0.0.1
    port: 1080
    username: user
refresh:
  min_interval: 500ms
  max_interval: 10s
  rate: 2.5
  burst: 3
cache:
  ttl: 1m
download:
  dir: `+dl+`
  workers: 2
`)

	conf, err := config.Load(name)
	require.NoError(t, err)

	assert.Equal(t, "debug", conf.Log.Level)
	assert.Equal(t, "json", conf.Log.Format)
	assert.Equal(t, 5*time.Second, conf.Fetch.Timeout.Duration)
	assert.Equal(t, uint64(2), conf.Fetch.MaxRetries)
	assert.True(t, conf.Fetch.Proxy.Enabled())
	assert.Equal(t, "hunter22", conf.Fetch.Proxy.Password)
	assert.Equal(t, 500*time.Millisecond, conf.Refresh.MinInterval.Duration)
	assert.InDelta(t, 2.5, conf.Refresh.Rate, 0.0001)
	assert.Equal(t, 3, conf.Refresh.Burst)
	assert.Equal(t, time.Minute, conf.Cache.TTL.Duration)
	assert.Equal(t, dl, conf.Download.Dir)
	assert.Equal(t, 2, conf.Download.Workers)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "invalid level", content: "log:\n  level: loud\n"},
		{name: "invalid format", content: "log:\n  format: xml\n"},
		{name: "invalid duration", content: "fetch:\n  timeout: soon\n"},
		{name: "proxy without port", content: "fetch:\n  proxy:\n    host: 127.0.0.1\n"},
		{name: "inverted refresh interval", content: "refresh:\n  min_interval: 1m\n  max_interval: 1s\n"},
		{name: "missing download dir", content: "download:\n  dir: /nonexistent/mpdq/downloads\n"},
	}
	for _, test := range tests {
		_, err := config.Load(writeConfig(t, test.content))
		require.Error(t, err, test.name)
	}
}
