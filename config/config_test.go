package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sampleServerYAML = `
listeners:
  - protocol: jsonrpc
    address: ":8080"
  - protocol: binrpc
    address: ":8081"
min_threads: 4
max_threads: 32
idle_timeout: 30s
log_level: info
etcd:
  endpoints: ["127.0.0.1:2379"]
  ttl_seconds: 10
  advertise_addr: "10.0.0.5:8080"
rate_limit:
  rate_per_second: 100
  burst: 20
`

func TestLoadServerConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleServerYAML), 0o644))

	cfg, err := LoadServerConfig(path)
	require.NoError(t, err)

	require.Len(t, cfg.Listeners, 2)
	require.Equal(t, "jsonrpc", cfg.Listeners[0].Protocol)
	require.Equal(t, ":8080", cfg.Listeners[0].Address)
	require.Equal(t, 4, cfg.MinThreads)
	require.Equal(t, 32, cfg.MaxThreads)
	require.Equal(t, 30*time.Second, cfg.IdleTimeout)
	require.NotNil(t, cfg.Etcd)
	require.Equal(t, []string{"127.0.0.1:2379"}, cfg.Etcd.Endpoints)
	require.NotNil(t, cfg.RateLimit)
	require.Equal(t, 100.0, cfg.RateLimit.RatePerSecond)
}

func TestLoadServerConfigMissingFile(t *testing.T) {
	_, err := LoadServerConfig("/nonexistent/config.yaml")
	require.Error(t, err)
}
