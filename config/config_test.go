package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"massa-api/config"
)

func TestDefaults(t *testing.T) {
	cfg, err := config.Load(config.New(), "")
	require.NoError(t, err)
	assert.Equal(t, 33035, cfg.Server.Port)
	assert.Equal(t, uint8(32), cfg.Consensus.ThreadCount)
	assert.Equal(t, 250*time.Millisecond, cfg.Query.SnapshotStaleness)
	assert.False(t, cfg.Ingest.Enabled)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 8080
consensus:
  genesis_timestamp: 1000
  slot_duration: 10
  thread_count: 2
  periods_per_cycle: 4
network:
  peers: ["127.0.0.1:31244"]
  probe_interval: 3s
`), 0o644))
	t.Setenv("MASSA_API_LOG_LEVEL", "debug")

	cfg, err := config.Load(config.New(), path)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr())
	assert.Equal(t, uint64(1000), cfg.Consensus.GenesisTimestamp)
	assert.Equal(t, uint64(10), cfg.Consensus.SlotDuration)
	assert.Equal(t, uint8(2), cfg.Consensus.ThreadCount)
	assert.Equal(t, []string{"127.0.0.1:31244"}, cfg.Network.Peers)
	assert.Equal(t, 3*time.Second, cfg.Network.ProbeInterval)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestShippedConfigIsValid(t *testing.T) {
	cfg, err := config.Load(config.New(), "config.yaml")
	require.NoError(t, err)
	assert.True(t, cfg.Ingest.Enabled)
}

func TestValidate(t *testing.T) {
	cfg, err := config.Load(config.New(), "")
	require.NoError(t, err)

	bad := *cfg
	bad.Consensus.ThreadCount = 0
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Server.Port = 70000
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Consensus.SlotDuration = 0
	assert.Error(t, bad.Validate())

	_, err = config.Load(config.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
