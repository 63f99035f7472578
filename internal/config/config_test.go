package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ringbench/ringbench/internal/pattern"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ringbench.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "device: /dev/nvme0n1\nqueue_depth: 16\nblock_size: 4096\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, pattern.SequentialRead, cfg.Pattern)
	require.Equal(t, 1, cfg.Workers)
	require.Equal(t, 10*time.Second, cfg.Duration)
}

func TestLoadParsesExplicitFields(t *testing.T) {
	path := writeConfig(t, `
device: /dev/nvme0n1
pattern: random-write
queue_depth: 32
block_size: 65536
duration_seconds: 2.5
workers: 4
read_ratio: 0.6
seed: 7
latency_sample_rate: 0.05
optimize: true
monitor: true
report: /tmp/out.txt
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/dev/nvme0n1", cfg.Device)
	require.Equal(t, pattern.RandomWrite, cfg.Pattern)
	require.Equal(t, 32, cfg.QueueDepth)
	require.Equal(t, 65536, cfg.BlockSize)
	require.Equal(t, 2500*time.Millisecond, cfg.Duration)
	require.Equal(t, 4, cfg.Workers)
	require.Equal(t, 0.6, cfg.ReadRatio)
	require.Equal(t, int64(7), cfg.Seed)
	require.True(t, cfg.Optimize)
	require.True(t, cfg.Monitor)
	require.Equal(t, "/tmp/out.txt", cfg.Report)
}

func TestLoadRejectsMissingDevice(t *testing.T) {
	path := writeConfig(t, "queue_depth: 16\nblock_size: 4096\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsUnknownPattern(t *testing.T) {
	path := writeConfig(t, "device: /dev/sda\nqueue_depth: 16\nblock_size: 4096\npattern: diagonal\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/ringbench.yaml")
	require.Error(t, err)
}
