package reporting

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/ringbench/ringbench/internal/metrics"
)

func sampleSnapshot() metrics.Snapshot {
	return metrics.Snapshot{
		Elapsed:      2 * time.Second,
		BytesRead:    1 << 20,
		BytesWritten: 1 << 19,
		OpsCompleted: 500,
		Errors:       3,
		MinLatency:   10 * time.Microsecond,
		MeanLatency:  50 * time.Microsecond,
		P50Latency:   45 * time.Microsecond,
		P95Latency:   90 * time.Microsecond,
		P99Latency:   120 * time.Microsecond,
		MaxLatency:   500 * time.Microsecond,
	}
}

func TestWriteTextIncludesEveryField(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, sampleSnapshot()))

	out := buf.String()
	for _, want := range []string{
		"elapsed", "ops_completed", "errors", "bytes_read", "bytes_written",
		"read_bandwidth_bps", "write_bandwidth_bps", "iops",
		"latency_min", "latency_mean", "latency_p50", "latency_p95", "latency_p99", "latency_max",
	} {
		require.True(t, strings.Contains(out, want), "missing row %q in:\n%s", want, out)
	}
}

func TestWriteTextEmitsOneLinePerRow(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, sampleSnapshot()))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 14)
	require.True(t, strings.HasPrefix(lines[0], "elapsed"))
}

func TestPrometheusExporterUpdateReflectsSnapshot(t *testing.T) {
	e := NewPrometheusExporter()
	e.Update(sampleSnapshot())

	require.InDelta(t, 500, testutil.ToFloat64(e.opsCompleted), 0.001)
	require.InDelta(t, 3, testutil.ToFloat64(e.errors), 0.001)
	require.InDelta(t, 1<<20, testutil.ToFloat64(e.bytesRead), 0.001)
}

func TestPrometheusExporterObserveBatchUpdatesGauges(t *testing.T) {
	e := NewPrometheusExporter()
	var obs metrics.Observer = e
	obs.ObserveBatch(sampleSnapshot())

	require.InDelta(t, 500, testutil.ToFloat64(e.opsCompleted), 0.001)
}

func TestPrometheusExporterRegistryGatherSucceeds(t *testing.T) {
	e := NewPrometheusExporter()
	e.Update(sampleSnapshot())

	families, err := e.Registry().Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}
