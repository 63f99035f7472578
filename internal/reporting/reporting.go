// Package reporting renders a run's statistics snapshot as
// human-readable text and, optionally, exposes the same figures as
// Prometheus gauges. Neither path touches the worker's hot path: both
// operate entirely off a metrics.Snapshot taken after (or during,
// for a live monitor) a run.
package reporting

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ringbench/ringbench/internal/metrics"
)

// WriteText renders snap as an aligned key/value table, matching the
// teacher's plain-stdlib approach to output formatting: no third-party
// formatting/table library appears anywhere in the retrieval pack.
func WriteText(w io.Writer, snap metrics.Snapshot) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	rows := [][2]string{
		{"elapsed", snap.Elapsed.String()},
		{"ops_completed", fmt.Sprintf("%d", snap.OpsCompleted)},
		{"errors", fmt.Sprintf("%d", snap.Errors)},
		{"bytes_read", fmt.Sprintf("%d", snap.BytesRead)},
		{"bytes_written", fmt.Sprintf("%d", snap.BytesWritten)},
		{"read_bandwidth_bps", fmt.Sprintf("%.0f", snap.ReadBandwidth())},
		{"write_bandwidth_bps", fmt.Sprintf("%.0f", snap.WriteBandwidth())},
		{"iops", fmt.Sprintf("%.0f", snap.IOPS())},
		{"latency_min", snap.MinLatency.String()},
		{"latency_mean", snap.MeanLatency.String()},
		{"latency_p50", snap.P50Latency.String()},
		{"latency_p95", snap.P95Latency.String()},
		{"latency_p99", snap.P99Latency.String()},
		{"latency_max", snap.MaxLatency.String()},
	}
	for _, row := range rows {
		if _, err := fmt.Fprintf(tw, "%s\t%s\n", row[0], row[1]); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// PrometheusExporter mirrors a metrics.Snapshot as a fixed set of
// gauges on its own registry, so a caller can expose them over HTTP
// without pulling the default global registry into the core's
// dependency surface. No cmd/ringbench subcommand serves it.
type PrometheusExporter struct {
	registry *prometheus.Registry

	opsCompleted prometheus.Gauge
	errors       prometheus.Gauge
	bytesRead    prometheus.Gauge
	bytesWritten prometheus.Gauge
	readBW       prometheus.Gauge
	writeBW      prometheus.Gauge
	iops         prometheus.Gauge
	latencyP99   prometheus.Gauge
}

// NewPrometheusExporter builds an exporter with its own registry and
// registers every gauge on it.
func NewPrometheusExporter() *PrometheusExporter {
	reg := prometheus.NewRegistry()
	e := &PrometheusExporter{
		registry:     reg,
		opsCompleted: prometheus.NewGauge(prometheus.GaugeOpts{Name: "ringbench_ops_completed_total", Help: "Completed I/O operations, successful and failed."}),
		errors:       prometheus.NewGauge(prometheus.GaugeOpts{Name: "ringbench_errors_total", Help: "Failed completions."}),
		bytesRead:    prometheus.NewGauge(prometheus.GaugeOpts{Name: "ringbench_bytes_read_total", Help: "Bytes successfully read."}),
		bytesWritten: prometheus.NewGauge(prometheus.GaugeOpts{Name: "ringbench_bytes_written_total", Help: "Bytes successfully written."}),
		readBW:       prometheus.NewGauge(prometheus.GaugeOpts{Name: "ringbench_read_bandwidth_bytes_per_second", Help: "Read bandwidth over the run's elapsed time."}),
		writeBW:      prometheus.NewGauge(prometheus.GaugeOpts{Name: "ringbench_write_bandwidth_bytes_per_second", Help: "Write bandwidth over the run's elapsed time."}),
		iops:         prometheus.NewGauge(prometheus.GaugeOpts{Name: "ringbench_iops", Help: "Completed operations per second."}),
		latencyP99:   prometheus.NewGauge(prometheus.GaugeOpts{Name: "ringbench_latency_p99_seconds", Help: "99th percentile sampled latency."}),
	}
	reg.MustRegister(e.opsCompleted, e.errors, e.bytesRead, e.bytesWritten, e.readBW, e.writeBW, e.iops, e.latencyP99)
	return e
}

// Registry returns the exporter's private registry, for wiring into
// an http.Handler via promhttp.HandlerFor.
func (e *PrometheusExporter) Registry() *prometheus.Registry {
	return e.registry
}

// Update sets every gauge from snap.
func (e *PrometheusExporter) Update(snap metrics.Snapshot) {
	e.opsCompleted.Set(float64(snap.OpsCompleted))
	e.errors.Set(float64(snap.Errors))
	e.bytesRead.Set(float64(snap.BytesRead))
	e.bytesWritten.Set(float64(snap.BytesWritten))
	e.readBW.Set(snap.ReadBandwidth())
	e.writeBW.Set(snap.WriteBandwidth())
	e.iops.Set(snap.IOPS())
	e.latencyP99.Set(snap.P99Latency.Seconds())
}

// ObserveBatch implements metrics.Observer by calling Update. The
// worker engine never calls it; a caller passes snapshots in itself.
func (e *PrometheusExporter) ObserveBatch(snap metrics.Snapshot) {
	e.Update(snap)
}

var _ metrics.Observer = (*PrometheusExporter)(nil)
