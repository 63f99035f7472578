package ringbench

import "github.com/ringbench/ringbench/internal/metrics"

// Stats is the shared, per-run set of atomic counters and the latency
// reservoir every worker in a run folds its local counters into at
// batch boundaries. Construct one with NewStats and share it across
// every Worker in a run to get aggregate totals.
type Stats = metrics.Stats

// Snapshot is a point-in-time read of a Stats, with derived
// throughput and latency-percentile figures.
type Snapshot = metrics.Snapshot

// Observer is a push-model consumer of snapshots. A Worker does not
// call it; a caller passes each Snapshot to ObserveBatch itself.
type Observer = metrics.Observer

// NoOpObserver discards every observation.
type NoOpObserver = metrics.NoOpObserver

// NewStats constructs a zeroed Stats with its start time recorded.
func NewStats() *Stats {
	return metrics.NewStats()
}
