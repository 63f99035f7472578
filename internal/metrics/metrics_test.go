package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAddReadAndWriteAccumulate(t *testing.T) {
	s := NewStats()
	s.AddRead(4096)
	s.AddRead(4096)
	s.AddWrite(512)
	s.AddOps(3)

	snap := s.Snapshot()
	require.Equal(t, uint64(8192), snap.BytesRead)
	require.Equal(t, uint64(512), snap.BytesWritten)
	require.Equal(t, uint64(3), snap.OpsCompleted)
}

func TestAddOpsAccumulatesIndependentlyOfBytes(t *testing.T) {
	s := NewStats()
	s.AddOps(5)
	s.AddOps(2)
	require.Equal(t, uint64(7), s.Snapshot().OpsCompleted)
}

func TestAddErrorAccumulates(t *testing.T) {
	s := NewStats()
	s.AddError(1)
	s.AddError(2)
	require.Equal(t, uint64(3), s.Snapshot().Errors)
}

func TestRecordLatencyTracksMinAndMax(t *testing.T) {
	s := NewStats()
	s.RecordLatency(5 * time.Millisecond)
	s.RecordLatency(1 * time.Millisecond)
	s.RecordLatency(9 * time.Millisecond)

	snap := s.Snapshot()
	require.Equal(t, 1*time.Millisecond, snap.MinLatency)
	require.Equal(t, 9*time.Millisecond, snap.MaxLatency)
	require.Equal(t, uint64(3), snap.SamplesSeen)
}

func TestSnapshotWithNoSamplesHasZeroLatencies(t *testing.T) {
	s := NewStats()
	snap := s.Snapshot()
	require.Equal(t, time.Duration(0), snap.MinLatency)
	require.Equal(t, time.Duration(0), snap.P50Latency)
}

func TestPercentilesAreMonotonic(t *testing.T) {
	s := NewStats()
	for i := 1; i <= 1000; i++ {
		s.RecordLatency(time.Duration(i) * time.Microsecond)
	}
	snap := s.Snapshot()
	require.LessOrEqual(t, snap.P50Latency, snap.P95Latency)
	require.LessOrEqual(t, snap.P95Latency, snap.P99Latency)
	require.LessOrEqual(t, snap.P99Latency, snap.MaxLatency)
}

func TestReservoirEvictsOldestPastCapacity(t *testing.T) {
	s := NewStats()
	for i := 0; i < reservoirCapacity+100; i++ {
		s.RecordLatency(time.Duration(i) * time.Nanosecond)
	}
	snap := s.Snapshot()
	require.Equal(t, uint64(reservoirCapacity+100), snap.SamplesSeen)
	require.Equal(t, time.Duration(0), snap.MinLatency)
	// The reservoir now holds 100..reservoirCapacity+99, so its median
	// is shifted by the 100 evicted samples.
	require.Equal(t, time.Duration(reservoirCapacity/2+100), snap.P50Latency)
}

func TestRatesAreZeroWithoutElapsedTime(t *testing.T) {
	snap := Snapshot{BytesRead: 100, OpsCompleted: 5}
	require.Equal(t, float64(0), snap.ReadBandwidth())
	require.Equal(t, float64(0), snap.IOPS())
}

func TestRatesScaleWithElapsed(t *testing.T) {
	snap := Snapshot{BytesRead: 1000, OpsCompleted: 10, Elapsed: 2 * time.Second}
	require.Equal(t, float64(500), snap.ReadBandwidth())
	require.Equal(t, float64(5), snap.IOPS())
}
