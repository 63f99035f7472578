package monitor

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadCPUListParsesRangesAndSingles(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/cpulist"
	require.NoError(t, os.WriteFile(path, []byte("0-2,5,7-8"), 0o644))

	cpus, err := readCPUList(path)
	require.NoError(t, err)
	require.Equal(t, []int{0, 1, 2, 5, 7, 8}, cpus)
}

func TestReadCPUListMissingFileReturnsEmpty(t *testing.T) {
	cpus, err := readCPUList("/nonexistent/cpulist")
	require.NoError(t, err)
	require.Nil(t, cpus)
}

func TestUtilizationFractionIsZeroWithNoBusyChange(t *testing.T) {
	prev := cpuTimes{100, 0, 100, 800, 0, 0, 0, 0}
	cur := cpuTimes{100, 0, 100, 1600, 0, 0, 0, 0} // 800 idle jiffies, 0 busy
	require.InDelta(t, 0.0, utilizationFraction(prev, cur), 1e-9)
}

func TestUtilizationFractionReflectsBusyDelta(t *testing.T) {
	prev := cpuTimes{0, 0, 0, 0, 0, 0, 0, 0}
	cur := cpuTimes{50, 0, 50, 0, 0, 0, 0, 0} // 100 busy jiffies, 0 idle
	require.InDelta(t, 1.0, utilizationFraction(prev, cur), 1e-9)
}

func TestSamplerFirstSampleHasZeroCPUUtilization(t *testing.T) {
	s := NewSampler("")
	sample, err := s.Sample()
	require.NoError(t, err)
	require.Zero(t, sample.CPU.Average)
	require.Nil(t, sample.Block)
}

func TestSamplerSecondSampleComputesDelta(t *testing.T) {
	s := NewSampler("")
	_, err := s.Sample()
	require.NoError(t, err)
	second, err := s.Sample()
	require.NoError(t, err)
	require.GreaterOrEqual(t, second.CPU.Average, 0.0)
	require.LessOrEqual(t, second.CPU.Average, 1.0)
}

func TestSampleMemoryReportsPositiveTotal(t *testing.T) {
	mem, err := sampleMemory()
	require.NoError(t, err)
	require.Greater(t, mem.TotalBytes, uint64(0))
}

func TestSampleNUMAReportsAtLeastOneNode(t *testing.T) {
	numa, err := sampleNUMA()
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(numa.Nodes), 1)
}
