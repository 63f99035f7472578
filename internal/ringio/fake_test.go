package ringio

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFakeRingCompletesWithFullTransferByDefault(t *testing.T) {
	r := NewFakeRing(8)
	require.NoError(t, r.PrepareReadFixed(0, 4096, 0, 100))
	require.NoError(t, r.PrepareReadFixed(4096, 4096, 1, 101))

	n, err := r.SubmitBatch()
	require.NoError(t, err)
	require.Equal(t, 2, n)

	out := make([]Completion, 4)
	got := r.PeekCompletions(out)
	require.Equal(t, 2, got)
	require.Equal(t, uint64(100), out[0].UserData)
	require.Equal(t, int32(4096), out[0].Res)
	require.Equal(t, uint64(101), out[1].UserData)
}

func TestFakeRingRespectsCapacity(t *testing.T) {
	r := NewFakeRing(2)
	require.NoError(t, r.PrepareReadFixed(0, 512, 0, 1))
	require.NoError(t, r.PrepareReadFixed(512, 512, 1, 2))
	require.ErrorIs(t, r.PrepareReadFixed(1024, 512, 0, 3), ErrAgain)
}

func TestFailEveryNthInjectsErrors(t *testing.T) {
	r := NewFakeRing(0)
	r.ResultFunc = FailEveryNth(10)

	for i := 0; i < 100; i++ {
		require.NoError(t, r.PrepareReadFixed(uint64(i)*512, 512, i%8, uint64(i)))
	}
	_, err := r.SubmitBatch()
	require.NoError(t, err)

	out := make([]Completion, 100)
	n := r.PeekCompletions(out)
	require.Equal(t, 100, n)

	errors := 0
	for _, c := range out {
		if c.Res < 0 {
			errors++
		}
	}
	require.Equal(t, 10, errors)
}

func TestFakeRingRecordsSubmissionsInOrder(t *testing.T) {
	r := NewFakeRing(0)
	require.NoError(t, r.PrepareReadFixed(0, 4096, 0, 1))
	require.NoError(t, r.PrepareWriteFixed(4096, 4096, 1, 2))

	records := r.Records()
	require.Len(t, records, 2)
	require.True(t, records[0].IsRead)
	require.False(t, records[1].IsRead)
}

func TestFakeRingDeregisterAndClose(t *testing.T) {
	r := NewFakeRing(4)
	require.False(t, r.Deregistered())
	require.False(t, r.Closed())
	require.NoError(t, r.Deregister())
	require.NoError(t, r.Close())
	require.True(t, r.Deregistered())
	require.True(t, r.Closed())
}
