package bufpool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewAllocatesExactlyDepthBuffersOfBlockSize(t *testing.T) {
	p, err := New(8, 4096, 512)
	require.NoError(t, err)
	defer p.Close()

	require.Len(t, p.Buffers, 8)
	for _, buf := range p.Buffers {
		require.Len(t, buf, 4096)
	}
}

func TestBuffersAreNotAliased(t *testing.T) {
	p, err := New(4, 512, 512)
	require.NoError(t, err)
	defer p.Close()

	for i, buf := range p.Buffers {
		buf[0] = byte(i + 1)
	}
	for i, buf := range p.Buffers {
		require.Equal(t, byte(i+1), buf[0], "buffer %d was aliased by a write to another buffer", i)
	}
}

func TestIovecsMatchBuffers(t *testing.T) {
	p, err := New(3, 1024, 512)
	require.NoError(t, err)
	defer p.Close()

	iovecs := p.Iovecs()
	require.Len(t, iovecs, 3)
	for i, iov := range iovecs {
		require.Equal(t, uint64(len(p.Buffers[i])), iov.Len)
	}
}

func TestNewRejectsMisalignedBlockSize(t *testing.T) {
	_, err := New(4, 1000, 512)
	require.Error(t, err)
}

func TestNewRejectsZeroDepth(t *testing.T) {
	_, err := New(0, 4096, 512)
	require.Error(t, err)
}

func TestCloseIsSafeAndUnmapsMemory(t *testing.T) {
	p, err := New(2, 4096, 512)
	require.NoError(t, err)
	require.NoError(t, p.Close())
}
