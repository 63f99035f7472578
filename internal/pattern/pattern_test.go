package pattern

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSequentialReadCyclesWithNoGaps(t *testing.T) {
	const blockSize = 4096
	const deviceSize = 64 * 1024 // 64 KiB

	g := New(Config{Kind: SequentialRead, BlockSize: blockSize, DeviceSize: deviceSize})
	require.True(t, g.FastMode())
	require.True(t, g.IsRead())

	numBlocks := deviceSize / blockSize
	seen := make(map[uint64]bool)
	for i := 0; i < numBlocks*3; i++ {
		offset, isRead := g.Next()
		require.True(t, isRead)
		require.Zero(t, offset%blockSize)
		require.LessOrEqual(t, offset+blockSize, uint64(deviceSize))
		seen[offset%deviceSize] = true
	}
	require.Len(t, seen, numBlocks)
}

func TestSequentialWriteIsFastModeWithConstantDirection(t *testing.T) {
	g := New(Config{Kind: SequentialWrite, BlockSize: 512, DeviceSize: 4096})
	require.True(t, g.FastMode())
	require.False(t, g.IsRead())
	for i := 0; i < 20; i++ {
		_, isRead := g.Next()
		require.False(t, isRead)
	}
}

func TestRandomReadOffsetsAreAlignedAndInBounds(t *testing.T) {
	const blockSize = 4096
	const deviceSize = 1024 * 1024 // 1 MiB

	g := New(Config{Kind: RandomRead, BlockSize: blockSize, DeviceSize: deviceSize, Seed: 42})
	require.False(t, g.FastMode())

	for i := 0; i < 1000; i++ {
		offset, isRead := g.Next()
		require.True(t, isRead)
		require.Zero(t, offset%blockSize)
		require.Less(t, offset, uint64(deviceSize-blockSize+1))
	}
}

func TestRandomReadIsReproducibleWithFixedSeed(t *testing.T) {
	cfg := Config{Kind: RandomRead, BlockSize: 4096, DeviceSize: 1024 * 1024, Seed: 7}
	a := New(cfg)
	b := New(cfg)
	for i := 0; i < 100; i++ {
		oa, _ := a.Next()
		ob, _ := b.Next()
		require.Equal(t, oa, ob)
	}
}

func TestMixedDefaultsToSeventyPercentReads(t *testing.T) {
	g := New(Config{Kind: Mixed, BlockSize: 4096, DeviceSize: 1024 * 1024, Seed: 1})
	require.False(t, g.FastMode())

	reads := 0
	const n = 20000
	for i := 0; i < n; i++ {
		_, isRead := g.Next()
		if isRead {
			reads++
		}
	}
	ratio := float64(reads) / float64(n)
	require.InDelta(t, 0.7, ratio, 0.03)
}

func TestMixedOffsetsAlwaysAligned(t *testing.T) {
	g := New(Config{Kind: Mixed, BlockSize: 512, DeviceSize: 65536, Seed: 99})
	for i := 0; i < 5000; i++ {
		offset, _ := g.Next()
		require.Zero(t, offset%512)
		require.LessOrEqual(t, offset+512, uint64(65536))
	}
}

func TestParseKindRoundTripsWithString(t *testing.T) {
	for _, k := range []Kind{SequentialRead, SequentialWrite, RandomRead, RandomWrite, Mixed} {
		parsed, err := ParseKind(k.String())
		require.NoError(t, err)
		require.Equal(t, k, parsed)
	}
}

func TestParseKindRejectsUnknown(t *testing.T) {
	_, err := ParseKind("backwards-spiral")
	require.Error(t, err)
}
