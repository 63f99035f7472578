package device

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// Real block devices and O_DIRECT are not available in a portable test
// environment, so this package's ioctl-backed Open path is exercised
// only indirectly (via internal/worker's FakeRing-based tests, which
// cover everything downstream of a *Device). Open's error path on a
// missing file is the one thing checkable without a device node.
func TestOpenMissingPathReturnsNotExist(t *testing.T) {
	_, err := Open("/nonexistent/path/does/not/exist")
	require.Error(t, err)
	require.True(t, os.IsNotExist(err) || strings.Contains(err.Error(), "no such file"))
	require.Contains(t, err.Error(), "device: open")
}

func TestListAtReportsSizeAndLogicalBlockSize(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sda", "queue"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sda", "size"), []byte("2097152\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sda", "queue", "logical_block_size"), []byte("4096\n"), 0o644))

	infos, err := listAt(root)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	require.Equal(t, "sda", infos[0].Name)
	require.Equal(t, filepath.Join("/dev", "sda"), infos[0].Path)
	require.Equal(t, int64(2097152*512), infos[0].Size)
	require.Equal(t, 4096, infos[0].LogicalBlockSize)
}

func TestListAtDefaultsLogicalBlockSizeWhenMissing(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sdb"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sdb", "size"), []byte("1024\n"), 0o644))

	infos, err := listAt(root)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	require.Equal(t, 512, infos[0].LogicalBlockSize)
}

func TestListAtSkipsEntriesMissingSize(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "loop0"), 0o755))

	infos, err := listAt(root)
	require.NoError(t, err)
	require.Empty(t, infos)
}

func TestListAtMissingRootReturnsError(t *testing.T) {
	_, err := listAt("/nonexistent/sys/class/block")
	require.Error(t, err)
}
