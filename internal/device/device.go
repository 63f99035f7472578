// Package device opens a block device with direct, unbuffered access
// and discovers the geometry (logical block size, byte size) a
// worker needs to validate its configuration against.
package device

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Device is an opened block device, ready for fixed-file registration
// with a ring.
type Device struct {
	file         *os.File
	path         string
	logicalBlock int
	size         int64
}

// Open opens path with O_DIRECT and discovers its geometry. It fails
// if the path cannot be opened or its size/logical block size cannot
// be determined, per spec §6.
func Open(path string) (*Device, error) {
	f, err := os.OpenFile(path, syscall.O_DIRECT|os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("device: open %s: %w", path, err)
	}

	logicalBlock, err := unix.IoctlGetInt(int(f.Fd()), unix.BLKSSZGET)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("device: BLKSSZGET %s: %w", path, err)
	}

	size, err := ioctlGetUint64(int(f.Fd()), unix.BLKGETSIZE64)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("device: BLKGETSIZE64 %s: %w", path, err)
	}

	return &Device{
		file:         f,
		path:         path,
		logicalBlock: logicalBlock,
		size:         int64(size),
	}, nil
}

// ioctlGetUint64 performs an ioctl operation which gets a uint64 value
// from fd, using the specified request number. golang.org/x/sys/unix
// does not expose this as a helper (unlike IoctlGetInt), so it is
// implemented here the same way the unix package implements its own
// IoctlGet* helpers, via the exported unix.Syscall.
func ioctlGetUint64(fd int, req uint) (uint64, error) {
	var value uint64
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(req), uintptr(unsafe.Pointer(&value)))
	if errno != 0 {
		return 0, errno
	}
	return value, nil
}

// Fd returns the raw file descriptor, suitable for fixed-file registration.
func (d *Device) Fd() int { return int(d.file.Fd()) }

// Path returns the path the device was opened from.
func (d *Device) Path() string { return d.path }

// LogicalBlockSize returns the device's reported logical block size in bytes.
func (d *Device) LogicalBlockSize() int { return d.logicalBlock }

// Size returns the device's byte length.
func (d *Device) Size() int64 { return d.size }

// Close closes the underlying file descriptor.
func (d *Device) Close() error { return d.file.Close() }

// Info describes one entry discovered by List, without opening it.
type Info struct {
	Name             string
	Path             string
	Size             int64
	LogicalBlockSize int
}

// List walks /sys/class/block and reports every block device's name,
// byte size, and logical block size, for `cmd/ringbench devices`. It
// never opens the device nodes themselves, only their sysfs
// attributes, so it works without O_DIRECT/root privileges on the
// device file.
func List() ([]Info, error) {
	return listAt("/sys/class/block")
}

// listAt is List's implementation over an arbitrary sysfs root, so
// tests can point it at a fabricated directory tree instead of the
// host's real /sys/class/block.
func listAt(sysBlock string) ([]Info, error) {
	entries, err := os.ReadDir(sysBlock)
	if err != nil {
		return nil, fmt.Errorf("device: read %s: %w", sysBlock, err)
	}

	var infos []Info
	for _, entry := range entries {
		name := entry.Name()

		sectors, err := readSysfsUint(filepath.Join(sysBlock, name, "size"))
		if err != nil {
			continue
		}
		logicalBlock, err := readSysfsUint(filepath.Join(sysBlock, name, "queue", "logical_block_size"))
		if err != nil {
			logicalBlock = 512
		}

		infos = append(infos, Info{
			Name:             name,
			Path:             filepath.Join("/dev", name),
			Size:             int64(sectors) * 512, // /sys size is always in 512-byte sectors
			LogicalBlockSize: int(logicalBlock),
		})
	}
	return infos, nil
}

func readSysfsUint(path string) (uint64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
}
