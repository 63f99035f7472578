package ringbench

import "github.com/ringbench/ringbench/internal/ringio"

// FakeDevice stands in for an opened block device when a Worker is
// backed by a FakeRing: it carries only the geometry a Worker's
// pattern generator needs, never an actual file descriptor.
type FakeDevice struct {
	size             int64
	logicalBlockSize int
}

// NewFakeDevice builds a FakeDevice reporting the given size and
// logical block size, with no backing file.
func NewFakeDevice(size int64, logicalBlockSize int) *FakeDevice {
	return &FakeDevice{size: size, logicalBlockSize: logicalBlockSize}
}

func (d *FakeDevice) Fd() int               { return -1 }
func (d *FakeDevice) LogicalBlockSize() int { return d.logicalBlockSize }
func (d *FakeDevice) Size() int64           { return d.size }
func (d *FakeDevice) Close() error          { return nil }

var _ deviceHandle = (*FakeDevice)(nil)

// fakeLogicalBlockSize is the logical block size NewFakeWorker reports
// for its FakeDevice: the smallest size real hardware actually uses,
// so a misaligned cfg.BlockSize is still caught the way it would be
// against a real device.
const fakeLogicalBlockSize = 512

// NewFakeWorker builds a Worker backed by a FakeRing and a FakeDevice
// instead of a live kernel and block device: the device emulator
// required by §8's testable properties. capacity bounds the fake
// ring's submission queue (0 means unbounded); everything else in cfg
// is used exactly as New would use it, with cfg.Ring and cfg.Device
// ignored and replaced.
func NewFakeWorker(cfg Config, deviceSize int64, capacity int) (*Worker, *ringio.FakeRing, error) {
	ring := ringio.NewFakeRing(capacity)
	cfg.Ring = ring
	cfg.Device = NewFakeDevice(deviceSize, fakeLogicalBlockSize)

	w, err := New(cfg)
	if err != nil {
		return nil, nil, err
	}
	return w, ring, nil
}
