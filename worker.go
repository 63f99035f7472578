package ringbench

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ringbench/ringbench/internal/bufpool"
	"github.com/ringbench/ringbench/internal/device"
	"github.com/ringbench/ringbench/internal/logging"
	"github.com/ringbench/ringbench/internal/pattern"
	"github.com/ringbench/ringbench/internal/ringio"
	"github.com/ringbench/ringbench/internal/worker"
)

// ExitReason names why a Worker's Run returned.
type ExitReason = worker.ExitReason

const (
	ExitDeadline   = worker.ExitDeadline
	ExitStopped    = worker.ExitStopped
	ExitFatalError = worker.ExitFatalError
)

// RunResult is what Run returns: why the loop stopped, the fatal
// error if any, and a final statistics snapshot.
type RunResult = worker.RunResult

// deviceHandle is the minimal surface Worker needs from whatever
// backs DeviceFd: a real device.Device when driving a live kernel, or
// a FakeDevice when driving a FakeRing in tests.
type deviceHandle interface {
	Fd() int
	LogicalBlockSize() int
	Size() int64
	Close() error
}

// Config is everything needed to construct and run one Worker: the
// target, the workload shape, and the tunables of §3/§4. Leave Ring
// nil to drive a real kernel ring; tests substitute a *ringio.FakeRing
// via NewFakeWorker instead of populating this field directly.
type Config struct {
	// DevicePath is opened with O_DIRECT if Device is nil.
	DevicePath string
	Device     deviceHandle

	Pattern    pattern.Kind
	ReadRatio  float64
	Seed       int64

	QueueDepth int
	BlockSize  int
	Duration   time.Duration

	LatencySampleRate float64

	// Stats is shared across every Worker in a multi-worker run. A
	// private one is allocated when nil.
	Stats *Stats

	// StopFlag is shared across every Worker in a multi-worker run,
	// so a single Stop() call drains all of them together. A private
	// one is allocated when nil.
	StopFlag *atomic.Bool

	ConsecutiveFailureThreshold int
	DrainGrace                  time.Duration
	Clock                       func() time.Time

	WorkerID int
	Logger   *logging.Logger

	// Ring overrides the kernel ring, for tests. Leave nil in production.
	Ring ringio.Ring
}

// Worker drives one ring's steady-state loop against one device. One
// Worker is one goroutine's worth of work; fan out N of them, sharing
// one Stats and one StopFlag, for a multi-worker run.
type Worker struct {
	engine     *worker.Engine
	dev        deviceHandle
	ring       ringio.Ring
	pool       *bufpool.Pool
	ownsDevice bool
	ownsRing   bool
}

// New validates cfg, opens the device (unless one was supplied),
// allocates the buffer pool, builds the pattern generator, and
// constructs the ring (unless one was supplied), returning a
// ready-to-run Worker. Every failure here is a setup error.
func New(cfg Config) (*Worker, error) {
	dev := cfg.Device
	ownsDevice := false
	if dev == nil {
		d, err := device.Open(cfg.DevicePath)
		if err != nil {
			return nil, NewSetupError("open_device", err)
		}
		dev = d
		ownsDevice = true
	}

	if cfg.BlockSize%dev.LogicalBlockSize() != 0 {
		if ownsDevice {
			dev.Close()
		}
		return nil, NewSetupError("validate_config", fmt.Errorf("block_size %d is not a multiple of device logical block size %d", cfg.BlockSize, dev.LogicalBlockSize()))
	}

	pool, err := bufpool.New(cfg.QueueDepth, cfg.BlockSize, dev.LogicalBlockSize())
	if err != nil {
		if ownsDevice {
			dev.Close()
		}
		return nil, NewSetupError("alloc_buffers", err)
	}

	gen := pattern.New(pattern.Config{
		Kind:       cfg.Pattern,
		BlockSize:  uint64(cfg.BlockSize),
		DeviceSize: uint64(dev.Size()),
		ReadRatio:  cfg.ReadRatio,
		Seed:       cfg.Seed,
	})

	ring := cfg.Ring
	ownsRing := false
	if ring == nil {
		r, err := ringio.NewRing(uint32(cfg.QueueDepth))
		if err != nil {
			pool.Close()
			if ownsDevice {
				dev.Close()
			}
			return nil, NewSetupError("setup_ring", err)
		}
		ring = r
		ownsRing = true
	}

	stats := cfg.Stats
	if stats == nil {
		stats = NewStats()
	}

	engine, err := worker.New(worker.Config{
		Ring:                        ring,
		Buffers:                     pool,
		Pattern:                     gen,
		Stats:                       stats,
		DeviceFd:                    dev.Fd(),
		WorkerID:                    cfg.WorkerID,
		QueueDepth:                  cfg.QueueDepth,
		BlockSize:                   cfg.BlockSize,
		Duration:                    cfg.Duration,
		LatencySampleRate:           cfg.LatencySampleRate,
		StopFlag:                    cfg.StopFlag,
		ConsecutiveFailureThreshold: cfg.ConsecutiveFailureThreshold,
		DrainGrace:                  cfg.DrainGrace,
		Clock:                       cfg.Clock,
		Logger:                      cfg.Logger,
	})
	if err != nil {
		if ownsRing {
			ring.Close()
		}
		pool.Close()
		if ownsDevice {
			dev.Close()
		}
		return nil, err
	}

	return &Worker{engine: engine, dev: dev, ring: ring, pool: pool, ownsDevice: ownsDevice, ownsRing: ownsRing}, nil
}

// Run executes the steady-state loop until the deadline elapses, Stop
// is called, or a fatal error escalates, then releases the buffer pool
// and any device or ring this Worker opened itself. Per §4.2,
// deregistration and descriptor close happen unconditionally on exit,
// including the buffer pool's mmap'd memory, which Worker is the sole
// owner of regardless of who supplied the device or ring.
func (w *Worker) Run() RunResult {
	result := w.engine.Run()
	if w.ownsRing {
		w.ring.Close()
	}
	w.pool.Close()
	if w.ownsDevice {
		w.dev.Close()
	}
	return result
}

// Stop requests the worker drain and exit at the next deadline poll.
// Safe to call from any goroutine, including concurrently with Run.
func (w *Worker) Stop() {
	w.engine.Stop()
}
