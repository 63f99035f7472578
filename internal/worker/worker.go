// Package worker implements the steady-state engine: the six-phase
// loop that keeps a ring's submission queue full, reaps completions,
// samples latency deterministically, and folds local counters into
// shared statistics at batch boundaries.
package worker

import (
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/ringbench/ringbench/internal/bufpool"
	"github.com/ringbench/ringbench/internal/constants"
	"github.com/ringbench/ringbench/internal/logging"
	"github.com/ringbench/ringbench/internal/metrics"
	"github.com/ringbench/ringbench/internal/pattern"
	"github.com/ringbench/ringbench/internal/ringio"
	"github.com/ringbench/ringbench/internal/werr"
)

// ExitReason names why Run returned.
type ExitReason string

const (
	ExitDeadline   ExitReason = "deadline"
	ExitStopped    ExitReason = "stopped"
	ExitFatalError ExitReason = "fatal_error"
)

// Config is the engine's immutable configuration. Ring, Buffers, and
// Pattern are owned exclusively by the resulting Engine for its
// lifetime; callers must not touch them concurrently once Run starts.
type Config struct {
	Ring      ringio.Ring
	Buffers   *bufpool.Pool
	Pattern   *pattern.Generator
	Stats     *metrics.Stats
	DeviceFd  int
	WorkerID  int

	QueueDepth int
	BlockSize  int
	Duration   time.Duration

	// LatencySampleRate is the fraction of ops timed end-to-end.
	// Defaults to constants.DefaultLatencySampleRate when zero.
	LatencySampleRate float64

	// StopFlag is shared across every worker in a run. Callers who
	// want to stop every worker at once pass the same *atomic.Bool to
	// each Config. Engine allocates a private one when nil.
	StopFlag *atomic.Bool

	// ConsecutiveFailureThreshold escalates to a fatal stop once the
	// run of consecutive failing completions exceeds it. Defaults to
	// QueueDepth when zero, per constants.ConsecutiveFailureThreshold.
	ConsecutiveFailureThreshold int

	// DrainGrace bounds shutdown's wait for outstanding ops. Defaults
	// to constants.DrainGracePeriod when zero.
	DrainGrace time.Duration

	// Clock is substitutable for tests; defaults to time.Now. Invoked
	// for sampled submissions/completions, once at start, at each
	// deadline poll (every constants.DeadlinePollInterval iterations),
	// and during drain; never for an unsampled submission or
	// completion.
	Clock func() time.Time

	Logger *logging.Logger
}

// RunResult is what Run returns: why the loop stopped, the fatal
// error if any, and a final statistics snapshot.
type RunResult struct {
	ExitReason ExitReason
	FatalErr   error
	Snapshot   metrics.Snapshot
}

// Engine drives one ring's steady-state loop. It is single-threaded:
// Run must be called from one goroutine for the Engine's lifetime.
type Engine struct {
	cfg      Config
	stopFlag *atomic.Bool
	slots    *slotTable
	clock    func() time.Time

	samplePeriod    uint64
	failureLimit    int
	drainGrace      time.Duration

	logger *logging.Logger

	sqCapacity int

	nextToken  uint64
	pendingOps int
	queuedOps  int

	consecutiveFailures int

	localBytesRead    uint64
	localBytesWritten uint64
	localOpsCompleted uint64
	localErrors       uint64

	clockCalls uint64
}

// New validates cfg, registers buffers and the device file descriptor
// with the ring, and returns a ready-to-run Engine. Every failure here
// is a setup error: fatal, with no partial Engine returned.
func New(cfg Config) (*Engine, error) {
	if cfg.QueueDepth < 1 {
		return nil, werr.NewSetup("worker.New", fmt.Errorf("queue depth must be >= 1, got %d", cfg.QueueDepth))
	}
	if cfg.BlockSize < constants.MinAlignment {
		return nil, werr.NewSetup("worker.New", fmt.Errorf("block size must be >= %d, got %d", constants.MinAlignment, cfg.BlockSize))
	}
	if cfg.Ring == nil {
		return nil, werr.NewSetup("worker.New", fmt.Errorf("ring is required"))
	}
	if cfg.Buffers == nil || cfg.Buffers.Depth != cfg.QueueDepth {
		return nil, werr.NewSetup("worker.New", fmt.Errorf("buffer pool must have exactly queue_depth buffers"))
	}
	if cfg.Pattern == nil {
		return nil, werr.NewSetup("worker.New", fmt.Errorf("pattern generator is required"))
	}
	if cfg.Stats == nil {
		return nil, werr.NewSetup("worker.New", fmt.Errorf("stats is required"))
	}

	sampleRate := cfg.LatencySampleRate
	if sampleRate == 0 {
		sampleRate = constants.DefaultLatencySampleRate
	}
	if sampleRate <= 0 || sampleRate > 1 {
		return nil, werr.NewSetup("worker.New", fmt.Errorf("latency sample rate must be in (0, 1], got %v", sampleRate))
	}
	samplePeriod := uint64(math.Round(1 / sampleRate))
	if samplePeriod == 0 {
		samplePeriod = 1
	}

	failureLimit := cfg.ConsecutiveFailureThreshold
	if failureLimit == 0 {
		failureLimit = constants.ConsecutiveFailureThreshold(cfg.QueueDepth)
	}

	drainGrace := cfg.DrainGrace
	if drainGrace == 0 {
		drainGrace = constants.DrainGracePeriod
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	logger = logger.WithWorker(cfg.WorkerID)

	if err := cfg.Ring.RegisterBuffers(toRingIovecs(cfg.Buffers)); err != nil {
		return nil, werr.NewSetup("register_buffers", err)
	}
	if err := cfg.Ring.RegisterFile(cfg.DeviceFd); err != nil {
		return nil, werr.NewSetup("register_file", err)
	}

	stopFlag := cfg.StopFlag
	if stopFlag == nil {
		stopFlag = &atomic.Bool{}
	}

	slots := newSlotTable(cfg.QueueDepth)
	if cfg.Pattern.FastMode() {
		slots.seedDirection(cfg.Pattern.IsRead())
	}

	return &Engine{
		cfg:          cfg,
		stopFlag:     stopFlag,
		slots:        slots,
		clock:        clock,
		samplePeriod: samplePeriod,
		failureLimit: failureLimit,
		drainGrace:   drainGrace,
		logger:       logger,
		sqCapacity:   cfg.Ring.SQCapacity(),
	}, nil
}

func toRingIovecs(pool *bufpool.Pool) []ringio.Iovec {
	iovecs := make([]ringio.Iovec, len(pool.Buffers))
	for i, buf := range pool.Buffers {
		iovecs[i] = ringio.Iovec{Base: &buf[0], Len: uint64(len(buf))}
	}
	return iovecs
}

// Stop requests the engine to drain and exit at the next deadline
// poll. Safe to call from any goroutine, including concurrently with
// Run.
func (e *Engine) Stop() {
	e.stopFlag.Store(true)
}

// ClockCalls reports how many times the engine has invoked its clock
// for a sampled submission or completion. Exposed so tests can verify
// the clock-avoidance property for unsampled ops (spec's hard
// performance-correctness invariant).
func (e *Engine) ClockCalls() uint64 {
	return atomic.LoadUint64(&e.clockCalls)
}

func (e *Engine) sampledNow() time.Time {
	atomic.AddUint64(&e.clockCalls, 1)
	return e.clock()
}

// Run executes the steady-state loop until the deadline elapses, the
// stop flag is set, or a fatal error occurs, then drains and returns
// the aggregate result.
func (e *Engine) Run() RunResult {
	deadline := e.clock().Add(e.cfg.Duration)
	iteration := 0

	for {
		if iteration%constants.DeadlinePollInterval == 0 {
			if e.stopFlag.Load() {
				return e.shutdown(ExitStopped, nil)
			}
			if !e.clock().Before(deadline) {
				return e.shutdown(ExitDeadline, nil)
			}
		}
		iteration++

		e.reapCompletions()

		if fatal := e.refillAndSubmit(); fatal != nil {
			return e.shutdown(ExitFatalError, fatal)
		}

		if e.consecutiveFailures > e.failureLimit {
			return e.shutdown(ExitFatalError, werr.NewEscalatedFailures(e.consecutiveFailures, e.failureLimit))
		}

		e.flushStats()
	}
}

// refillAndSubmit implements phases (c), (d), and (e): refill the
// submission queue, batch-submit when due, and conditionally block
// for at least one completion when the pipeline is running dry.
func (e *Engine) refillAndSubmit() error {
	for e.pendingOps+e.queuedOps < e.cfg.QueueDepth {
		err := e.submitOne()
		if err == nil {
			continue
		}
		if err == ringio.ErrAgain {
			break
		}
		return werr.NewSetup("prepare", err)
	}

	if e.queuedOps >= constants.SubmitBatchMin || e.pendingOps+e.queuedOps >= e.cfg.QueueDepth {
		n, err := e.cfg.Ring.SubmitBatch()
		if err != nil {
			e.localErrors += uint64(e.queuedOps)
			e.consecutiveFailures += e.queuedOps
			e.queuedOps = 0
		} else {
			e.pendingOps += n
			e.queuedOps -= n
		}
	}

	threshold := constants.WaitThreshold(e.cfg.QueueDepth)
	if e.pendingOps > 0 && e.pendingOps < threshold {
		err := e.cfg.Ring.SubmitAndWait(1)
		switch err {
		case nil, ringio.ErrTimerExpired, ringio.ErrInterrupted:
			// Timer expiry and interruption are retried on the next
			// iteration; neither is a fatal condition.
		default:
			return werr.NewSetup("submit_and_wait", err)
		}
	}

	return nil
}

// submitOne reserves the next token, asks the pattern generator for
// the next (offset, is_read), records slot metadata, and enqueues a
// fixed-buffer op. It returns ringio.ErrAgain when the ring has no
// room, without consuming a token or a pattern offset, so a full-ring
// refill never drops an offset regardless of how the caller's own
// queue-depth guard is written.
func (e *Engine) submitOne() error {
	if e.queuedOps >= e.sqCapacity {
		return ringio.ErrAgain
	}

	token := e.nextToken
	idx := e.slots.index(token)

	offset, isRead := e.cfg.Pattern.Next()

	sampled := token%e.samplePeriod == 0
	var submitTs time.Time
	if sampled {
		submitTs = e.sampledNow()
	}

	if e.cfg.Pattern.FastMode() {
		e.slots.setSampling(token, sampled, submitTs)
	} else {
		e.slots.set(token, isRead, sampled, submitTs)
	}

	var err error
	if isRead {
		err = e.cfg.Ring.PrepareReadFixed(offset, uint32(e.cfg.BlockSize), idx, token)
	} else {
		err = e.cfg.Ring.PrepareWriteFixed(offset, uint32(e.cfg.BlockSize), idx, token)
	}
	if err != nil {
		return err
	}

	e.nextToken++
	e.queuedOps++
	return nil
}

// reapCompletions implements phase (b): drain every ready completion
// non-blockingly, fold bytes/errors/latency into the local counters,
// and release each op's slot.
func (e *Engine) reapCompletions() {
	var buf [256]ringio.Completion
	for {
		n := e.cfg.Ring.PeekCompletions(buf[:])
		if n == 0 {
			return
		}
		for i := 0; i < n; i++ {
			e.handleCompletion(buf[i])
		}
		if n < len(buf) {
			return
		}
	}
}

func (e *Engine) handleCompletion(c ringio.Completion) {
	s := e.slots.get(c.UserData)

	if c.Res < 0 {
		e.localErrors++
		e.consecutiveFailures++
	} else {
		e.consecutiveFailures = 0
		if s.isRead {
			e.localBytesRead += uint64(c.Res)
		} else {
			e.localBytesWritten += uint64(c.Res)
		}
		if s.sampled {
			e.cfg.Stats.RecordLatency(e.sampledNow().Sub(s.submitTs))
		}
	}

	e.localOpsCompleted++
	e.pendingOps--
}

// flushStats implements phase (f): fold every local counter into the
// shared atomics with one add per counter, then zero the locals.
func (e *Engine) flushStats() {
	if e.localBytesRead > 0 {
		e.cfg.Stats.AddRead(e.localBytesRead)
		e.localBytesRead = 0
	}
	if e.localBytesWritten > 0 {
		e.cfg.Stats.AddWrite(e.localBytesWritten)
		e.localBytesWritten = 0
	}
	if e.localErrors > 0 {
		e.cfg.Stats.AddError(e.localErrors)
		e.localErrors = 0
	}
	if e.localOpsCompleted > 0 {
		e.cfg.Stats.AddOps(e.localOpsCompleted)
		e.localOpsCompleted = 0
	}
}

// shutdown stops issuing new ops and drains outstanding ones, bounded
// by the configured grace period, then deregisters and returns the
// aggregate result. Deregistration runs unconditionally, even on the
// fatal-error path.
func (e *Engine) shutdown(reason ExitReason, fatalErr error) RunResult {
	deadline := e.clock().Add(e.drainGrace)
	for e.pendingOps > 0 && e.clock().Before(deadline) {
		if err := e.cfg.Ring.SubmitAndWait(1); err != nil && err != ringio.ErrTimerExpired && err != ringio.ErrInterrupted {
			break
		}
		e.reapCompletions()
	}

	if e.pendingOps > 0 {
		e.cfg.Stats.AddError(uint64(e.pendingOps))
		if fatalErr == nil && reason != ExitFatalError {
			fatalErr = werr.NewDrainTimeout(e.pendingOps)
		}
		e.pendingOps = 0
	}

	e.flushStats()

	if err := e.cfg.Ring.Deregister(); err != nil {
		e.logger.WithOp("deregister").WithError(err).Warn("deregister failed during shutdown")
	}

	if fatalErr != nil {
		e.logger.WithOp(string(reason)).WithError(fatalErr).Error("worker stopped")
	} else {
		e.logger.WithOp(string(reason)).Info("worker stopped")
	}

	return RunResult{
		ExitReason: reason,
		FatalErr:   fatalErr,
		Snapshot:   e.cfg.Stats.Snapshot(),
	}
}
