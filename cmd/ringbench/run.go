package main

import (
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/alitto/pond"
	"github.com/spf13/cobra"

	"github.com/ringbench/ringbench"
	"github.com/ringbench/ringbench/internal/config"
	"github.com/ringbench/ringbench/internal/logging"
	"github.com/ringbench/ringbench/internal/optimizer"
	"github.com/ringbench/ringbench/internal/pattern"
	"github.com/ringbench/ringbench/internal/reporting"
)

var runFlags struct {
	configPath string

	device     string
	patternStr string
	queueDepth int
	blockSize  int
	duration   time.Duration
	workers    int
	readRatio  float64
	seed       int64
	sampleRate float64

	optimize bool
	report   string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a benchmark against a block device.",
	RunE:  runRun,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runFlags.configPath, "config", "", "YAML config file; overrides the flags below when set")
	f.StringVar(&runFlags.device, "device", "", "path to the target block device")
	f.StringVar(&runFlags.patternStr, "pattern", "sequential-read", "workload shape: sequential-read, sequential-write, random-read, random-write, mixed")
	f.IntVar(&runFlags.queueDepth, "queue-depth", 32, "maximum outstanding I/Os per worker")
	f.IntVar(&runFlags.blockSize, "block-size", 4096, "I/O size in bytes, a multiple of the device's logical block size")
	f.DurationVar(&runFlags.duration, "duration", 10*time.Second, "how long to run the steady-state loop")
	f.IntVar(&runFlags.workers, "workers", 1, "number of parallel workers sharing the device")
	f.Float64Var(&runFlags.readRatio, "read-ratio", 0.7, "fraction of mixed-pattern ops that are reads")
	f.Int64Var(&runFlags.seed, "seed", 0, "random seed base for random/mixed patterns")
	f.Float64Var(&runFlags.sampleRate, "latency-sample-rate", 0.01, "fraction of ops timed end-to-end")
	f.BoolVar(&runFlags.optimize, "optimize", false, "hill-climb queue_depth across repeated runs")
	f.StringVar(&runFlags.report, "report", "", "write the final snapshot as text to this path in addition to stdout")
}

// resolveRunConfig unifies the flag-populated and YAML-populated paths into
// one shape the rest of runRun works from.
func resolveRunConfig() (*config.RunConfig, error) {
	if runFlags.configPath != "" {
		return config.Load(runFlags.configPath)
	}

	kind, err := pattern.ParseKind(runFlags.patternStr)
	if err != nil {
		return nil, err
	}
	if runFlags.device == "" {
		return nil, fmt.Errorf("--device is required when --config is not set")
	}

	return &config.RunConfig{
		Device:            runFlags.device,
		Pattern:           kind,
		QueueDepth:        runFlags.queueDepth,
		BlockSize:         runFlags.blockSize,
		Duration:          runFlags.duration,
		Workers:           runFlags.workers,
		ReadRatio:         runFlags.readRatio,
		Seed:              runFlags.seed,
		LatencySampleRate: runFlags.sampleRate,
		Optimize:          runFlags.optimize,
		Report:            runFlags.report,
	}, nil
}

func runRun(cmd *cobra.Command, args []string) error {
	rc, err := resolveRunConfig()
	if err != nil {
		return err
	}

	logger := newLogger()

	var search *optimizer.Search
	if rc.Optimize {
		search = optimizer.NewSearch(rc.QueueDepth, 1, 1024, 0)
	}

	stopFlag := &atomic.Bool{}
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		stopFlag.Store(true)
	}()

	queueDepth := rc.QueueDepth
	if search != nil {
		queueDepth = search.Candidate()
	}

	snap, err := runOnce(rc, queueDepth, stopFlag, logger)
	if err != nil {
		return err
	}

	if search != nil {
		depth := search.Record(snap.IOPS())
		logger.Info("optimizer step", "candidate_queue_depth", queueDepth, "next_queue_depth", depth, "iops", snap.IOPS())
	}

	if err := reporting.WriteText(os.Stdout, snap); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if rc.Report != "" {
		f, err := os.Create(rc.Report)
		if err != nil {
			return fmt.Errorf("create report file: %w", err)
		}
		defer f.Close()
		if err := reporting.WriteText(f, snap); err != nil {
			return fmt.Errorf("write report file: %w", err)
		}
	}
	return nil
}

// runOnce fans N workers out across a pond worker pool, each pinned to
// its own OS thread for the duration of its steady-state loop, and
// returns the aggregate snapshot once every worker has returned.
func runOnce(rc *config.RunConfig, queueDepth int, stopFlag *atomic.Bool, logger *logging.Logger) (ringbench.Snapshot, error) {
	stats := ringbench.NewStats()
	logger.Info("starting run", "device", rc.Device, "workers", rc.Workers, "queue_depth", queueDepth, "block_size", rc.BlockSize)

	pool := pond.New(rc.Workers, rc.Workers)
	defer pool.StopAndWait()

	var wg sync.WaitGroup
	var firstErr error
	var mu sync.Mutex

	for i := 0; i < rc.Workers; i++ {
		workerID := i
		wg.Add(1)
		pool.Submit(func() {
			defer wg.Done()
			runtime.LockOSThread()
			defer runtime.UnlockOSThread()

			w, err := ringbench.New(ringbench.Config{
				DevicePath:        rc.Device,
				Pattern:           rc.Pattern,
				ReadRatio:         rc.ReadRatio,
				Seed:              rc.Seed + int64(workerID),
				QueueDepth:        queueDepth,
				BlockSize:         rc.BlockSize,
				Duration:          rc.Duration,
				LatencySampleRate: rc.LatencySampleRate,
				Stats:             stats,
				StopFlag:          stopFlag,
				WorkerID:          workerID,
				Logger:            logger.WithWorker(workerID),
			})
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("worker %d: %w", workerID, err)
				}
				mu.Unlock()
				return
			}

			result := w.Run()
			if result.ExitReason == ringbench.ExitFatalError {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("worker %d: %w", workerID, result.FatalErr)
				}
				mu.Unlock()
			}
		})
	}

	wg.Wait()
	if firstErr != nil {
		return ringbench.Snapshot{}, firstErr
	}
	return stats.Snapshot(), nil
}
