package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ringbench/ringbench/internal/monitor"
)

var monitorFlags struct {
	device   string
	interval time.Duration
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Print a live CPU/memory/NUMA/block-layer snapshot at an interval.",
	RunE:  runMonitor,
}

func init() {
	f := monitorCmd.Flags()
	f.StringVar(&monitorFlags.device, "device", "", "block device whose /sys/block stats to include (optional)")
	f.DurationVar(&monitorFlags.interval, "interval", time.Second, "sampling interval")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sampler := monitor.NewSampler(monitorFlags.device)

	ticker := time.NewTicker(monitorFlags.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			sample, err := sampler.Sample()
			if err != nil {
				return err
			}
			printSample(sample)
		}
	}
}

func printSample(s monitor.Sample) {
	fmt.Fprintf(os.Stdout, "cpu=%.1f%% mem_used=%.1f%% numa_nodes=%d",
		s.CPU.Average*100, s.Memory.UtilizationPct, len(s.NUMA.Nodes))
	if s.Block != nil {
		fmt.Fprintf(os.Stdout, " read_ios=%d write_ios=%d in_flight=%d",
			s.Block.ReadIOs, s.Block.WriteIOs, s.Block.InFlight)
	}
	fmt.Fprintln(os.Stdout)
}
