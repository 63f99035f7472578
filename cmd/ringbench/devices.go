package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ringbench/ringbench/internal/device"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List block devices discoverable under /sys/class/block.",
	RunE:  runDevices,
}

func runDevices(cmd *cobra.Command, args []string) error {
	infos, err := device.List()
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tPATH\tSIZE\tLOGICAL_BLOCK_SIZE")
	for _, info := range infos {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", info.Name, info.Path, info.Size, info.LogicalBlockSize)
	}
	return tw.Flush()
}
