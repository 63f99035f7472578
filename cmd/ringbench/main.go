// Command ringbench drives the ringbench worker from the command
// line: run a benchmark, list candidate devices, or watch a live
// system-resource monitor.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ringbench: %v\n", err)
		os.Exit(1)
	}
}
