// Package ringbench drives a block device through io_uring with
// direct, unbuffered I/O and measures throughput, IOPS, and latency.
//
// A Worker owns one ring, one buffer pool, and one pattern generator
// for its lifetime; Run executes the steady-state submit/reap loop
// until the configured duration elapses, Stop is called, or a fatal
// error escalates. Multiple Workers sharing one Stats and one stop
// flag is how a multi-worker run is composed (see cmd/ringbench).
package ringbench
