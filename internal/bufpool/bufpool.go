// Package bufpool allocates the fixed set of page-aligned buffers a
// worker registers with the kernel once at startup and then reuses
// round-robin by integer index for the lifetime of the run.
package bufpool

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Pool is an ordered sequence of exactly Depth buffers, each
// BlockSize bytes, aligned to at least Alignment bytes. The slice
// backing every buffer is carved out of one page-aligned anonymous
// mapping: mmap always returns a page-aligned address, so rounding
// the per-buffer size up to BlockSize already satisfies any alignment
// requirement up to one page, and any requirement larger than a page
// is rejected at construction rather than silently under-aligned.
type Pool struct {
	mapping []byte
	Buffers [][]byte
	Depth   int
	Block   int
}

// New allocates depth buffers of blockSize bytes, each aligned to at
// least alignment bytes. blockSize must already be a multiple of
// alignment; callers are expected to have validated this against the
// device's logical block size before calling New (a worker.Config
// with a misaligned block size is a setup error, not a bufpool one).
func New(depth, blockSize, alignment int) (*Pool, error) {
	if depth < 1 {
		return nil, fmt.Errorf("bufpool: depth must be >= 1, got %d", depth)
	}
	if blockSize < 1 {
		return nil, fmt.Errorf("bufpool: blockSize must be >= 1, got %d", blockSize)
	}
	if alignment > os.Getpagesize() {
		return nil, fmt.Errorf("bufpool: alignment %d exceeds page size %d", alignment, os.Getpagesize())
	}
	if blockSize%alignment != 0 {
		return nil, fmt.Errorf("bufpool: blockSize %d is not a multiple of alignment %d", blockSize, alignment)
	}

	total := adjustToPage(depth * blockSize)
	mapping, err := unix.Mmap(-1, 0, total, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("bufpool: mmap %d bytes: %w", total, err)
	}

	buffers := make([][]byte, depth)
	for i := 0; i < depth; i++ {
		start := i * blockSize
		buffers[i] = mapping[start : start+blockSize : start+blockSize]
	}

	return &Pool{mapping: mapping, Buffers: buffers, Depth: depth, Block: blockSize}, nil
}

// Iovecs returns the pool's buffers as a raw iovec table suitable for
// IORING_REGISTER_BUFFERS.
func (p *Pool) Iovecs() []unix.Iovec {
	iovecs := make([]unix.Iovec, p.Depth)
	for i, buf := range p.Buffers {
		iovecs[i].Base = &buf[0]
		iovecs[i].SetLen(len(buf))
	}
	return iovecs
}

// Close unmaps the pool's backing memory; calling it again is a no-op
// returning nil. It backs the worker's unconditional "deregister and
// close on every exit path" contract (the ring registration is torn
// down first, by the caller, before Close runs).
func (p *Pool) Close() error {
	if p.mapping == nil {
		return nil
	}
	err := unix.Munmap(p.mapping)
	p.mapping = nil
	return err
}

func adjustToPage(size int) int {
	pageSize := os.Getpagesize()
	if size%pageSize == 0 {
		return size
	}
	return (size/pageSize + 1) * pageSize
}
