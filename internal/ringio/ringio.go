// Package ringio drives one kernel submission/completion ring per
// worker: registered buffers, a registered file, and fixed-buffer
// read/write operations correlated by a user-data token. It is the
// worker's only point of contact with the kernel's async I/O
// interface, and the point at which tests substitute a Ring that
// never touches the kernel at all (see FakeRing).
package ringio

import "errors"

// Completion describes one reaped completion queue event.
type Completion struct {
	// UserData is the token supplied at submission time.
	UserData uint64
	// Res is the operation's result: bytes transferred on success, a
	// negative errno on failure (mirroring the kernel's io_uring_cqe.res).
	Res int32
}

// Ring is the substitution point between the worker's steady-state
// loop and the kernel's io_uring interface. A worker owns exactly one
// Ring for its lifetime and never shares it across goroutines.
type Ring interface {
	// RegisterBuffers registers the buffer pool as fixed buffers,
	// indexed 0..len(iovecs)-1. Must be called exactly once, before
	// any PrepareReadFixed/PrepareWriteFixed call.
	RegisterBuffers(iovecs []Iovec) error

	// RegisterFile registers fd as fixed-file index 0.
	RegisterFile(fd int) error

	// PrepareReadFixed enqueues a fixed-buffer read of length bytes at
	// offset, from fixed-file index 0 into fixed-buffer index bufIndex,
	// tagged with userData. It does not submit; call SubmitBatch.
	PrepareReadFixed(offset uint64, length uint32, bufIndex int, userData uint64) error

	// PrepareWriteFixed is PrepareReadFixed's write counterpart.
	PrepareWriteFixed(offset uint64, length uint32, bufIndex int, userData uint64) error

	// QueuedCount reports how many prepared-but-unsubmitted operations
	// are pending in the submission queue.
	QueuedCount() int

	// SQCapacity reports the total capacity of the submission queue.
	SQCapacity() int

	// SubmitBatch submits all queued operations without blocking for
	// completions, returning how many were submitted.
	SubmitBatch() (int, error)

	// SubmitAndWait submits any queued operations and blocks until at
	// least minComplete completions are available.
	SubmitAndWait(minComplete int) error

	// PeekCompletions drains up to len(out) ready completions
	// without blocking, returning how many were written into out.
	PeekCompletions(out []Completion) int

	// Deregister unregisters the fixed file and fixed buffers. Called
	// once, after drain, before Close.
	Deregister() error

	// Close releases the ring's kernel resources.
	Close() error
}

// Iovec is the buffer-registration payload, decoupled from
// golang.org/x/sys/unix.Iovec so this package's public interface does
// not leak a platform-specific type into internal/bufpool's caller.
type Iovec struct {
	Base *byte
	Len  uint64
}

var (
	// ErrAgain indicates the submission queue has no free entry, or
	// the kernel returned EAGAIN.
	ErrAgain = errors.New("ringio: resource temporarily unavailable")
	// ErrTimerExpired indicates a submit-and-wait's kernel-side timeout fired.
	ErrTimerExpired = errors.New("ringio: wait timer expired")
	// ErrInterrupted indicates a blocking syscall was interrupted.
	ErrInterrupted = errors.New("ringio: interrupted syscall")
)
