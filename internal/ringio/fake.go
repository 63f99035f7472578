package ringio

import (
	"sync"
	"syscall"
)

// RecordedOp is one submission observed by FakeRing, exposed to tests
// so they can assert on the exact sequence of offsets/directions a
// worker issued.
type RecordedOp struct {
	IsRead   bool
	Offset   uint64
	Length   uint32
	BufIndex int
	UserData uint64
	Seq      int
}

// FakeRing is the device emulator required by the spec's testable
// properties: it records every submission and completes it
// synchronously, by default with result == length (as if every op
// fully transferred block_size bytes), unless ResultFunc says
// otherwise. It never touches the kernel, so package tests run
// without root or a supporting host.
type FakeRing struct {
	Capacity int

	// ResultFunc computes a completion's result for a given recorded
	// op; return a negative errno to simulate a failed completion.
	// Defaults to "always succeed with len(op) bytes transferred".
	ResultFunc func(op RecordedOp) int32

	mu          sync.Mutex
	queued      []RecordedOp
	completed   []Completion
	records     []RecordedOp
	seq         int
	regFile     int
	filesReged  bool
	bufsReged   int
	deregistered bool
	closed      bool
}

// NewFakeRing builds a FakeRing with the given submission queue
// capacity. A capacity of 0 means unbounded.
func NewFakeRing(capacity int) *FakeRing {
	return &FakeRing{Capacity: capacity}
}

// FailEveryNth returns a ResultFunc that fails (returns -EIO) every
// nth submission (1-indexed) and otherwise succeeds with a full
// transfer, matching spec §8 scenario 4.
func FailEveryNth(n int) func(op RecordedOp) int32 {
	return func(op RecordedOp) int32 {
		if n > 0 && (op.Seq+1)%n == 0 {
			return -int32(syscall.EIO)
		}
		return int32(op.Length)
	}
}

func (f *FakeRing) RegisterBuffers(iovecs []Iovec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bufsReged = len(iovecs)
	return nil
}

func (f *FakeRing) RegisterFile(fd int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.regFile = fd
	f.filesReged = true
	return nil
}

func (f *FakeRing) prepare(isRead bool, offset uint64, length uint32, bufIndex int, userData uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Capacity > 0 && len(f.queued) >= f.Capacity {
		return ErrAgain
	}
	op := RecordedOp{
		IsRead:   isRead,
		Offset:   offset,
		Length:   length,
		BufIndex: bufIndex,
		UserData: userData,
		Seq:      f.seq,
	}
	f.seq++
	f.queued = append(f.queued, op)
	f.records = append(f.records, op)
	return nil
}

func (f *FakeRing) PrepareReadFixed(offset uint64, length uint32, bufIndex int, userData uint64) error {
	return f.prepare(true, offset, length, bufIndex, userData)
}

func (f *FakeRing) PrepareWriteFixed(offset uint64, length uint32, bufIndex int, userData uint64) error {
	return f.prepare(false, offset, length, bufIndex, userData)
}

func (f *FakeRing) QueuedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queued)
}

func (f *FakeRing) SQCapacity() int {
	if f.Capacity > 0 {
		return f.Capacity
	}
	return 1 << 16
}

// complete moves every currently-queued op straight to the completion
// queue: the emulator has no concept of device latency, so every
// submit is also an immediate completion.
func (f *FakeRing) complete() int {
	resultFn := f.ResultFunc
	if resultFn == nil {
		resultFn = func(op RecordedOp) int32 { return int32(op.Length) }
	}
	n := len(f.queued)
	for _, op := range f.queued {
		f.completed = append(f.completed, Completion{UserData: op.UserData, Res: resultFn(op)})
	}
	f.queued = f.queued[:0]
	return n
}

func (f *FakeRing) SubmitBatch() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.complete(), nil
}

func (f *FakeRing) SubmitAndWait(minComplete int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.complete()
	return nil
}

func (f *FakeRing) PeekCompletions(out []Completion) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(out)
	if len(f.completed) < n {
		n = len(f.completed)
	}
	copy(out, f.completed[:n])
	f.completed = f.completed[n:]
	return n
}

func (f *FakeRing) Deregister() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deregistered = true
	return nil
}

func (f *FakeRing) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Records returns every submission observed so far, in submission order.
func (f *FakeRing) Records() []RecordedOp {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]RecordedOp, len(f.records))
	copy(out, f.records)
	return out
}

// Closed reports whether Close was called.
func (f *FakeRing) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Deregistered reports whether Deregister was called.
func (f *FakeRing) Deregistered() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deregistered
}
