//go:build linux

package ringio

import (
	"fmt"
	"os"
	"sync/atomic"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Linux x86_64/arm64 io_uring syscall numbers. Neither syscall has a
// wrapper in golang.org/x/sys/unix, so this engine issues them
// directly, matching both the teacher's internal/uring/minimal.go and
// pawelgaczynski-gain/iouring's approach.
const (
	sysIOUringSetup    = 425
	sysIOUringEnter    = 426
	sysIOUringRegister = 427
)

const defaultEnterSigSize = 8 // sizeof(sigset_t) on the fast path, unused here

// sqRing and cqRing hold pointers into the mmap'd ring memory.
type sqRing struct {
	raw         []byte
	sqes        []byte
	head        *uint32
	tail        *uint32
	ringMask    *uint32
	ringEntries *uint32
	flags       *uint32
	dropped     *uint32
	array       *uint32

	sqeTail uint32 // local, not yet flushed to the array
}

type cqRing struct {
	raw         []byte
	head        *uint32
	tail        *uint32
	ringMask    *uint32
	ringEntries *uint32
	overflow    *uint32
	cqes        unsafe.Pointer
}

// realRing is the production Ring: a live io_uring instance bound to
// one file descriptor, used by exactly one worker goroutine.
type realRing struct {
	fd       int
	params   uringParams
	sq       sqRing
	cq       cqRing
	fileFd   int
	hasFile  bool
	hasBufs  bool
	bufAddrs []uintptr
}

// NewRing creates and mmaps a new io_uring instance with the given
// submission queue depth.
func NewRing(entries uint32) (Ring, error) {
	r := &realRing{}
	fd, _, errno := syscall.Syscall(sysIOUringSetup, uintptr(entries), uintptr(unsafe.Pointer(&r.params)), 0)
	if errno != 0 {
		return nil, fmt.Errorf("ringio: io_uring_setup: %w", os.NewSyscallError("io_uring_setup", errno))
	}
	r.fd = int(fd)
	if err := r.mmapRings(); err != nil {
		unix.Close(r.fd)
		return nil, err
	}
	return r, nil
}

func (r *realRing) mmapRings() error {
	sqRingSize := uint64(r.params.sqOff.array) + uint64(r.params.sqEntries)*4
	cqRingSize := uint64(r.params.cqOff.cqes) + uint64(r.params.cqEntries)*uint64(cqeSize)
	if r.params.features&featSingleMMap != 0 && cqRingSize > sqRingSize {
		sqRingSize = cqRingSize
	}

	sqMem, err := unix.Mmap(r.fd, 0x0, int(sqRingSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		return fmt.Errorf("ringio: mmap sq ring: %w", err)
	}
	r.sq.raw = sqMem

	var cqMem []byte
	if r.params.features&featSingleMMap != 0 {
		cqMem = sqMem
	} else {
		cqMem, err = unix.Mmap(r.fd, 0x8000000, int(cqRingSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
		if err != nil {
			unix.Munmap(sqMem)
			return fmt.Errorf("ringio: mmap cq ring: %w", err)
		}
	}
	r.cq.raw = cqMem

	sqeMem, err := unix.Mmap(r.fd, 0x10000000, int(uintptr(r.params.sqEntries)*sqeSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		unix.Munmap(sqMem)
		if len(cqMem) > 0 && &cqMem[0] != &sqMem[0] {
			unix.Munmap(cqMem)
		}
		return fmt.Errorf("ringio: mmap sqes: %w", err)
	}
	r.sq.sqes = sqeMem

	sqBase := unsafe.Pointer(&sqMem[0])
	r.sq.head = (*uint32)(unsafe.Add(sqBase, uintptr(r.params.sqOff.head)))
	r.sq.tail = (*uint32)(unsafe.Add(sqBase, uintptr(r.params.sqOff.tail)))
	r.sq.ringMask = (*uint32)(unsafe.Add(sqBase, uintptr(r.params.sqOff.ringMask)))
	r.sq.ringEntries = (*uint32)(unsafe.Add(sqBase, uintptr(r.params.sqOff.ringEntries)))
	r.sq.flags = (*uint32)(unsafe.Add(sqBase, uintptr(r.params.sqOff.flags)))
	r.sq.dropped = (*uint32)(unsafe.Add(sqBase, uintptr(r.params.sqOff.dropped)))
	r.sq.array = (*uint32)(unsafe.Add(sqBase, uintptr(r.params.sqOff.array)))

	cqBase := unsafe.Pointer(&cqMem[0])
	r.cq.head = (*uint32)(unsafe.Add(cqBase, uintptr(r.params.cqOff.head)))
	r.cq.tail = (*uint32)(unsafe.Add(cqBase, uintptr(r.params.cqOff.tail)))
	r.cq.ringMask = (*uint32)(unsafe.Add(cqBase, uintptr(r.params.cqOff.ringMask)))
	r.cq.ringEntries = (*uint32)(unsafe.Add(cqBase, uintptr(r.params.cqOff.ringEntries)))
	r.cq.overflow = (*uint32)(unsafe.Add(cqBase, uintptr(r.params.cqOff.overflow)))
	r.cq.cqes = unsafe.Add(cqBase, uintptr(r.params.cqOff.cqes))
	return nil
}

func (r *realRing) sqeAt(index uint32) *submissionQueueEntry {
	return (*submissionQueueEntry)(unsafe.Add(unsafe.Pointer(&r.sq.sqes[0]), uintptr(index)*sqeSize))
}

func (r *realRing) cqeAt(index uint32) *completionQueueEvent {
	return (*completionQueueEvent)(unsafe.Add(r.cq.cqes, uintptr(index)*cqeSize))
}

func (r *realRing) getSQE() (*submissionQueueEntry, error) {
	head := atomic.LoadUint32(r.sq.head)
	next := r.sq.sqeTail + 1
	if next-head > *r.sq.ringEntries {
		if _, err := r.submit(0, 0); err != nil {
			return nil, err
		}
		head = atomic.LoadUint32(r.sq.head)
		if next-head > *r.sq.ringEntries {
			return nil, ErrAgain
		}
	}
	index := r.sq.sqeTail & *r.sq.ringMask
	r.sq.sqeTail = next
	sqe := r.sqeAt(index)
	*sqe = submissionQueueEntry{}
	return sqe, nil
}

func (r *realRing) prepareFixed(opcode uint8, offset uint64, length uint32, bufIndex int, userData uint64) error {
	sqe, err := r.getSQE()
	if err != nil {
		return err
	}
	var addr uintptr
	if bufIndex >= 0 && bufIndex < len(r.bufAddrs) {
		addr = r.bufAddrs[bufIndex]
	}
	sqe.opcode = opcode
	sqe.flags = sqeFixedFile
	sqe.fd = 0
	sqe.off = offset
	sqe.addr = uint64(addr)
	sqe.length = length
	sqe.bufIndex = uint16(bufIndex)
	sqe.userData = userData
	sqe.spliceFdIn = 1 // fixed-file index 0, encoded as index+1
	return nil
}

func (r *realRing) PrepareReadFixed(offset uint64, length uint32, bufIndex int, userData uint64) error {
	return r.prepareFixed(opReadFixed, offset, length, bufIndex, userData)
}

func (r *realRing) PrepareWriteFixed(offset uint64, length uint32, bufIndex int, userData uint64) error {
	return r.prepareFixed(opWriteFixed, offset, length, bufIndex, userData)
}

func (r *realRing) QueuedCount() int {
	return int(r.sq.sqeTail - atomic.LoadUint32(r.sq.head))
}

func (r *realRing) SQCapacity() int {
	return int(*r.sq.ringEntries)
}

// flush publishes every prepared-but-unflushed SQE into the shared
// array so the kernel will see it on the next enter call.
func (r *realRing) flush() uint32 {
	tail := atomic.LoadUint32(r.sq.tail)
	toSubmit := r.sq.sqeTail - tail
	for ; toSubmit > 0; toSubmit-- {
		index := tail & *r.sq.ringMask
		*(*uint32)(unsafe.Add(unsafe.Pointer(r.sq.array), uintptr(index)*4)) = index
		tail++
	}
	atomic.StoreUint32(r.sq.tail, tail)
	return tail
}

func (r *realRing) enter(submitted, waitNr, flags uint32) (uint, error) {
	n, _, errno := syscall.Syscall6(sysIOUringEnter, uintptr(r.fd), uintptr(submitted), uintptr(waitNr), uintptr(flags), 0, uintptr(defaultEnterSigSize/8))
	switch errno {
	case 0:
		return uint(n), nil
	case syscall.ETIME:
		return 0, ErrTimerExpired
	case syscall.EINTR:
		return 0, ErrInterrupted
	case syscall.EAGAIN:
		return 0, ErrAgain
	default:
		return 0, os.NewSyscallError("io_uring_enter", errno)
	}
}

func (r *realRing) submit(waitNr, flags uint32) (int, error) {
	before := atomic.LoadUint32(r.sq.head)
	r.flush()
	submitted := r.sq.sqeTail - before
	n, err := r.enter(submitted, waitNr, flags)
	return int(n), err
}

func (r *realRing) SubmitBatch() (int, error) {
	return r.submit(0, 0)
}

func (r *realRing) SubmitAndWait(minComplete int) error {
	_, err := r.submit(uint32(minComplete), enterGetEvents)
	return err
}

func (r *realRing) PeekCompletions(out []Completion) int {
	head := atomic.LoadUint32(r.cq.head)
	tail := atomic.LoadUint32(r.cq.tail)
	ready := tail - head
	n := len(out)
	if int(ready) < n {
		n = int(ready)
	}
	mask := *r.cq.ringMask
	for i := 0; i < n; i++ {
		cqe := r.cqeAt((head + uint32(i)) & mask)
		out[i] = Completion{UserData: cqe.userData, Res: cqe.res}
	}
	if n > 0 {
		atomic.StoreUint32(r.cq.head, head+uint32(n))
	}
	return n
}

func (r *realRing) register(op uint32, arg unsafe.Pointer, nrArgs uint32) error {
	_, _, errno := syscall.Syscall6(sysIOUringRegister, uintptr(r.fd), uintptr(op), uintptr(arg), uintptr(nrArgs), 0, 0)
	if errno != 0 {
		return os.NewSyscallError("io_uring_register", errno)
	}
	return nil
}

func (r *realRing) RegisterBuffers(iovecs []Iovec) error {
	raw := make([]unix.Iovec, len(iovecs))
	addrs := make([]uintptr, len(iovecs))
	for i, iov := range iovecs {
		raw[i].Base = iov.Base
		raw[i].SetLen(int(iov.Len))
		addrs[i] = uintptr(unsafe.Pointer(iov.Base))
	}
	if err := r.register(registerBuffers, unsafe.Pointer(&raw[0]), uint32(len(raw))); err != nil {
		return err
	}
	r.hasBufs = true
	r.bufAddrs = addrs
	return nil
}

func (r *realRing) RegisterFile(fd int) error {
	fds := [1]int32{int32(fd)}
	if err := r.register(registerFiles, unsafe.Pointer(&fds[0]), 1); err != nil {
		return err
	}
	r.fileFd = fd
	r.hasFile = true
	return nil
}

func (r *realRing) Deregister() error {
	var firstErr error
	if r.hasBufs {
		if err := r.register(unregisterBuffers, nil, 0); err != nil {
			firstErr = err
		}
		r.hasBufs = false
	}
	if r.hasFile {
		if err := r.register(unregisterFiles, nil, 0); err != nil && firstErr == nil {
			firstErr = err
		}
		r.hasFile = false
	}
	return firstErr
}

func (r *realRing) Close() error {
	unix.Munmap(r.sq.sqes)
	unix.Munmap(r.sq.raw)
	if &r.cq.raw[0] != &r.sq.raw[0] {
		unix.Munmap(r.cq.raw)
	}
	return unix.Close(r.fd)
}
