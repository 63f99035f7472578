package ringio

// Kernel io_uring opcodes. Only the ones this engine issues are
// named; the numeric values must match IORING_OP_* from the kernel
// UAPI (linux/io_uring.h) exactly since they are written straight
// into the submission queue entry.
const (
	opNop        uint8 = 0
	opReadFixed  uint8 = 4
	opWriteFixed uint8 = 5
)

// Registration opcodes for IORING_REGISTER, matching IORING_REGISTER_*.
const (
	registerBuffers   uint32 = 0
	unregisterBuffers uint32 = 1
	registerFiles     uint32 = 2
	unregisterFiles   uint32 = 3
)

// io_uring_enter flags.
const (
	enterGetEvents uint32 = 1 << 0
)

// Feature bits reported by io_uring_setup in params.features.
const (
	featSingleMMap uint32 = 1 << 0
)

// splice_fd_in convention for targeting a registered (fixed) file: the
// kernel reads the fixed-file index from splice_fd_in when
// IOSQE_FIXED_FILE is set on the SQE, encoded as index+1.
const sqeFixedFile uint8 = 1 << 0
