package ringbench

import (
	"syscall"

	"github.com/ringbench/ringbench/internal/werr"
)

// Error is the structured error this module returns for every fatal
// condition: a failed setup step, an escalated run of per-op
// failures, a submission failure, or a drain timeout.
type Error = werr.Error

// ErrorCode categorizes an Error per §7's error kinds.
type ErrorCode = werr.Code

const (
	ErrCodeSetup        = werr.CodeSetup
	ErrCodeOp            = werr.CodeOp
	ErrCodeSubmission    = werr.CodeSubmission
	ErrCodeDrainTimeout  = werr.CodeDrainTimeout
)

// NewSetupError builds a fatal setup-phase error: a failed device
// open, a failed registration, or an invalid configuration.
func NewSetupError(op string, inner error) *Error {
	return werr.NewSetup(op, inner)
}

// NewOpError builds a per-op error for a single failing completion.
func NewOpError(op string, errno syscall.Errno) *Error {
	return werr.NewOp(op, errno)
}

// NewSubmissionError builds a submission-failure error, covering every
// op dropped from a failed batch.
func NewSubmissionError(op string, inner error) *Error {
	return werr.NewSubmission(op, inner)
}

// NewDrainTimeoutError builds the error recorded when shutdown's grace
// period elapses with ops still outstanding.
func NewDrainTimeoutError(outstanding int) *Error {
	return werr.NewDrainTimeout(outstanding)
}

// IsErrorCode reports whether err is (or wraps) an *Error of the given code.
func IsErrorCode(err error, code ErrorCode) bool {
	return werr.IsCode(err, code)
}
