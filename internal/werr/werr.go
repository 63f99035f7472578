// Package werr is the structured error type shared by the worker
// engine and the root package's public API, split out from the root
// package to avoid a cycle (internal/worker must not import the
// package that wraps it).
package werr

import (
	"errors"
	"fmt"
	"syscall"
)

// Code categorizes a failure per the error kinds the engine
// distinguishes: setup failures are fatal before any op runs,
// per-op/submission failures are recovered and counted, drain
// timeouts are reported but do not block a final snapshot.
type Code string

const (
	CodeSetup        Code = "setup"
	CodeOp           Code = "op"
	CodeSubmission   Code = "submission"
	CodeDrainTimeout Code = "drain_timeout"
)

// Error is the structured error this module returns for every fatal
// condition. Op names the failing step, Errno carries the kernel
// errno when the failure originated at a syscall boundary.
type Error struct {
	Op    string
	Code  Code
	Errno syscall.Errno
	Msg   string
	Inner error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Inner != nil {
		msg = e.Inner.Error()
	}
	if e.Errno != 0 {
		return fmt.Sprintf("ringbench: %s: %s (errno=%d)", e.Op, msg, e.Errno)
	}
	return fmt.Sprintf("ringbench: %s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error { return e.Inner }

func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == te.Code
}

// NewSetup builds a fatal setup-phase error.
func NewSetup(op string, inner error) *Error {
	return wrap(op, CodeSetup, inner)
}

// NewOp builds a per-op error, recorded in the error counter rather
// than surfaced, unless the consecutive-failure threshold escalates it.
func NewOp(op string, errno syscall.Errno) *Error {
	return &Error{Op: op, Code: CodeOp, Errno: errno, Msg: errno.Error()}
}

// NewSubmission builds a submission-failure error, treated like a
// per-op error for every op dropped from the failed batch.
func NewSubmission(op string, inner error) *Error {
	return wrap(op, CodeSubmission, inner)
}

// NewDrainTimeout builds the error recorded when the shutdown grace
// period elapses with ops still outstanding.
func NewDrainTimeout(outstanding int) *Error {
	return &Error{
		Op:   "drain",
		Code: CodeDrainTimeout,
		Msg:  fmt.Sprintf("%d ops still outstanding after grace period", outstanding),
	}
}

// NewEscalatedFailures builds the fatal error raised when consecutive
// per-op failures exceed the configured threshold.
func NewEscalatedFailures(consecutive, threshold int) *Error {
	return &Error{
		Op:   "completion",
		Code: CodeOp,
		Msg:  fmt.Sprintf("%d consecutive failures exceeds threshold %d", consecutive, threshold),
	}
}

func wrap(op string, code Code, inner error) *Error {
	if inner == nil {
		return &Error{Op: op, Code: code}
	}
	var errno syscall.Errno
	errors.As(inner, &errno)
	return &Error{Op: op, Code: code, Errno: errno, Msg: inner.Error(), Inner: inner}
}

// IsCode reports whether err is (or wraps) an *Error of the given code.
func IsCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
