package werr

import (
	"errors"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewSetupWrapsInnerAndErrno(t *testing.T) {
	inner := syscall.EACCES
	err := NewSetup("open_device", inner)

	require.Equal(t, CodeSetup, err.Code)
	require.Equal(t, inner, err.Errno)
	require.ErrorIs(t, err, inner)
	require.Contains(t, err.Error(), "open_device")
}

func TestNewOpCarriesErrno(t *testing.T) {
	err := NewOp("read", syscall.EIO)
	require.Equal(t, CodeOp, err.Code)
	require.Equal(t, syscall.EIO, err.Errno)
	require.Contains(t, err.Error(), "errno=")
}

func TestNewDrainTimeoutReportsOutstanding(t *testing.T) {
	err := NewDrainTimeout(7)
	require.Equal(t, CodeDrainTimeout, err.Code)
	require.Contains(t, err.Error(), "7 ops still outstanding")
}

func TestNewEscalatedFailuresReportsThreshold(t *testing.T) {
	err := NewEscalatedFailures(12, 10)
	require.Equal(t, CodeOp, err.Code)
	require.Contains(t, err.Error(), "12 consecutive failures exceeds threshold 10")
}

func TestIsCodeMatchesAcrossWrapping(t *testing.T) {
	base := NewSetup("alloc_buffers", errors.New("no memory"))
	wrapped := NewSubmission("submit_batch", base)

	require.True(t, IsCode(wrapped, CodeSubmission))
	require.False(t, IsCode(wrapped, CodeSetup))
}

func TestErrorIsComparesByCodeOnly(t *testing.T) {
	a := NewOp("read", syscall.EIO)
	b := NewOp("write", syscall.ENOSPC)
	require.True(t, a.Is(b))

	c := NewSetup("open_device", nil)
	require.False(t, a.Is(c))
}

func TestWrapWithNilInnerOmitsMessage(t *testing.T) {
	err := NewSubmission("submit_batch", nil)
	require.Nil(t, err.Inner)
	require.Empty(t, err.Msg)
	require.Equal(t, CodeSubmission, err.Code)
}
