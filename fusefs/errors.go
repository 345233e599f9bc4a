package fusefs

import (
	"errors"
	"syscall"

	"github.com/absfs/flashfs"
)

// toErrno translates session errors to FUSE error codes
func toErrno(err error) syscall.Errno {
	if err == nil {
		return 0
	}

	// Session-level failures mean the storage behind the mountpoint is
	// gone, which the kernel understands as a dead transport.
	if errors.Is(err, flashfs.ErrNotMounted) || errors.Is(err, flashfs.ErrNoConfig) {
		return syscall.ENOTCONN
	}

	var code flashfs.Code
	if !errors.As(err, &code) {
		return syscall.EIO
	}

	switch code {
	case flashfs.OK:
		return 0
	case flashfs.ErrNoEntry:
		return syscall.ENOENT
	case flashfs.ErrExists:
		return syscall.EEXIST
	case flashfs.ErrNotDir:
		return syscall.ENOTDIR
	case flashfs.ErrIsDir:
		return syscall.EISDIR
	case flashfs.ErrNotEmpty:
		return syscall.ENOTEMPTY
	case flashfs.ErrBadFile:
		return syscall.EBADF
	case flashfs.ErrInvalid:
		return syscall.EINVAL
	case flashfs.ErrNoSpace:
		return syscall.ENOSPC
	case flashfs.ErrNoMemory:
		return syscall.ENOMEM
	}

	// ErrIO, ErrCorrupt and unknown codes surface as I/O errors
	return syscall.EIO
}
