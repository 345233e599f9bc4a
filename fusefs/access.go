package fusefs

import (
	"context"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
)

// Access constants for checking file permissions
const (
	F_OK = 0 // Test for existence
	X_OK = 1 // Test for execute permission
	W_OK = 2 // Test for write permission
	R_OK = 4 // Test for read permission
)

// Access checks if the caller may reach the path.
//
// The engine carries no ownership or permission bits, so the check
// reduces to existence plus the mount-level read-only switch. The
// presented modes from MountOptions are descriptive only.
func (n *fuseNode) Access(ctx context.Context, mask uint32) syscall.Errno {
	if n.fusefs.checkUnmounting() {
		return syscall.ENOTCONN
	}

	if _, err := n.fusefs.fsys.Stat(n.path); err != nil {
		return toErrno(err)
	}

	if mask&W_OK != 0 && n.fusefs.opts.ReadOnly {
		return syscall.EROFS
	}

	return 0
}

// Ensure fuseNode implements Access interface
var _ fs.NodeAccesser = (*fuseNode)(nil)
