package fusefs

import (
	"context"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// Statfs reports the configured geometry. Used space comes from the
// engine when it can measure itself; engines without usage accounting
// report everything free.
func (n *fuseNode) Statfs(ctx context.Context, out *fuse.StatfsOut) syscall.Errno {
	if n.fusefs.checkUnmounting() {
		return syscall.ENOTCONN
	}

	cfg := n.fusefs.fsys.Config()
	if cfg == nil {
		return syscall.ENOTCONN
	}

	out.Blocks = uint64(cfg.BlockCount)
	out.Bsize = cfg.BlockSize
	out.Frsize = cfg.BlockSize

	out.NameLen = cfg.NameMax
	if out.NameLen == 0 {
		out.NameLen = 255
	}

	out.Bfree = out.Blocks
	if used, err := n.fusefs.fsys.Size(); err == nil {
		if uint64(used) < out.Blocks {
			out.Bfree = out.Blocks - uint64(used)
		} else {
			out.Bfree = 0
		}
	}
	out.Bavail = out.Bfree

	return 0
}

// Ensure fuseNode implements Statfs interface
var _ fs.NodeStatfser = (*fuseNode)(nil)
