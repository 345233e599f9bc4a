// Package fusefs exposes a mounted flashfs session through FUSE.
package fusefs

import (
	"sync/atomic"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/absfs/flashfs"
)

// FuseFS bridges a flashfs session to the kernel. Every node and handle
// operation funnels into the session, which serializes it on the
// session guard.
type FuseFS struct {
	// fsys is the session behind the mount. It must be mounted before
	// Mount and stays mounted after Unmount.
	fsys *flashfs.FS

	// opts contains mount options
	opts *MountOptions

	// server is the FUSE server instance
	server *fuse.Server

	// inodes numbers paths; the engine has no native inodes
	inodes *inodeTable

	// mountedAt stamps every attribute; the engine keeps no times
	mountedAt time.Time

	// unmounting indicates if the filesystem is being unmounted
	unmounting atomic.Bool

	// Root node for go-fuse
	root *fuseNode
}

// fuseNode implements the fs.InodeEmbedder interface for go-fuse v2
type fuseNode struct {
	fs.Inode
	fusefs *FuseFS
	path   string
}

// Ensure fuseNode implements required interfaces
var _ fs.NodeLookuper = (*fuseNode)(nil)
var _ fs.NodeGetattrer = (*fuseNode)(nil)
var _ fs.NodeReaddirer = (*fuseNode)(nil)
var _ fs.NodeOpener = (*fuseNode)(nil)
var _ fs.NodeCreater = (*fuseNode)(nil)
var _ fs.NodeMkdirer = (*fuseNode)(nil)
var _ fs.NodeUnlinker = (*fuseNode)(nil)
var _ fs.NodeRmdirer = (*fuseNode)(nil)
var _ fs.NodeSetattrer = (*fuseNode)(nil)
var _ fs.NodeFsyncer = (*fuseNode)(nil)

// newFuseFS creates a new FUSE adapter over a mounted session
func newFuseFS(fsys *flashfs.FS, opts *MountOptions) *FuseFS {
	fuseFS := &FuseFS{
		fsys:      fsys,
		opts:      opts,
		inodes:    newInodeTable(),
		mountedAt: time.Now(),
	}

	fuseFS.root = &fuseNode{
		fusefs: fuseFS,
		path:   "/",
	}

	return fuseFS
}

// Session returns the flashfs session behind the mount.
func (f *FuseFS) Session() *flashfs.FS {
	return f.fsys
}

// Stats returns the session statistics
func (f *FuseFS) Stats() flashfs.Stats {
	return f.fsys.Stats()
}

// checkUnmounting returns whether the filesystem is unmounting
func (f *FuseFS) checkUnmounting() bool {
	return f.unmounting.Load()
}
