package fusefs

import (
	"context"
	"io"
	"os"
	"path"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/absfs/flashfs"
)

// Lookup looks up a child node by name
func (n *fuseNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	if n.fusefs.checkUnmounting() {
		return nil, syscall.ENOTCONN
	}

	fullPath := path.Join(n.path, name)

	info, err := n.fusefs.fsys.Stat(fullPath)
	if err != nil {
		return nil, toErrno(err)
	}

	ino := n.fusefs.inodes.lookup(fullPath)

	n.fillAttr(&out.Attr, info, ino)
	out.SetEntryTimeout(n.fusefs.opts.EntryTimeout)
	out.SetAttrTimeout(n.fusefs.opts.AttrTimeout)

	child := &fuseNode{
		fusefs: n.fusefs,
		path:   fullPath,
	}

	mode := uint32(syscall.S_IFREG)
	if info.IsDir() {
		mode = syscall.S_IFDIR
	}

	childInode := n.NewInode(ctx, child, fs.StableAttr{
		Mode: mode,
		Ino:  ino,
	})

	return childInode, 0
}

// Getattr gets file attributes
func (n *fuseNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	if n.fusefs.checkUnmounting() {
		return syscall.ENOTCONN
	}

	info, err := n.fusefs.fsys.Stat(n.path)
	if err != nil {
		return toErrno(err)
	}

	n.fillAttr(&out.Attr, info, n.fusefs.inodes.lookup(n.path))
	out.SetTimeout(n.fusefs.opts.AttrTimeout)

	return 0
}

// Readdir reads directory entries
func (n *fuseNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	if n.fusefs.checkUnmounting() {
		return nil, syscall.ENOTCONN
	}

	infos, err := n.fusefs.fsys.ReadDir(n.path)
	if err != nil {
		return nil, toErrno(err)
	}

	entries := make([]fuse.DirEntry, 0, len(infos))
	for _, info := range infos {
		fullPath := path.Join(n.path, info.Name)

		mode := uint32(syscall.S_IFREG)
		if info.IsDir() {
			mode = syscall.S_IFDIR
		}

		entries = append(entries, fuse.DirEntry{
			Name: info.Name,
			Ino:  n.fusefs.inodes.lookup(fullPath),
			Mode: mode,
		})
	}

	return fs.NewListDirStream(entries), 0
}

// Open opens a file
func (n *fuseNode) Open(ctx context.Context, flags uint32) (fh fs.FileHandle, fuseFlags uint32, errno syscall.Errno) {
	if n.fusefs.checkUnmounting() {
		return nil, 0, syscall.ENOTCONN
	}

	file, err := n.fusefs.fsys.OpenFile(n.path, mapOpenFlags(flags))
	if err != nil {
		return nil, 0, toErrno(err)
	}

	fileHandle := &fuseFileHandle{
		node: n,
		file: file,
	}

	return fileHandle, 0, 0
}

// Create creates a new file
func (n *fuseNode) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (node *fs.Inode, fh fs.FileHandle, fuseFlags uint32, errno syscall.Errno) {
	if n.fusefs.checkUnmounting() {
		return nil, nil, 0, syscall.ENOTCONN
	}

	fullPath := path.Join(n.path, name)

	file, err := n.fusefs.fsys.OpenFile(fullPath, mapOpenFlags(flags)|flashfs.O_CREAT)
	if err != nil {
		return nil, nil, 0, toErrno(err)
	}

	info, err := n.fusefs.fsys.Stat(fullPath)
	if err != nil {
		file.Close()
		return nil, nil, 0, toErrno(err)
	}

	ino := n.fusefs.inodes.lookup(fullPath)

	n.fillAttr(&out.Attr, info, ino)
	out.SetEntryTimeout(n.fusefs.opts.EntryTimeout)
	out.SetAttrTimeout(n.fusefs.opts.AttrTimeout)

	child := &fuseNode{
		fusefs: n.fusefs,
		path:   fullPath,
	}

	childInode := n.NewInode(ctx, child, fs.StableAttr{
		Mode: syscall.S_IFREG,
		Ino:  ino,
	})

	fileHandle := &fuseFileHandle{
		node: child,
		file: file,
	}

	return childInode, fileHandle, 0, 0
}

// Mkdir creates a new directory
func (n *fuseNode) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	if n.fusefs.checkUnmounting() {
		return nil, syscall.ENOTCONN
	}

	fullPath := path.Join(n.path, name)

	if err := n.fusefs.fsys.Mkdir(fullPath); err != nil {
		return nil, toErrno(err)
	}

	info, err := n.fusefs.fsys.Stat(fullPath)
	if err != nil {
		return nil, toErrno(err)
	}

	ino := n.fusefs.inodes.lookup(fullPath)

	n.fillAttr(&out.Attr, info, ino)
	out.SetEntryTimeout(n.fusefs.opts.EntryTimeout)
	out.SetAttrTimeout(n.fusefs.opts.AttrTimeout)

	child := &fuseNode{
		fusefs: n.fusefs,
		path:   fullPath,
	}

	childInode := n.NewInode(ctx, child, fs.StableAttr{
		Mode: syscall.S_IFDIR,
		Ino:  ino,
	})

	return childInode, 0
}

// Unlink removes a file
func (n *fuseNode) Unlink(ctx context.Context, name string) syscall.Errno {
	if n.fusefs.checkUnmounting() {
		return syscall.ENOTCONN
	}

	fullPath := path.Join(n.path, name)

	if err := n.fusefs.fsys.Remove(fullPath); err != nil {
		return toErrno(err)
	}

	n.fusefs.inodes.forget(fullPath)

	return 0
}

// Rmdir removes a directory
func (n *fuseNode) Rmdir(ctx context.Context, name string) syscall.Errno {
	if n.fusefs.checkUnmounting() {
		return syscall.ENOTCONN
	}

	fullPath := path.Join(n.path, name)

	if err := n.fusefs.fsys.Rmdir(fullPath); err != nil {
		return toErrno(err)
	}

	n.fusefs.inodes.forget(fullPath)

	return 0
}

// Setattr sets file attributes. Size changes truncate the file; mode,
// ownership and time updates are accepted and dropped, the engine
// stores none of them.
func (n *fuseNode) Setattr(ctx context.Context, f fs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	if n.fusefs.checkUnmounting() {
		return syscall.ENOTCONN
	}

	if sz, ok := in.GetSize(); ok {
		if err := n.truncate(f, int64(sz)); err != nil {
			return toErrno(err)
		}
	}

	return n.Getattr(ctx, f, out)
}

// truncate resizes through the supplied handle when there is one, or
// through a short-lived write handle otherwise.
func (n *fuseNode) truncate(f fs.FileHandle, size int64) error {
	if fh, ok := f.(*fuseFileHandle); ok {
		return fh.file.Truncate(size)
	}

	file, err := n.fusefs.fsys.OpenFile(n.path, flashfs.O_WRONLY)
	if err != nil {
		return err
	}
	if err := file.Truncate(size); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// Fsync ensures writes to the file are flushed to storage
func (n *fuseNode) Fsync(ctx context.Context, f fs.FileHandle, flags uint32) syscall.Errno {
	if n.fusefs.checkUnmounting() {
		return syscall.ENOTCONN
	}

	fh, ok := f.(*fuseFileHandle)
	if !ok {
		return syscall.EBADF
	}

	return toErrno(fh.file.Sync())
}

// fuseFileHandle wraps one open session file
type fuseFileHandle struct {
	node *fuseNode
	file *flashfs.File
}

// Read reads data from the file
func (fh *fuseFileHandle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	n, err := fh.file.ReadAt(dest, off)
	if err != nil && err != io.EOF {
		return nil, toErrno(err)
	}

	return fuse.ReadResultData(dest[:n]), 0
}

// Write writes data to the file
func (fh *fuseFileHandle) Write(ctx context.Context, data []byte, off int64) (written uint32, errno syscall.Errno) {
	n, err := fh.file.WriteAt(data, off)
	if err != nil {
		return uint32(n), toErrno(err)
	}

	return uint32(n), 0
}

// Flush flushes cached data
func (fh *fuseFileHandle) Flush(ctx context.Context) syscall.Errno {
	return toErrno(fh.file.Sync())
}

// Release closes the file handle
func (fh *fuseFileHandle) Release(ctx context.Context) syscall.Errno {
	return toErrno(fh.file.Close())
}

// Helper methods

// fillAttr projects an engine entry into kernel attributes. Modes and
// ownership come from the mount options and times from the mount time;
// the engine tracks none of them.
func (n *fuseNode) fillAttr(attr *fuse.Attr, info flashfs.Info, ino uint64) {
	attr.Ino = ino
	attr.Size = uint64(info.Size)

	if info.IsDir() {
		attr.Mode = syscall.S_IFDIR | uint32(n.fusefs.opts.DirMode.Perm())
	} else {
		attr.Mode = syscall.S_IFREG | uint32(n.fusefs.opts.FileMode.Perm())
	}

	mtime := uint64(n.fusefs.mountedAt.Unix())
	attr.Mtime = mtime
	attr.Ctime = mtime
	attr.Atime = mtime

	if n.fusefs.opts.UID != 0 {
		attr.Uid = n.fusefs.opts.UID
	} else {
		attr.Uid = uint32(os.Getuid())
	}

	if n.fusefs.opts.GID != 0 {
		attr.Gid = n.fusefs.opts.GID
	} else {
		attr.Gid = uint32(os.Getgid())
	}

	attr.Blocks = (attr.Size + 511) / 512
	if cfg := n.fusefs.fsys.Config(); cfg != nil {
		attr.Blksize = cfg.BlockSize
	}
}

// mapOpenFlags maps FUSE open flags to engine flags
func mapOpenFlags(flags uint32) flashfs.OpenFlag {
	var out flashfs.OpenFlag

	// Read/Write mode
	switch {
	case flags&syscall.O_RDWR != 0:
		out = flashfs.O_RDWR
	case flags&syscall.O_WRONLY != 0:
		out = flashfs.O_WRONLY
	default:
		out = flashfs.O_RDONLY
	}

	// Additional flags
	if flags&syscall.O_APPEND != 0 {
		out |= flashfs.O_APPEND
	}
	if flags&syscall.O_CREAT != 0 {
		out |= flashfs.O_CREAT
	}
	if flags&syscall.O_TRUNC != 0 {
		out |= flashfs.O_TRUNC
	}
	if flags&syscall.O_EXCL != 0 {
		out |= flashfs.O_EXCL
	}

	return out
}

// Ensure fuseFileHandle implements required interfaces
var _ fs.FileHandle = (*fuseFileHandle)(nil)
var _ fs.FileReader = (*fuseFileHandle)(nil)
var _ fs.FileWriter = (*fuseFileHandle)(nil)
var _ fs.FileFlusher = (*fuseFileHandle)(nil)
var _ fs.FileReleaser = (*fuseFileHandle)(nil)
