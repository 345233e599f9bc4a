package fusefs

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/absfs/flashfs"
)

// Mount exposes a flashfs session at opts.Mountpoint. The session must
// already be mounted; Mount does not take over its lifecycle, and
// unmounting the FUSE side leaves the session mounted.
func Mount(fsys *flashfs.FS, opts *MountOptions) (*FuseFS, error) {
	if opts == nil {
		return nil, fmt.Errorf("mount options cannot be nil")
	}

	if opts.Mountpoint == "" {
		return nil, fmt.Errorf("mountpoint cannot be empty")
	}

	if !fsys.Mounted() {
		return nil, flashfs.ErrNotMounted
	}

	// Create mountpoint if it doesn't exist
	if err := os.MkdirAll(opts.Mountpoint, 0755); err != nil {
		return nil, fmt.Errorf("failed to create mountpoint: %w", err)
	}

	// Check if mountpoint is empty
	entries, err := os.ReadDir(opts.Mountpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to read mountpoint: %w", err)
	}
	if len(entries) > 0 {
		return nil, fmt.Errorf("mountpoint is not empty")
	}

	fuseFS := newFuseFS(fsys, opts)

	// Build FUSE mount options
	fuseOpts := &fs.Options{
		MountOptions: fuse.MountOptions{
			Name:          opts.FSName,
			FsName:        opts.FSName,
			DirectMount:   false,
			Debug:         opts.Debug,
			AllowOther:    opts.AllowOther,
			Options:       opts.Options,
			MaxBackground: 12,
		},
		AttrTimeout:  &opts.AttrTimeout,
		EntryTimeout: &opts.EntryTimeout,
	}

	if opts.ReadOnly {
		fuseOpts.MountOptions.Options = append(fuseOpts.MountOptions.Options, "ro")
	}

	// Mount the filesystem
	server, err := fs.Mount(opts.Mountpoint, fuseFS.root, fuseOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to mount filesystem: %w", err)
	}

	fuseFS.server = server

	return fuseFS, nil
}

// Unmount detaches the filesystem from the kernel. The kernel releases
// open handles before the unmount completes; the session stays mounted.
func (f *FuseFS) Unmount() error {
	// Signal all operations to complete
	f.unmounting.Store(true)

	// Drop the path numbering
	f.inodes.clear()

	// Unmount FUSE filesystem
	if f.server != nil {
		return f.server.Unmount()
	}

	return nil
}

// Wait blocks until the filesystem is unmounted
func (f *FuseFS) Wait() error {
	if f.server == nil {
		return fmt.Errorf("filesystem not mounted")
	}

	f.server.Wait()
	return nil
}

// MountAndWait mounts a session and waits for it to be unmounted
func MountAndWait(fsys *flashfs.FS, opts *MountOptions) error {
	fuseFS, err := Mount(fsys, opts)
	if err != nil {
		return err
	}

	return fuseFS.Wait()
}

// IsMounted checks if a directory is a FUSE mountpoint
func IsMounted(path string) (bool, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false, err
	}

	var stat syscall.Stat_t
	if err := syscall.Stat(absPath, &stat); err != nil {
		return false, err
	}

	// Get parent directory stats
	parent := filepath.Dir(absPath)
	var parentStat syscall.Stat_t
	if err := syscall.Stat(parent, &parentStat); err != nil {
		return false, err
	}

	// If device IDs differ, it's a mount point
	return stat.Dev != parentStat.Dev, nil
}
