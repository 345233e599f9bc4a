package fusefs

import (
	"os"
	"time"
)

// MountOptions configures the FUSE mount behavior.
//
// Use DefaultMountOptions() to get a set of sensible defaults, then
// customize as needed for your use case.
type MountOptions struct {
	// Mountpoint is the directory where the filesystem will be mounted
	Mountpoint string

	// ReadOnly mounts the filesystem in read-only mode
	ReadOnly bool

	// AllowOther allows other users to access the mounted filesystem
	// Requires 'user_allow_other' in /etc/fuse.conf on Linux
	AllowOther bool

	// FileMode and DirMode are the permission bits presented for files
	// and directories. The engine stores no modes.
	FileMode os.FileMode
	DirMode  os.FileMode

	// UID/GID override file ownership. Zero means the current process
	// credentials.
	UID uint32
	GID uint32

	// AttrTimeout sets attribute cache timeout
	AttrTimeout time.Duration

	// EntryTimeout sets directory entry cache timeout
	EntryTimeout time.Duration

	// FSName is the name shown in mount table
	FSName string

	// Options contains additional FUSE options
	Options []string

	// Debug enables debug logging
	Debug bool
}

// DefaultMountOptions returns mount options with sensible defaults for
// general use.
//
// Default values:
//   - AttrTimeout: 1 second (balance between consistency and performance)
//   - EntryTimeout: 1 second
//   - FileMode: 0644
//   - DirMode: 0755
//
// The timeouts are the only caching layer in front of the session. For
// single-process use they can be raised freely; lower them when another
// process writes through the same session.
func DefaultMountOptions(mountpoint string) *MountOptions {
	return &MountOptions{
		Mountpoint:   mountpoint,
		ReadOnly:     false,
		AllowOther:   false,
		FileMode:     0644,
		DirMode:      0755,
		AttrTimeout:  1 * time.Second,
		EntryTimeout: 1 * time.Second,
		FSName:       "flashfs",
		Debug:        false,
	}
}
