package flashfs

// Engine is the log-structured filesystem a session guards. One session
// owns one engine and serializes every call through its guard, so an
// engine never sees concurrent access and needs no locking of its own.
type Engine interface {
	// Mount readies the engine with the given geometry. A store that was
	// never formatted, or whose metadata fails validation, reports
	// ErrCorrupt; the caller is expected to Format and retry.
	Mount(cfg *Config) Code

	// Unmount releases the engine. The session calls this only while
	// mounted.
	Unmount() Code

	// Format writes an empty filesystem to the backing store. The engine
	// must be unmounted.
	Format(cfg *Config) Code

	// Stat describes the entry at path.
	Stat(path string) (Info, Code)

	// Mkdir creates one directory level. The parent must already exist;
	// a missing parent reports ErrNoEntry.
	Mkdir(path string) Code

	// Remove deletes a file or an empty directory. A populated directory
	// reports ErrNotEmpty.
	Remove(path string) Code

	// ReadDir lists the entries of the directory at path, without "."
	// and "..".
	ReadDir(path string) ([]Info, Code)

	// OpenFile opens the file at path with the given flags.
	OpenFile(path string, flags OpenFlag) (EngineFile, Code)
}

// EngineFile is an open file inside an engine. Calls are serialized by
// the session that opened it.
type EngineFile interface {
	Read(p []byte) (int, Code)
	Write(p []byte) (int, Code)
	Seek(offset int64, whence int) (int64, Code)
	Size() (int64, Code)
	Truncate(size int64) Code
	Sync() Code
	Close() Code
}

// Sizer is implemented by engines that can report how many blocks are
// currently in use.
type Sizer interface {
	Size() (blocks uint32, code Code)
}

// EntryType distinguishes files from directories. The values match the
// littlefs entry types.
type EntryType uint8

const (
	TypeReg EntryType = 0x1
	TypeDir EntryType = 0x2
)

// Info describes a directory entry.
type Info struct {
	Name string
	Size int64
	Type EntryType
}

// IsDir reports whether the entry is a directory.
func (i Info) IsDir() bool { return i.Type == TypeDir }

// OpenFlag selects the open mode of a file. The values match the
// littlefs open flags.
type OpenFlag int32

const (
	O_RDONLY OpenFlag = 1
	O_WRONLY OpenFlag = 2
	O_RDWR   OpenFlag = 3
	O_CREAT  OpenFlag = 0x0100
	O_EXCL   OpenFlag = 0x0200
	O_TRUNC  OpenFlag = 0x0400
	O_APPEND OpenFlag = 0x0800
)

// Readable reports whether the flags allow reads.
func (f OpenFlag) Readable() bool { return f&O_RDONLY != 0 }

// Writable reports whether the flags allow writes.
func (f OpenFlag) Writable() bool { return f&O_WRONLY != 0 }
