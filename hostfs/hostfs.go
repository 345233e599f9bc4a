// Package hostfs adapts an absfs.FileSystem into a flashfs engine, so a
// session can run against host-backed storage: an os directory, an
// in-memory absfs tree, or anything else speaking absfs. It is meant for
// development and testing of code that will later sit on real flash.
package hostfs

import (
	"errors"
	"io"
	"os"
	"sort"
	"syscall"

	"github.com/absfs/absfs"

	"github.com/absfs/flashfs"
)

// Engine delegates to an absfs.FileSystem. Host directories are never
// "unformatted", so Mount succeeds whenever the backing root is a
// readable directory; Format just clears it.
type Engine struct {
	fs      absfs.FileSystem
	mounted bool

	dirMode  os.FileMode
	fileMode os.FileMode
}

var _ flashfs.Engine = (*Engine)(nil)

// New wraps backing. Files are created 0644 and directories 0755.
func New(backing absfs.FileSystem) *Engine {
	return &Engine{fs: backing, dirMode: 0o755, fileMode: 0o644}
}

func (e *Engine) Mount(cfg *flashfs.Config) flashfs.Code {
	fi, err := e.fs.Stat("/")
	if err != nil || !fi.IsDir() {
		return flashfs.ErrCorrupt
	}
	e.mounted = true
	return flashfs.OK
}

func (e *Engine) Unmount() flashfs.Code {
	e.mounted = false
	return flashfs.OK
}

func (e *Engine) Format(cfg *flashfs.Config) flashfs.Code {
	names, code := e.childNames("/")
	if code != flashfs.OK {
		return code
	}
	for _, name := range names {
		if err := e.fs.RemoveAll("/" + name); err != nil {
			return toCode(err)
		}
	}
	return flashfs.OK
}

func (e *Engine) Stat(path string) (flashfs.Info, flashfs.Code) {
	fi, err := e.fs.Stat(path)
	if err != nil {
		return flashfs.Info{}, toCode(err)
	}
	info := infoFrom(fi)
	if path == "/" {
		info.Name = "/"
	}
	return info, flashfs.OK
}

func infoFrom(fi os.FileInfo) flashfs.Info {
	if fi.IsDir() {
		return flashfs.Info{Name: fi.Name(), Type: flashfs.TypeDir}
	}
	return flashfs.Info{Name: fi.Name(), Size: fi.Size(), Type: flashfs.TypeReg}
}

func (e *Engine) Mkdir(path string) flashfs.Code {
	return toCode(e.fs.Mkdir(path, e.dirMode))
}

func (e *Engine) Remove(path string) flashfs.Code {
	return toCode(e.fs.Remove(path))
}

func (e *Engine) ReadDir(path string) ([]flashfs.Info, flashfs.Code) {
	fi, err := e.fs.Stat(path)
	if err != nil {
		return nil, toCode(err)
	}
	if !fi.IsDir() {
		return nil, flashfs.ErrNotDir
	}

	f, err := e.fs.Open(path)
	if err != nil {
		return nil, toCode(err)
	}
	defer f.Close()

	fis, err := f.Readdir(-1)
	if err != nil && err != io.EOF {
		return nil, toCode(err)
	}
	infos := make([]flashfs.Info, 0, len(fis))
	for _, fi := range fis {
		infos = append(infos, infoFrom(fi))
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, flashfs.OK
}

func (e *Engine) childNames(path string) ([]string, flashfs.Code) {
	infos, code := e.ReadDir(path)
	if code != flashfs.OK {
		return nil, code
	}
	names := make([]string, len(infos))
	for i, in := range infos {
		names[i] = in.Name
	}
	return names, flashfs.OK
}

func (e *Engine) OpenFile(path string, flags flashfs.OpenFlag) (flashfs.EngineFile, flashfs.Code) {
	// The host happily opens directories; a flash engine does not.
	if fi, err := e.fs.Stat(path); err == nil && fi.IsDir() {
		return nil, flashfs.ErrIsDir
	}
	af, err := e.fs.OpenFile(path, osFlags(flags), e.fileMode)
	if err != nil {
		return nil, toCode(err)
	}
	return &file{af: af}, flashfs.OK
}

// osFlags translates engine open flags to os ones. The access mode
// values differ between the two sets.
func osFlags(flags flashfs.OpenFlag) int {
	var out int
	switch flags & flashfs.O_RDWR {
	case flashfs.O_RDWR:
		out = os.O_RDWR
	case flashfs.O_WRONLY:
		out = os.O_WRONLY
	default:
		out = os.O_RDONLY
	}
	if flags&flashfs.O_CREAT != 0 {
		out |= os.O_CREATE
	}
	if flags&flashfs.O_EXCL != 0 {
		out |= os.O_EXCL
	}
	if flags&flashfs.O_TRUNC != 0 {
		out |= os.O_TRUNC
	}
	if flags&flashfs.O_APPEND != 0 {
		out |= os.O_APPEND
	}
	return out
}

// toCode translates host errors to engine codes. Raw errnos are checked
// before the os sentinels because Errno.Is folds several of them into
// one sentinel (ENOTEMPTY matches os.ErrExist, for one).
func toCode(err error) flashfs.Code {
	if err == nil {
		return flashfs.OK
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ENOENT:
			return flashfs.ErrNoEntry
		case syscall.EEXIST:
			return flashfs.ErrExists
		case syscall.ENOTDIR:
			return flashfs.ErrNotDir
		case syscall.EISDIR:
			return flashfs.ErrIsDir
		case syscall.ENOTEMPTY:
			return flashfs.ErrNotEmpty
		case syscall.EBADF:
			return flashfs.ErrBadFile
		case syscall.EINVAL:
			return flashfs.ErrInvalid
		case syscall.ENOSPC:
			return flashfs.ErrNoSpace
		case syscall.ENOMEM:
			return flashfs.ErrNoMemory
		case syscall.EIO:
			return flashfs.ErrIO
		}
	}
	switch {
	case errors.Is(err, os.ErrNotExist):
		return flashfs.ErrNoEntry
	case errors.Is(err, os.ErrExist):
		return flashfs.ErrExists
	case errors.Is(err, os.ErrClosed):
		return flashfs.ErrBadFile
	case errors.Is(err, os.ErrInvalid):
		return flashfs.ErrInvalid
	}
	return flashfs.ErrIO
}

// file wraps an absfs.File as an engine file.
type file struct {
	af absfs.File
}

var _ flashfs.EngineFile = (*file)(nil)

func (f *file) Read(p []byte) (int, flashfs.Code) {
	n, err := f.af.Read(p)
	if err == io.EOF {
		return n, flashfs.OK
	}
	if err != nil {
		return n, toCode(err)
	}
	return n, flashfs.OK
}

func (f *file) Write(p []byte) (int, flashfs.Code) {
	n, err := f.af.Write(p)
	if err != nil {
		return n, toCode(err)
	}
	return n, flashfs.OK
}

func (f *file) Seek(offset int64, whence int) (int64, flashfs.Code) {
	pos, err := f.af.Seek(offset, whence)
	if err != nil {
		return 0, toCode(err)
	}
	return pos, flashfs.OK
}

func (f *file) Size() (int64, flashfs.Code) {
	fi, err := f.af.Stat()
	if err != nil {
		return 0, toCode(err)
	}
	return fi.Size(), flashfs.OK
}

func (f *file) Truncate(size int64) flashfs.Code {
	return toCode(f.af.Truncate(size))
}

func (f *file) Sync() flashfs.Code {
	return toCode(f.af.Sync())
}

func (f *file) Close() flashfs.Code {
	return toCode(f.af.Close())
}
