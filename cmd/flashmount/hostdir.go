package main

import (
	"os"
	"path/filepath"
	"time"

	"github.com/absfs/absfs"
)

// hostDir adapts a host directory into an absfs.FileSystem, jailing
// every path under root.
type hostDir struct {
	root string
}

func newHostDir(root string) absfs.FileSystem {
	return &hostDir{root: root}
}

func (fs *hostDir) path(name string) string {
	return filepath.Join(fs.root, filepath.FromSlash(name))
}

func (fs *hostDir) OpenFile(name string, flag int, perm os.FileMode) (absfs.File, error) {
	return os.OpenFile(fs.path(name), flag, perm)
}

func (fs *hostDir) Open(name string) (absfs.File, error) {
	return os.Open(fs.path(name))
}

func (fs *hostDir) Create(name string) (absfs.File, error) {
	return os.Create(fs.path(name))
}

func (fs *hostDir) Mkdir(name string, perm os.FileMode) error {
	return os.Mkdir(fs.path(name), perm)
}

func (fs *hostDir) MkdirAll(name string, perm os.FileMode) error {
	return os.MkdirAll(fs.path(name), perm)
}

func (fs *hostDir) Remove(name string) error {
	return os.Remove(fs.path(name))
}

func (fs *hostDir) RemoveAll(path string) error {
	return os.RemoveAll(fs.path(path))
}

func (fs *hostDir) Rename(oldpath, newpath string) error {
	return os.Rename(fs.path(oldpath), fs.path(newpath))
}

func (fs *hostDir) Stat(name string) (os.FileInfo, error) {
	return os.Stat(fs.path(name))
}

func (fs *hostDir) Truncate(name string, size int64) error {
	return os.Truncate(fs.path(name), size)
}

func (fs *hostDir) Chmod(name string, mode os.FileMode) error {
	return os.Chmod(fs.path(name), mode)
}

func (fs *hostDir) Chtimes(name string, atime time.Time, mtime time.Time) error {
	return os.Chtimes(fs.path(name), atime, mtime)
}

func (fs *hostDir) Chown(name string, uid, gid int) error {
	return os.Chown(fs.path(name), uid, gid)
}

func (fs *hostDir) Separator() uint8 {
	return os.PathSeparator
}

func (fs *hostDir) ListSeparator() uint8 {
	return os.PathListSeparator
}

func (fs *hostDir) Chdir(dir string) error {
	return os.Chdir(fs.path(dir))
}

func (fs *hostDir) Getwd() (dir string, err error) {
	return os.Getwd()
}

func (fs *hostDir) TempDir() string {
	return os.TempDir()
}
