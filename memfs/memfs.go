// Package memfs provides an in-memory flashfs engine. It is useful for
// tests and for running a session without real flash. The configured
// geometry still applies: a full filesystem reports ErrNoSpace and a
// never-formatted one refuses to mount, like a blank flash part.
package memfs

import (
	"sort"
	"strings"

	"github.com/absfs/flashfs"
)

// node is a file or directory in the tree.
type node struct {
	dir      bool
	data     []byte
	children map[string]*node
}

func newNode(dir bool) *node {
	n := &node{dir: dir}
	if dir {
		n.children = make(map[string]*node)
	}
	return n
}

// Engine is an in-memory flashfs.Engine. A fresh Engine is unformatted
// and reports ErrCorrupt on Mount until the first Format.
type Engine struct {
	root      *node
	formatted bool
	mounted   bool

	blockSize  uint32
	blockCount uint32
	nameMax    uint32
	capacity   int64
	usedBytes  int64
}

var (
	_ flashfs.Engine = (*Engine)(nil)
	_ flashfs.Sizer  = (*Engine)(nil)
)

// New returns an unformatted engine.
func New() *Engine {
	return &Engine{}
}

func (e *Engine) Mount(cfg *flashfs.Config) flashfs.Code {
	if cfg == nil || cfg.BlockSize == 0 || cfg.BlockCount == 0 {
		return flashfs.ErrInvalid
	}
	if !e.formatted {
		return flashfs.ErrCorrupt
	}
	// The geometry is written at format time; mounting with another one
	// does not fit the stored filesystem.
	if cfg.BlockSize != e.blockSize || cfg.BlockCount != e.blockCount {
		return flashfs.ErrInvalid
	}
	e.mounted = true
	return flashfs.OK
}

func (e *Engine) Unmount() flashfs.Code {
	e.mounted = false
	return flashfs.OK
}

func (e *Engine) Format(cfg *flashfs.Config) flashfs.Code {
	if cfg == nil || cfg.BlockSize == 0 || cfg.BlockCount == 0 {
		return flashfs.ErrInvalid
	}
	if cfg.Device != nil {
		for b := uint32(0); b < cfg.BlockCount; b++ {
			if err := cfg.Device.Erase(b); err != nil {
				return flashfs.ErrIO
			}
		}
		if err := cfg.Device.Sync(); err != nil {
			return flashfs.ErrIO
		}
	}
	e.root = newNode(true)
	e.formatted = true
	e.blockSize = cfg.BlockSize
	e.blockCount = cfg.BlockCount
	e.capacity = cfg.TotalBytes()
	e.usedBytes = 0
	e.nameMax = cfg.NameMax
	if e.nameMax == 0 {
		e.nameMax = 255
	}
	return flashfs.OK
}

func splitPath(path string) []string {
	var parts []string
	for _, p := range strings.Split(path, "/") {
		if p != "" && p != "." {
			parts = append(parts, p)
		}
	}
	return parts
}

// lookup resolves path to a node.
func (e *Engine) lookup(path string) (*node, flashfs.Code) {
	n := e.root
	for _, part := range splitPath(path) {
		if !n.dir {
			return nil, flashfs.ErrNotDir
		}
		child, ok := n.children[part]
		if !ok {
			return nil, flashfs.ErrNoEntry
		}
		n = child
	}
	return n, flashfs.OK
}

// lookupParent resolves the directory containing path and the final
// name. The root itself has no parent and reports an empty name.
func (e *Engine) lookupParent(path string) (*node, string, flashfs.Code) {
	parts := splitPath(path)
	if len(parts) == 0 {
		return nil, "", flashfs.OK
	}
	n := e.root
	for _, part := range parts[:len(parts)-1] {
		if !n.dir {
			return nil, "", flashfs.ErrNotDir
		}
		child, ok := n.children[part]
		if !ok {
			return nil, "", flashfs.ErrNoEntry
		}
		n = child
	}
	if !n.dir {
		return nil, "", flashfs.ErrNotDir
	}
	return n, parts[len(parts)-1], flashfs.OK
}

func (e *Engine) Stat(path string) (flashfs.Info, flashfs.Code) {
	if !e.mounted {
		return flashfs.Info{}, flashfs.ErrInvalid
	}
	n, code := e.lookup(path)
	if code != flashfs.OK {
		return flashfs.Info{}, code
	}
	parts := splitPath(path)
	name := "/"
	if len(parts) > 0 {
		name = parts[len(parts)-1]
	}
	return infoFor(name, n), flashfs.OK
}

func infoFor(name string, n *node) flashfs.Info {
	if n.dir {
		return flashfs.Info{Name: name, Type: flashfs.TypeDir}
	}
	return flashfs.Info{Name: name, Size: int64(len(n.data)), Type: flashfs.TypeReg}
}

func (e *Engine) Mkdir(path string) flashfs.Code {
	if !e.mounted {
		return flashfs.ErrInvalid
	}
	parent, name, code := e.lookupParent(path)
	if code != flashfs.OK {
		return code
	}
	if name == "" {
		return flashfs.ErrExists
	}
	if uint32(len(name)) > e.nameMax {
		return flashfs.ErrInvalid
	}
	if _, ok := parent.children[name]; ok {
		return flashfs.ErrExists
	}
	parent.children[name] = newNode(true)
	return flashfs.OK
}

func (e *Engine) Remove(path string) flashfs.Code {
	if !e.mounted {
		return flashfs.ErrInvalid
	}
	parent, name, code := e.lookupParent(path)
	if code != flashfs.OK {
		return code
	}
	if name == "" {
		return flashfs.ErrInvalid
	}
	n, ok := parent.children[name]
	if !ok {
		return flashfs.ErrNoEntry
	}
	if n.dir && len(n.children) > 0 {
		return flashfs.ErrNotEmpty
	}
	if !n.dir {
		e.usedBytes -= int64(len(n.data))
	}
	delete(parent.children, name)
	return flashfs.OK
}

func (e *Engine) ReadDir(path string) ([]flashfs.Info, flashfs.Code) {
	if !e.mounted {
		return nil, flashfs.ErrInvalid
	}
	n, code := e.lookup(path)
	if code != flashfs.OK {
		return nil, code
	}
	if !n.dir {
		return nil, flashfs.ErrNotDir
	}
	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	sort.Strings(names)
	infos := make([]flashfs.Info, 0, len(names))
	for _, name := range names {
		infos = append(infos, infoFor(name, n.children[name]))
	}
	return infos, flashfs.OK
}

func (e *Engine) OpenFile(path string, flags flashfs.OpenFlag) (flashfs.EngineFile, flashfs.Code) {
	if !e.mounted {
		return nil, flashfs.ErrInvalid
	}
	if flags&flashfs.O_TRUNC != 0 && !flags.Writable() {
		return nil, flashfs.ErrInvalid
	}
	parent, name, code := e.lookupParent(path)
	if code != flashfs.OK {
		return nil, code
	}
	if name == "" {
		return nil, flashfs.ErrIsDir
	}
	n, ok := parent.children[name]
	switch {
	case ok && n.dir:
		return nil, flashfs.ErrIsDir
	case ok && flags&flashfs.O_EXCL != 0:
		return nil, flashfs.ErrExists
	case !ok && flags&flashfs.O_CREAT == 0:
		return nil, flashfs.ErrNoEntry
	case !ok:
		if uint32(len(name)) > e.nameMax {
			return nil, flashfs.ErrInvalid
		}
		n = newNode(false)
		parent.children[name] = n
	}
	if flags&flashfs.O_TRUNC != 0 {
		e.usedBytes -= int64(len(n.data))
		n.data = nil
	}
	return &file{eng: e, node: n, flags: flags}, flashfs.OK
}

// Size reports blocks in use: a superblock pair, a metadata pair per
// directory, and the data blocks of every file.
func (e *Engine) Size() (uint32, flashfs.Code) {
	if !e.mounted {
		return 0, flashfs.ErrInvalid
	}
	blocks := uint32(2)
	var walk func(n *node)
	walk = func(n *node) {
		if n.dir {
			blocks += 2
			for _, child := range n.children {
				walk(child)
			}
			return
		}
		blocks += uint32((int64(len(n.data)) + int64(e.blockSize) - 1) / int64(e.blockSize))
	}
	walk(e.root)
	return blocks, flashfs.OK
}

// file is an open handle on a node.
type file struct {
	eng    *Engine
	node   *node
	flags  flashfs.OpenFlag
	pos    int64
	closed bool
}

var _ flashfs.EngineFile = (*file)(nil)

func (f *file) Read(p []byte) (int, flashfs.Code) {
	if f.closed || !f.flags.Readable() {
		return 0, flashfs.ErrBadFile
	}
	if f.pos >= int64(len(f.node.data)) {
		return 0, flashfs.OK
	}
	n := copy(p, f.node.data[f.pos:])
	f.pos += int64(n)
	return n, flashfs.OK
}

func (f *file) Write(p []byte) (int, flashfs.Code) {
	if f.closed || !f.flags.Writable() {
		return 0, flashfs.ErrBadFile
	}
	if f.flags&flashfs.O_APPEND != 0 {
		f.pos = int64(len(f.node.data))
	}
	end := f.pos + int64(len(p))
	if grow := end - int64(len(f.node.data)); grow > 0 {
		if f.eng.usedBytes+grow > f.eng.capacity {
			return 0, flashfs.ErrNoSpace
		}
		f.eng.usedBytes += grow
		grown := make([]byte, end)
		copy(grown, f.node.data)
		f.node.data = grown
	}
	copy(f.node.data[f.pos:end], p)
	f.pos = end
	return len(p), flashfs.OK
}

func (f *file) Seek(offset int64, whence int) (int64, flashfs.Code) {
	if f.closed {
		return 0, flashfs.ErrBadFile
	}
	var pos int64
	switch whence {
	case 0:
		pos = offset
	case 1:
		pos = f.pos + offset
	case 2:
		pos = int64(len(f.node.data)) + offset
	default:
		return 0, flashfs.ErrInvalid
	}
	if pos < 0 {
		return 0, flashfs.ErrInvalid
	}
	f.pos = pos
	return pos, flashfs.OK
}

func (f *file) Size() (int64, flashfs.Code) {
	if f.closed {
		return 0, flashfs.ErrBadFile
	}
	return int64(len(f.node.data)), flashfs.OK
}

func (f *file) Truncate(size int64) flashfs.Code {
	if f.closed || !f.flags.Writable() {
		return flashfs.ErrBadFile
	}
	if size < 0 {
		return flashfs.ErrInvalid
	}
	cur := int64(len(f.node.data))
	switch {
	case size < cur:
		f.eng.usedBytes -= cur - size
		f.node.data = f.node.data[:size]
	case size > cur:
		if f.eng.usedBytes+(size-cur) > f.eng.capacity {
			return flashfs.ErrNoSpace
		}
		f.eng.usedBytes += size - cur
		grown := make([]byte, size)
		copy(grown, f.node.data)
		f.node.data = grown
	}
	return flashfs.OK
}

func (f *file) Sync() flashfs.Code {
	if f.closed {
		return flashfs.ErrBadFile
	}
	return flashfs.OK
}

func (f *file) Close() flashfs.Code {
	if f.closed {
		return flashfs.ErrBadFile
	}
	f.closed = true
	return flashfs.OK
}
