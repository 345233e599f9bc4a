package fusefs

import "sync"

// inodeTable hands out stable inode numbers per path. The engine has no
// native inodes, so numbers are allocated on first sight and held until
// the path is removed. The root is always inode 1.
type inodeTable struct {
	mu     sync.Mutex
	byPath map[string]uint64
	next   uint64
}

func newInodeTable() *inodeTable {
	return &inodeTable{
		byPath: map[string]uint64{"/": 1},
		next:   1,
	}
}

// lookup returns the inode number for path, allocating one if needed.
func (t *inodeTable) lookup(path string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if ino, ok := t.byPath[path]; ok {
		return ino
	}

	t.next++
	t.byPath[path] = t.next
	return t.next
}

// forget drops the number for path. A recreated path gets a fresh
// number, so the kernel never sees a stale inode reused.
func (t *inodeTable) forget(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.byPath, path)
}

// clear drops everything but the root. The counter keeps running so
// numbers are never reused within one mount.
func (t *inodeTable) clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.byPath = map[string]uint64{"/": 1}
}
