package flashfs

import "strings"

// Exists reports whether path names a file or directory. It is false on
// an unmounted session.
func (fs *FS) Exists(path string) bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if !fs.mounted {
		return false
	}
	_, code := fs.eng.Stat(path)
	_ = fs.finish("stat", path, code)
	return code == OK
}

// Stat describes the entry at path.
func (fs *FS) Stat(path string) (Info, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if !fs.mounted {
		return Info{}, ErrNotMounted
	}
	info, code := fs.eng.Stat(path)
	if err := fs.finish("stat", path, code); err != nil {
		return Info{}, err
	}
	return info, nil
}

// ReadDir lists the directory at path in engine order.
func (fs *FS) ReadDir(path string) ([]Info, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if !fs.mounted {
		return nil, ErrNotMounted
	}
	entries, code := fs.eng.ReadDir(path)
	if err := fs.finish("readdir", path, code); err != nil {
		return nil, err
	}
	return entries, nil
}

// Mkdir creates the directory at path along with any missing parents.
// Directories that already exist along the way are fine, so Mkdir is
// idempotent. The whole walk runs under one guard acquisition; another
// goroutine can never observe or interleave with a half-created chain.
func (fs *FS) Mkdir(path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if !fs.mounted {
		return ErrNotMounted
	}

	// Create each parent prefix. A single leading slash is not a
	// prefix of its own.
	start := 0
	if strings.HasPrefix(path, "/") {
		start = 1
	}
	for i := start; i < len(path); i++ {
		if path[i] != '/' {
			continue
		}
		code := fs.eng.Mkdir(path[:i])
		if code == ErrExists {
			code = OK
		}
		if err := fs.finish("mkdir", path[:i], code); err != nil {
			return err
		}
	}

	code := fs.eng.Mkdir(path)
	if code == ErrExists {
		code = OK
	}
	return fs.finish("mkdir", path, code)
}

// Remove deletes the file or empty directory at path.
func (fs *FS) Remove(path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if !fs.mounted {
		return ErrNotMounted
	}
	return fs.finish("remove", path, fs.eng.Remove(path))
}

// Rmdir removes the directory at path. The directory must be empty;
// RemoveAll handles populated trees. Rmdir does not check that path is
// a directory, the engine applies the same removal rules either way.
func (fs *FS) Rmdir(path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if !fs.mounted {
		return ErrNotMounted
	}
	return fs.finish("rmdir", path, fs.eng.Remove(path))
}

// RemoveAll removes path and everything below it, children before
// parents. The whole walk runs under one guard acquisition. The first
// failing engine call aborts the walk, leaving the remainder in place.
func (fs *FS) RemoveAll(path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if !fs.mounted {
		return ErrNotMounted
	}
	return fs.removeAllLocked(path)
}

func (fs *FS) removeAllLocked(path string) error {
	info, code := fs.eng.Stat(path)
	if err := fs.finish("stat", path, code); err != nil {
		return err
	}
	if !info.IsDir() {
		return fs.finish("remove", path, fs.eng.Remove(path))
	}

	entries, code := fs.eng.ReadDir(path)
	if err := fs.finish("readdir", path, code); err != nil {
		return err
	}
	for _, e := range entries {
		if err := fs.removeAllLocked(joinPath(path, e.Name)); err != nil {
			return err
		}
	}
	return fs.finish("remove", path, fs.eng.Remove(path))
}

func joinPath(dir, name string) string {
	if strings.HasSuffix(dir, "/") {
		return dir + name
	}
	return dir + "/" + name
}
