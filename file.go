package flashfs

import "io"

// File is an open handle bound to the session that produced it. Every
// method serializes through the session guard, so a File may be shared
// across goroutines, though reads and writes then interleave at call
// granularity.
type File struct {
	fs    *FS
	ef    EngineFile
	path  string
	flags OpenFlag

	closed bool // guarded by fs.mu
}

var (
	_ io.ReadWriteSeeker = (*File)(nil)
	_ io.ReaderAt        = (*File)(nil)
	_ io.WriterAt        = (*File)(nil)
	_ io.Closer          = (*File)(nil)
)

// Open opens the file at path read-only.
func (fs *FS) Open(path string) (*File, error) {
	return fs.OpenFile(path, O_RDONLY)
}

// Create opens the file at path read-write, creating it if missing and
// truncating it otherwise.
func (fs *FS) Create(path string) (*File, error) {
	return fs.OpenFile(path, O_RDWR|O_CREAT|O_TRUNC)
}

// OpenFile opens the file at path with the given flags.
func (fs *FS) OpenFile(path string, flags OpenFlag) (*File, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if !fs.mounted {
		return nil, ErrNotMounted
	}
	ef, code := fs.eng.OpenFile(path, flags)
	if err := fs.finish("open", path, code); err != nil {
		return nil, err
	}
	f := &File{fs: fs, ef: ef, path: path, flags: flags}
	fs.handles.add(f)
	return f, nil
}

// Name returns the path the file was opened with.
func (f *File) Name() string { return f.path }

func (f *File) Read(p []byte) (int, error) {
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()

	if f.closed {
		return 0, f.errClosed("read")
	}
	return f.readLocked(p)
}

// ReadAt reads from offset off. The seek and the read run under one
// guard hold; the file position afterwards is off plus the bytes read.
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()

	if f.closed {
		return 0, f.errClosed("read")
	}
	if _, code := f.ef.Seek(off, io.SeekStart); code != OK {
		return 0, f.fs.finish("seek", f.path, code)
	}
	return f.readLocked(p)
}

func (f *File) readLocked(p []byte) (int, error) {
	n, code := f.ef.Read(p)
	if err := f.fs.finish("read", f.path, code); err != nil {
		return n, err
	}
	f.fs.stats.addRead(n)
	if n == 0 && len(p) > 0 {
		return 0, io.EOF
	}
	return n, nil
}

func (f *File) Write(p []byte) (int, error) {
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()

	if f.closed {
		return 0, f.errClosed("write")
	}
	return f.writeLocked(p)
}

// WriteAt writes at offset off. The seek and the write run under one
// guard hold. On files opened with O_APPEND the engine writes at the end
// regardless of off.
func (f *File) WriteAt(p []byte, off int64) (int, error) {
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()

	if f.closed {
		return 0, f.errClosed("write")
	}
	if _, code := f.ef.Seek(off, io.SeekStart); code != OK {
		return 0, f.fs.finish("seek", f.path, code)
	}
	return f.writeLocked(p)
}

func (f *File) writeLocked(p []byte) (int, error) {
	n, code := f.ef.Write(p)
	if err := f.fs.finish("write", f.path, code); err != nil {
		return n, err
	}
	f.fs.stats.addWrite(n)
	return n, nil
}

// WriteString writes s to the file.
func (f *File) WriteString(s string) (int, error) {
	return f.Write([]byte(s))
}

func (f *File) Seek(offset int64, whence int) (int64, error) {
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()

	if f.closed {
		return 0, f.errClosed("seek")
	}
	pos, code := f.ef.Seek(offset, whence)
	if err := f.fs.finish("seek", f.path, code); err != nil {
		return 0, err
	}
	return pos, nil
}

// Size returns the current byte size of the file.
func (f *File) Size() (int64, error) {
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()

	if f.closed {
		return 0, f.errClosed("size")
	}
	size, code := f.ef.Size()
	if err := f.fs.finish("size", f.path, code); err != nil {
		return 0, err
	}
	return size, nil
}

// Truncate resizes the file to size bytes.
func (f *File) Truncate(size int64) error {
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()

	if f.closed {
		return f.errClosed("truncate")
	}
	return f.fs.finish("truncate", f.path, f.ef.Truncate(size))
}

// Sync flushes pending writes to the backing store.
func (f *File) Sync() error {
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()

	if f.closed {
		return f.errClosed("sync")
	}
	return f.fs.finish("sync", f.path, f.ef.Sync())
}

// Close releases the handle. Closing a closed file fails like os.File.
func (f *File) Close() error {
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()

	if f.closed {
		return f.errClosed("close")
	}
	f.closed = true
	f.fs.handles.remove(f)
	return f.fs.finish("close", f.path, f.ef.Close())
}

func (f *File) errClosed(op string) error {
	return &PathError{Op: op, Path: f.path, Code: ErrBadFile}
}
