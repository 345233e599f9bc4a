// Package flashfs provides a concurrency-safe session on top of a
// littlefs-style flash filesystem engine. A session owns one Engine,
// serializes every engine call behind a per-session guard, and tracks
// mount state so no call reaches the engine while it is unmounted. On
// top of the raw engine it adds recursive directory creation, recursive
// removal, and os-flavored file handles.
package flashfs

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// FS is a session over an Engine. Create one with New; the zero value is
// not usable. An FS may be shared freely across goroutines.
type FS struct {
	mu      sync.Mutex // guards every engine call and all fields below
	mounted bool
	eng     Engine
	cfg     *Config
	handles handleSet

	log   zerolog.Logger
	stats statsCollector
}

// New wraps eng in an unmounted session. opts may be nil.
func New(eng Engine, opts *Options) *FS {
	if opts == nil {
		opts = DefaultOptions()
	}
	fs := &FS{
		eng: eng,
		cfg: opts.Config,
		log: zerolog.Nop(),
	}
	if opts.Logger != nil {
		fs.log = *opts.Logger
	}
	fs.handles.init()
	return fs
}

// Mounted reports whether the session is mounted.
func (fs *FS) Mounted() bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.mounted
}

// Config returns the configuration the session mounts with. It is nil
// until one is supplied via Options or Mount.
func (fs *FS) Config() *Config {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.cfg
}

// Size returns the number of engine blocks in use. It fails with
// errors.ErrUnsupported when the engine cannot report usage.
func (fs *FS) Size() (uint32, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if !fs.mounted {
		return 0, ErrNotMounted
	}
	szr, ok := fs.eng.(Sizer)
	if !ok {
		return 0, fmt.Errorf("flashfs: size: %w", errors.ErrUnsupported)
	}
	blocks, code := szr.Size()
	if err := fs.finish("size", "/", code); err != nil {
		return 0, err
	}
	return blocks, nil
}

// finish records the outcome of one guarded engine call and converts a
// non-OK code into an error.
func (fs *FS) finish(op, path string, code Code) error {
	fs.stats.record(code)
	if code == OK {
		return nil
	}
	fs.log.Debug().Str("op", op).Str("path", path).Int32("code", int32(code)).Msg(code.Error())
	return &PathError{Op: op, Path: path, Code: code}
}
