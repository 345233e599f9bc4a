package flashfs

// Mount readies the engine and marks the session mounted. A nil cfg uses
// the configuration from Options or from an earlier Mount. Mounting a
// mounted session is a no-op. A mount that fails with ErrCorrupt usually
// means the backing store was never formatted; Format and try again.
func (fs *FS) Mount(cfg *Config) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.mounted {
		return nil
	}
	if cfg != nil {
		fs.cfg = cfg
	}
	return fs.mountLocked()
}

// Unmount releases the engine. The session is marked unmounted before
// the engine runs, so a failing engine cannot leave a phantom mount
// behind. Open file handles are closed first. Unmounting an unmounted
// session is a no-op.
func (fs *FS) Unmount() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if !fs.mounted {
		return nil
	}
	return fs.unmountLocked()
}

// Format rewrites the filesystem to empty. A mounted session is
// unmounted first and remounted after. The whole sequence runs under a
// single guard acquisition, so no other operation can interleave with a
// half-formatted filesystem. When a middle step fails the sequence stops
// there: a session unmounted for a format that then failed stays
// unmounted.
func (fs *FS) Format() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.cfg == nil {
		return ErrNoConfig
	}

	wasMounted := fs.mounted
	if fs.mounted {
		if err := fs.unmountLocked(); err != nil {
			return err
		}
	}
	if err := fs.finish("format", "/", fs.eng.Format(fs.cfg)); err != nil {
		return err
	}
	if wasMounted {
		return fs.mountLocked()
	}
	return nil
}

// mountLocked mounts with mu already held.
func (fs *FS) mountLocked() error {
	if fs.cfg == nil {
		return ErrNoConfig
	}
	if err := fs.finish("mount", "/", fs.eng.Mount(fs.cfg)); err != nil {
		return err
	}
	fs.mounted = true
	return nil
}

// unmountLocked unmounts with mu already held. The mounted flag drops
// before the engine call.
func (fs *FS) unmountLocked() error {
	if code := fs.handles.closeAll(); code != OK {
		fs.log.Debug().Int32("code", int32(code)).Msg("close on unmount")
	}
	fs.mounted = false
	return fs.finish("unmount", "/", fs.eng.Unmount())
}
