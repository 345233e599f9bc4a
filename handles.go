package flashfs

// handleSet tracks the open files of a session so Unmount can close
// whatever the caller left behind. It is touched only while the owning
// session's guard is held and needs no locking of its own.
type handleSet struct {
	open map[*File]struct{}
}

func (h *handleSet) init() {
	h.open = make(map[*File]struct{})
}

func (h *handleSet) add(f *File) {
	h.open[f] = struct{}{}
}

func (h *handleSet) remove(f *File) {
	delete(h.open, f)
}

func (h *handleSet) count() int {
	return len(h.open)
}

// closeAll closes every registered engine file and empties the set. It
// returns the first non-OK close code.
func (h *handleSet) closeAll() Code {
	first := OK
	for f := range h.open {
		f.closed = true
		if code := f.ef.Close(); code != OK && first == OK {
			first = code
		}
	}
	clear(h.open)
	return first
}
