package flashfs

import (
	"sync/atomic"
)

// Stats is a point-in-time snapshot of session activity.
type Stats struct {
	Mounted      bool
	Operations   uint64
	Errors       uint64
	BytesRead    uint64
	BytesWritten uint64
	OpenFiles    int
}

// statsCollector tracks session activity. Counters are atomic so a
// snapshot never has to wait on the session guard.
type statsCollector struct {
	operations   atomic.Uint64
	errors       atomic.Uint64
	bytesRead    atomic.Uint64
	bytesWritten atomic.Uint64
}

// record counts one engine call and its outcome.
func (s *statsCollector) record(code Code) {
	s.operations.Add(1)
	if code != OK {
		s.errors.Add(1)
	}
}

func (s *statsCollector) addRead(n int) {
	s.bytesRead.Add(uint64(n))
}

func (s *statsCollector) addWrite(n int) {
	s.bytesWritten.Add(uint64(n))
}

// snapshot returns the current counters.
func (s *statsCollector) snapshot() Stats {
	return Stats{
		Operations:   s.operations.Load(),
		Errors:       s.errors.Load(),
		BytesRead:    s.bytesRead.Load(),
		BytesWritten: s.bytesWritten.Load(),
	}
}

// Stats returns a snapshot of the session.
func (fs *FS) Stats() Stats {
	fs.mu.Lock()
	mounted := fs.mounted
	open := fs.handles.count()
	fs.mu.Unlock()

	st := fs.stats.snapshot()
	st.Mounted = mounted
	st.OpenFiles = open
	return st
}
