package flashfs

import (
	"errors"
	"os"
	"strconv"
)

// Code is an engine result code. The negative values are the littlefs
// error codes and cross the engine boundary bit-exact; callers and logs
// match on them, so they must never be renumbered.
type Code int32

// Engine result codes.
const (
	OK          Code = 0   // no error
	ErrIO       Code = -5  // device operation failed
	ErrCorrupt  Code = -84 // metadata failed validation
	ErrNoEntry  Code = -2  // no such file or directory
	ErrExists   Code = -17 // entry already exists
	ErrNotDir   Code = -20 // entry is not a directory
	ErrIsDir    Code = -21 // entry is a directory
	ErrNotEmpty Code = -39 // directory is not empty
	ErrBadFile  Code = -9  // bad file number
	ErrInvalid  Code = -22 // invalid parameter
	ErrNoSpace  Code = -28 // no space left on device
	ErrNoMemory Code = -12 // no more memory available
)

func (c Code) Error() string {
	switch c {
	case OK:
		return "success"
	case ErrIO:
		return "input/output error"
	case ErrCorrupt:
		return "filesystem corrupt"
	case ErrNoEntry:
		return "no such file or directory"
	case ErrExists:
		return "file exists"
	case ErrNotDir:
		return "not a directory"
	case ErrIsDir:
		return "is a directory"
	case ErrNotEmpty:
		return "directory not empty"
	case ErrBadFile:
		return "bad file descriptor"
	case ErrInvalid:
		return "invalid argument"
	case ErrNoSpace:
		return "no space left on device"
	case ErrNoMemory:
		return "out of memory"
	}
	return "engine error " + strconv.Itoa(int(c))
}

// Is maps codes onto the standard sentinel errors so callers can use
// errors.Is without knowing the code table.
func (c Code) Is(target error) bool {
	switch target {
	case os.ErrNotExist:
		return c == ErrNoEntry
	case os.ErrExist:
		return c == ErrExists
	case os.ErrInvalid:
		return c == ErrInvalid
	case os.ErrClosed:
		return c == ErrBadFile
	}
	return false
}

// CodeOf extracts the engine code from an error chain. It returns OK for
// nil and ErrIO for errors that carry no code.
func CodeOf(err error) Code {
	if err == nil {
		return OK
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	return ErrIO
}

// PathError records an operation, the path it acted on, and the engine
// code that failed it.
type PathError struct {
	Op   string
	Path string
	Code Code
}

func (e *PathError) Error() string { return e.Op + " " + e.Path + ": " + e.Code.Error() }

func (e *PathError) Unwrap() error { return e.Code }

// Session-level failures, returned before any engine call is made.
var (
	// ErrNoConfig means Mount or Format ran with no configuration
	// available.
	ErrNoConfig = errors.New("flashfs: no configuration")

	// ErrNotMounted means the operation needs a mounted session.
	ErrNotMounted = errors.New("flashfs: not mounted")
)
