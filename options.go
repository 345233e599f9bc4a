package flashfs

import (
	"github.com/rs/zerolog"
)

// Options configures a session created by New.
//
// Use DefaultOptions() to get a baseline, then customize as needed.
type Options struct {
	// Config is the engine geometry used when Mount is called with nil.
	// A non-nil cfg passed to Mount overrides it for the rest of the
	// session.
	Config *Config

	// Logger receives one debug event per failed engine call. Nil
	// disables diagnostics.
	Logger *zerolog.Logger
}

// DefaultOptions returns options with no configuration bound and
// diagnostics disabled.
func DefaultOptions() *Options {
	return &Options{}
}
