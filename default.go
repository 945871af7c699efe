// Completion: 100% - package defaults and environment overrides complete
package legalize

import (
	"github.com/xyproto/env/v2"
)

// VerboseMode enables legalization and emission tracing on stderr.
// It can be toggled programmatically or through LEGALIZE_VERBOSE.
var VerboseMode = env.Bool("LEGALIZE_VERBOSE")

// DefaultSharedFlags builds the shared settings with environment
// overrides applied:
//
//	LEGALIZE_OPT_LEVEL    none | speed | speed_and_size
//	LEGALIZE_JUMP_TABLES  true | false (on/off, yes/no, 1/0)
//
// Unset variables keep the built-in defaults.
func DefaultSharedFlags() SharedFlags {
	b := NewSharedBuilder()
	if v := env.Str("LEGALIZE_OPT_LEVEL"); v != "" {
		// Ignore invalid levels; defaults are safe.
		_ = b.Set("opt_level", v)
	}
	if v := env.Str("LEGALIZE_JUMP_TABLES"); v != "" {
		_ = b.Set("jump_tables_enabled", v)
	}
	return NewSharedFlags(b)
}
