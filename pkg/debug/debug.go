// Package debug gates verbose diagnostics behind process-wide flags.
package debug

import (
	"fmt"
	"strings"

	"github.com/teslashibe/go-avatar/internal/log"
)

// Enabled turns on extra diagnostics (--debug).
var Enabled bool

// Frames turns on one record per landmark frame (--debug-frames).
var Frames bool

// Log emits a debug record when Enabled is set.
func Log(format string, args ...any) {
	if Enabled {
		emit("debug", format, args)
	}
}

// FrameLog emits a debug record when Frames is set.
func FrameLog(format string, args ...any) {
	if Frames {
		emit("frame", format, args)
	}
}

func emit(scope, format string, args []any) {
	msg := strings.TrimRight(fmt.Sprintf(format, args...), "\n")
	log.Debug(msg, "scope", scope)
}
