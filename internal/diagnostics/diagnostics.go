// Package diagnostics carries the fabric core's process-level banners and
// its Fatal escape hatch for implementation faults: conditions spec.md
// documents as never representable as an *veilerr.Error (a null OS
// thread, unlocking a mutex the caller never held) because they signal a
// bug in the fabric itself rather than a recoverable runtime condition.
//
// Grounded on abiolaogu-MinIO's startup/shutdown print style
// (cmd/server/main.go's "✓ ..." banners over bare stdlib log/fmt) —
// the teacher never reaches for zerolog/zap/logrus anywhere in the pack,
// so this package stays on stdlib log to match.
package diagnostics

import (
	"fmt"
	"log"
	"os"
)

// Banner prints a startup/shutdown status line in the teacher's "✓ ..."
// style.
func Banner(format string, args ...any) {
	log.Printf("✓ %s", fmt.Sprintf(format, args...))
}

// Warn prints a non-fatal diagnostic.
func Warn(format string, args ...any) {
	log.Printf("warning: %s", fmt.Sprintf(format, args...))
}

// Fatal reports an implementation fault and ends the process. Unlike
// veilerr, which models conditions a caller can catch and recover from,
// an implementation fault means an invariant the fabric itself is
// supposed to guarantee has already been broken, so there is no
// meaningful recovery path left to hand back to a caller.
func Fatal(format string, args ...any) {
	log.Printf("fatal: %s", fmt.Sprintf(format, args...))
	os.Exit(2)
}
