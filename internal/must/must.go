// Package must implements the tier-1 fatal-error contract from spec.md §7:
// a small number of environmental failures (stdin isn't a terminal or the
// shell can't otherwise initialize, a pipe or process can't be created,
// terminal ownership can't be transferred) are unrecoverable and must abort
// the whole shell immediately with a logged cause, rather than being
// threaded as an error return through every caller.
package must

import (
	"log/slog"
	"os"
)

// Must aborts the process if err is non-nil, logging msg and err first.
func Must(err error, msg string) {
	if err != nil {
		slog.Error(msg, "err", err)
		os.Exit(1)
	}
}
