// Package logging configures the process-wide slog.Logger used for goshell's
// own diagnostics. It is never used for user-visible shell output (prompts,
// job reports, command output), which always goes straight to stdout/stderr.
//
// Grounded on the teacher's usage throughout pkg/worker, internal/server and
// internal/commands: bare package-level slog.Info/Warn/Error calls against
// whatever handler is installed, rather than a custom logger type threaded
// through every call site.
package logging

import (
	"log/slog"
	"os"
)

// Setup installs a text handler at the given level as the default logger.
// debug enables slog.LevelDebug; otherwise the default is slog.LevelInfo.
func Setup(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}
