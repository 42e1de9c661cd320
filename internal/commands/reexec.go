// Package commands wires the shell's pieces into a runnable process: the
// interactive job-control loop cobra subcommand, and the hidden re-exec path
// a pipeline stage takes when its command word is a builtin.
package commands

import (
	"fmt"
	"log/slog"
	"os"
	"syscall"

	"github.com/tillgrove/goshell/internal/builtin"
	"github.com/tillgrove/goshell/internal/gate"
	"github.com/tillgrove/goshell/internal/jobtable"
	"github.com/tillgrove/goshell/internal/pipeline"
	"github.com/tillgrove/goshell/internal/resolve"
)

// groupSignaler sends a signal to a whole process group, same as the one the
// interactive shell uses, kept separate so this package doesn't reach into
// internal/shell's unexported type.
type groupSignaler struct{}

func (groupSignaler) SignalGroup(pgid, sig int) error {
	return syscall.Kill(-pgid, syscall.Signal(sig))
}

// ReexecBuiltinStage checks whether this process was launched as a re-exec'd
// pipeline stage (internal/pipeline's Spawner, in pipelineMode) rather than
// as the interactive shell proper. If so it runs the named builtin against
// its own argv and reports whether to exit now.
//
// This is the Go-native substitute for original_source/shell.c's do_stage:
// "if ((exitcode = builtin_command(token)) >= 0) exit(exitcode);
// external_command(token);" — a forked child there can run a builtin in
// place before ever exec'ing. A Go process can't safely fork without an
// immediate exec, so instead the shell re-execs itself as this stage, runs
// the builtin post-exec, and falls through to syscall.Exec in its place if
// the builtin declines.
func ReexecBuiltinStage() (code int, handled bool) {
	name, ok := os.LookupEnv(pipeline.ReexecEnv)
	if !ok {
		return 0, false
	}

	fn, ok := builtin.Lookup(name)
	if !ok {
		fmt.Fprintf(os.Stderr, "goshell: %s: re-exec'd as unknown builtin\n", name)
		return 1, true
	}

	// A forked child in the original gets its own copy of the parent's
	// memory; this re-exec'd process gets its own private job table instead,
	// since it is not the shell and never will be.
	tab := jobtable.New(gate.New())

	ctx := &builtin.Context{
		Table:    tab,
		Signaler: groupSignaler{},
		Monitor:  func() {},
		Stdout:   os.Stdout,
		Quit:     func(int) {},
	}

	if rc := fn(ctx, os.Args[1:]); rc != builtin.NotHandled {
		return rc, true
	}

	path, err := resolve.Lookup(name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", name, err)
		return 1, true
	}

	argv := append([]string{name}, os.Args[1:]...)
	if err := syscall.Exec(path, argv, os.Environ()); err != nil {
		slog.Error("exec failed", "path", path, "err", err)
		return 1, true
	}
	return 0, true // unreachable on success: syscall.Exec replaces this process
}
