// Package builtin implements the built-in command dispatch table from
// spec.md §4.9, grounded directly on original_source/command.c's
// builtins[] table and do_quit/do_chdir/do_jobs/do_fg/do_bg/do_kill.
package builtin

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/tillgrove/goshell/internal/jobtable"
)

const (
	sigcont = int(syscall.SIGCONT)
	sigterm = int(syscall.SIGTERM)
)

// NotHandled is returned by a builtin that declines to handle its own
// arguments, mirroring original_source/command.c's do_kill returning -1 for
// a malformed argument: the caller must fall through and resolve the word as
// an external command, exactly as do_job's "if ((exitcode =
// builtin_command(token)) >= 0) return exitcode;" does.
const NotHandled = -1

// Context is the shell state a builtin needs. It is assembled fresh for
// every builtin invocation by the caller.
type Context struct {
	Table    *jobtable.Table
	Signaler jobtable.Signaler
	Monitor  func() // moves the foreground slot's job under terminal control
	Stdout   io.Writer
	Quit     func(code int) // triggers shell shutdown with the given exit code
}

// Func is one built-in command. It receives its own argv (excluding the
// command word itself) and returns an exit code, or NotHandled.
type Func func(ctx *Context, args []string) int

var table = map[string]Func{
	"quit": doQuit,
	"cd":   doChdir,
	"jobs": doJobs,
	"fg":   doFg,
	"bg":   doBg,
	"kill": doKill,
}

// Lookup returns the builtin named name, if one exists.
func Lookup(name string) (Func, bool) {
	fn, ok := table[name]
	return fn, ok
}

func doQuit(ctx *Context, _ []string) int {
	ctx.Quit(0)
	return 0
}

// doChdir implements spec.md §4.9's cd: bare "cd" changes to $HOME, "cd
// path" changes to path.
func doChdir(ctx *Context, args []string) int {
	path := ""
	if len(args) > 0 {
		path = args[0]
	} else {
		path = os.Getenv("HOME")
	}

	if err := os.Chdir(path); err != nil {
		fmt.Fprintf(ctx.Stdout, "cd: %s: %s\n", errnoReason(err), path)
		return 1
	}
	return 0
}

// errnoReason renders err's underlying errno the way strerror(3) does (e.g.
// "No such file or directory"), per original_source/command.c's do_chdir:
// msg("cd: %s: %s\n", strerror(errno), path). os.Chdir wraps the errno in a
// *PathError whose own Error() ("chdir /path: reason") isn't what spec.md §6
// wants printed, so the errno is unwrapped and rendered on its own.
func errnoReason(err error) string {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		reason := errno.Error()
		return strings.ToUpper(reason[:1]) + reason[1:]
	}
	return err.Error()
}

func doJobs(ctx *Context, _ []string) int {
	ctx.Table.WatchJobs(jobtable.All, func(s string) { fmt.Fprint(ctx.Stdout, s) })
	return 0
}

// parseJobArg parses a bare job number, as fg/bg take it: "fg" or "bg" alone
// selects the highest-numbered job (-1); "fg n" selects job n.
func parseJobArg(args []string) int {
	if len(args) == 0 {
		return -1
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return -1
	}
	return n
}

func doFg(ctx *Context, args []string) int {
	j := parseJobArg(args)
	ctx.Table.Gate.Lock()
	ok := ctx.Table.ResumeJob(j, false, ctx.Signaler, sigcont)
	ctx.Table.Gate.Unlock()
	if !ok {
		fmt.Fprintf(ctx.Stdout, "fg: job not found: %s\n", argOrEmpty(args))
		return 0
	}
	ctx.Monitor()
	return 0
}

func doBg(ctx *Context, args []string) int {
	j := parseJobArg(args)
	ctx.Table.Gate.Lock()
	ok := ctx.Table.ResumeJob(j, true, ctx.Signaler, sigcont)
	ctx.Table.Gate.Unlock()
	if !ok {
		fmt.Fprintf(ctx.Stdout, "bg: job not found: %s\n", argOrEmpty(args))
	}
	return 0
}

// doKill implements spec.md §4.9's kill: its sole argument must be a
// "%n"-form job reference. Any other shape is declined, per
// original_source/command.c's do_kill, so that e.g. "kill -9 1234" still
// resolves to the external kill(1) binary.
func doKill(ctx *Context, args []string) int {
	if len(args) == 0 || !strings.HasPrefix(args[0], "%") {
		return NotHandled
	}

	j, err := strconv.Atoi(strings.TrimPrefix(args[0], "%"))
	if err != nil {
		return NotHandled
	}

	ctx.Table.Gate.Lock()
	ok := ctx.Table.KillJob(j, ctx.Signaler, sigterm)
	ctx.Table.Gate.Unlock()
	if !ok {
		fmt.Fprintf(ctx.Stdout, "kill: job not found: %s\n", args[0])
	}
	return 0
}

func argOrEmpty(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
