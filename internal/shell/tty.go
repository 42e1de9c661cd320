package shell

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// tty owns the shell's private, close-on-exec duplicate of the controlling
// terminal descriptor, grounded on original_source/jobs.c's initjobs:
// "Duplicate terminal fd, but do not leak it to subprocesses that execve."
type tty struct {
	fd int
}

// openTTY duplicates fd 0 and marks the duplicate close-on-exec, failing if
// fd 0 is not actually a terminal — spec.md §7's tier-1 fatal precondition.
func openTTY() (*tty, error) {
	if !term.IsTerminal(0) {
		return nil, fmt.Errorf("stdin is not a terminal")
	}

	dup, err := unix.Dup(0)
	if err != nil {
		return nil, fmt.Errorf("duplicating controlling terminal: %w", err)
	}
	if _, err := unix.FcntlInt(uintptr(dup), unix.F_SETFD, unix.FD_CLOEXEC); err != nil {
		_ = unix.Close(dup)
		return nil, fmt.Errorf("marking terminal descriptor close-on-exec: %w", err)
	}

	return &tty{fd: dup}, nil
}

// setForeground transfers terminal ownership to pgid, the Go equivalent of
// tcsetpgrp(tty_fd, pgid).
func (t *tty) setForeground(pgid int) error {
	return unix.IoctlSetPointerInt(t.fd, unix.TIOCSPGRP, pgid)
}

// reclaim returns terminal ownership to the shell's own process group, per
// monitorjob's "Tcsetpgrp(tty_fd, getpgrp())" after a foreground job leaves
// the terminal.
func (t *tty) reclaim() error {
	return t.setForeground(syscall.Getpgrp())
}

// close releases the owned descriptor, per shutdownjobs' "Close(tty_fd)".
func (t *tty) close() error {
	return unix.Close(t.fd)
}
