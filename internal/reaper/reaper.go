// Package reaper implements the SIGCHLD-driven state machine from spec.md
// §4.2 as a channel-driven goroutine, per the redesign spec.md §9 invites:
// "the handler posts (pid, status) events into a bounded ring that the main
// task drains before each decision point." Here the "ring" is simply the
// signal.Notify channel itself plus the job table's gate; each notification
// triggers one full non-blocking scan of the table, exactly like the
// original handler's per-SIGCHLD scan in original_source/jobs.c.
//
// Grounded on other_examples/mmichie-gosh's ReapChildren/handleSignals for
// the channel-driven reap-loop shape, and on golang.org/x/sys/unix (also
// used by Talismancer-gvisor-ligolo and tjper-teleport in the retrieved
// pack) for the non-blocking wait4 call itself.
package reaper

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/tillgrove/goshell/internal/jobtable"
)

// Reaper scans the job table on every SIGCHLD delivery.
type Reaper struct {
	table *jobtable.Table
	sigCh chan os.Signal
	done  chan struct{}
}

// New creates a Reaper bound to table. Call Start to begin scanning.
func New(table *jobtable.Table) *Reaper {
	return &Reaper{
		table: table,
		sigCh: make(chan os.Signal, 64),
		done:  make(chan struct{}),
	}
}

// Start installs the SIGCHLD handler and launches the scanning goroutine.
// It must be called exactly once, at shell startup, mirroring
// original_source/jobs.c's initjobs -> Signal(SIGCHLD, sigchld_handler).
func (r *Reaper) Start() {
	signal.Notify(r.sigCh, unix.SIGCHLD)
	go r.loop()
}

// Stop removes the SIGCHLD handler and terminates the scanning goroutine.
func (r *Reaper) Stop() {
	signal.Stop(r.sigCh)
	close(r.done)
}

func (r *Reaper) loop() {
	for {
		select {
		case <-r.done:
			return
		case <-r.sigCh:
			r.scan()
		}
	}
}

// scan performs the non-blocking wait4 pass spec.md §4.2 describes: for
// every occupied job slot, for every non-FINISHED process, a non-blocking
// wait reporting stopped and continued children updates that process's
// state, then the job's derived state is recomputed.
func (r *Reaper) scan() {
	r.table.Gate.Lock()
	defer r.table.Gate.Unlock()
	defer r.table.Gate.Broadcast()

	for _, j := range r.table.OccupiedJobs() {
		r.scanJob(j)
	}
}

func (r *Reaper) scanJob(j int) {
	// JobByPID-style per-process scan: re-derive the live pids for this job
	// by asking the table, since Reap mutates state in place as we go.
	for _, pid := range r.table.LivePIDs(j) {
		var status unix.WaitStatus
		rc, err := unix.Wait4(pid, &status, unix.WNOHANG|unix.WUNTRACED|unix.WCONTINUED, nil)
		if err != nil && err != syscall.EINTR {
			slog.Error("reaper: wait4 failed", "pid", pid, "err", err)
			continue
		}
		if rc <= 0 {
			continue
		}

		switch {
		case status.Exited():
			r.table.Reap(j, pid, jobtable.ProcStateFinished, status.ExitStatus())
		case status.Signaled():
			r.table.Reap(j, pid, jobtable.ProcStateFinished, encodeSignal(status.Signal()))
		case status.Continued():
			r.table.Reap(j, pid, jobtable.ProcStateRunning, -1)
		case status.Stopped():
			r.table.Reap(j, pid, jobtable.ProcStateStopped, -1)
		}
	}
}

// encodeSignal departs from original_source/jobs.c's use of WEXITSTATUS even
// for signaled children: Go's unix.WaitStatus exposes the terminating signal
// directly, and it is encoded as 128 plus the signal number so that it reads
// distinctly from a zero exit.
func encodeSignal(sig syscall.Signal) int {
	const signalOffset = 128
	return signalOffset + int(sig)
}
