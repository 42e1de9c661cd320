// Package jobtable implements the job/process table from spec.md §3-§4.3: a
// fixed-origin, growable slice of job slots, slot 0 reserved for the
// foreground job, mutated only while a gate.Gate is held.
//
// This is grounded on original_source/jobs.c: the table shape (realloc'd
// array, BG == 1, allocjob/allocproc growth, jobstate/watchjobs/resumejob/
// killjob semantics) is carried over directly. The teacher's own job
// container (pkg/worker.Worker.jobs, a map[job.ID]*job.Job) doesn't fit: job
// numbers here must be small, stable, dense integers usable as %n, which a
// map can't guarantee.
package jobtable

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tillgrove/goshell/internal/gate"
)

// FG is the reserved foreground slot index.
const FG = 0

// BG is the first background slot index.
const BG = 1

// Which selects jobs by state for WatchJobs; All matches every occupied job
// regardless of state.
type Which int

const (
	// All matches every occupied background job.
	All Which = -1
)

// Process is one child process belonging to a job, per spec.md §3.
type Process struct {
	Pid      int
	State    ProcState
	ExitCode int // -1 until the process is reaped
}

// Job is one unit of user-level work: one command or a pipeline of stages
// sharing a single process group, per spec.md §3.
type Job struct {
	PGID    int // 0 iff the slot is free
	Procs   []Process
	State   JobState
	Command string
}

// occupied reports whether this slot holds a job.
func (j *Job) occupied() bool {
	return j.PGID != 0
}

// ExitCode returns the exit code of the job's last stage, which defines the
// job's own exit code per spec.md §3.
func (j *Job) ExitCode() int {
	return j.Procs[len(j.Procs)-1].ExitCode
}

// Table is the job table: an ordered sequence of job records indexed by job
// number. It must only be read or mutated while its Gate is held.
type Table struct {
	Gate *gate.Gate
	jobs []Job
}

// New returns a Table with the foreground slot allocated and empty, per
// spec.md's "Index 0 is reserved for the foreground job."
func New(g *gate.Gate) *Table {
	return &Table{
		Gate: g,
		jobs: make([]Job, 1),
	}
}

// ErrNoSuchJob is returned by operations that reference an absent or
// already-finished job.
var ErrNoSuchJob = errors.New("no such job")

// allocJob finds the lowest free slot >= BG, growing the table by one slot
// if none exists, mirroring original_source/jobs.c's allocjob.
func (t *Table) allocJob() int {
	for j := BG; j < len(t.jobs); j++ {
		if !t.jobs[j].occupied() {
			return j
		}
	}
	t.jobs = append(t.jobs, Job{})
	return len(t.jobs) - 1
}

// AddJob implements spec.md §4.3's addjob: picks slot 0 if bg is false, else
// the lowest free slot >= 1, growing the table if needed. Caller must hold
// the gate.
func (t *Table) AddJob(pgid int, bg bool) int {
	j := FG
	if bg {
		j = t.allocJob()
	}

	t.jobs[j] = Job{
		PGID:  pgid,
		State: JobStateRunning,
	}
	return j
}

// AddProc implements spec.md §4.3's addproc: appends a process record to job
// j and extends the job's command string, joining stage argvs with " | ".
// Caller must hold the gate.
func (t *Table) AddProc(j int, pid int, argv []string) {
	job := &t.jobs[j]
	job.Procs = append(job.Procs, Process{
		Pid:      pid,
		State:    ProcStateRunning,
		ExitCode: -1,
	})

	if job.Command != "" {
		job.Command += " | "
	}
	job.Command += strings.Join(argv, " ")
}

// JobState implements spec.md §4.3's jobstate. It returns job j's current
// state; if FINISHED, it writes the job's exit code to *status and frees the
// slot.
//
// The original implementation dereferenced the table base (jobs[0]) rather
// than the indexed element j when checking FINISHED and deleting; this
// method performs both on slot j.
func (t *Table) JobState(j int, status *int) JobState {
	job := &t.jobs[j]
	state := job.State

	if state == JobStateFinished {
		*status = job.ExitCode()
		t.delJob(j)
	}

	return state
}

// delJob frees a finished job's slot.
func (t *Table) delJob(j int) {
	t.jobs[j] = Job{}
}

// moveJob relocates a job record from one slot to another, per
// original_source/jobs.c's movejob. The destination slot must be free.
func (t *Table) moveJob(from, to int) {
	t.jobs[to] = t.jobs[from]
	t.jobs[from] = Job{}
}

// WatchJobs implements spec.md §4.3's watchjobs: for each occupied
// background slot whose state equals which (or every slot, when which is
// All), prints a report line and frees the slot if it was FINISHED.
func (t *Table) WatchJobs(which Which, out func(string)) {
	for j := BG; j < len(t.jobs); j++ {
		job := &t.jobs[j]
		if !job.occupied() {
			continue
		}
		if which != All && JobState(which) != job.State {
			continue
		}

		switch job.State {
		case JobStateFinished:
			out(fmt.Sprintf("[%d] exited, status=%d (%s)\n", j, job.ExitCode(), job.Command))
			t.delJob(j)
		case JobStateStopped:
			out(fmt.Sprintf("[%d] stopped (%s)\n", j, job.Command))
		case JobStateRunning:
			out(fmt.Sprintf("[%d] running (%s)\n", j, job.Command))
		}
	}
}

// Command returns job j's command string, asserting j is in range.
func (t *Table) Command(j int) string {
	return t.jobs[j].Command
}

// highestLive returns the highest-numbered non-FINISHED job, or -1 if none
// exists, per original_source/jobs.c's resumejob "j < 0" branch.
func (t *Table) highestLive() int {
	for j := len(t.jobs) - 1; j > FG; j-- {
		if t.jobs[j].occupied() && t.jobs[j].State != JobStateFinished {
			return j
		}
	}
	return -1
}

// Signaler sends a signal to an entire process group. It exists so that
// jobtable doesn't import syscall directly, keeping this package portable
// and independently testable.
type Signaler interface {
	SignalGroup(pgid int, sig int) error
}

// ResumeJob implements spec.md §4.3's resumejob. If j < 0 the highest
// numbered live job is chosen. It sends SIGCONT to the whole process group
// and, if bg requests foreground, moves the job to slot 0. Unlike the
// original's resumejob, it does not itself monitor the job: calling a
// foreground monitor while the gate is held would deadlock against the
// monitor's own locking, so callers that get ok == true and passed bg ==
// false must invoke their monitor themselves, after releasing the gate.
// Caller must hold the gate.
func (t *Table) ResumeJob(j int, bg bool, sig Signaler, sigcont int) bool {
	if j < 0 {
		j = t.highestLive()
	}

	if j < 0 || j >= len(t.jobs) || !t.jobs[j].occupied() || t.jobs[j].State == JobStateFinished {
		return false
	}

	job := &t.jobs[j]
	if err := sig.SignalGroup(job.PGID, sigcont); err != nil {
		return false
	}

	if !bg {
		t.moveJob(j, FG)
	}

	return true
}

// KillJob implements spec.md §4.3's killjob: sends SIGTERM to the whole
// process group of job j. It does not wait; the reaper observes the
// resulting termination. Caller must hold the gate.
func (t *Table) KillJob(j int, sig Signaler, sigterm int) bool {
	if j < 0 || j >= len(t.jobs) || t.jobs[j].State == JobStateFinished {
		return false
	}

	job := &t.jobs[j]
	if job.PGID == 0 {
		return false
	}

	return sig.SignalGroup(job.PGID, sigterm) == nil
}

// Reap applies the per-process state transitions reported by wait to job j's
// process table and recomputes the job's derived state, per spec.md §4.2.
// Caller must hold the gate.
func (t *Table) Reap(j int, pid int, newState ProcState, exitCode int) {
	job := &t.jobs[j]
	for i := range job.Procs {
		if job.Procs[i].Pid != pid {
			continue
		}
		job.Procs[i].State = newState
		if newState == ProcStateFinished {
			job.Procs[i].ExitCode = exitCode
		}
		break
	}

	t.recompute(j)
}

// recompute derives job j's state from its processes per spec.md invariant
// (1): FINISHED iff all processes are FINISHED; STOPPED iff none are RUNNING
// and at least one is STOPPED; RUNNING iff at least one is RUNNING.
func (t *Table) recompute(j int) {
	job := &t.jobs[j]

	hasRunning, hasStopped := false, false
	for _, p := range job.Procs {
		switch p.State {
		case ProcStateRunning:
			hasRunning = true
		case ProcStateStopped:
			hasStopped = true
		}
	}

	switch {
	case hasRunning:
		job.State = JobStateRunning
	case hasStopped:
		job.State = JobStateStopped
	default:
		job.State = JobStateFinished
	}
}

// OccupiedJobs returns the job numbers of every occupied slot (including a
// possibly-occupied slot 0), in ascending order. It's used by the reaper
// scan and the shutdown drain. Caller must hold the gate.
func (t *Table) OccupiedJobs() []int {
	var js []int
	for j := range t.jobs {
		if t.jobs[j].occupied() {
			js = append(js, j)
		}
	}
	return js
}

// JobByPID returns the number of the occupied job that owns pid as a live
// (non-FINISHED) process and true, or (-1, false) if no occupied job owns
// it. Caller must hold the gate.
func (t *Table) JobByPID(pid int) (int, bool) {
	for j := range t.jobs {
		if !t.jobs[j].occupied() {
			continue
		}
		for _, p := range t.jobs[j].Procs {
			if p.Pid == pid && p.State != ProcStateFinished {
				return j, true
			}
		}
	}
	return -1, false
}

// LivePIDs returns the pids of job j's non-FINISHED processes, for the
// reaper's per-job wait4 scan. Caller must hold the gate.
func (t *Table) LivePIDs(j int) []int {
	var pids []int
	for _, p := range t.jobs[j].Procs {
		if p.State != ProcStateFinished {
			pids = append(pids, p.Pid)
		}
	}
	return pids
}

// State returns job j's current derived state without side effects. Caller
// must hold the gate.
func (t *Table) State(j int) JobState {
	return t.jobs[j].State
}

// PGID returns job j's process group id. Caller must hold the gate.
func (t *Table) PGID(j int) int {
	return t.jobs[j].PGID
}

// ExitCode returns job j's exit code, valid once State(j) == JobStateFinished.
// Caller must hold the gate.
func (t *Table) ExitCode(j int) int {
	return t.jobs[j].ExitCode()
}

// ParkStopped moves the stopped foreground job into a freshly allocated
// background slot and returns its new job number, per
// original_source/jobs.c's monitorjob STOPPED branch: "int bg = addjob(0,
// BG); movejob(FG, bg);". Caller must hold the gate.
func (t *Table) ParkStopped() int {
	bg := t.allocJob()
	t.moveJob(FG, bg)
	return bg
}
