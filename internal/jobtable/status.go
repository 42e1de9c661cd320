package jobtable

import "strconv"

//go:generate stringer -type=ProcState -trimprefix=ProcState
//go:generate stringer -type=JobState -trimprefix=JobState

// ProcState is the state of a single process within a job, per spec.md §3.
type ProcState int

const (
	// ProcStateRunning is a process's initial state.
	ProcStateRunning ProcState = iota
	// ProcStateStopped is set when the reaper observes WIFSTOPPED.
	ProcStateStopped
	// ProcStateFinished is terminal: the process exited or was killed by a
	// signal.
	ProcStateFinished
)

func (s ProcState) String() string {
	switch s {
	case ProcStateRunning:
		return "Running"
	case ProcStateStopped:
		return "Stopped"
	case ProcStateFinished:
		return "Finished"
	default:
		return "ProcState(" + strconv.Itoa(int(s)) + ")"
	}
}

// JobState is the derived state of a job, computed from its processes per
// spec.md invariant (1).
type JobState int

const (
	// JobStateRunning holds while at least one process is running.
	JobStateRunning JobState = iota
	// JobStateStopped holds when no process is running and at least one is
	// stopped.
	JobStateStopped
	// JobStateFinished is terminal: every process in the job has finished.
	JobStateFinished
)

func (s JobState) String() string {
	switch s {
	case JobStateRunning:
		return "Running"
	case JobStateStopped:
		return "Stopped"
	case JobStateFinished:
		return "Finished"
	default:
		return "JobState(" + strconv.Itoa(int(s)) + ")"
	}
}
