package commands

import "fmt"

// ExitError carries the job-control loop's own exit status (the shell's own
// "$?", spec.md §4.7) back out through cobra's error-returning RunE, the
// same way main unwraps an *exec.ExitError from a re-executed child in the
// teacher's cmd/job-worker/main.go.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}
