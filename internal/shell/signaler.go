package shell

import "syscall"

// groupSignaler implements jobtable.Signaler over a real process group,
// grounded on original_source/jobs.c's resumejob/killjob, both of which
// simply call Kill(-pgid, sig).
type groupSignaler struct{}

func (groupSignaler) SignalGroup(pgid, sig int) error {
	return syscall.Kill(-pgid, syscall.Signal(sig))
}
