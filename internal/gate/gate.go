// Package gate implements the signal-gate primitive from spec.md §4.1 as a
// mutex/condition-variable pair, per the channel-based redesign spec.md §9
// invites in place of sigprocmask/sigsuspend: "the state-derivation logic
// then lives entirely in the main task," guarded by a single lock that both
// the reaper and the main goroutine acquire before touching the job table.
package gate

import "sync"

// Gate serializes access to the job table and provides the suspend-until-
// woken primitive the foreground monitor and the shutdown drain both need.
// Lock/Unlock stand in for blocking/restoring SIGCHLD; Wait stands in for
// sigsuspend.
type Gate struct {
	mu   sync.Mutex
	cond *sync.Cond
}

// New returns a ready-to-use Gate.
func New() *Gate {
	g := &Gate{}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// Lock enters a critical section. Every read or mutation of the job table
// must happen between Lock and Unlock.
func (g *Gate) Lock() {
	g.mu.Lock()
}

// Unlock leaves a critical section.
func (g *Gate) Unlock() {
	g.mu.Unlock()
}

// Wait must be called with the gate held. It atomically releases the lock
// and blocks until Broadcast is called, then reacquires the lock before
// returning, mirroring sigsuspend's atomicity guarantee: there is no window
// in which a wakeup between "unblock" and "sleep" can be missed.
func (g *Gate) Wait() {
	g.cond.Wait()
}

// Broadcast wakes every goroutine blocked in Wait. Callers must hold the
// gate; the reaper calls it after each scan to notify the foreground monitor
// and shutdown drain that the table may have changed.
func (g *Gate) Broadcast() {
	g.cond.Broadcast()
}
