package sched

import (
	"sync"
)

// Accnt accumulates per-thread CPU-time accounting, adapted from the
// teacher's accnt.Accnt_t. Userns and Sysns are nanosecond counters;
// the embedded mutex lets a caller take a consistent snapshot of both
// for the supplemented GETRUSAGE ioctl.
type Accnt struct {
	Userns int64
	Sysns  int64
	mu     sync.Mutex
}

// Utadd adds delta nanoseconds of user time.
func (a *Accnt) Utadd(delta int64) {
	a.mu.Lock()
	a.Userns += delta
	a.mu.Unlock()
}

// Systadd adds delta nanoseconds of system time.
func (a *Accnt) Systadd(delta int64) {
	a.mu.Lock()
	a.Sysns += delta
	a.mu.Unlock()
}

// Add merges another thread's accounting into this one, used when a
// parent collects a reaped child's usage.
func (a *Accnt) Add(n *Accnt) {
	userns, sysns := n.Snapshot()
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Userns += userns
	a.Sysns += sysns
}

// Snapshot returns a consistent (Userns, Sysns) pair.
func (a *Accnt) Snapshot() (userns, sysns int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Userns, a.Sysns
}
