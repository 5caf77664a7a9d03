package sched

import "container/list"

// Mutex is the kernel's non-reentrant sleep lock. A single-slot channel
// backs it rather than sync.Mutex: Go's channel implementation parks
// blocked goroutines on an internal FIFO wait queue and wakes the
// oldest one first, which is exactly the fairness guarantee the
// teacher's disable-interrupts/test-and-claim/enable-interrupts
// discipline provides on real hardware and sync.Mutex explicitly does
// not promise.
type Mutex struct {
	tok chan struct{}
}

// NewMutex returns an unlocked Mutex.
func NewMutex() *Mutex {
	m := &Mutex{tok: make(chan struct{}, 1)}
	m.tok <- struct{}{}
	return m
}

// Lock blocks until the lock is free, then claims it. Waiters queue up
// and are granted the lock in the order they called Lock.
func (m *Mutex) Lock() {
	<-m.tok
}

// Unlock releases the lock. It is a structural violation to unlock a
// Mutex that is not held.
func (m *Mutex) Unlock() {
	select {
	case m.tok <- struct{}{}:
	default:
		panic("sched: unlock of unlocked Mutex")
	}
}

// Cond is a FIFO condition variable associated with a Mutex, in the
// style of sync.Cond but with a deterministic, testable wake order:
// Signal always wakes whichever waiter called Wait least recently, and
// Broadcast wakes all of them in that same order.
type Cond struct {
	L       *Mutex
	waiters list.List // of chan struct{}
	wmu     Mutex
}

// NewCond returns a Cond whose Wait/Signal/Broadcast operate under l.
func NewCond(l *Mutex) *Cond {
	return &Cond{L: l, wmu: *NewMutex()}
}

// Wait atomically unlocks c.L and suspends the calling thread until a
// Signal or Broadcast wakes it, then reacquires c.L before returning,
// matching sync.Cond's contract.
func (c *Cond) Wait() {
	ch := make(chan struct{})
	c.wmu.Lock()
	c.waiters.PushBack(ch)
	c.wmu.Unlock()

	c.L.Unlock()
	<-ch
	c.L.Lock()
}

// Signal wakes the longest-waiting thread blocked in Wait, if any.
func (c *Cond) Signal() {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	front := c.waiters.Front()
	if front == nil {
		return
	}
	c.waiters.Remove(front)
	close(front.Value.(chan struct{}))
}

// Broadcast wakes every thread blocked in Wait, oldest first.
func (c *Cond) Broadcast() {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	for e := c.waiters.Front(); e != nil; e = e.Next() {
		close(e.Value.(chan struct{}))
	}
	c.waiters.Init()
}
