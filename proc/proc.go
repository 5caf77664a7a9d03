// Package proc implements the process manager: a fixed-size process
// table, fork/exec/exit/wait, and the syscall table the trap dispatcher
// hands ecall-from-U traps to.
//
// Grounded on the teacher's fd.Fd_t/Copyfd for the iotab-slot-plus-
// refcount shape, limits.go's fixed-table-size idiom for the process
// table itself, and the supplementary justanotherdot-biscuit main.go
// for the overall fork/exec/exit dispatch loop shape.
package proc

import (
	"sync"

	"github.com/Veneto723/Illinux/config"
	"github.com/Veneto723/Illinux/ioc"
	"github.com/Veneto723/Illinux/kerr"
	"github.com/Veneto723/Illinux/mem"
	"github.com/Veneto723/Illinux/sched"
	"github.com/Veneto723/Illinux/vm"
)

// Loader loads a program image from cap into a fresh address space and
// returns its entry point. ELF parsing and the user C runtime are
// explicitly out of scope for this kernel core; Loader is the seam a
// real implementation plugs into.
type Loader interface {
	Load(space *vm.Space, cap ioc.Capability) (entry uintptr, errno kerr.Errno)
}

// maxIotab is the array capacity backing every process's iotab; ProcTable
// additionally enforces cfg.NIotab <= maxIotab as the live limit, so a
// config with a smaller NIotab than maxIotab simply leaves the tail of
// the array unused.
const maxIotab = 16

// Process is one entry in the process table.
type Process struct {
	PID    int
	Space  *vm.Space
	Thread *sched.Thread
	Parent *Process

	mu     sync.Mutex
	iotab  [maxIotab]ioc.Capability
	status int
	exited bool
	waitCh chan struct{}
}

// Rusage reports p's accumulated user/system nanoseconds, backing the
// supplemented GETRUSAGE ioctl. A process whose thread has not been
// spawned yet (pid 0 before its first scheduling) reports zero.
func (p *Process) Rusage() (userns, sysns int64) {
	if p.Thread == nil {
		return 0, 0
	}
	return p.Thread.Accnt.Snapshot()
}

// ProcTable is the fixed-size process table. pid 0 is always the initial
// process.
type ProcTable struct {
	mu    sync.Mutex
	cfg   config.Config
	pool  *mem.Pool
	sched *sched.Scheduler
	procs map[int]*Process
	next  int
}

// NewTable returns an empty process table bound to pool for address
// space allocation and sc for thread scheduling.
func NewTable(cfg config.Config, pool *mem.Pool, sc *sched.Scheduler) *ProcTable {
	return &ProcTable{cfg: cfg, pool: pool, sched: sc, procs: make(map[int]*Process)}
}

func (t *ProcTable) newProcess(parent *Process) (*Process, kerr.Errno) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.procs) >= t.cfg.NProcs {
		return nil, kerr.EMFILE
	}
	pid := t.next
	t.next++
	p := &Process{
		PID:    pid,
		Parent: parent,
		waitCh: make(chan struct{}, 1),
	}
	t.procs[pid] = p
	return p, kerr.EOK
}

// CreateInit creates pid 0, the kernel's initial process, with a fresh
// empty address space.
func (t *ProcTable) CreateInit() *Process {
	p, errno := t.newProcess(nil)
	if errno != kerr.EOK {
		panic(errno) // the table cannot already be full at boot
	}
	p.Space = vm.NewSpace(t.pool, t.cfg)
	return p
}

// iotabSlot returns a pointer to parent's iotab slot i, bounds-checked
// against the table's configured NIotab.
func (t *ProcTable) iotabSlot(p *Process, i int) (*ioc.Capability, kerr.Errno) {
	if i < 0 || i >= t.cfg.NIotab || i >= len(p.iotab) {
		return nil, kerr.EBADF
	}
	return &p.iotab[i], kerr.EOK
}

// Assign installs cap into the first free iotab slot of p and returns
// its descriptor number.
func (t *ProcTable) Assign(p *Process, cap ioc.Capability) (int, kerr.Errno) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := 0; i < t.cfg.NIotab && i < len(p.iotab); i++ {
		if p.iotab[i] == nil {
			p.iotab[i] = cap
			return i, kerr.EOK
		}
	}
	return 0, kerr.EMFILE
}

// Fork clones parent into a new process: the address space is deep
// copied (vm.Space.Fork), every occupied iotab slot is shared with its
// reference count bumped, and the child is returned ready for the
// caller to hand a trap-frame snapshot and spawn a thread for.
func (t *ProcTable) Fork(parent *Process) (*Process, kerr.Errno) {
	child, errno := t.newProcess(parent)
	if errno != kerr.EOK {
		return nil, errno
	}
	parent.mu.Lock()
	defer parent.mu.Unlock()
	child.Space = parent.Space.Fork()
	for i := 0; i < t.cfg.NIotab && i < len(parent.iotab); i++ {
		cap := parent.iotab[i]
		if cap == nil {
			continue
		}
		if rc, ok := cap.(interface{ Ref() }); ok {
			rc.Ref()
		}
		child.iotab[i] = cap
	}
	return child, kerr.EOK
}

// Close releases iotab slot fd of p: the slot's reference count is
// decremented, and the underlying capability's Close is only invoked
// once the last reference goes away, matching fork's sharing contract.
func (t *ProcTable) Close(p *Process, fd int) kerr.Errno {
	slot, errno := t.iotabSlot(p, fd)
	if errno != kerr.EOK {
		return errno
	}
	p.mu.Lock()
	cap := *slot
	*slot = nil
	p.mu.Unlock()
	if cap == nil {
		return kerr.EBADF
	}
	if rc, ok := cap.(interface{ Unref() bool }); ok {
		if !rc.Unref() {
			return kerr.EOK
		}
	}
	return cap.Close()
}

// Exec replaces p's address space with a freshly loaded image from
// cap and returns the loaded entry point. It does not itself transfer
// control to user mode: on success it returns entry to its caller. On
// failure p is left unmodified running its prior image, matching the
// "exec either fully replaces the process or fails cleanly" expectation.
func (t *ProcTable) Exec(p *Process, cap ioc.Capability, loader Loader) (entry uintptr, errno kerr.Errno) {
	newSpace := vm.NewSpace(t.pool, t.cfg)
	entry, errno = loader.Load(newSpace, cap)
	if errno != kerr.EOK {
		newSpace.Reclaim()
		return 0, errno
	}
	p.mu.Lock()
	old := p.Space
	p.Space = newSpace
	p.mu.Unlock()
	old.Reclaim()
	return entry, kerr.EOK
}

// Exit tears p down: its address space is reclaimed, every iotab slot
// is closed, its thread is considered terminated, and its parent is
// woken if blocked in Wait.
func (t *ProcTable) Exit(p *Process, status int) {
	for i := 0; i < t.cfg.NIotab && i < len(p.iotab); i++ {
		if p.iotab[i] != nil {
			t.Close(p, i)
		}
	}
	p.Space.Reclaim()

	p.mu.Lock()
	p.status = status
	p.exited = true
	p.mu.Unlock()

	select {
	case p.waitCh <- struct{}{}:
	default:
	}
}

// Wait blocks until any direct child of parent has exited, then
// removes it from the table and returns its pid and exit status. It
// reports ENOENT immediately if parent has no children.
func (t *ProcTable) Wait(parent *Process) (pid int, status int, errno kerr.Errno) {
	children := t.childrenOf(parent)
	if len(children) == 0 {
		return 0, 0, kerr.ENOENT
	}
	threads := make([]*sched.Thread, 0, len(children))
	byThread := make(map[*sched.Thread]*Process, len(children))
	for _, c := range children {
		if c.Thread != nil {
			threads = append(threads, c.Thread)
			byThread[c.Thread] = c
		}
	}
	var done *Process
	if len(threads) > 0 {
		finished := t.sched.JoinAny(threads)
		done = byThread[finished]
	} else {
		done = children[0]
		<-done.waitCh
	}

	done.mu.Lock()
	st := done.status
	done.mu.Unlock()

	if parent.Thread != nil && done.Thread != nil {
		parent.Thread.Accnt.Add(&done.Thread.Accnt)
	}

	t.mu.Lock()
	delete(t.procs, done.PID)
	t.mu.Unlock()

	return done.PID, st, kerr.EOK
}

func (t *ProcTable) childrenOf(parent *Process) []*Process {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []*Process
	for _, p := range t.procs {
		if p.Parent == parent {
			out = append(out, p)
		}
	}
	return out
}
