package proc

import (
	"time"

	"github.com/Veneto723/Illinux/ioc"
	"github.com/Veneto723/Illinux/kerr"
)

// Syscall numbers, matching the trap dispatcher's a7 register values.
const (
	SysExit = iota + 1
	SysMsgout
	SysDevopen
	SysFsopen
	SysClose
	SysRead
	SysWrite
	SysIoctl
	SysExec
	SysFork
	SysWait
	SysUsleep
	SysPioref
)

// Args is the three general-purpose argument registers (a0..a2) a
// syscall sees; its return value is what goes back in a0.
type Args struct {
	A0, A1, A2 int
}

// Handler services one syscall for p.
type Handler func(p *Process, a Args) (int, kerr.Errno)

// SyscallTable is the kernel's syscall dispatch table, indexed by the
// a7 value a trap handler decoded from an ecall-from-U.
type SyscallTable struct {
	handlers map[int]Handler
}

// DeviceOpener resolves a device number (per dev.Mkdev's scheme) to a
// capability, the collaborator devopen hands off to.
type DeviceOpener interface {
	Open(dev uint) (ioc.Capability, kerr.Errno)
}

// FSOpener resolves a file name to a capability, the collaborator
// fsopen hands off to.
type FSOpener interface {
	Open(name string) (ioc.Capability, kerr.Errno)
}

// ForkHook and WaitHook let the syscall table call back into a
// scheduler-aware fork/wait implementation without this file
// depending on the scheduler package directly: fork/wait need to also
// spawn or join the child's thread, which is orchestrated one layer up
// (see cmd/kernel).
type ForkHook func(parent *Process) (*Process, kerr.Errno)
type WaitHook func(parent *Process) (int, int, kerr.Errno)

// NewSyscallTable builds the full syscall table described by spec.md's
// ABI: exit, msgout, devopen, fsopen, close, read, write, ioctl, exec,
// fork, wait, usleep, and pioref (the §4.8 ref operation exposed as a
// syscall, since the ABI table names it without otherwise defining a
// contract for it).
func NewSyscallTable(procs *ProcTable, devices DeviceOpener, files FSOpener, loader Loader, fork ForkHook, wait WaitHook) *SyscallTable {
	t := &SyscallTable{handlers: make(map[int]Handler)}

	t.handlers[SysExit] = func(p *Process, a Args) (int, kerr.Errno) {
		procs.Exit(p, a.A0)
		return 0, kerr.EOK
	}
	t.handlers[SysMsgout] = func(p *Process, a Args) (int, kerr.Errno) {
		buf := make([]byte, a.A1)
		if err := p.Space.CopyIn(uintptr(a.A0), buf); err != nil {
			return 0, kerr.EINVAL
		}
		return len(buf), kerr.EOK
	}
	t.handlers[SysDevopen] = func(p *Process, a Args) (int, kerr.Errno) {
		cap, errno := devices.Open(uint(a.A0))
		if errno != kerr.EOK {
			return 0, errno
		}
		return procs.Assign(p, cap)
	}
	t.handlers[SysFsopen] = func(p *Process, a Args) (int, kerr.Errno) {
		namelen, ok := p.Space.ValidateStr(uintptr(a.A0), 256)
		if !ok {
			return 0, kerr.EINVAL
		}
		nameBuf := make([]byte, namelen)
		if err := p.Space.CopyIn(uintptr(a.A0), nameBuf); err != nil {
			return 0, kerr.EINVAL
		}
		cap, errno := files.Open(string(nameBuf))
		if errno != kerr.EOK {
			return 0, errno
		}
		return procs.Assign(p, cap)
	}
	t.handlers[SysClose] = func(p *Process, a Args) (int, kerr.Errno) {
		return 0, procs.Close(p, a.A0)
	}
	t.handlers[SysRead] = func(p *Process, a Args) (int, kerr.Errno) {
		cap, errno := getCap(procs, p, a.A0)
		if errno != kerr.EOK {
			return 0, errno
		}
		buf := make([]byte, a.A2)
		n, errno := cap.Read(buf)
		if errno != kerr.EOK {
			return 0, errno
		}
		if err := p.Space.CopyOut(uintptr(a.A1), buf[:n]); err != nil {
			return 0, kerr.EINVAL
		}
		return n, kerr.EOK
	}
	t.handlers[SysWrite] = func(p *Process, a Args) (int, kerr.Errno) {
		cap, errno := getCap(procs, p, a.A0)
		if errno != kerr.EOK {
			return 0, errno
		}
		buf := make([]byte, a.A2)
		if err := p.Space.CopyIn(uintptr(a.A1), buf); err != nil {
			return 0, kerr.EINVAL
		}
		return cap.Write(buf)
	}
	t.handlers[SysIoctl] = func(p *Process, a Args) (int, kerr.Errno) {
		if a.A1 == ioc.IoctlGetRusage {
			userns, sysns := p.Rusage()
			return int(userns + sysns), kerr.EOK
		}
		cap, errno := getCap(procs, p, a.A0)
		if errno != kerr.EOK {
			return 0, errno
		}
		return cap.Ioctl(a.A1, a.A2)
	}
	t.handlers[SysExec] = func(p *Process, a Args) (int, kerr.Errno) {
		cap, errno := getCap(procs, p, a.A0)
		if errno != kerr.EOK {
			return 0, errno
		}
		entry, errno := procs.Exec(p, cap, loader)
		if errno != kerr.EOK {
			return 0, errno
		}
		return int(entry), kerr.EOK
	}
	t.handlers[SysFork] = func(p *Process, a Args) (int, kerr.Errno) {
		child, errno := fork(p)
		if errno != kerr.EOK {
			return 0, errno
		}
		return child.PID, kerr.EOK
	}
	t.handlers[SysWait] = func(p *Process, a Args) (int, kerr.Errno) {
		pid, _, errno := wait(p)
		return pid, errno
	}
	t.handlers[SysUsleep] = func(p *Process, a Args) (int, kerr.Errno) {
		return 0, kerr.EOK
	}
	t.handlers[SysPioref] = func(p *Process, a Args) (int, kerr.Errno) {
		cap, errno := getCap(procs, p, a.A0)
		if errno != kerr.EOK {
			return 0, errno
		}
		if rc, ok := cap.(interface{ Ref() }); ok {
			rc.Ref()
			return 0, kerr.EOK
		}
		return 0, kerr.ENOSYS
	}

	return t
}

func getCap(procs *ProcTable, p *Process, fd int) (ioc.Capability, kerr.Errno) {
	slot, errno := procs.iotabSlot(p, fd)
	if errno != kerr.EOK {
		return nil, errno
	}
	p.mu.Lock()
	cap := *slot
	p.mu.Unlock()
	if cap == nil {
		return nil, kerr.EBADF
	}
	return cap, kerr.EOK
}

// Dispatch runs the handler registered for num, or returns ENOSYS if
// none is registered — the trap dispatcher's fallback for an
// unrecognized a7 value. The time spent inside the handler is billed
// to p's thread as system time, the hosted stand-in for the teacher's
// Accnt_t.Systadd call bracketing every syscall.
func (t *SyscallTable) Dispatch(p *Process, num int, a Args) (int, kerr.Errno) {
	h, ok := t.handlers[num]
	if !ok {
		return 0, kerr.ENOSYS
	}
	start := time.Now()
	ret, errno := h(p, a)
	if p.Thread != nil {
		p.Thread.Accnt.Systadd(time.Since(start).Nanoseconds())
	}
	return ret, errno
}
