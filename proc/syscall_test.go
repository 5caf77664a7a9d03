package proc

import (
	"testing"

	"github.com/Veneto723/Illinux/ioc"
	"github.com/Veneto723/Illinux/kerr"
	"github.com/Veneto723/Illinux/sched"
	"github.com/Veneto723/Illinux/vm"
)

type stubOpener struct{}

func (stubOpener) Open(d uint) (ioc.Capability, kerr.Errno) { return nil, kerr.ENOSYS }

type stubFSOpener struct{}

func (stubFSOpener) Open(name string) (ioc.Capability, kerr.Errno) { return nil, kerr.ENOSYS }

type stubLoader struct{}

func (stubLoader) Load(space *vm.Space, cap ioc.Capability) (uintptr, kerr.Errno) {
	return 0, kerr.ENOSYS
}

func TestDispatchBillsSyscallTimeAsSystem(t *testing.T) {
	procs, sc := testSetup(t)
	p := procs.CreateInit()
	p.Thread = sc.Spawn(func(*sched.Thread) {})
	sc.Join(p.Thread)

	table := NewSyscallTable(procs, stubOpener{}, stubFSOpener{}, stubLoader{},
		func(parent *Process) (*Process, kerr.Errno) { return nil, kerr.ENOSYS },
		func(parent *Process) (int, int, kerr.Errno) { return 0, 0, kerr.ENOSYS },
	)

	for i := 0; i < 1000; i++ {
		if _, errno := table.Dispatch(p, SysUsleep, Args{}); errno != kerr.EOK {
			t.Fatalf("usleep: %v", errno)
		}
	}
	_, sysns := p.Rusage()
	if sysns <= 0 {
		t.Fatalf("expected Dispatch to bill nonzero system time, got %d", sysns)
	}
}

func TestGetrusageIoctlDoesNotNeedAnFd(t *testing.T) {
	procs, sc := testSetup(t)
	p := procs.CreateInit()
	p.Thread = sc.Spawn(func(*sched.Thread) {})
	sc.Join(p.Thread)

	table := NewSyscallTable(procs, stubOpener{}, stubFSOpener{}, stubLoader{},
		func(parent *Process) (*Process, kerr.Errno) { return nil, kerr.ENOSYS },
		func(parent *Process) (int, int, kerr.Errno) { return 0, 0, kerr.ENOSYS },
	)

	// a.A0 is an arbitrary, never-opened fd: GETRUSAGE must not consult
	// the iotab at all.
	if _, errno := table.Dispatch(p, SysIoctl, Args{A0: 99, A1: ioc.IoctlGetRusage}); errno != kerr.EOK {
		t.Fatalf("getrusage: %v", errno)
	}
}

func TestWaitMergesChildAccountingIntoParent(t *testing.T) {
	procs, sc := testSetup(t)
	parent := procs.CreateInit()
	parent.Thread = sc.Spawn(func(*sched.Thread) {})
	sc.Join(parent.Thread)

	child, errno := procs.Fork(parent)
	if errno != kerr.EOK {
		t.Fatalf("fork: %v", errno)
	}
	child.Thread = sc.Spawn(func(*sched.Thread) {
		child.Thread.Accnt.Systadd(1_000_000)
		procs.Exit(child, 0)
	})

	if _, _, errno := procs.Wait(parent); errno != kerr.EOK {
		t.Fatalf("wait: %v", errno)
	}
	if _, sysns := parent.Rusage(); sysns < 1_000_000 {
		t.Fatalf("expected reaped child's system time merged into parent, got %d", sysns)
	}
}
