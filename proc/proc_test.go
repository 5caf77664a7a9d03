package proc

import (
	"testing"

	"github.com/Veneto723/Illinux/config"
	"github.com/Veneto723/Illinux/ioc"
	"github.com/Veneto723/Illinux/kerr"
	"github.com/Veneto723/Illinux/mem"
	"github.com/Veneto723/Illinux/sched"
	"github.com/Veneto723/Illinux/vm"
)

func testSetup(t *testing.T) (*ProcTable, *sched.Scheduler) {
	t.Helper()
	cfg := config.Default()
	cfg.UserStart = 0
	cfg.UserEnd = 1 << 30
	pool := mem.NewPool(256)
	sc := sched.NewScheduler()
	return NewTable(cfg, pool, sc), sc
}

func TestForkSharesIotabWithBumpedRefcount(t *testing.T) {
	procs, _ := testSetup(t)
	parent := procs.CreateInit()

	lit := ioc.NewLiteral([]byte("hi"))
	fd, errno := procs.Assign(parent, lit)
	if errno != kerr.EOK {
		t.Fatalf("assign: %v", errno)
	}

	child, errno := procs.Fork(parent)
	if errno != kerr.EOK {
		t.Fatalf("fork: %v", errno)
	}
	if lit.Count() != 2 {
		t.Fatalf("expected refcount 2 after fork, got %d", lit.Count())
	}
	if child.PID == parent.PID {
		t.Fatal("child must have a distinct pid")
	}

	// Closing the fd in one process must not release the capability
	// while the other still references it.
	if errno := procs.Close(parent, fd); errno != kerr.EOK {
		t.Fatalf("close: %v", errno)
	}
	if lit.Count() != 1 {
		t.Fatalf("expected refcount 1 after one close, got %d", lit.Count())
	}
}

func TestForkAddressSpaceEquality(t *testing.T) {
	procs, _ := testSetup(t)
	parent := procs.CreateInit()
	parent.Space.HandleFault(0x1000, vm.FaultStore)

	child, errno := procs.Fork(parent)
	if errno != kerr.EOK {
		t.Fatalf("fork: %v", errno)
	}
	pf, _, pok := parent.Space.Lookup(0x1000)
	cf, _, cok := child.Space.Lookup(0x1000)
	if !pok || !cok {
		t.Fatal("expected mapping present in both spaces")
	}
	if pf == cf {
		t.Fatal("child must not alias parent's frame")
	}
}

func TestExitReclaimsAndClosesIotab(t *testing.T) {
	procs, _ := testSetup(t)
	parent := procs.CreateInit()
	lit := ioc.NewLiteral(nil)
	procs.Assign(parent, lit)

	procs.Exit(parent, 7)
	if lit.Count() != 0 {
		t.Fatalf("expected capability released on exit, got refcount %d", lit.Count())
	}
}

func TestWaitReturnsExitStatus(t *testing.T) {
	procs, sc := testSetup(t)
	parent := procs.CreateInit()
	child, errno := procs.Fork(parent)
	if errno != kerr.EOK {
		t.Fatalf("fork: %v", errno)
	}
	child.Thread = sc.Spawn(func(th *sched.Thread) {
		procs.Exit(child, 42)
	})

	pid, status, errno := procs.Wait(parent)
	if errno != kerr.EOK {
		t.Fatalf("wait: %v", errno)
	}
	if pid != child.PID || status != 42 {
		t.Fatalf("got pid=%d status=%d, want pid=%d status=42", pid, status, child.PID)
	}
}

func TestWaitWithNoChildrenIsNotFound(t *testing.T) {
	procs, _ := testSetup(t)
	parent := procs.CreateInit()
	if _, _, errno := procs.Wait(parent); errno != kerr.ENOENT {
		t.Fatalf("expected ENOENT, got %v", errno)
	}
}
