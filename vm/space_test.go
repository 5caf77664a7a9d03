package vm

import (
	"testing"

	"github.com/Veneto723/Illinux/config"
	"github.com/Veneto723/Illinux/mem"
)

func testSpace(t *testing.T) (*Space, *mem.Pool, config.Config) {
	t.Helper()
	cfg := config.Default()
	cfg.UserStart = 0
	cfg.UserEnd = 1 << 30
	pool := mem.NewPool(64)
	return NewSpace(pool, cfg), pool, cfg
}

func TestMapLookupUnmap(t *testing.T) {
	s, pool, _ := testSpace(t)
	frame, _ := pool.Alloc()
	s.Map(0x2000, frame, PermR|PermW|PermU)

	got, perm, ok := s.Lookup(0x2000)
	if !ok || got != frame {
		t.Fatalf("lookup failed: got=%d ok=%v", got, ok)
	}
	if !PermR.Has(perm) || !PermW.Has(perm) {
		t.Fatalf("perm wrong: %v", perm)
	}

	out, ok := s.Unmap(0x2000)
	if !ok || out != frame {
		t.Fatalf("unmap failed")
	}
	if _, _, ok := s.Lookup(0x2000); ok {
		t.Fatalf("expected unmapped")
	}
}

func TestWalkDeterminism(t *testing.T) {
	s, pool, _ := testSpace(t)
	f1, _ := pool.Alloc()
	s.Map(0x5000, f1, PermR|PermU)
	for i := 0; i < 10; i++ {
		got, _, ok := s.Lookup(0x5000)
		if !ok || got != f1 {
			t.Fatalf("walk not deterministic on iteration %d: got=%d ok=%v", i, got, ok)
		}
	}
}

func TestHandleFaultDemandPages(t *testing.T) {
	s, _, cfg := testSpace(t)
	va := cfg.UserStart + 0x1000
	s.HandleFault(va, FaultStore)
	frame, perm, ok := s.Lookup(va)
	if !ok {
		t.Fatal("expected page to be mapped after fault")
	}
	if !PermU.Has(perm) {
		t.Fatalf("expected user-accessible page, got %v", perm)
	}
	page := s.pool.At(frame)
	for _, b := range page {
		if b != 0 {
			t.Fatal("demand-paged frame must be zero-filled")
		}
	}
}

func TestHandleFaultInstructionIsFatal(t *testing.T) {
	s, _, cfg := testSpace(t)
	defer func() {
		if recover() == nil {
			t.Fatal("expected fatal panic on instruction fault")
		}
	}()
	s.HandleFault(cfg.UserStart, FaultInstruction)
}

func TestHandleFaultOutsideUserRangeIsFatal(t *testing.T) {
	s, _, cfg := testSpace(t)
	defer func() {
		if recover() == nil {
			t.Fatal("expected fatal panic outside user range")
		}
	}()
	s.HandleFault(cfg.UserEnd+0x1000, FaultLoad)
}

func TestReclaimIsolation(t *testing.T) {
	s, pool, cfg := testSpace(t)
	va := cfg.UserStart
	s.HandleFault(va, FaultStore)
	statsBefore := pool.Stats()
	s.Reclaim()
	statsAfter := pool.Stats()
	if statsAfter.Free <= statsBefore.Free {
		t.Fatalf("expected frames returned by reclaim: before=%+v after=%+v", statsBefore, statsAfter)
	}
}

func TestForkEquality(t *testing.T) {
	s, pool, cfg := testSpace(t)
	va := cfg.UserStart
	s.HandleFault(va, FaultStore)
	frame, _, _ := s.Lookup(va)
	pool.At(frame)[0] = 0xAB

	child := s.Fork()
	cframe, cperm, ok := child.Lookup(va)
	if !ok {
		t.Fatal("expected child to have the mapping")
	}
	if cframe == frame {
		t.Fatal("fork must not share the parent's frame")
	}
	if pool.At(cframe)[0] != 0xAB {
		t.Fatal("fork must copy page contents")
	}
	_, pperm, _ := s.Lookup(va)
	if pperm != cperm {
		t.Fatalf("fork must preserve permissions: parent=%v child=%v", pperm, cperm)
	}

	// Mutating the child's copy must not affect the parent.
	pool.At(cframe)[0] = 0xCD
	if pool.At(frame)[0] != 0xAB {
		t.Fatal("fork must not alias pages between address spaces")
	}
}

func TestValidatePtrBitwiseSubset(t *testing.T) {
	s, pool, _ := testSpace(t)
	frame, _ := pool.Alloc()
	s.Map(0x1000, frame, PermR|PermU)

	if s.ValidatePtr(0x1000, 1, PermW|PermU) {
		t.Fatal("read-only page must not satisfy a write requirement")
	}
	if !s.ValidatePtr(0x1000, 1, PermR|PermU) {
		t.Fatal("read-only page must satisfy a read requirement")
	}
}

func TestCopyInCopyOutRoundTrip(t *testing.T) {
	s, pool, _ := testSpace(t)
	frame, _ := pool.Alloc()
	s.Map(0x4000, frame, PermR|PermW|PermU)

	src := []byte("hello, sv39")
	if err := s.CopyOut(0x4000, src); err != nil {
		t.Fatalf("copyout: %v", err)
	}
	dst := make([]byte, len(src))
	if err := s.CopyIn(0x4000, dst); err != nil {
		t.Fatalf("copyin: %v", err)
	}
	if string(dst) != string(src) {
		t.Fatalf("round trip mismatch: got %q want %q", dst, src)
	}
}
