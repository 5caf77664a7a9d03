package main

import (
	"github.com/Veneto723/Illinux/kerr"
	"github.com/Veneto723/Illinux/proc"
	"github.com/Veneto723/Illinux/vm"
)

// Cause classifies a trap the way Sv39's scause CSR would: an
// ecall-from-U, one of the three page-fault kinds, or anything else
// this core treats as fatal rather than implementing (illegal
// instruction, misaligned access, and the supervisor-only causes).
type Cause int

const (
	CauseEcallU Cause = iota
	CauseFaultLoad
	CauseFaultStore
	CauseFaultInstruction
)

// Trap is the single entry point every trap a user thread takes is
// routed through: an ecall dispatches to the syscall table, a page
// fault goes to the faulting address space's handler, anything else
// halts the machine. This ties together the two dispatch paths
// (proc.SyscallTable.Dispatch and vm.Space.HandleFault) that otherwise
// have no caller wiring them to an actual trap.
type Trap struct {
	syscalls *proc.SyscallTable
}

// NewTrap returns a trap dispatcher backed by syscalls.
func NewTrap(syscalls *proc.SyscallTable) *Trap {
	return &Trap{syscalls: syscalls}
}

// Handle services one trap taken while running p. sysnum/args are only
// meaningful for CauseEcallU; va is only meaningful for the fault
// causes.
func (t *Trap) Handle(p *proc.Process, cause Cause, va uintptr, sysnum int, args proc.Args) (int, kerr.Errno) {
	switch cause {
	case CauseEcallU:
		return t.syscalls.Dispatch(p, sysnum, args)
	case CauseFaultLoad:
		p.Space.HandleFault(va, vm.FaultLoad)
		return 0, kerr.EOK
	case CauseFaultStore:
		p.Space.HandleFault(va, vm.FaultStore)
		return 0, kerr.EOK
	case CauseFaultInstruction:
		p.Space.HandleFault(va, vm.FaultInstruction)
		return 0, kerr.EOK
	default:
		kerr.Fatal("trap: unrecognized cause %d", cause)
		return 0, kerr.EINVAL
	}
}
