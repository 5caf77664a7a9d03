package main

import (
	"github.com/Veneto723/Illinux/config"
	"github.com/Veneto723/Illinux/ioc"
	"github.com/Veneto723/Illinux/kerr"
	"github.com/Veneto723/Illinux/vm"
)

// flatLoader loads a program image as a flat sequence of bytes mapped
// read/write/execute/user starting at cfg.UserStart — there is no ELF
// parsing or user C runtime here, matching spec.md's explicit
// Non-goal; a real loader would replace just this one type.
type flatLoader struct {
	cfg config.Config
}

func (l flatLoader) Load(space *vm.Space, cap ioc.Capability) (uintptr, kerr.Errno) {
	const chunk = 4096
	buf := make([]byte, chunk)
	va := l.cfg.UserStart
	for {
		n, errno := cap.Read(buf)
		if errno != kerr.EOK {
			return 0, errno
		}
		if n == 0 {
			break
		}
		space.HandleFault(va, vm.FaultStore)
		if err := space.CopyOut(va, buf[:n]); err != nil {
			return 0, kerr.EINVAL
		}
		if frame, ok := space.Unmap(va); ok {
			space.Map(va, frame, vm.PermR|vm.PermW|vm.PermX|vm.PermU)
		}
		if n < chunk {
			break
		}
		va += chunk
	}
	return l.cfg.UserStart, kerr.EOK
}
