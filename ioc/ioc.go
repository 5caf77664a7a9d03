// Package ioc defines the kernel's I/O capability: the single
// interface every open resource (a block device, a file, an in-memory
// literal) satisfies, plus the reference-counting embeddable struct
// fork shares across a parent and child's iotab.
//
// Grounded on the teacher's fd.Fd_t{Fops, Perms} plus Copyfd: a file
// descriptor there is a thin wrapper carrying an Fdops_i implementation
// and a refcount. This package generalizes that idea into a flat set of
// concrete capability kinds, per the kernel's explicit preference for a
// tagged union over an inheritance hierarchy.
package ioc

import (
	"sync/atomic"

	"github.com/Veneto723/Illinux/kerr"
)

// Capability is the uniform interface every open resource exposes to
// the syscall layer.
type Capability interface {
	Close() kerr.Errno
	Read(p []byte) (int, kerr.Errno)
	Write(p []byte) (int, kerr.Errno)
	Ioctl(op int, arg int) (int, kerr.Errno)
}

// Ioctl operation codes, shared across capability kinds that support
// them.
const (
	IoctlGetLen    = iota // byte length of the backing object
	IoctlGetPos           // current read/write cursor
	IoctlSetPos           // move the cursor
	IoctlGetBlkSz         // block size, for block devices
	IoctlGetRusage        // accumulated user+sys nanoseconds of the calling thread
)

// Refcounted is embedded by concrete capability kinds that are shared
// across a fork, giving them atomic Ref/Unref bookkeeping without each
// kind re-deriving it.
type Refcounted struct {
	refs int32
}

// Ref increments the reference count, as fork does when it duplicates
// an iotab slot into the child process.
func (r *Refcounted) Ref() {
	atomic.AddInt32(&r.refs, 1)
}

// Unref decrements the reference count and reports whether this was
// the last reference, signalling the caller that the underlying
// resource should now actually be released.
func (r *Refcounted) Unref() bool {
	return atomic.AddInt32(&r.refs, -1) == 0
}

// Count returns the current reference count, chiefly for tests
// asserting fork's refcount-bump behavior.
func (r *Refcounted) Count() int32 {
	return atomic.LoadInt32(&r.refs)
}

// NewRefcounted returns a Refcounted starting at one reference, the way
// a freshly opened descriptor begins with exactly one owner.
func NewRefcounted() Refcounted {
	return Refcounted{refs: 1}
}
