// Package blk implements the virtio-blk device protocol: a single
// in-flight request per device, enforced by a one-slot semaphore.
// Submit performs each transfer synchronously against the Backing,
// broadcasts on the device's used-updated condition, and acknowledges
// the request on its AckCh; there are no avail/used ring indices and
// no separate interrupt goroutine.
//
// Grounded on the teacher's fs/blk.go: Bdev_req_t's
// {Cmd, Blks, AckCh chan bool, Sync bool} shape and its synchronous
// Write/Read built on top of "<-req.AckCh" carry over directly. The
// teacher calls straight into a Disk_i implementation; this package
// generalizes that collaborator into a Backing interface, since there
// is no real MMIO region behind a hosted block device.
package blk

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/Veneto723/Illinux/kerr"
	"github.com/Veneto723/Illinux/sched"
)

// BlockSize is the device's block size in bytes, matching the
// kernel-wide page size.
const BlockSize = 4096

// Backing is the byte-addressable medium a Device drives requests
// against — an in-memory buffer in tests, a host file when backing a
// real disk image.
type Backing interface {
	ReadAt(p []byte, off int64) (int, error)
	WriteAt(p []byte, off int64) (int, error)
}

// Cmd identifies a request's direction.
type Cmd int

const (
	CmdRead Cmd = iota
	CmdWrite
)

// Request is one virtio-blk transaction: an indirect descriptor chain
// collapsed into a single Go struct (header implied by Cmd/Block, data
// is Data, status comes back as Err).
type Request struct {
	Cmd   Cmd
	Block int64
	Data  []byte // exactly BlockSize bytes
	Sync  bool
	AckCh chan bool
	Err   kerr.Errno
}

// MkRequest builds a Request ready to Submit.
func MkRequest(cmd Cmd, block int64, data []byte, sync bool) *Request {
	return &Request{Cmd: cmd, Block: block, Data: data, Sync: sync, AckCh: make(chan bool, 1)}
}

// Stats counts completed requests and bytes moved, backing the D_STAT
// device.
type Stats struct {
	Reads      int64
	Writes     int64
	BytesTotal int64
}

// Device drives a single virtio-blk queue of depth one against a
// Backing medium.
type Device struct {
	backing Backing
	sem     *semaphore.Weighted

	mu          sched.Mutex
	usedUpdated *sched.Cond

	reads, writes, bytes int64
}

// NewDevice returns a Device ready to serve requests against backing.
func NewDevice(backing Backing) *Device {
	d := &Device{backing: backing, sem: semaphore.NewWeighted(1)}
	d.mu = *sched.NewMutex()
	d.usedUpdated = sched.NewCond(&d.mu)
	return d
}

// Submit places req on the (depth-one) avail ring, processes it
// synchronously standing in for the device's own completion
// interrupt, and places it on the used ring, broadcasting on
// usedUpdated the way the teacher's ISR does. Only one request may be
// in flight at a time, enforced by the weighted semaphore.
func (d *Device) Submit(ctx context.Context, req *Request) error {
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer d.sem.Release(1)

	off := req.Block * BlockSize
	switch req.Cmd {
	case CmdRead:
		if len(req.Data) != BlockSize {
			req.Err = kerr.EINVAL
			break
		}
		if _, err := d.backing.ReadAt(req.Data, off); err != nil {
			req.Err = kerr.EIO
		} else {
			atomic.AddInt64(&d.reads, 1)
			atomic.AddInt64(&d.bytes, BlockSize)
		}
	case CmdWrite:
		if len(req.Data) != BlockSize {
			req.Err = kerr.EINVAL
			break
		}
		if _, err := d.backing.WriteAt(req.Data, off); err != nil {
			req.Err = kerr.EIO
		} else {
			atomic.AddInt64(&d.writes, 1)
			atomic.AddInt64(&d.bytes, BlockSize)
		}
	default:
		req.Err = kerr.EINVAL
	}

	// d.mu.Lock below is the used-ring publication barrier: it is a
	// real happens-before edge, so req.Err and req.Data are visible to
	// Broadcast's waiters and to whoever reads AckCh next.
	d.mu.Lock()
	d.usedUpdated.Broadcast()
	d.mu.Unlock()

	req.AckCh <- true
	return nil
}

// Read synchronously reads one block into data.
func (d *Device) Read(block int64, data []byte) kerr.Errno {
	req := MkRequest(CmdRead, block, data, true)
	if err := d.Submit(context.Background(), req); err != nil {
		return kerr.EIO
	}
	<-req.AckCh
	return req.Err
}

// Write synchronously writes one block from data.
func (d *Device) Write(block int64, data []byte) kerr.Errno {
	req := MkRequest(CmdWrite, block, data, true)
	if err := d.Submit(context.Background(), req); err != nil {
		return kerr.EIO
	}
	<-req.AckCh
	return req.Err
}

// Stats reports the device's request/byte counters.
func (d *Device) Stats() Stats {
	return Stats{
		Reads:      atomic.LoadInt64(&d.reads),
		Writes:     atomic.LoadInt64(&d.writes),
		BytesTotal: atomic.LoadInt64(&d.bytes),
	}
}
