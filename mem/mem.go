// Package mem implements the kernel's physical page pool: a fixed set
// of 4 KiB frames handed out and reclaimed on a free list, with no
// reclamation of mapped pages under memory pressure. Exhaustion is
// fatal, per the kernel's non-goals around swapping.
package mem

import (
	"sync"

	"github.com/Veneto723/Illinux/kerr"
)

// PageSize is the size in bytes of a physical frame.
const PageSize = 4096

// Page is a single physical frame's backing storage.
type Page [PageSize]byte

// Pool is a free list of physical pages, grounded on the teacher's
// Physmem_t: each free frame's first 4 bytes hold the index of the
// next free frame, forming a singly linked LIFO list, so handing out a
// frame never needs to allocate bookkeeping storage of its own.
type Pool struct {
	mu     sync.Mutex
	frames []Page
	free   int32 // index of head of free list, -1 if empty
	nfree  int
}

const end = -1

// NewPool allocates n physical frames and links them all onto the free
// list.
func NewPool(n int) *Pool {
	p := &Pool{frames: make([]Page, n)}
	p.free = end
	for i := 0; i < n; i++ {
		p.pushFree(i)
	}
	return p
}

func (p *Pool) nextiOf(i int) int32 {
	return int32(le32(p.frames[i][:4]))
}

func (p *Pool) setNextiOf(i int, next int32) {
	putLe32(p.frames[i][:4], uint32(next))
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func putLe32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

// pushFree links frame i onto the head of the free list. Caller must
// hold mu.
func (p *Pool) pushFree(i int) {
	p.setNextiOf(i, p.free)
	p.free = int32(i)
	p.nfree++
}

// Alloc removes a frame from the free list, zeroes it, and returns its
// index together with a slice view of its bytes. It is fatal to call
// Alloc when the pool is exhausted: the kernel has no reclamation path.
func (p *Pool) Alloc() (int, []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.free == end {
		kerr.Fatal("mem: page pool exhausted")
	}
	i := int(p.free)
	p.free = p.nextiOf(i)
	p.nfree--
	for j := range p.frames[i] {
		p.frames[i][j] = 0
	}
	return i, p.frames[i][:]
}

// Free returns frame i to the pool. It is fatal to free an index twice
// in a row without an intervening Alloc, since that would corrupt the
// free list into a cycle.
func (p *Pool) Free(i int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i < 0 || i >= len(p.frames) {
		kerr.Fatal("mem: free of out-of-range frame %d", i)
	}
	if int32(i) == p.free {
		kerr.Fatal("mem: double free of frame %d", i)
	}
	p.pushFree(i)
}

// At returns a byte slice view of frame i's storage, without touching
// the free list. Callers must only use this on frames they currently
// own (i.e. have Alloc'd and not yet Freed).
func (p *Pool) At(i int) []byte {
	return p.frames[i][:]
}

// Stats is a point-in-time snapshot of pool occupancy, backing the
// D_STAT device.
type Stats struct {
	Total int
	Free  int
}

// Stats reports the current occupancy of the pool.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{Total: len(p.frames), Free: p.nfree}
}
