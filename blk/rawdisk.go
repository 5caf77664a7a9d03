package blk

import (
	"sync"

	"github.com/Veneto723/Illinux/ioc"
	"github.com/Veneto723/Illinux/kerr"
)

// RawDisk exposes a Device as an ioc.Capability with a byte cursor,
// backing the D_RAWDISK device: reads and writes move the cursor by
// however many bytes were transferred, block-aligning internally.
type RawDisk struct {
	ioc.Refcounted
	dev     *Device
	nblocks int64
	mu      sync.Mutex
	pos     int64
}

// NewRawDisk wraps dev, which has nblocks addressable blocks, as a
// capability.
func NewRawDisk(dev *Device, nblocks int64) *RawDisk {
	return &RawDisk{Refcounted: ioc.NewRefcounted(), dev: dev, nblocks: nblocks}
}

func (r *RawDisk) Close() kerr.Errno { return kerr.EOK }

func (r *RawDisk) Read(p []byte) (int, kerr.Errno) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.xfer(p, false)
}

func (r *RawDisk) Write(p []byte) (int, kerr.Errno) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.xfer(p, true)
}

func (r *RawDisk) xfer(p []byte, write bool) (int, kerr.Errno) {
	total := 0
	buf := make([]byte, BlockSize)
	for total < len(p) {
		block := r.pos / BlockSize
		if block >= r.nblocks {
			break
		}
		boff := int(r.pos % BlockSize)
		n := len(p) - total
		if max := BlockSize - boff; n > max {
			n = max
		}
		if write {
			// Read-modify-write whenever the transfer doesn't cover a
			// whole block, so bytes outside [boff, boff+n) survive.
			if boff != 0 || n != BlockSize {
				if errno := r.dev.Read(block, buf); errno != kerr.EOK {
					return total, errno
				}
			}
			copy(buf[boff:boff+n], p[total:total+n])
			if errno := r.dev.Write(block, buf); errno != kerr.EOK {
				return total, errno
			}
		} else {
			if errno := r.dev.Read(block, buf); errno != kerr.EOK {
				return total, errno
			}
			copy(p[total:total+n], buf[boff:boff+n])
		}
		total += n
		r.pos += int64(n)
	}
	return total, kerr.EOK
}

func (r *RawDisk) Ioctl(op int, arg int) (int, kerr.Errno) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch op {
	case ioc.IoctlGetLen:
		return int(r.nblocks * BlockSize), kerr.EOK
	case ioc.IoctlGetPos:
		return int(r.pos), kerr.EOK
	case ioc.IoctlSetPos:
		if arg < 0 || int64(arg) > r.nblocks*BlockSize {
			return 0, kerr.EINVAL
		}
		r.pos = int64(arg)
		return 0, kerr.EOK
	case ioc.IoctlGetBlkSz:
		return BlockSize, kerr.EOK
	default:
		return 0, kerr.ENOSYS
	}
}
