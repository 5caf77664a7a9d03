package fs

import (
	"sync"

	"github.com/Veneto723/Illinux/blk"
	"github.com/Veneto723/Illinux/ioc"
	"github.com/Veneto723/Illinux/kerr"
	"github.com/Veneto723/Illinux/sched"
)

// FS is a mounted flat file system. Per spec, all inode I/O is
// serialized behind one global sleep lock and funneled through a
// single shared inode buffer, rather than each open file keeping its
// own: this is deliberately conservative (no per-inode locking, no
// read sharing for concurrent lookups) and is documented as such
// rather than "fixed," since loosening it is outside this core's
// scope.
type FS struct {
	dev *blk.Device

	lock      sched.Mutex
	inodeBase int64 // first block holding an inode
	numInodes int64
	dataBase  int64 // first block available for file data

	boot bootBlock

	// inodeBuf is the single buffer every inode read or write goes
	// through, serialized by lock.
	inodeBuf [BlockSize]byte
}

// Mount reads the boot block from dev and returns a handle to the
// mounted file system. The inode-region and data-region layout
// (inodeBase is always block 1; numInodes/dataBase follow from the
// boot block's num_inodes field per spec §6) is recovered entirely
// from the on-disk boot block cmd/mkfs wrote, so mounting an image
// needs no side-channel describing how it was built.
func Mount(dev *blk.Device) (*FS, kerr.Errno) {
	var raw [BlockSize]byte
	if errno := dev.Read(0, raw[:]); errno != kerr.EOK {
		return nil, errno
	}
	boot := decodeBootBlock(raw[:])
	inodeBase := int64(1)
	numInodes := int64(boot.NumInodes)
	f := &FS{
		dev:       dev,
		lock:      *sched.NewMutex(),
		inodeBase: inodeBase,
		numInodes: numInodes,
		dataBase:  inodeBase + numInodes,
		boot:      boot,
	}
	return f, kerr.EOK
}

// readInode loads inode idx through the shared buffer and returns a
// decoded copy, safe for the caller to use after the lock is released.
func (f *FS) readInode(idx uint32) (inode, kerr.Errno) {
	if int64(idx) >= f.numInodes {
		return inode{}, kerr.EINVAL
	}
	f.lock.Lock()
	defer f.lock.Unlock()
	if errno := f.dev.Read(f.inodeBase+int64(idx), f.inodeBuf[:]); errno != kerr.EOK {
		return inode{}, errno
	}
	return decodeInode(f.inodeBuf[:]), kerr.EOK
}

func (f *FS) writeInode(idx uint32, n inode) kerr.Errno {
	if int64(idx) >= f.numInodes {
		return kerr.EINVAL
	}
	f.lock.Lock()
	defer f.lock.Unlock()
	copy(f.inodeBuf[:], encodeInode(n))
	return f.dev.Write(f.inodeBase+int64(idx), f.inodeBuf[:])
}

// lookup scans the boot block's directory entries for name. Per
// spec's Non-goal of hierarchical directories, this is always a flat,
// linear scan over at most MaxDentries entries — no hash table is
// warranted at this size.
func (f *FS) lookup(name string) (uint32, bool) {
	f.lock.Lock()
	defer f.lock.Unlock()
	for i := uint32(0); i < f.boot.NDentries; i++ {
		if f.boot.Dentries[i].name() == name {
			return f.boot.Dentries[i].Inode, true
		}
	}
	return 0, false
}

// Stat reports a file's fixed byte length and on-disk block count.
func (f *FS) Stat(name string) (size int64, nblocks int, errno kerr.Errno) {
	idx, ok := f.lookup(name)
	if !ok {
		return 0, 0, kerr.ENOENT
	}
	n, errno := f.readInode(idx)
	if errno != kerr.EOK {
		return 0, 0, errno
	}
	return int64(n.ByteLen), n.nblocks(), kerr.EOK
}

// Open returns a File capability for name. file_size is fixed to the
// byte length recorded in the inode at Open time for the lifetime of
// the returned File: writes never extend it, per this core's
// resolution of the on-disk format's lack of an extension mechanism.
func (f *FS) Open(name string) (*File, kerr.Errno) {
	idx, ok := f.lookup(name)
	if !ok {
		return nil, kerr.ENOENT
	}
	n, errno := f.readInode(idx)
	if errno != kerr.EOK {
		return nil, errno
	}
	return &File{
		Refcounted: ioc.NewRefcounted(),
		fs:         f,
		inodeIdx:   idx,
		byteLen:    int64(n.ByteLen),
		blocks:     n.Blocks,
		nblocks:    n.nblocks(),
	}, kerr.EOK
}

// File is an open regular file: an ioc.Capability over a fixed region
// of the inode's direct block list.
type File struct {
	ioc.Refcounted
	fs       *FS
	inodeIdx uint32
	byteLen  int64
	blocks   [MaxInodeBlocks]uint32
	nblocks  int

	mu  sync.Mutex
	pos int64
}

func (f *File) Close() kerr.Errno { return kerr.EOK }

func (f *File) Read(p []byte) (int, kerr.Errno) {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for total < len(p) && f.pos < f.byteLen {
		blockIdx := int(f.pos / BlockSize)
		if blockIdx >= f.nblocks {
			break
		}
		boff := int(f.pos % BlockSize)
		n := len(p) - total
		if max := BlockSize - boff; n > max {
			n = max
		}
		if remain := int(f.byteLen - f.pos); n > remain {
			n = remain
		}
		var buf [BlockSize]byte
		if errno := f.fs.dev.Read(int64(f.blocks[blockIdx]), buf[:]); errno != kerr.EOK {
			return total, errno
		}
		copy(p[total:total+n], buf[boff:boff+n])
		total += n
		f.pos += int64(n)
	}
	return total, kerr.EOK
}

// Write copies p into the file at the current cursor. It never
// extends the file past byteLen or past the already-allocated block
// count, matching the Open Question resolution recorded in DESIGN.md:
// the on-disk format has no room to persist a grown size, so a write
// that would cross either boundary is truncated rather than failed,
// mirroring how Read truncates at end-of-file.
func (f *File) Write(p []byte) (int, kerr.Errno) {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for total < len(p) && f.pos < f.byteLen {
		blockIdx := int(f.pos / BlockSize)
		if blockIdx >= f.nblocks {
			break
		}
		boff := int(f.pos % BlockSize)
		n := len(p) - total
		if max := BlockSize - boff; n > max {
			n = max
		}
		if remain := int(f.byteLen - f.pos); n > remain {
			n = remain
		}
		var buf [BlockSize]byte
		if boff != 0 || n != BlockSize {
			if errno := f.fs.dev.Read(int64(f.blocks[blockIdx]), buf[:]); errno != kerr.EOK {
				return total, errno
			}
		}
		copy(buf[boff:boff+n], p[total:total+n])
		if errno := f.fs.dev.Write(int64(f.blocks[blockIdx]), buf[:]); errno != kerr.EOK {
			return total, errno
		}
		total += n
		f.pos += int64(n)
	}
	return total, kerr.EOK
}

func (f *File) Ioctl(op int, arg int) (int, kerr.Errno) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch op {
	case ioc.IoctlGetLen:
		return int(f.byteLen), kerr.EOK
	case ioc.IoctlGetPos:
		return int(f.pos), kerr.EOK
	case ioc.IoctlSetPos:
		if arg < 0 || int64(arg) > f.byteLen {
			return 0, kerr.EINVAL
		}
		f.pos = int64(arg)
		return 0, kerr.EOK
	case ioc.IoctlGetBlkSz:
		return BlockSize, kerr.EOK
	default:
		return 0, kerr.ENOSYS
	}
}
