package dev

import (
	"github.com/Veneto723/Illinux/blk"
	"github.com/Veneto723/Illinux/fs"
	"github.com/Veneto723/Illinux/ioc"
	"github.com/Veneto723/Illinux/kerr"
	"github.com/Veneto723/Illinux/stat"
)

// Opener resolves devopen(dev) to a capability for the device numbers
// this core actually implements: D_RAWDISK, D_STAT, D_PROF, and
// D_NULL. D_CONSOLE/D_SUD/D_SUS are named by the teacher's numbering
// so device numbers stay stable across implementations, but console
// and socket I/O are not implemented here; requesting them reports
// ENOSYS rather than ENOENT so a caller
// can tell "known but unimplemented" from "bogus number".
type Opener struct {
	rawdisk  *blk.RawDisk
	registry *stat.Registry
}

// NewOpener builds the device table backing devopen: rawdisk serves
// D_RAWDISK and registry backs D_STAT/D_PROF.
func NewOpener(rawdisk *blk.RawDisk, registry *stat.Registry) *Opener {
	return &Opener{rawdisk: rawdisk, registry: registry}
}

// Open implements proc.DeviceOpener.
func (o *Opener) Open(d uint) (ioc.Capability, kerr.Errno) {
	maj, _ := Unmkdev(d)
	switch maj {
	case DRawdisk:
		o.rawdisk.Ref()
		return o.rawdisk, kerr.EOK
	case DStat:
		return stat.NewCap(o.registry), kerr.EOK
	case DProf:
		return stat.NewProfCap(o.registry), kerr.EOK
	case DNull:
		return nullCap{}, kerr.EOK
	case DConsole, DSud, DSus:
		return nil, kerr.ENOSYS
	default:
		return nil, kerr.ENOENT
	}
}

// nullCap is D_NULL: reads report EOF immediately, writes are
// silently discarded, the way /dev/null behaves everywhere.
type nullCap struct{}

func (nullCap) Close() kerr.Errno                  { return kerr.EOK }
func (nullCap) Read(p []byte) (int, kerr.Errno)    { return 0, kerr.EOK }
func (nullCap) Write(p []byte) (int, kerr.Errno)   { return len(p), kerr.EOK }
func (nullCap) Ioctl(op, arg int) (int, kerr.Errno) { return 0, kerr.ENOSYS }

// FSOpener adapts a mounted fs.FS to proc.FSOpener: fs.FS.Open returns
// a concrete *fs.File rather than the ioc.Capability interface, so
// this wrapper performs the (always-succeeding) interface conversion
// the syscall layer needs.
type FSOpener struct {
	FS *fs.FS
}

// Open implements proc.FSOpener.
func (o *FSOpener) Open(name string) (ioc.Capability, kerr.Errno) {
	f, errno := o.FS.Open(name)
	if errno != kerr.EOK {
		return nil, errno
	}
	return f, kerr.EOK
}
