// Package fs implements the kernel's flat, non-hierarchical file
// system: a boot block of fixed-size directory entries, one inode per
// block with no indirection, and data blocks referenced directly from
// the inode. There is no free-map and no growth past what was
// allocated when the image was built.
//
// Grounded on the teacher's fs/super.go (the field-accessor style over
// a raw block, adapted here to the boot block and inode layouts) and
// ufs/ufs.go + mkfs/mkfs.go (the higher-level file-building idiom
// reused by cmd/mkfs).
package fs

import (
	"encoding/binary"

	"github.com/Veneto723/Illinux/blk"
)

const (
	// BlockSize is the on-disk block size, matching blk.BlockSize.
	BlockSize = blk.BlockSize
	// NameLen is the fixed width of a directory entry's name field.
	NameLen = 32
	// MaxDentries is the largest number of directory entries the boot
	// block can record.
	MaxDentries = 63
	// MaxInodeBlocks is the largest number of data-block pointers an
	// inode can hold.
	MaxInodeBlocks = 1023

	dentrySize = NameLen + 4 + 28 // name + inode index + reserved

	// bootHeaderSize is the fixed 64-byte boot-block header per spec
	// §6: num_dentry, num_inodes, num_data, then 52 bytes reserved,
	// leaving exactly MaxDentries*dentrySize bytes for the directory
	// (64 + 63*64 == BlockSize).
	bootHeaderSize = 64
)

// Dentry is one fixed-width directory entry.
type Dentry struct {
	Name  [NameLen]byte
	Inode uint32
}

func (d Dentry) name() string {
	i := 0
	for i < NameLen && d.Name[i] != 0 {
		i++
	}
	return string(d.Name[:i])
}

func decodeDentry(b []byte) Dentry {
	var d Dentry
	copy(d.Name[:], b[:NameLen])
	d.Inode = binary.LittleEndian.Uint32(b[NameLen:])
	return d
}

func encodeDentry(d Dentry) []byte {
	b := make([]byte, dentrySize)
	copy(b, d.Name[:])
	binary.LittleEndian.PutUint32(b[NameLen:], d.Inode)
	return b
}

// bootBlock is the on-disk layout of block 0: per spec §6, a
// {num_dentry, num_inodes, num_data} header plus reserved padding,
// followed by up to MaxDentries fixed-width entries. num_inodes/
// num_data record the image's inode-region and data-region block
// counts so a later Mount can recover the on-disk layout without any
// side-channel from the tool that built the image.
type bootBlock struct {
	NDentries uint32
	NumInodes uint32
	NumData   uint32
	Dentries  [MaxDentries]Dentry
}

func decodeBootBlock(b []byte) bootBlock {
	var bb bootBlock
	bb.NDentries = binary.LittleEndian.Uint32(b[0:4])
	bb.NumInodes = binary.LittleEndian.Uint32(b[4:8])
	bb.NumData = binary.LittleEndian.Uint32(b[8:12])
	off := bootHeaderSize
	for i := 0; i < MaxDentries; i++ {
		bb.Dentries[i] = decodeDentry(b[off : off+dentrySize])
		off += dentrySize
	}
	return bb
}

func encodeBootBlock(bb bootBlock) []byte {
	b := make([]byte, BlockSize)
	binary.LittleEndian.PutUint32(b[0:4], bb.NDentries)
	binary.LittleEndian.PutUint32(b[4:8], bb.NumInodes)
	binary.LittleEndian.PutUint32(b[8:12], bb.NumData)
	off := bootHeaderSize
	for i := 0; i < MaxDentries; i++ {
		copy(b[off:off+dentrySize], encodeDentry(bb.Dentries[i]))
		off += dentrySize
	}
	return b
}

// inode is the on-disk layout of one inode block: a byte length
// followed by up to MaxInodeBlocks direct block pointers. There is
// deliberately no indirect block: spec.md's Non-goals exclude file
// growth beyond what was allocated at image-build time, so no inode
// ever needs more direct pointers than fit in one block.
type inode struct {
	ByteLen int32
	Blocks  [MaxInodeBlocks]uint32
}

func decodeInode(b []byte) inode {
	var n inode
	n.ByteLen = int32(binary.LittleEndian.Uint32(b[:4]))
	off := 4
	for i := 0; i < MaxInodeBlocks; i++ {
		n.Blocks[i] = binary.LittleEndian.Uint32(b[off : off+4])
		off += 4
	}
	return n
}

func encodeInode(n inode) []byte {
	b := make([]byte, BlockSize)
	binary.LittleEndian.PutUint32(b[:4], uint32(n.ByteLen))
	off := 4
	for i := 0; i < MaxInodeBlocks; i++ {
		binary.LittleEndian.PutUint32(b[off:off+4], n.Blocks[i])
		off += 4
	}
	return b
}

// nblocks returns how many of an inode's direct pointers are
// populated, i.e. how many blocks the file occupies on disk.
func (n inode) nblocks() int {
	count := 0
	for _, b := range n.Blocks {
		if b == 0 {
			break
		}
		count++
	}
	return count
}
