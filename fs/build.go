package fs

import (
	"github.com/Veneto723/Illinux/kerr"
	"github.com/Veneto723/Illinux/util"
)

// Builder assembles a flat file system image in memory, the way
// cmd/mkfs uses it to lay out a boot block, an inode region, and a
// data region before writing the result out to a disk image. Grounded
// on the teacher's mkfs.go + ufs.Ufs_t.MkFile/Append, simplified to a
// single build pass since this file system never grows after mkfs.
type Builder struct {
	boot      bootBlock
	inodes    []inode
	nblocksOf []int // populated block-pointer count per inode; the
	// sentinel-scanning inode.nblocks() cannot be used here because
	// relative, not-yet-rebased block numbers legitimately start at 0.
	dataBlock []byte // concatenated data blocks, BlockSize each
}

// NewBuilder returns an empty image builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// AddFile stores data under name, returning an error if the name or
// file count exceeds the format's fixed limits, or if data needs more
// direct block pointers than an inode can hold.
func (b *Builder) AddFile(name string, data []byte) kerr.Errno {
	if len(name) == 0 || len(name) >= NameLen {
		return kerr.EINVAL
	}
	if int(b.boot.NDentries) >= MaxDentries {
		return kerr.EMFILE
	}
	nblocks := int(util.Roundup(len(data), BlockSize)) / BlockSize
	if nblocks > MaxInodeBlocks {
		return kerr.EINVAL
	}
	if nblocks == 0 {
		nblocks = 1 // every file occupies at least one data block
	}

	var n inode
	n.ByteLen = int32(len(data))
	firstDataBlock := len(b.dataBlock) / BlockSize
	for i := 0; i < nblocks; i++ {
		n.Blocks[i] = uint32(firstDataBlock + i) // relative; rebased in Finish
	}
	padded := make([]byte, nblocks*BlockSize)
	copy(padded, data)
	b.dataBlock = append(b.dataBlock, padded...)

	idx := uint32(len(b.inodes))
	b.inodes = append(b.inodes, n)
	b.nblocksOf = append(b.nblocksOf, nblocks)

	var d Dentry
	copy(d.Name[:], name)
	d.Inode = idx
	b.boot.Dentries[b.boot.NDentries] = d
	b.boot.NDentries++
	return kerr.EOK
}

// Image describes the finished layout: block-addressed regions ready
// to be written sequentially to a backing store starting at block 0.
type Image struct {
	Boot      []byte   // 1 block
	Inodes    [][]byte // numInodes blocks
	Data      [][]byte // data blocks
	InodeBase int64
	DataBase  int64
	NumInodes int64
}

// Finish rebases every inode's block pointers to absolute block
// numbers (boot block, then the inode region, then the data region)
// and returns the resulting image.
func (b *Builder) Finish() Image {
	inodeBase := int64(1)
	numInodes := int64(len(b.inodes))
	dataBase := inodeBase + numInodes
	numData := int64(len(b.dataBlock) / BlockSize)

	b.boot.NumInodes = uint32(numInodes)
	b.boot.NumData = uint32(numData)

	rebased := make([]inode, len(b.inodes))
	for i, n := range b.inodes {
		rn := n
		used := b.nblocksOf[i]
		for j := 0; j < used; j++ {
			rn.Blocks[j] = uint32(dataBase) + rn.Blocks[j]
		}
		rebased[i] = rn
	}

	inodeBlocks := make([][]byte, numInodes)
	for i, n := range rebased {
		inodeBlocks[i] = encodeInode(n)
	}

	dataBlocks := make([][]byte, len(b.dataBlock)/BlockSize)
	for i := range dataBlocks {
		dataBlocks[i] = b.dataBlock[i*BlockSize : (i+1)*BlockSize]
	}

	return Image{
		Boot:      encodeBootBlock(b.boot),
		Inodes:    inodeBlocks,
		Data:      dataBlocks,
		InodeBase: inodeBase,
		DataBase:  dataBase,
		NumInodes: numInodes,
	}
}
