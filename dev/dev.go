// Package dev names the kernel's device numbers and resolves devopen
// requests to capabilities.
//
// Adapted from the teacher's defs/device.go (D_CONSOLE.. constants,
// Mkdev/Unmkdev major/minor packing).
package dev

import "github.com/Veneto723/Illinux/kerr"

// Device identifiers, unchanged from the teacher's numbering.
const (
	DConsole int = 1
	DSud         = 2
	DSus         = 3
	DNull        = 4
	DRawdisk     = 5
	DStat        = 6
	DProf        = 7
	DFirst       = DConsole
	DLast        = DProf
)

// Mkdev packs a major/minor pair into a single device identifier.
func Mkdev(maj, min int) uint {
	if min > 0xff {
		kerr.Fatal("dev: minor %d out of range", min)
	}
	m := uint(maj)<<8 | uint(min)
	return m << 32
}

// Unmkdev unpacks a device identifier into its major/minor pair.
func Unmkdev(d uint) (maj, min int) {
	return int(d >> 40), int(uint8(d >> 32))
}
