// Command mkfs builds a flat file-system disk image from a host
// directory of files.
//
// Adapted from the teacher's mkfs/mkfs.go (addfiles/copydata walking a
// skeleton directory into a fresh ufs.Ufs_t), flattened: this file
// system has no directories, so a directory tree on the host is
// flattened into its regular files, named by their path relative to
// the root with path separators replaced — matching spec.md's explicit
// Non-goal of hierarchical directories.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Veneto723/Illinux/fs"
)

func flattenName(root, path string) string {
	rel := strings.TrimPrefix(strings.TrimPrefix(path, root), string(filepath.Separator))
	return strings.ReplaceAll(rel, string(filepath.Separator), "_")
}

func addFiles(b *fs.Builder, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := flattenName(root, path)
		if name == "" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if errno := b.AddFile(name, data); errno != 0 {
			return fmt.Errorf("add %s: errno %d", name, errno)
		}
		return nil
	})
}

func writeImage(out string, img fs.Image) error {
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()

	for _, blk := range [][]byte{img.Boot} {
		if _, err := f.Write(blk); err != nil {
			return err
		}
	}
	for _, blk := range img.Inodes {
		if _, err := f.Write(blk); err != nil {
			return err
		}
	}
	for _, blk := range img.Data {
		if _, err := f.Write(blk); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "usage: mkfs <output image> <skeleton dir>")
		os.Exit(1)
	}
	outPath, skelDir := os.Args[1], os.Args[2]

	b := fs.NewBuilder()
	if err := addFiles(b, skelDir); err != nil {
		fmt.Fprintf(os.Stderr, "mkfs: %v\n", err)
		os.Exit(1)
	}
	img := b.Finish()

	if err := writeImage(outPath, img); err != nil {
		fmt.Fprintf(os.Stderr, "mkfs: write %s: %v\n", outPath, err)
		os.Exit(1)
	}

	fmt.Printf("mkfs: wrote %s: %d inodes, %d data blocks\n", outPath, img.NumInodes, len(img.Data))
}
