// Package kfs is the virtual-filesystem boundary the core touches
// during exec, open/read/write/unlink syscalls, and process cwd
// resolution. The on-disk format and its transport belong to the
// filesystem driver; the core depends only on the Node interface
// below, implemented here by an in-memory tree.
package kfs

import (
	"riscvkernel/kdefs"
)

// NodeKind distinguishes the two node shapes the core ever touches.
type NodeKind int

const (
	KindFile NodeKind = iota
	KindDir
)

// DirEnt is one directory entry, returned by Readdir.
type DirEnt struct {
	Name string
	Kind NodeKind
}

// Node is the VFS node abstraction: read, write, lookup, readdir,
// mkdir, rmdir, unlink. The core never inspects a Node's concrete
// type; ksyscall and kproc hold only this interface.
type Node interface {
	Kind() NodeKind
	Size() uint64

	// Read copies up to len(dst) bytes starting at off into dst,
	// returning the number of bytes copied (less than len(dst) only at
	// EOF).
	Read(dst []byte, off uint64) (int, kdefs.Err_t)

	// Write copies src into the file starting at off, growing the file
	// if off+len(src) exceeds the current size.
	Write(src []byte, off uint64) (int, kdefs.Err_t)

	// Lookup resolves one path component within a directory node.
	Lookup(name string) (Node, kdefs.Err_t)

	// Readdir lists a directory node's entries in a stable order.
	Readdir() ([]DirEnt, kdefs.Err_t)

	// Mkdir creates a child directory.
	Mkdir(name string) (Node, kdefs.Err_t)

	// Rmdir removes an empty child directory.
	Rmdir(name string) kdefs.Err_t

	// Unlink removes a child file.
	Unlink(name string) kdefs.Err_t

	// Create creates a child file.
	Create(name string) (Node, kdefs.Err_t)
}
