package kproc

import (
	"riscvkernel/kdefs"
	"riscvkernel/kfs"
	"riscvkernel/kipc"
)

// File-descriptor permission bits.
const (
	FD_READ    = 0x1
	FD_WRITE   = 0x2
	FD_CLOEXEC = 0x4
)

// openFile is the refcounted object an Fd_t points at. Two kinds
// exist: a VFS node or a pipe end. With only two file shapes, a kind
// tag is clearer than a dispatch interface.
type openFile struct {
	node    kfs.Node
	pipe    *kipc.Pipe_t
	isWrite bool // valid only when pipe != nil: which end this ref is

	offset   uint64
	refcount int
}

// Fd_t is one entry in a process's file-descriptor table.
type Fd_t struct {
	file  *openFile
	Perms int
}

// OpenNode wraps a freshly looked-up VFS node as a new fd with refcount
// 1.
func OpenNode(n kfs.Node, perms int) *Fd_t {
	return &Fd_t{file: &openFile{node: n, refcount: 1}, Perms: perms}
}

// OpenPipeEnd wraps one end of a pipe as a new fd with refcount 1.
func OpenPipeEnd(p *kipc.Pipe_t, isWrite bool, perms int) *Fd_t {
	return &Fd_t{file: &openFile{pipe: p, isWrite: isWrite, refcount: 1}, Perms: perms}
}

// Copyfd duplicates fd by bumping the shared openFile's refcount
// rather than reopening the underlying file; fork uses it to share fd
// state between parent and child.
func Copyfd(fd *Fd_t) *Fd_t {
	fd.file.refcount++
	return &Fd_t{file: fd.file, Perms: fd.Perms}
}

// Read dispatches to the underlying node or pipe end.
func (fd *Fd_t) Read(self kipc.Sleeper, sched kipc.Sched, dst []byte) (int, kdefs.Err_t) {
	if fd.file.pipe != nil {
		return fd.file.pipe.Read(self, sched, dst)
	}
	n, err := fd.file.node.Read(dst, fd.file.offset)
	if err == 0 {
		fd.file.offset += uint64(n)
	}
	return n, err
}

// Write dispatches to the underlying node or pipe end.
func (fd *Fd_t) Write(self kipc.Sleeper, sched kipc.Sched, sender kipc.SignalSender, src []byte) (int, kdefs.Err_t) {
	if fd.file.pipe != nil {
		return fd.file.pipe.Write(self, sched, sender, src)
	}
	n, err := fd.file.node.Write(src, fd.file.offset)
	if err == 0 {
		fd.file.offset += uint64(n)
	}
	return n, err
}

// Lseek repositions a non-pipe fd's cursor. Pipes are not seekable.
func (fd *Fd_t) Lseek(off int64, whence int) (uint64, kdefs.Err_t) {
	if fd.file.pipe != nil {
		return 0, kdefs.EINVAL
	}
	var base uint64
	switch whence {
	case SeekSet:
		base = 0
	case SeekCur:
		base = fd.file.offset
	case SeekEnd:
		base = fd.file.node.Size()
	default:
		return 0, kdefs.EINVAL
	}
	newOff := int64(base) + off
	if newOff < 0 {
		return 0, kdefs.EINVAL
	}
	fd.file.offset = uint64(newOff)
	return fd.file.offset, 0
}

// Seek whence values.
const (
	SeekSet = 0
	SeekCur = 1
	SeekEnd = 2
)

// ClosePanic closes fd, decrementing the shared refcount and releasing
// the pipe end or node reference at zero. There is no failure path once
// the refcount reaches zero; the one condition worth flagging loudly is
// an already-closed fd, which is a caller bug.
func (fd *Fd_t) ClosePanic(sched kipc.Sched) {
	if fd.file.refcount <= 0 {
		panic("double close of file descriptor")
	}
	fd.file.refcount--
	if fd.file.refcount > 0 {
		return
	}
	if fd.file.pipe == nil {
		return
	}
	if fd.file.isWrite {
		fd.file.pipe.CloseWrite(sched)
	} else {
		fd.file.pipe.CloseRead(sched)
	}
}

// Offset returns the fd's current byte cursor, reused by getdents as a
// directory-entry index (offset / kfs.DirEntSize) so repeated calls
// resume where the last one left off.
func (fd *Fd_t) Offset() uint64 { return fd.file.offset }

// Advance moves the fd's cursor forward by n bytes.
func (fd *Fd_t) Advance(n uint64) { fd.file.offset += n }

// Node returns the fd's underlying VFS node, if it is not a pipe end.
func (fd *Fd_t) Node() (kfs.Node, bool) {
	if fd.file.pipe != nil {
		return nil, false
	}
	return fd.file.node, true
}

// IsPipe reports whether fd refers to a pipe end rather than a VFS node.
func (fd *Fd_t) IsPipe() bool { return fd.file.pipe != nil }

// AllocFD installs fd in the first free slot of p's file-descriptor
// table, returning ENOMEM if the table is full.
func (p *Proc_t) AllocFD(fd *Fd_t) (kdefs.Fd_t, kdefs.Err_t) {
	for i, slot := range p.Fds {
		if slot == nil {
			p.Fds[i] = fd
			return kdefs.Fd_t(i), 0
		}
	}
	return -1, kdefs.ENOMEM
}

// GetFD returns the open Fd_t at num, or EBADF if the slot is empty or
// out of range.
func (p *Proc_t) GetFD(num kdefs.Fd_t) (*Fd_t, kdefs.Err_t) {
	if num < 0 || int(num) >= len(p.Fds) || p.Fds[num] == nil {
		return nil, kdefs.EBADF
	}
	return p.Fds[num], 0
}

// CloseFD closes and clears the fd table slot at num.
func (p *Proc_t) CloseFD(num kdefs.Fd_t, sched kipc.Sched) kdefs.Err_t {
	fd, err := p.GetFD(num)
	if err != 0 {
		return err
	}
	fd.ClosePanic(sched)
	p.Fds[num] = nil
	return 0
}

// Cwd_t tracks a process's current working directory as a canonical
// absolute path plus the root it resolves against.
type Cwd_t struct {
	Root kfs.Node // filesystem root, resolved against for absolute paths
	Path string   // canonical absolute path, e.g. "/"
}

// MkRootCwd constructs a Cwd_t rooted at "/".
func MkRootCwd(root kfs.Node) *Cwd_t {
	return &Cwd_t{Root: root, Path: "/"}
}

// Fullpath joins cwd with p if p is not already absolute.
func (c *Cwd_t) Fullpath(p string) string {
	if len(p) > 0 && p[0] == '/' {
		return p
	}
	if c.Path == "/" {
		return "/" + p
	}
	return c.Path + "/" + p
}
