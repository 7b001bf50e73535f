package ksyscall

import (
	"riscvkernel/kdefs"
	"riscvkernel/kfs"
	"riscvkernel/kipc"
	"riscvkernel/kproc"
	"riscvkernel/kvm"
)

func sysWrite(env *Env, p *kproc.Proc_t, sum *kvm.SUMToken) (uint64, kdefs.Err_t) {
	fd, err := p.GetFD(kdefs.Fd_t(p.Tf.Arg(0)))
	if err != 0 {
		return 0, err
	}
	n := p.Tf.Arg(2)
	buf := make([]byte, n)
	if err := sum.CopyIn(p.Tf.Arg(1), buf); err != 0 {
		return 0, err
	}
	written, err := fd.Write(p, env.Sched, p, buf)
	return uint64(written), err
}

func sysRead(env *Env, p *kproc.Proc_t, sum *kvm.SUMToken) (uint64, kdefs.Err_t) {
	fd, err := p.GetFD(kdefs.Fd_t(p.Tf.Arg(0)))
	if err != 0 {
		return 0, err
	}
	n := p.Tf.Arg(2)
	buf := make([]byte, n)
	got, err := fd.Read(p, env.Sched, buf)
	if err != 0 {
		return 0, err
	}
	if err := sum.CopyOut(p.Tf.Arg(1), buf[:got]); err != 0 {
		return 0, err
	}
	return uint64(got), 0
}

func sysOpen(env *Env, p *kproc.Proc_t, sum *kvm.SUMToken) (uint64, kdefs.Err_t) {
	path, err := copyInCString(p, sum, p.Tf.Arg(0), maxPathLen)
	if err != 0 {
		return 0, err
	}
	flags := int(p.Tf.Arg(1))
	full := p.Cwd.Fullpath(path)

	node, rerr := kfs.Resolve(p.Cwd.Root, full)
	if rerr == kdefs.ENOENT && flags&O_CREAT != 0 {
		parent, name, perr := kfs.ResolveParent(p.Cwd.Root, full)
		if perr != 0 {
			return 0, perr
		}
		n, cerr := parent.Create(name)
		if cerr != 0 {
			return 0, cerr
		}
		node, rerr = n, 0
	}
	if rerr != 0 {
		return 0, rerr
	}

	perms := 0
	switch flags & 0x3 {
	case O_RDONLY:
		perms = kproc.FD_READ
	case O_WRONLY:
		perms = kproc.FD_WRITE
	case O_RDWR:
		perms = kproc.FD_READ | kproc.FD_WRITE
	}
	num, aerr := p.AllocFD(kproc.OpenNode(node, perms))
	return uint64(num), aerr
}

func sysClose(env *Env, p *kproc.Proc_t, sum *kvm.SUMToken) (uint64, kdefs.Err_t) {
	return 0, p.CloseFD(kdefs.Fd_t(p.Tf.Arg(0)), env.Sched)
}

func sysLseek(env *Env, p *kproc.Proc_t, sum *kvm.SUMToken) (uint64, kdefs.Err_t) {
	fd, err := p.GetFD(kdefs.Fd_t(p.Tf.Arg(0)))
	if err != 0 {
		return 0, err
	}
	off, err := fd.Lseek(int64(p.Tf.Arg(1)), int(p.Tf.Arg(2)))
	return off, err
}

func statNode(n kfs.Node) []byte {
	var st kdefs.Stat_t
	if n.Kind() == kfs.KindDir {
		st.Wmode(kdefs.S_IFDIR)
	} else {
		st.Wmode(kdefs.S_IFREG)
	}
	st.Wsize(uint32(n.Size()))
	return st.Bytes()
}

func sysStat(env *Env, p *kproc.Proc_t, sum *kvm.SUMToken) (uint64, kdefs.Err_t) {
	path, err := copyInCString(p, sum, p.Tf.Arg(0), maxPathLen)
	if err != 0 {
		return 0, err
	}
	node, err := kfs.Resolve(p.Cwd.Root, p.Cwd.Fullpath(path))
	if err != 0 {
		return 0, err
	}
	if err := sum.CopyOut(p.Tf.Arg(1), statNode(node)); err != 0 {
		return 0, err
	}
	return 0, 0
}

func sysMkdir(env *Env, p *kproc.Proc_t, sum *kvm.SUMToken) (uint64, kdefs.Err_t) {
	path, err := copyInCString(p, sum, p.Tf.Arg(0), maxPathLen)
	if err != 0 {
		return 0, err
	}
	parent, name, err := kfs.ResolveParent(p.Cwd.Root, p.Cwd.Fullpath(path))
	if err != 0 {
		return 0, err
	}
	_, err = parent.Mkdir(name)
	return 0, err
}

func sysRmdir(env *Env, p *kproc.Proc_t, sum *kvm.SUMToken) (uint64, kdefs.Err_t) {
	path, err := copyInCString(p, sum, p.Tf.Arg(0), maxPathLen)
	if err != 0 {
		return 0, err
	}
	parent, name, err := kfs.ResolveParent(p.Cwd.Root, p.Cwd.Fullpath(path))
	if err != 0 {
		return 0, err
	}
	return 0, parent.Rmdir(name)
}

func sysUnlink(env *Env, p *kproc.Proc_t, sum *kvm.SUMToken) (uint64, kdefs.Err_t) {
	path, err := copyInCString(p, sum, p.Tf.Arg(0), maxPathLen)
	if err != 0 {
		return 0, err
	}
	parent, name, err := kfs.ResolveParent(p.Cwd.Root, p.Cwd.Fullpath(path))
	if err != 0 {
		return 0, err
	}
	return 0, parent.Unlink(name)
}

func sysGetdents(env *Env, p *kproc.Proc_t, sum *kvm.SUMToken) (uint64, kdefs.Err_t) {
	fd, err := p.GetFD(kdefs.Fd_t(p.Tf.Arg(0)))
	if err != 0 {
		return 0, err
	}
	node, ok := fd.Node()
	if !ok {
		return 0, kdefs.EBADF
	}
	if node.Kind() != kfs.KindDir {
		return 0, kdefs.ENOTDIR
	}
	ents, err := node.Readdir()
	if err != 0 {
		return 0, err
	}
	uva := p.Tf.Arg(1)
	max := p.Tf.Arg(2)
	startIdx := fd.Offset() / kfs.DirEntSize

	var written uint64
	for idx := startIdx; idx < uint64(len(ents)) && written+kfs.DirEntSize <= max; idx++ {
		rec := kfs.EncodeDirEnt(ents[idx])
		if err := sum.CopyOut(uva+written, rec); err != 0 {
			return 0, err
		}
		written += kfs.DirEntSize
	}
	fd.Advance(written)
	return written, 0
}

func sysChdir(env *Env, p *kproc.Proc_t, sum *kvm.SUMToken) (uint64, kdefs.Err_t) {
	path, err := copyInCString(p, sum, p.Tf.Arg(0), maxPathLen)
	if err != 0 {
		return 0, err
	}
	full := p.Cwd.Fullpath(path)
	node, err := kfs.Resolve(p.Cwd.Root, full)
	if err != 0 {
		return 0, err
	}
	if node.Kind() != kfs.KindDir {
		return 0, kdefs.ENOTDIR
	}
	p.Cwd.Path = canonicalize(full)
	return 0, 0
}

func sysGetcwd(env *Env, p *kproc.Proc_t, sum *kvm.SUMToken) (uint64, kdefs.Err_t) {
	b := append([]byte(p.Cwd.Path), 0)
	max := p.Tf.Arg(1)
	if uint64(len(b)) > max {
		return 0, kdefs.ERANGE
	}
	if err := sum.CopyOut(p.Tf.Arg(0), b); err != 0 {
		return 0, err
	}
	return uint64(len(b)), 0
}

func sysPipe(env *Env, p *kproc.Proc_t, sum *kvm.SUMToken) (uint64, kdefs.Err_t) {
	pipe := kipc.NewPipe()
	readFd := kproc.OpenPipeEnd(pipe, false, kproc.FD_READ)
	writeFd := kproc.OpenPipeEnd(pipe, true, kproc.FD_WRITE)
	rnum, err := p.AllocFD(readFd)
	if err != 0 {
		return 0, err
	}
	wnum, err := p.AllocFD(writeFd)
	if err != 0 {
		p.CloseFD(rnum, env.Sched)
		return 0, err
	}
	var ints [8]byte
	putU32(ints[0:4], uint32(rnum))
	putU32(ints[4:8], uint32(wnum))
	if err := sum.CopyOut(p.Tf.Arg(0), ints[:]); err != 0 {
		return 0, err
	}
	return 0, 0
}
