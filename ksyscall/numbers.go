// Package ksyscall is the syscall number table and dispatcher: it
// wires kproc (process lifecycle), kvm (user-pointer access), kfs
// (VFS), ksignal (handler install/kill), kipc (pipes), and ksched
// (yield/sleep) behind the single ECALL entry point the trap core
// routes to. Fd operations dispatch through kproc.Fd_t's own
// Read/Write/Lseek; the two fd kinds (node, pipe) don't need a third
// layer of indirection.
package ksyscall

// Syscall numbers. Stable: userland links against these.
const (
	SysExit = iota
	SysWrite
	SysRead
	SysOpen
	SysClose
	SysLseek
	SysStat
	SysMkdir
	SysRmdir
	SysUnlink
	SysGetdents
	SysChdir
	SysGetcwd
	SysGetpid
	SysGetppid
	SysFork
	SysExecve
	SysWaitpid
	SysKill
	SysSignal
	SysSigaction
	SysPipe
	SysMmap
	SysMunmap
	SysSbrk
	SysYield
	SysSleep
	SysGettime
)

// Open flags (a1 of sys_open), the small O_* subset this core
// honors.
const (
	O_RDONLY = 0x0
	O_WRONLY = 0x1
	O_RDWR   = 0x2
	O_CREAT  = 0x40
)

// Lseek whence values, re-exported from kproc for ksyscall callers that
// never otherwise import kproc's internals.
const (
	SeekSet = 0
	SeekCur = 1
	SeekEnd = 2
)
