package kipc

import (
	"riscvkernel/kconfig"
	"riscvkernel/kdefs"
	"riscvkernel/ksched"
	"riscvkernel/ksignal"
)

// Pipe_t is a kernel-owned ring buffer with reader/writer refcounts
// and a wait queue per direction.
type Pipe_t struct {
	buf        [kconfig.PipeBufSize]byte
	head, tail int // write / read cursors, modulo len(buf)
	count      int // bytes currently buffered

	Readers int
	Writers int

	readq  WaitQueue_t
	writeq WaitQueue_t
}

// NewPipe returns a pipe with one reader and one writer end already
// open, matching the pipe() syscall's immediate two-fd result.
func NewPipe() *Pipe_t {
	return &Pipe_t{Readers: 1, Writers: 1}
}

// SignalSender lets Write deliver SIGPIPE to the writing process
// without kipc importing kproc.
type SignalSender interface {
	Raise(signo int)
}

// Read copies up to len(dst) bytes into dst, blocking on the reader wait
// queue while the pipe is empty and a writer remains open. Returns the
// number of bytes read (0 means EOF once all writers have closed).
func (p *Pipe_t) Read(self Sleeper, sched Sched, dst []byte) (int, kdefs.Err_t) {
	for p.count == 0 {
		if p.Writers == 0 {
			return 0, 0 // EOF
		}
		tok := ksched.SaveAndDisable()
		Sleep(&p.readq, self, sched)
		tok.Restore()
	}
	n := 0
	for n < len(dst) && p.count > 0 {
		dst[n] = p.buf[p.tail]
		p.tail = (p.tail + 1) % len(p.buf)
		p.count--
		n++
	}
	WakeOne(&p.writeq, sched)
	return n, 0
}

// Write copies src into the ring buffer, blocking on the writer wait
// queue while the pipe is full and a reader remains open. Returns EPIPE
// (after raising SIGPIPE on sender) if all readers have closed.
func (p *Pipe_t) Write(self Sleeper, sched Sched, sender SignalSender, src []byte) (int, kdefs.Err_t) {
	n := 0
	for n < len(src) {
		for p.count == len(p.buf) {
			if p.Readers == 0 {
				sender.Raise(ksignal.SIGPIPE)
				return n, kdefs.EPIPE
			}
			tok := ksched.SaveAndDisable()
			Sleep(&p.writeq, self, sched)
			tok.Restore()
		}
		if p.Readers == 0 {
			sender.Raise(ksignal.SIGPIPE)
			return n, kdefs.EPIPE
		}
		p.buf[p.head] = src[n]
		p.head = (p.head + 1) % len(p.buf)
		p.count++
		n++
	}
	WakeOne(&p.readq, sched)
	return n, 0
}

// CloseRead decrements the reader refcount, waking any blocked writer
// once it reaches zero (a write that was waiting for space can now fail
// fast with EPIPE instead of blocking forever).
func (p *Pipe_t) CloseRead(sched Sched) {
	p.Readers--
	if p.Readers == 0 {
		WakeAll(&p.writeq, sched)
	}
}

// CloseWrite decrements the writer refcount, waking any blocked reader
// once it reaches zero so pending reads observe EOF.
func (p *Pipe_t) CloseWrite(sched Sched) {
	p.Writers--
	if p.Writers == 0 {
		WakeAll(&p.readq, sched)
	}
}

// Freed reports whether both ends have closed, at which point the
// pipe's backing page may be released.
func (p *Pipe_t) Freed() bool { return p.Readers == 0 && p.Writers == 0 }
