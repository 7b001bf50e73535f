// Package ksignal implements signal state and delivery. Delivery is a
// pure function from (pending, blocked, handlers, trap frame) to a
// possibly-mutated trap frame and new pending mask, deterministic and
// unit-testable in isolation.
package ksignal

import "riscvkernel/kconfig"

// Signal numbers this core recognizes (a small stable subset
// sufficient for common POSIX use).
const (
	SIGHUP  = 1
	SIGINT  = 2
	SIGQUIT = 3
	SIGILL  = 4
	SIGTRAP = 5
	SIGABRT = 6
	SIGBUS  = 7
	SIGFPE  = 8
	SIGKILL = 9
	SIGSEGV = 11
	SIGPIPE = 13
	SIGALRM = 14
	SIGTERM = 15
	SIGCHLD = 17
	SIGCONT = 18
	SIGSTOP = 19
	SIGTSTP = 20
)

// HandlerKind classifies a signal's disposition.
type HandlerKind int

const (
	HDefault HandlerKind = iota
	HIgnore
	HUser
)

// Handler_t is one of the 32 per-process handler slots.
type Handler_t struct {
	Kind HandlerKind
	Addr uint64 // user-space function address, valid iff Kind == HUser
}

// classes used by Deliver's default-disposition switch.
const (
	classTerm = iota
	classIgnore
	classStop
	classCont
)

func defaultClass(signo int) int {
	switch signo {
	case SIGCHLD:
		return classIgnore
	case SIGSTOP, SIGTSTP:
		return classStop
	case SIGCONT:
		return classCont
	default:
		return classTerm
	}
}

// CannotBlockOrCatch reports whether signo may never be blocked,
// caught, or ignored: SIGKILL and SIGSTOP.
func CannotBlockOrCatch(signo int) bool {
	return signo == SIGKILL || signo == SIGSTOP
}

// State_t holds one process's signal state: pending/blocked masks and
// handler table.
type State_t struct {
	Pending uint64
	Blocked uint64
	Handler [kconfig.NSIG]Handler_t
}

// SetHandler installs handler for signo. Rejects SIGKILL/SIGSTOP.
func (s *State_t) SetHandler(signo int, h Handler_t) bool {
	if CannotBlockOrCatch(signo) {
		return false
	}
	s.Handler[signo] = h
	return true
}

// Raise sets the pending bit for signo. The caller (kproc) is
// responsible for inspecting the target's actual state and waking it
// accordingly; Raise itself only mutates the mask, since State_t has no
// notion of process state.
func (s *State_t) Raise(signo int) {
	s.Pending |= 1 << uint(signo)
}

// TrapFrame is the minimal surface Deliver needs to rewrite on
// dispatch to a user handler: the return-address register, sepc, and
// the first argument register.
type TrapFrame struct {
	Sepc uint64
	Ra   uint64
	A0   uint64
}

// DeliverResult reports what Deliver decided, so the caller (running at
// the user-return boundary in kproc/ktrap) can act on stop/terminate
// outcomes that State_t cannot itself perform (changing process state,
// calling exit, sending SIGCHLD to a parent).
type DeliverResult struct {
	Delivered bool
	Signo     int
	// Action is one of the classes below, valid iff Delivered and the
	// handler's disposition is default.
	Action DeliverAction
}

// DeliverAction enumerates what the caller must do after a default-
// disposition delivery.
type DeliverAction int

const (
	ActionNone DeliverAction = iota
	ActionTerminate             // exit with code 128+signo
	ActionStop                  // set STOPPED, send SIGCHLD to parent
	ActionContinue               // wake if STOPPED
)

// Deliver computes deliverable = pending &^ blocked (SIGKILL and
// SIGSTOP cannot be blocked, so their bits in the blocked mask are
// ignored), picks the lowest-numbered set bit, clears it from pending,
// and either rewrites frame (user handler) or reports the action the
// caller must perform (default disposition). Only one signal is
// delivered per call, so each trap exit delivers at most one.
func (s *State_t) Deliver(frame *TrapFrame) DeliverResult {
	const unblockable = uint64(1<<SIGKILL | 1<<SIGSTOP)
	deliverable := s.Pending &^ (s.Blocked &^ unblockable)
	if deliverable == 0 {
		return DeliverResult{}
	}
	signo := lowestBit(deliverable)
	s.Pending &^= 1 << uint(signo)

	h := s.Handler[signo]
	switch h.Kind {
	case HIgnore:
		return DeliverResult{Delivered: true, Signo: signo, Action: ActionNone}
	case HUser:
		frame.Ra = frame.Sepc
		frame.Sepc = h.Addr
		frame.A0 = uint64(signo)
		return DeliverResult{Delivered: true, Signo: signo, Action: ActionNone}
	default: // HDefault
		switch defaultClass(signo) {
		case classIgnore:
			return DeliverResult{Delivered: true, Signo: signo, Action: ActionNone}
		case classStop:
			return DeliverResult{Delivered: true, Signo: signo, Action: ActionStop}
		case classCont:
			return DeliverResult{Delivered: true, Signo: signo, Action: ActionContinue}
		default:
			return DeliverResult{Delivered: true, Signo: signo, Action: ActionTerminate}
		}
	}
}

func lowestBit(mask uint64) int {
	for i := 0; i < 64; i++ {
		if mask&(1<<uint(i)) != 0 {
			return i
		}
	}
	return -1
}

// ExitCodeFor computes the 128+signo termination code for a
// signal-class exit.
func ExitCodeFor(signo int) int { return 128 + signo }
