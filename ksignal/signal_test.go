package ksignal

import "testing"

func TestDeliverUserHandlerRewritesFrame(t *testing.T) {
	var s State_t
	s.SetHandler(SIGTERM, Handler_t{Kind: HUser, Addr: 0xdead0000})
	s.Raise(SIGTERM)

	frame := &TrapFrame{Sepc: 0x1000}
	res := s.Deliver(frame)
	if !res.Delivered || res.Signo != SIGTERM {
		t.Fatalf("expected SIGTERM delivered, got %+v", res)
	}
	if frame.Sepc != 0xdead0000 || frame.Ra != 0x1000 || frame.A0 != SIGTERM {
		t.Fatalf("frame not rewritten correctly: %+v", frame)
	}
	if s.Pending != 0 {
		t.Fatal("pending bit should be cleared after delivery")
	}
}

func TestDeliverDefaultTerminate(t *testing.T) {
	var s State_t
	s.Raise(SIGTERM)
	res := s.Deliver(&TrapFrame{})
	if res.Action != ActionTerminate {
		t.Fatalf("expected ActionTerminate, got %v", res.Action)
	}
	if ExitCodeFor(SIGTERM) != 128+15 {
		t.Fatalf("exit code wrong")
	}
}

func TestSigkillCannotBeCaught(t *testing.T) {
	var s State_t
	if s.SetHandler(SIGKILL, Handler_t{Kind: HUser, Addr: 1}) {
		t.Fatal("expected SetHandler to reject SIGKILL")
	}
	if s.SetHandler(SIGSTOP, Handler_t{Kind: HIgnore}) {
		t.Fatal("expected SetHandler to reject SIGSTOP")
	}
}

func TestBlockedMasksPending(t *testing.T) {
	var s State_t
	s.Blocked = 1 << SIGTERM
	s.Raise(SIGTERM)
	res := s.Deliver(&TrapFrame{})
	if res.Delivered {
		t.Fatal("blocked signal must not be delivered")
	}
}

func TestLowestNumberedFirst(t *testing.T) {
	var s State_t
	s.Raise(SIGTERM)
	s.Raise(SIGINT)
	res := s.Deliver(&TrapFrame{})
	if res.Signo != SIGINT {
		t.Fatalf("expected lowest-numbered signal SIGINT first, got %d", res.Signo)
	}
}

func TestOnlyOneSignalPerDeliver(t *testing.T) {
	var s State_t
	s.Raise(SIGINT)
	s.Raise(SIGTERM)
	s.Deliver(&TrapFrame{})
	if s.Pending == 0 {
		t.Fatal("expected second signal to remain pending")
	}
	res2 := s.Deliver(&TrapFrame{})
	if res2.Signo != SIGTERM {
		t.Fatalf("expected SIGTERM on second delivery, got %d", res2.Signo)
	}
}

func TestSigkillIgnoresBlockedMask(t *testing.T) {
	var s State_t
	s.Blocked = 1 << SIGKILL
	s.Raise(SIGKILL)
	res := s.Deliver(&TrapFrame{})
	if !res.Delivered || res.Signo != SIGKILL || res.Action != ActionTerminate {
		t.Fatalf("expected SIGKILL delivered despite blocked mask, got %+v", res)
	}
}
