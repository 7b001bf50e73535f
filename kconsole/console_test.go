package kconsole

import "testing"

func TestInjectAndReadByte(t *testing.T) {
	m := NewMultiplex(2)
	vt := m.VT(0)
	if !vt.Inject('a') {
		t.Fatal("inject rejected on empty ring")
	}
	b, ok := vt.ReadByte()
	if !ok || b != 'a' {
		t.Fatalf("readbyte = %q, %v, want 'a', true", b, ok)
	}
	if _, ok := vt.ReadByte(); ok {
		t.Fatal("expected empty ring after single byte consumed")
	}
}

func TestInputRingDropsOnOverrun(t *testing.T) {
	m := NewMultiplex(1)
	vt := m.VT(0)
	for i := 0; i < ringSize; i++ {
		if !vt.Inject(byte(i)) {
			t.Fatalf("inject failed before ring full at i=%d", i)
		}
	}
	if vt.Inject('x') {
		t.Fatal("expected inject to report drop once ring is full")
	}
}

func TestWriteAndDrain(t *testing.T) {
	m := NewMultiplex(1)
	vt := m.VT(0)
	n := vt.Write([]byte("hello"))
	if n != 5 {
		t.Fatalf("write returned %d, want 5", n)
	}
	got := vt.Drain(3)
	if string(got) != "hel" {
		t.Fatalf("drain(3) = %q, want %q", got, "hel")
	}
	got = vt.Drain(16)
	if string(got) != "lo" {
		t.Fatalf("drain(16) after partial = %q, want %q", got, "lo")
	}
}

func TestSwitchActiveVT(t *testing.T) {
	m := NewMultiplex(3)
	if m.Active() != m.VT(0) {
		t.Fatal("expected VT 0 active initially")
	}
	if err := m.Switch(2); err != 0 {
		t.Fatalf("switch: %v", err)
	}
	if m.Active() != m.VT(2) {
		t.Fatal("expected VT 2 active after switch")
	}
	if err := m.Switch(99); err == 0 {
		t.Fatal("expected EINVAL switching to out-of-range VT")
	}
}

func TestDisplayWidthFoldsFullwidth(t *testing.T) {
	if w := DisplayWidth("ab"); w != 2 {
		t.Fatalf("ascii width = %d, want 2", w)
	}
	if w := DisplayWidth("ＡＢ"); w != 4 {
		t.Fatalf("fullwidth width = %d, want 4", w)
	}
}

func TestPadToAndSideBySide(t *testing.T) {
	if got := PadTo("ab", 5); got != "ab   " {
		t.Fatalf("padTo = %q", got)
	}
	got := SideBySide("vt0", "vt1", 6)
	if got != "vt0   | vt1" {
		t.Fatalf("sidebyside = %q", got)
	}
}
