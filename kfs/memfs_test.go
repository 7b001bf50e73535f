package kfs

import (
	"testing"

	"riscvkernel/kdefs"
)

func TestMkdirLookupUnlink(t *testing.T) {
	root := NewMemFS()
	dir, err := root.Mkdir("bin")
	if err != 0 {
		t.Fatalf("mkdir: %v", err)
	}
	f, err := dir.Create("hello")
	if err != 0 {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.Write([]byte("hi"), 0); err != 0 {
		t.Fatalf("write: %v", err)
	}

	got, err := Resolve(root, "/bin/hello")
	if err != 0 {
		t.Fatalf("resolve: %v", err)
	}
	buf := make([]byte, 2)
	n, err := got.Read(buf, 0)
	if err != 0 || n != 2 || string(buf) != "hi" {
		t.Fatalf("read back: n=%d err=%v buf=%q", n, err, buf)
	}

	if err := dir.Unlink("hello"); err != 0 {
		t.Fatalf("unlink: %v", err)
	}
	if _, err := dir.Lookup("hello"); err != kdefs.ENOENT {
		t.Fatalf("expected ENOENT after unlink, got %v", err)
	}
}

func TestRmdirRejectsNonEmpty(t *testing.T) {
	root := NewMemFS()
	dir, _ := root.Mkdir("etc")
	dir.Create("passwd")

	if err := root.Rmdir("etc"); err != kdefs.ENOTEMPTY {
		t.Fatalf("expected ENOTEMPTY, got %v", err)
	}
	dir.Unlink("passwd")
	if err := root.Rmdir("etc"); err != 0 {
		t.Fatalf("rmdir after empty: %v", err)
	}
}

func TestReaddirStableOrder(t *testing.T) {
	root := NewMemFS()
	root.Create("b")
	root.Create("a")
	root.Create("c")

	ents, err := root.Readdir()
	if err != 0 {
		t.Fatalf("readdir: %v", err)
	}
	names := []string{ents[0].Name, ents[1].Name, ents[2].Name}
	if names[0] != "a" || names[1] != "b" || names[2] != "c" {
		t.Fatalf("expected sorted order, got %v", names)
	}
}

func TestBlockDeviceRoundTrip(t *testing.T) {
	dev := NewMemBlockDevice(4)
	out := make([]byte, SectorSize)
	for i := range out {
		out[i] = 0x42
	}
	if err := dev.WriteSector(2, out); err != 0 {
		t.Fatalf("write: %v", err)
	}
	in := make([]byte, SectorSize)
	if err := dev.ReadSector(2, in); err != 0 || in[0] != 0x42 {
		t.Fatalf("read: err=%v first=%x", err, in[0])
	}
	if err := dev.ReadSector(99, in); err != kdefs.EINVAL {
		t.Fatalf("expected EINVAL for out-of-range lba, got %v", err)
	}
}
