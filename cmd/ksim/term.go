package main

import (
	"golang.org/x/sys/unix"
)

// rawTerm puts fd into cooked-off raw mode for the duration of a
// simulated boot (every keystroke delivered to the virtual console
// one byte at a time, no host-side line editing or echo), restoring
// the prior terminal state on Restore. Implemented directly against
// golang.org/x/sys/unix's Termios ioctls the way golang.org/x/term
// does internally, since this repo's go.mod carries x/sys directly
// but not the higher-level x/term wrapper.
type rawTerm struct {
	fd   int
	orig *unix.Termios
}

func makeRaw(fd int) (*rawTerm, error) {
	orig, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return nil, err
	}
	raw := *orig
	raw.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	raw.Oflag &^= unix.OPOST
	raw.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	raw.Cflag &^= unix.CSIZE | unix.PARENB
	raw.Cflag |= unix.CS8
	raw.Cc[unix.VMIN] = 1
	raw.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, &raw); err != nil {
		return nil, err
	}
	return &rawTerm{fd: fd, orig: orig}, nil
}

// Restore puts fd's terminal back the way makeRaw found it.
func (t *rawTerm) Restore() error {
	return unix.IoctlSetTermios(t.fd, unix.TCSETS, t.orig)
}
