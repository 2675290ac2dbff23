//go:build linux

// Package pty opens a raw pseudo-terminal pair so a host terminal program
// can talk to a simulated UART as if it were a serial device.
package pty

import (
	"fmt"
	"os"
	"strconv"

	"golang.org/x/sys/unix"
)

// PTY is the master side of a pseudo-terminal and the path of its slave.
type PTY struct {
	Master *os.File
	Name   string // e.g. /dev/pts/3
}

// Open allocates a new pseudo-terminal, unlocks its slave and puts the line
// in raw 8N1 mode. The master is non-blocking so reads on it honour
// deadlines and Close.
func Open() (*PTY, error) {
	fd, err := unix.Open("/dev/ptmx", unix.O_RDWR|unix.O_NOCTTY|unix.O_CLOEXEC|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("pty: open /dev/ptmx: %w", err)
	}
	if err := unix.IoctlSetPointerInt(fd, unix.TIOCSPTLCK, 0); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("pty: unlock: %w", err)
	}
	n, err := unix.IoctlGetInt(fd, unix.TIOCGPTN)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("pty: slave number: %w", err)
	}
	if err := makeRaw(fd); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return &PTY{
		Master: os.NewFile(uintptr(fd), "/dev/ptmx"),
		Name:   "/dev/pts/" + strconv.Itoa(n),
	}, nil
}

// makeRaw is cfmakeraw plus CS8: no echo, no line editing, no CR/LF
// translation, one byte per read.
func makeRaw(fd int) error {
	t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return fmt.Errorf("pty: get termios: %w", err)
	}
	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB | unix.CSTOPB
	t.Cflag |= unix.CS8
	t.Cc[unix.VMIN] = 1
	t.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, t); err != nil {
		return fmt.Errorf("pty: set termios: %w", err)
	}
	return nil
}

// Close closes the master. Programs holding the slave see a hangup.
func (p *PTY) Close() error { return p.Master.Close() }
