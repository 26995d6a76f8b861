//go:build darwin

package gxcan

// --------------------------------------------------------------------------
//
//	Gurux Ltd
//
// Filename:        $HeadURL$
//
// Version:         $Revision$,
//
//	$Date$
//	$Author$
//
// # Copyright (c) Gurux Ltd
//
// ---------------------------------------------------------------------------
//
//	DESCRIPTION
//
// This file is a part of Gurux Device Framework.
//
// Gurux Device Framework is Open Source software; you can redistribute it
// and/or modify it under the terms of the GNU General Public License
// as published by the Free Software Foundation; version 2 of the License.
// Gurux Device Framework is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU General Public License for more details.
//
// More information of Gurux products: https://www.gurux.org
//
// This code is licensed under the GNU General Public License v2.
// Full text may be retrieved at http://www.gnu.org/licenses/gpl-2.0.txt
// ---------------------------------------------------------------------------

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
	"unsafe"

	"github.com/Gurux/gxcommon-go"
	"golang.org/x/sys/unix"
)

// readChunkSize is the read size used because macOS has no TIOCINQ.
const readChunkSize = 256

type port struct {
	f  *os.File
	fd int
}

// toUnitBaudrate maps a baud rate to the termios speed constant.
var toUnitBaudrate = map[int]uint64{
	50:     unix.B50,
	75:     unix.B75,
	110:    unix.B110,
	134:    unix.B134,
	150:    unix.B150,
	200:    unix.B200,
	300:    unix.B300,
	600:    unix.B600,
	1200:   unix.B1200,
	1800:   unix.B1800,
	2400:   unix.B2400,
	4800:   unix.B4800,
	9600:   unix.B9600,
	19200:  unix.B19200,
	38400:  unix.B38400,
	57600:  unix.B57600,
	115200: unix.B115200,
	230400: unix.B230400,
}

// getPortNames returns a list of available serial port device paths on macOS.
func getPortNames() ([]string, error) {
	patterns := []string{
		"/dev/tty.*",
		"/dev/cu.*",
	}

	var devices []string
	seen := make(map[string]struct{})
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, err
		}
		for _, device := range matches {
			if _, ok := seen[device]; !ok {
				seen[device] = struct{}{}
				devices = append(devices, device)
			}
		}
	}
	return devices, nil
}

func openPort(p *port, cfg SerialEndpoint) error {
	speed, ok := toUnitBaudrate[int(cfg.BaudRate)]
	if !ok {
		return fmt.Errorf("%w: unsupported baud rate %d", ErrArgument, cfg.BaudRate)
	}
	fd, err := unix.Open(cfg.Port, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK, 0666)
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", ErrSystem, cfg.Port, err)
	}
	p.f = os.NewFile(uintptr(fd), cfg.Port)
	p.fd = fd

	t, err := unix.IoctlGetTermios(fd, unix.TIOCGETA)
	if err != nil {
		p.close()
		return fmt.Errorf("%w: tcgetattr failed: %w", ErrSystem, err)
	}
	t.Cflag |= unix.CLOCAL | unix.CREAD
	t.Lflag &^= unix.ICANON | unix.ECHO | unix.ECHOE | unix.ECHOK | unix.ECHONL | unix.ISIG | unix.IEXTEN
	t.Oflag &^= unix.OPOST | unix.ONLCR | unix.OCRNL
	t.Iflag &^= unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IGNBRK
	t.Ispeed = speed
	t.Ospeed = speed
	t.Cflag &^= unix.CSIZE
	switch cfg.DataBits {
	case 5:
		t.Cflag |= unix.CS5
	case 6:
		t.Cflag |= unix.CS6
	case 7:
		t.Cflag |= unix.CS7
	case 8:
		t.Cflag |= unix.CS8
	default:
		p.close()
		return fmt.Errorf("%w: invalid databits %d (must be 5..8)", ErrArgument, cfg.DataBits)
	}

	switch cfg.StopBits {
	case gxcommon.StopBitsOne:
		t.Cflag &^= unix.CSTOPB
	case gxcommon.StopBitsTwo:
		t.Cflag |= unix.CSTOPB
	default:
		p.close()
		return fmt.Errorf("%w: invalid stopbits (must be one or two)", ErrArgument)
	}

	t.Iflag &^= unix.INPCK | unix.ISTRIP
	t.Cflag &^= unix.PARENB | unix.PARODD
	switch cfg.Parity {
	case gxcommon.ParityNone:
	case gxcommon.ParityEven:
		t.Cflag |= unix.PARENB
	case gxcommon.ParityOdd:
		t.Cflag |= unix.PARENB | unix.PARODD
	case gxcommon.ParityMark, gxcommon.ParitySpace:
		p.close()
		return fmt.Errorf("%w: mark/space parity not supported on this system", ErrArgument)
	default:
		p.close()
		return fmt.Errorf("%w: invalid parity", ErrArgument)
	}

	t.Iflag &^= unix.IXON | unix.IXOFF
	t.Cflag &^= unix.CRTSCTS
	t.Cc[unix.VMIN] = 0
	t.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(fd, unix.TIOCSETA, t); err != nil {
		p.close()
		return fmt.Errorf("%w: tcsetattr failed: %w", ErrSystem, err)
	}
	if err := ioctlSetIntPointer(fd, unix.TIOCFLUSH, unix.TCIFLUSH); err != nil {
		p.close()
		return fmt.Errorf("%w: flush failed: %w", ErrSystem, err)
	}
	return nil
}

func ioctlSetIntPointer(fd int, req uint, value int) error {
	v := value
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(req), uintptr(unsafe.Pointer(&v)))
	if errno != 0 {
		return errno
	}
	return nil
}

func (p *port) close() error {
	if p == nil || p.f == nil {
		return nil
	}
	f := p.f
	p.f = nil
	p.fd = 0
	return f.Close()
}

func (p *port) isOpen() bool {
	return p.f != nil
}

func (p *port) ensureOpen() error {
	if p == nil || p.f == nil {
		return fmt.Errorf("%w: serial port not open", ErrSystem)
	}
	return nil
}

// poll waits until the port is readable or the timeout expires.
func (p *port) poll(timeout time.Duration) (bool, error) {
	if err := p.ensureOpen(); err != nil {
		return false, err
	}
	pfds := []unix.PollFd{{Fd: int32(p.fd), Events: unix.POLLIN}}
	for {
		n, err := unix.Poll(pfds, int(timeout.Milliseconds()))
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("%w: poll failed: %w", ErrSystem, err)
		}
		if n > 0 && pfds[0].Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
			return false, fmt.Errorf("%w: serial port closed by the device", ErrSystem)
		}
		return n > 0 && pfds[0].Revents&unix.POLLIN != 0, nil
	}
}

// read returns the bytes available without waiting.
func (p *port) read() ([]byte, error) {
	if err := p.ensureOpen(); err != nil {
		return nil, err
	}
	buf := make([]byte, readChunkSize)
	n, err := unix.Read(p.fd, buf)
	if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read failed: %w", ErrSystem, err)
	}
	if n < 0 {
		n = 0
	}
	return buf[:n], nil
}

func (p *port) write(data []byte, timeout time.Duration) (int, error) {
	if err := p.ensureOpen(); err != nil {
		return 0, err
	}
	if err := p.f.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSystem, err)
	}
	n, err := p.f.Write(data)
	if err != nil {
		return n, fmt.Errorf("%w: write failed: %w", ErrSystem, err)
	}
	return n, nil
}
