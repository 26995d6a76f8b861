//go:build linux

package gxcan

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Gurux/gxcommon-go"
	"golang.org/x/sys/unix"
)

type port struct {
	f  *os.File
	fd int
}

// toUnitBaudrate maps a baud rate to the termios CBAUD constant.
var toUnitBaudrate = map[int]uint32{
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
	460800: unix.B460800,
	921600: unix.B921600,
}

func (p *port) isOpen() bool {
	return p.f != nil
}

// getPortNames returns a list of available serial port device paths on Linux.
func getPortNames() ([]string, error) {
	patterns := []string{
		"/dev/ttyS*",
		"/dev/ttyUSB*",
		"/dev/ttyXRUSB*",
		"/dev/ttyACM*",
		"/dev/ttyAMA*",
		"/dev/rfcomm*",
	}

	var devices []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, err
		}
		for _, device := range matches {
			name := filepath.Base(device)
			sysPath := filepath.Join("/sys/class/tty", name, "device")

			if _, err := os.Stat(sysPath); err == nil {
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

	t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		p.close()
		return fmt.Errorf("%w: tcgetattr failed: %w", ErrSystem, err)
	}
	t.Cflag |= unix.CLOCAL | unix.CREAD
	t.Lflag &^= unix.ICANON | unix.ECHO | unix.ECHOE | unix.ECHOK | unix.ECHONL | unix.ISIG | unix.IEXTEN
	t.Oflag &^= unix.OPOST | unix.ONLCR | unix.OCRNL
	t.Iflag &^= unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IGNBRK
	// Baud rate. TCSETS reads the speed from the cflag.
	t.Cflag &^= unix.CBAUD
	t.Cflag |= speed
	t.Ispeed = speed
	t.Ospeed = speed
	// Databits:
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

	// Stop bits
	switch cfg.StopBits {
	case gxcommon.StopBitsOne:
		t.Cflag &^= unix.CSTOPB
	case gxcommon.StopBitsTwo:
		t.Cflag |= unix.CSTOPB
	default:
		p.close()
		return fmt.Errorf("%w: invalid stopbits (must be one or two)", ErrArgument)
	}

	// setup parity
	const CMSPAR = 0x40000000
	t.Iflag &^= unix.INPCK | unix.ISTRIP
	t.Cflag &^= unix.PARENB | unix.PARODD | CMSPAR
	switch cfg.Parity {
	case gxcommon.ParityNone:
	case gxcommon.ParityEven:
		t.Cflag |= unix.PARENB
	case gxcommon.ParityOdd:
		t.Cflag |= unix.PARENB | unix.PARODD
	case gxcommon.ParityMark:
		t.Cflag |= unix.PARENB | CMSPAR | unix.PARODD
	case gxcommon.ParitySpace:
		t.Cflag |= unix.PARENB | CMSPAR
	default:
		p.close()
		return fmt.Errorf("%w: invalid parity", ErrArgument)
	}

	t.Iflag &^= unix.IXON | unix.IXOFF
	t.Cflag &^= unix.CRTSCTS
	t.Cc[unix.VMIN] = 0
	t.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, t); err != nil {
		p.close()
		return fmt.Errorf("%w: tcsetattr failed: %w", ErrSystem, err)
	}
	if err := unix.IoctlSetInt(fd, unix.TCFLSH, unix.TCIFLUSH); err != nil {
		p.close()
		return fmt.Errorf("%w: flush failed: %w", ErrSystem, err)
	}
	return nil
}

func (p *port) close() error {
	if p == nil || p.f == nil {
		return nil
	}
	err := p.f.Close()
	p.f = nil
	p.fd = 0
	return err
}

func (p *port) ensureOpen() error {
	if p == nil || p.f == nil {
		return fmt.Errorf("%w: serial port not open", ErrSystem)
	}
	return nil
}

func (p *port) getBytesToRead() (int, error) {
	if err := p.ensureOpen(); err != nil {
		return 0, err
	}
	n, err := unix.IoctlGetInt(p.fd, unix.TIOCINQ)
	if err != nil {
		return 0, fmt.Errorf("%w: getBytesToRead failed: %w", ErrSystem, err)
	}
	return n, nil
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
	cnt, err := p.getBytesToRead()
	if err != nil {
		return nil, err
	}
	if cnt <= 0 {
		cnt = answerMaxSize
	}
	buf := make([]byte, cnt)
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
