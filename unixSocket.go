//go:build linux || darwin

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
	"net"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// setSocketOptions enables broadcast and lets several modules share a port.
func setSocketOptions(network, address string, c syscall.RawConn) error {
	var opErr error
	err := c.Control(func(fd uintptr) {
		for _, opt := range []int{unix.SO_BROADCAST, unix.SO_REUSEADDR, unix.SO_REUSEPORT} {
			if opErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, opt, 1); opErr != nil {
				return
			}
		}
	})
	if err != nil {
		return err
	}
	if opErr != nil {
		return fmt.Errorf("setsockopt: %w", opErr)
	}
	return nil
}

// pollConn waits until a datagram is waiting or the timeout expires.
func pollConn(conn *net.UDPConn, timeout time.Duration) (bool, error) {
	rc, err := conn.SyscallConn()
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	var ready bool
	var pollErr error
	err = rc.Control(func(fd uintptr) {
		pfds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		for {
			n, err := unix.Poll(pfds, int(timeout.Milliseconds()))
			if errors.Is(err, unix.EINTR) {
				continue
			}
			pollErr = err
			ready = n > 0 && pfds[0].Revents&unix.POLLIN != 0
			return
		}
	})
	if err == nil {
		err = pollErr
	}
	if err != nil {
		return false, fmt.Errorf("%w: poll failed: %w", ErrNetwork, err)
	}
	return ready, nil
}

// recvNonblock reads one datagram without waiting. Zero is returned when
// nothing is waiting.
func recvNonblock(conn *net.UDPConn, buf []byte) (int, error) {
	rc, err := conn.SyscallConn()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	var n int
	var recvErr error
	err = rc.Read(func(fd uintptr) bool {
		n, _, recvErr = unix.Recvfrom(int(fd), buf, unix.MSG_DONTWAIT)
		// Returning true never parks the goroutine in the runtime poller.
		return true
	})
	if err == nil {
		err = recvErr
	}
	if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EINTR) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: recvfrom failed: %w", ErrNetwork, err)
	}
	if n < 0 {
		n = 0
	}
	return n, nil
}
