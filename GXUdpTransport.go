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
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"golang.org/x/text/message"
)

// DefaultUDPHost is the limited broadcast address.
const DefaultUDPHost = "255.255.255.255"

const transportUDP = "udp"

// UDPEndpoint selects a CAN over IP segment.
type UDPEndpoint struct {
	// Host is the destination of sent datagrams. Empty uses 255.255.255.255.
	Host string
	// Port is used both for sending and for receiving on all interfaces.
	Port int
}

func (e UDPEndpoint) host() string {
	if e.Host == "" {
		return DefaultUDPHost
	}
	return e.Host
}

func (e UDPEndpoint) String() string {
	return "udp://" + net.JoinHostPort(e.host(), strconv.Itoa(e.Port))
}

// Validate returns an error if the endpoint can't be opened.
func (e UDPEndpoint) Validate() error {
	return e.validate(defaultPrinter)
}

func (e UDPEndpoint) validate(p *message.Printer) error {
	if e.Port <= 0 || e.Port > 0xFFFF {
		return fmt.Errorf("%w: %s", ErrArgument, p.Sprintf("msg.no_udp_port_selected"))
	}
	return nil
}

func (e UDPEndpoint) newTransport(transportConfig) transport {
	return &udpTransport{endpoint: e}
}

// udpTransport broadcasts frames as datagrams.
type udpTransport struct {
	endpoint UDPEndpoint
	conn     *net.UDPConn
	dest     *net.UDPAddr
	buf      [DatagramSize + 1]byte
}

func (t *udpTransport) kind() string {
	return transportUDP
}

func (t *udpTransport) open() error {
	dest, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(t.endpoint.host(), strconv.Itoa(t.endpoint.Port)))
	if err != nil {
		return fmt.Errorf("%w: resolve %s: %w", ErrNetwork, t.endpoint.host(), err)
	}
	lc := net.ListenConfig{Control: setSocketOptions}
	pc, err := lc.ListenPacket(context.Background(), "udp4", fmt.Sprintf("0.0.0.0:%d", t.endpoint.Port))
	if err != nil {
		return fmt.Errorf("%w: bind port %d: %w", ErrNetwork, t.endpoint.Port, err)
	}
	t.conn = pc.(*net.UDPConn)
	t.dest = dest
	return nil
}

func (t *udpTransport) close() error {
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	return nil
}

func (t *udpTransport) ensureOpen() error {
	if t.conn == nil {
		return fmt.Errorf("%w: socket not open", ErrNetwork)
	}
	return nil
}

func (t *udpTransport) writeFrame(f Frame, sessionID uint32) error {
	if err := t.ensureOpen(); err != nil {
		return err
	}
	buf, err := MarshalDatagram(f, sessionID)
	if err != nil {
		return err
	}
	n, err := t.conn.WriteToUDP(buf, t.dest)
	if err != nil {
		return fmt.Errorf("%w: send to %s: %w", ErrNetwork, t.dest, err)
	}
	if n != len(buf) {
		return fmt.Errorf("%w: %d of %d bytes sent", ErrNetwork, n, len(buf))
	}
	return nil
}

func (t *udpTransport) pollReadable(timeout time.Duration) (bool, error) {
	if err := t.ensureOpen(); err != nil {
		return false, err
	}
	return pollConn(t.conn, timeout)
}

// readRaw returns one datagram, or nothing if no datagram is waiting.
func (t *udpTransport) readRaw() ([]byte, error) {
	if err := t.ensureOpen(); err != nil {
		return nil, err
	}
	// One extra byte detects oversized datagrams.
	n, err := recvNonblock(t.conn, t.buf[:])
	if err != nil {
		return nil, err
	}
	return t.buf[:n], nil
}

func (t *udpTransport) readFrame() (Frame, uint32, bool, error) {
	data, err := t.readRaw()
	if err != nil || len(data) == 0 {
		return Frame{}, 0, false, err
	}
	f, sessionID, err := UnmarshalDatagram(data)
	if err != nil {
		return Frame{}, 0, false, err
	}
	return f, sessionID, true, nil
}
