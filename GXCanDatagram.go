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
	"encoding/binary"
	"fmt"
)

// DatagramSize is the size of one CAN over IP datagram.
const DatagramSize = 24

// Datagram field offsets. All integers are little-endian.
const (
	datagramID      = 0
	datagramSize    = 4
	datagramData    = 5
	datagramFlags   = 16
	datagramSession = 20
)

// MarshalDatagram converts a frame to a CAN over IP datagram.
func MarshalDatagram(f Frame, sessionID uint32) ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	buf := make([]byte, DatagramSize)
	binary.LittleEndian.PutUint32(buf[datagramID:], f.ID)
	buf[datagramSize] = f.Size
	copy(buf[datagramData:datagramData+MaxDataSize], f.Payload())
	binary.LittleEndian.PutUint32(buf[datagramFlags:], f.Flags)
	binary.LittleEndian.PutUint32(buf[datagramSession:], sessionID)
	return buf, nil
}

// UnmarshalDatagram parses a CAN over IP datagram. It returns the frame and
// the session ID of the sender.
func UnmarshalDatagram(buf []byte) (Frame, uint32, error) {
	var f Frame
	if len(buf) != DatagramSize {
		return f, 0, fmt.Errorf("%w: invalid datagram size %d (expected %d)", ErrProtocol, len(buf), DatagramSize)
	}
	f.ID = binary.LittleEndian.Uint32(buf[datagramID:])
	f.Size = buf[datagramSize]
	f.Flags = binary.LittleEndian.Uint32(buf[datagramFlags:])
	if err := f.Validate(); err != nil {
		return f, 0, fmt.Errorf("%w: %w", ErrProtocol, err)
	}
	if !f.IsRTR() {
		copy(f.Data[:f.Size], buf[datagramData:])
	}
	return f, binary.LittleEndian.Uint32(buf[datagramSession:]), nil
}
