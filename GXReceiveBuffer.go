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
	"bytes"
	"fmt"
)

// receiveBufferMaxSize limits bytes buffered without a message terminator.
const receiveBufferMaxSize = 1024

// receiveBuffer collects bytes read from the serial device and splits them
// into messages terminated with CR or BELL. It is used under the module I/O
// lock and is not safe for concurrent use.
type receiveBuffer struct {
	buf []byte
	// lastStart is the position where the next terminator search starts.
	lastStart int
}

// Append adds received bytes to the buffer.
func (b *receiveBuffer) Append(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	b.buf = append(b.buf, p...)
	if len(b.buf) > receiveBufferMaxSize && bytes.IndexAny(b.buf, "\r\a") == -1 {
		n := len(b.buf)
		b.buf = b.buf[:0]
		b.lastStart = 0
		return fmt.Errorf("%w: %d bytes received without terminator", ErrProtocol, n)
	}
	return nil
}

// Next removes and returns the next complete message including its
// terminator. Nil is returned when there is no complete message.
func (b *receiveBuffer) Next() []byte {
	start := b.lastStart
	if start > len(b.buf) {
		start = len(b.buf)
	}
	i := bytes.IndexAny(b.buf[start:], "\r\a")
	if i == -1 {
		// Terminator not found. Don't search the same bytes again.
		b.lastStart = len(b.buf)
		return nil
	}
	pos := start + i + 1
	ret := make([]byte, pos)
	copy(ret, b.buf[:pos])
	b.buf = b.buf[:copy(b.buf, b.buf[pos:])]
	b.lastStart = 0
	return ret
}

// Len returns the amount of buffered bytes.
func (b *receiveBuffer) Len() int {
	return len(b.buf)
}

// Reset clears the buffer.
func (b *receiveBuffer) Reset() {
	b.buf = b.buf[:0]
	b.lastStart = 0
}
