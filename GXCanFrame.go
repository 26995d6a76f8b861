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
	"fmt"
	"strings"
)

// Frame flags.
const (
	// FlagExtended marks a 29-bit identifier. Standard 11-bit is used when clear.
	FlagExtended uint32 = 0x01
	// FlagRTR marks a remote transmission request. RTR frames carry no payload.
	FlagRTR uint32 = 0x10
)

// Frame limits.
const (
	MaxDataSize   = 8
	MaxStandardID = 0x7FF
	MaxExtendedID = 0x1FFFFFFF
)

// Frame is a classical CAN frame.
type Frame struct {
	ID    uint32
	Size  uint8
	Data  [MaxDataSize]byte
	Flags uint32
}

// NewFrame builds a frame from the data given by the caller.
// Extra data bytes after size are ignored. Missing bytes are an error unless
// the frame is a remote transmission request.
func NewFrame(id uint32, size uint8, data []byte, flags uint32) (Frame, error) {
	f := Frame{ID: id, Size: size, Flags: flags}
	if size > MaxDataSize {
		return f, fmt.Errorf("%w: frame size %d exceeds %d", ErrArgument, size, MaxDataSize)
	}
	if !f.IsRTR() {
		if len(data) < int(size) {
			return f, fmt.Errorf("%w: frame size %d but %d data bytes", ErrArgument, size, len(data))
		}
		copy(f.Data[:], data[:size])
	}
	return f, f.Validate()
}

// IsExtended returns true for 29-bit identifiers.
func (f Frame) IsExtended() bool {
	return f.Flags&FlagExtended != 0
}

// IsRTR returns true for remote transmission requests.
func (f Frame) IsRTR() bool {
	return f.Flags&FlagRTR != 0
}

// Validate returns an error if the frame size or identifier is out of range.
func (f Frame) Validate() error {
	if f.Size > MaxDataSize {
		return fmt.Errorf("%w: frame size %d exceeds %d", ErrArgument, f.Size, MaxDataSize)
	}
	if f.IsExtended() {
		if f.ID > MaxExtendedID {
			return fmt.Errorf("%w: extended identifier 0x%X out of range", ErrArgument, f.ID)
		}
	} else if f.ID > MaxStandardID {
		return fmt.Errorf("%w: standard identifier 0x%X out of range", ErrArgument, f.ID)
	}
	return nil
}

// Payload returns the data bytes carried on the wire.
func (f Frame) Payload() []byte {
	if f.IsRTR() || f.Size == 0 {
		return nil
	}
	n := f.Size
	if n > MaxDataSize {
		n = MaxDataSize
	}
	return f.Data[:n]
}

// String returns the frame in short format, for example "701 [2] DE AD".
func (f Frame) String() string {
	var b strings.Builder
	if f.IsExtended() {
		fmt.Fprintf(&b, "%08X", f.ID)
	} else {
		fmt.Fprintf(&b, "%03X", f.ID)
	}
	fmt.Fprintf(&b, " [%d]", f.Size)
	if f.IsRTR() {
		b.WriteString(" RTR")
		return b.String()
	}
	for _, v := range f.Payload() {
		fmt.Fprintf(&b, " %02X", v)
	}
	return b.String()
}

// LongString returns the frame in long, multi-line format.
func (f Frame) LongString() string {
	var b strings.Builder
	b.WriteString("CAN message :\n")
	fmt.Fprintf(&b, "\tID    : 0x%08X\n", f.ID)
	fmt.Fprintf(&b, "\tSize  : %d\n", f.Size)
	b.WriteString("\tData  :")
	for _, v := range f.Payload() {
		fmt.Fprintf(&b, " %02X", v)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "\tFlags : 0x%08X\n", f.Flags)
	return b.String()
}
