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

// FrameFilter decides whether a received frame is delivered to the sink.
type FrameFilter func(Frame) bool

// ByID matches frames with the exact identifier.
func ByID(id uint32) FrameFilter {
	return func(f Frame) bool { return f.ID == id }
}

// ByIDs matches any of the given identifiers.
func ByIDs(ids ...uint32) FrameFilter {
	m := make(map[uint32]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return func(f Frame) bool {
		_, ok := m[f.ID]
		return ok
	}
}

// ByRange matches identifiers in [minID, maxID].
func ByRange(minID, maxID uint32) FrameFilter {
	if maxID < minID {
		minID, maxID = maxID, minID
	}
	return func(f Frame) bool { return f.ID >= minID && f.ID <= maxID }
}

// ByMask matches when (frame.ID & mask) == (id & mask).
func ByMask(id uint32, mask uint32) FrameFilter {
	want := id & mask
	return func(f Frame) bool { return f.ID&mask == want }
}

// StandardOnly matches 11-bit identifiers.
func StandardOnly() FrameFilter {
	return func(f Frame) bool { return !f.IsExtended() }
}

// ExtendedOnly matches 29-bit identifiers.
func ExtendedOnly() FrameFilter {
	return func(f Frame) bool { return f.IsExtended() }
}

// DataOnly matches data frames.
func DataOnly() FrameFilter {
	return func(f Frame) bool { return !f.IsRTR() }
}

// RTROnly matches remote transmission requests.
func RTROnly() FrameFilter {
	return func(f Frame) bool { return f.IsRTR() }
}

// And matches when both filters match. A nil filter matches everything.
func And(a, b FrameFilter) FrameFilter {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(f Frame) bool { return a(f) && b(f) }
}

// Or matches when either filter matches.
func Or(a, b FrameFilter) FrameFilter {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(f Frame) bool { return a(f) || b(f) }
}

// Not inverts a filter.
func Not(a FrameFilter) FrameFilter {
	if a == nil {
		return func(Frame) bool { return false }
	}
	return func(f Frame) bool { return !a(f) }
}
