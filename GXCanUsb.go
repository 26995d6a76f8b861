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
	"strconv"
)

// CANUSB (Lawicel) commands. Every command is terminated with CR.
const (
	CmdOpen         = "O\r"
	CmdClose        = "C\r"
	CmdSerialNumber = "N\r"
	CmdVersion      = "V\r"
	CmdStatusFlags  = "F\r"
)

const (
	cmdStandard    = 't'
	cmdExtended    = 'T'
	cmdStandardRTR = 'r'
	cmdExtendedRTR = 'R'
	cmdBitrate     = 'S'

	// answerOK is the device "OK" answer.
	answerOK = '\r'
	// answerBell is sent by the device when a command fails.
	answerBell = 0x07
	// Transmit acknowledges for standard and extended frames.
	answerTxStandard = 'z'
	answerTxExtended = 'Z'

	// answerMaxSize is the longest answer the CANUSB device sends (6 bytes) with margin.
	answerMaxSize = 8

	standardHeaderSize = 5
	extendedHeaderSize = 10
	// encodedMaxSize is 'T' + 8 id digits + dlc + 16 data digits + CR.
	encodedMaxSize = 1 + 8 + 1 + 2*MaxDataSize + 1
)

// CANBitrate selects a CAN bus bitrate with the Sn command.
// The zero value keeps the bitrate stored in the device.
type CANBitrate int

// Standard CANUSB bitrates.
const (
	BitrateDefault CANBitrate = iota
	Bitrate10K
	Bitrate20K
	Bitrate50K
	Bitrate100K
	Bitrate125K
	Bitrate250K
	Bitrate500K
	Bitrate800K
	Bitrate1M
)

var bitrateNames = map[CANBitrate]string{
	BitrateDefault: "default",
	Bitrate10K:     "10k",
	Bitrate20K:     "20k",
	Bitrate50K:     "50k",
	Bitrate100K:    "100k",
	Bitrate125K:    "125k",
	Bitrate250K:    "250k",
	Bitrate500K:    "500k",
	Bitrate800K:    "800k",
	Bitrate1M:      "1M",
}

func (b CANBitrate) String() string {
	if s, ok := bitrateNames[b]; ok {
		return s
	}
	return fmt.Sprintf("CANBitrate(%d)", int(b))
}

// ParseCANBitrate parses names like "125k" or "1M".
func ParseCANBitrate(value string) (CANBitrate, error) {
	for k, v := range bitrateNames {
		if v == value {
			return k, nil
		}
	}
	return BitrateDefault, fmt.Errorf("%w: unknown CAN bitrate %q", ErrArgument, value)
}

// command returns the Sn command for the bitrate.
func (b CANBitrate) command() (string, error) {
	if b <= BitrateDefault || b > Bitrate1M {
		return "", fmt.Errorf("%w: invalid CAN bitrate %d", ErrArgument, int(b))
	}
	return fmt.Sprintf("%c%d\r", cmdBitrate, int(b)-1), nil
}

// Encode converts a frame to the CANUSB transmit command.
func Encode(f Frame) ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	buf := make([]byte, 0, encodedMaxSize)
	switch {
	case f.IsExtended() && f.IsRTR():
		buf = append(buf, cmdExtendedRTR)
	case f.IsExtended():
		buf = append(buf, cmdExtended)
	case f.IsRTR():
		buf = append(buf, cmdStandardRTR)
	default:
		buf = append(buf, cmdStandard)
	}
	if f.IsExtended() {
		buf = fmt.Appendf(buf, "%08X", f.ID)
	} else {
		buf = fmt.Appendf(buf, "%03X", f.ID)
	}
	buf = append(buf, '0'+f.Size)
	for _, v := range f.Payload() {
		buf = fmt.Appendf(buf, "%02X", v)
	}
	return append(buf, '\r'), nil
}

// Decode parses one CANUSB frame message.
//
// A timestamp suffix, sent when the device option is enabled, is ignored.
func Decode(buf []byte) (Frame, error) {
	var f Frame
	if len(buf) == 0 {
		return f, fmt.Errorf("%w: empty buffer", ErrArgument)
	}
	var header int
	switch buf[0] {
	case cmdStandard:
		header = standardHeaderSize
	case cmdExtended:
		header = extendedHeaderSize
		f.Flags |= FlagExtended
	case cmdStandardRTR:
		header = standardHeaderSize
		f.Flags |= FlagRTR
	case cmdExtendedRTR:
		header = extendedHeaderSize
		f.Flags |= FlagExtended | FlagRTR
	default:
		return f, fmt.Errorf("%w (0x%02X)", ErrUnknownCommand, buf[0])
	}
	if len(buf) < header {
		return f, fmt.Errorf("%w (%d < %d)", ErrTruncated, len(buf), header+1)
	}
	dlc := buf[header-1]
	if dlc < '0' || dlc > '0'+MaxDataSize {
		return f, fmt.Errorf("%w: invalid DLC %q", ErrProtocol, dlc)
	}
	f.Size = dlc - '0'
	minSize := header + 1
	if !f.IsRTR() {
		minSize += 2 * int(f.Size)
	}
	if len(buf) < minSize {
		return f, fmt.Errorf("%w (%d < %d)", ErrTruncated, len(buf), minSize)
	}
	id, err := strconv.ParseUint(string(buf[1:header-1]), 16, 32)
	if err != nil {
		return f, fmt.Errorf("%w: invalid identifier %q", ErrProtocol, buf[1:header-1])
	}
	f.ID = uint32(id)
	if err := f.Validate(); err != nil {
		return f, fmt.Errorf("%w: %w", ErrProtocol, err)
	}
	if !f.IsRTR() {
		for i := 0; i < int(f.Size); i++ {
			pos := header + 2*i
			hi, ok1 := fromHex(buf[pos])
			lo, ok2 := fromHex(buf[pos+1])
			if !ok1 || !ok2 {
				return f, fmt.Errorf("%w: invalid data byte %q", ErrProtocol, buf[pos:pos+2])
			}
			f.Data[i] = hi<<4 | lo
		}
	}
	return f, nil
}

func fromHex(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	}
	return 0, false
}

// isFrameMessage returns true when the message is a received CAN frame.
func isFrameMessage(msg []byte) bool {
	if len(msg) < 2 {
		return false
	}
	switch msg[0] {
	case cmdStandard, cmdExtended, cmdStandardRTR, cmdExtendedRTR:
		return true
	}
	return false
}

// isAcknowledge returns true for OK and transmit answers.
func isAcknowledge(msg []byte) bool {
	switch {
	case len(msg) == 1 && msg[0] == answerOK:
		return true
	case len(msg) == 2 && msg[1] == answerOK:
		return msg[0] == answerTxStandard || msg[0] == answerTxExtended
	}
	return false
}

// checkCommand validates a command before it is written to the device.
func checkCommand(cmd []byte) error {
	if len(cmd) < 2 {
		return fmt.Errorf("%w: the command must be at least 2 characters long", ErrArgument)
	}
	if cmd[len(cmd)-1] != '\r' {
		return fmt.Errorf("%w: the command must end with CR", ErrArgument)
	}
	return nil
}

// checkAnswer classifies the device answer to cmd. It returns the answer
// text without the trailing CR.
func checkAnswer(cmd, answer []byte) (string, error) {
	if len(answer) == 0 {
		return "", ErrNoAnswer
	}
	if answer[0] == answerBell {
		return "", ErrDeviceBell
	}
	if answer[len(answer)-1] != answerOK {
		return "", fmt.Errorf("%w: %q", ErrUnexpectedAnswer, answer)
	}
	text := string(bytes.TrimSuffix(answer, []byte{answerOK}))
	if text == "" {
		return "", nil
	}
	switch cmd[0] {
	case cmdStandard, cmdStandardRTR:
		if text == string(answerTxStandard) {
			return "", nil
		}
	case cmdExtended, cmdExtendedRTR:
		if text == string(answerTxExtended) {
			return "", nil
		}
	default:
		// Information commands echo the command letter.
		if text[0] == cmd[0] {
			return text, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnexpectedAnswer, answer)
}
