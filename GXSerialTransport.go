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
	"time"

	"github.com/Gurux/gxcommon-go"
	"golang.org/x/text/message"
)

// Default serial settings of the CANUSB adapter.
const (
	DefaultSerialBaudRate gxcommon.BaudRate = 115200
	DefaultSerialDataBits                   = 8
)

const transportSerial = "serial"

// SerialEndpoint selects a CANUSB adapter behind a serial port.
type SerialEndpoint struct {
	// Port is the serial device, for example /dev/ttyUSB0.
	Port string
	// BaudRate of the serial link. Zero uses 115200.
	BaudRate gxcommon.BaudRate
	// DataBits of the serial link. Zero uses 8.
	DataBits int
	Parity   gxcommon.Parity
	// StopBits of the serial link. Zero uses one stop bit.
	StopBits gxcommon.StopBits
	// Bitrate is written to the device before the channel is opened.
	Bitrate CANBitrate
}

func (e SerialEndpoint) String() string {
	return fmt.Sprintf("serial://%s", e.Port)
}

// Validate returns an error if the endpoint can't be opened.
func (e SerialEndpoint) Validate() error {
	return e.validate(defaultPrinter)
}

func (e SerialEndpoint) validate(p *message.Printer) error {
	if e.Port == "" {
		return fmt.Errorf("%w: %s", ErrArgument, p.Sprintf("msg.no_serial_port_selected"))
	}
	if e.DataBits != 0 && (e.DataBits < 5 || e.DataBits > 8) {
		return fmt.Errorf("%w: invalid databits %d (must be 5..8)", ErrArgument, e.DataBits)
	}
	if e.Bitrate < BitrateDefault || e.Bitrate > Bitrate1M {
		return fmt.Errorf("%w: invalid CAN bitrate %d", ErrArgument, int(e.Bitrate))
	}
	return nil
}

// withDefaults returns the endpoint with zero values replaced.
func (e SerialEndpoint) withDefaults() SerialEndpoint {
	if e.BaudRate == 0 {
		e.BaudRate = DefaultSerialBaudRate
	}
	if e.DataBits == 0 {
		e.DataBits = DefaultSerialDataBits
	}
	if e.StopBits == 0 {
		e.StopBits = gxcommon.StopBitsOne
	}
	return e
}

func (e SerialEndpoint) newTransport(cfg transportConfig) transport {
	return &serialTransport{endpoint: e.withDefaults(), answerTimeout: cfg.answerTimeout}
}

// serialTransport talks to a CANUSB adapter with the ASCII protocol.
type serialTransport struct {
	endpoint      SerialEndpoint
	answerTimeout time.Duration
	s             port
	rx            receiveBuffer
	// inbox holds frame messages received while waiting for an answer.
	inbox [][]byte
}

func (t *serialTransport) kind() string {
	return transportSerial
}

func (t *serialTransport) open() error {
	if err := openPort(&t.s, t.endpoint); err != nil {
		return err
	}
	t.rx.Reset()
	t.inbox = nil
	if t.endpoint.Bitrate != BitrateDefault {
		cmd, err := t.endpoint.Bitrate.command()
		if err == nil {
			_, err = t.sendCommand([]byte(cmd))
		}
		if err != nil {
			t.s.close()
			return fmt.Errorf("set CAN bitrate %s: %w", t.endpoint.Bitrate, err)
		}
	}
	if _, err := t.sendCommand([]byte(CmdOpen)); err != nil {
		t.s.close()
		return fmt.Errorf("open CAN channel: %w", err)
	}
	return nil
}

// close sends the close channel command and always releases the port.
func (t *serialTransport) close() error {
	if !t.s.isOpen() {
		return nil
	}
	_, err := t.sendCommand([]byte(CmdClose))
	if err != nil {
		err = fmt.Errorf("close CAN channel: %w", err)
	}
	t.rx.Reset()
	t.inbox = nil
	return errors.Join(err, t.s.close())
}

func (t *serialTransport) writeFrame(f Frame, _ uint32) error {
	cmd, err := Encode(f)
	if err != nil {
		return err
	}
	_, err = t.sendCommand(cmd)
	return err
}

// sendCommand writes cmd and waits for the answer. Frames received while
// waiting are kept for readFrame.
func (t *serialTransport) sendCommand(cmd []byte) (string, error) {
	if err := checkCommand(cmd); err != nil {
		return "", err
	}
	n, err := t.s.write(cmd, t.answerTimeout)
	if err != nil {
		return "", err
	}
	if n != len(cmd) {
		return "", fmt.Errorf("%w: %d of %d bytes written", ErrNetwork, n, len(cmd))
	}
	deadline := time.Now().Add(t.answerTimeout)
	for {
		for msg := t.rx.Next(); msg != nil; msg = t.rx.Next() {
			if isFrameMessage(msg) {
				t.inbox = append(t.inbox, msg)
				continue
			}
			return checkAnswer(cmd, msg)
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return "", ErrNoAnswer
		}
		ready, err := t.s.poll(remaining)
		if err != nil {
			return "", err
		}
		if !ready {
			continue
		}
		data, err := t.s.read()
		if err != nil {
			return "", err
		}
		if err := t.rx.Append(data); err != nil {
			return "", err
		}
	}
}

func (t *serialTransport) pollReadable(timeout time.Duration) (bool, error) {
	if len(t.inbox) != 0 || t.rx.Len() != 0 {
		return true, nil
	}
	return t.s.poll(timeout)
}

func (t *serialTransport) readRaw() ([]byte, error) {
	return t.s.read()
}

// nextMessage returns the next queued or buffered message.
func (t *serialTransport) nextMessage() []byte {
	if len(t.inbox) != 0 {
		msg := t.inbox[0]
		t.inbox = t.inbox[1:]
		return msg
	}
	return t.rx.Next()
}

func (t *serialTransport) readFrame() (Frame, uint32, bool, error) {
	read := false
	for {
		msg := t.nextMessage()
		if msg == nil {
			if read {
				return Frame{}, 0, false, nil
			}
			data, err := t.readRaw()
			if err != nil {
				return Frame{}, 0, false, err
			}
			if err := t.rx.Append(data); err != nil {
				return Frame{}, 0, false, err
			}
			read = true
			continue
		}
		if isFrameMessage(msg) {
			f, err := Decode(msg)
			if err != nil {
				return Frame{}, 0, false, err
			}
			return f, 0, true, nil
		}
		// Late transmit acknowledges are ignored.
		if isAcknowledge(msg) {
			continue
		}
		if msg[0] == answerBell {
			return Frame{}, 0, false, ErrDeviceBell
		}
		return Frame{}, 0, false, fmt.Errorf("%w (0x%02X)", ErrUnknownCommand, msg[0])
	}
}
