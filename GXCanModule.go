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
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Gurux/gxcommon-go"
	"go.uber.org/zap"
	"golang.org/x/text/message"
	"golang.org/x/time/rate"
)

// Mode is the CAN mode of a module.
type Mode int

const (
	// ModeUnknown is not accepted by Init.
	ModeUnknown Mode = iota
	// ModeNormal is classical CAN.
	ModeNormal
	// ModeFD is stored and reported only. Frames are still classical CAN.
	ModeFD
)

func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "normal"
	case ModeFD:
		return "fd"
	}
	return "unknown"
}

// Endpoint selects the transport of a module. It is implemented by
// SerialEndpoint and UDPEndpoint.
type Endpoint interface {
	fmt.Stringer
	// Validate returns an error if the endpoint can't be opened.
	Validate() error
	validate(p *message.Printer) error
	newTransport(cfg transportConfig) transport
}

type transportConfig struct {
	answerTimeout time.Duration
}

// transport is the wire backend of one module. Methods are called with the
// module I/O lock held.
type transport interface {
	kind() string
	open() error
	close() error
	writeFrame(f Frame, sessionID uint32) error
	// pollReadable waits at most timeout for incoming data.
	pollReadable(timeout time.Duration) (bool, error)
	// readRaw returns the received bytes without waiting.
	readRaw() ([]byte, error)
	// readFrame returns the next received frame and the session ID of the sender.
	readFrame() (Frame, uint32, bool, error)
}

// commander is implemented by transports that accept device commands.
type commander interface {
	sendCommand(cmd []byte) (string, error)
}

// module is one driver instance. io serializes transport access and is
// always taken before mu.
type module struct {
	id ModuleID
	r  *Registry

	io sync.Mutex
	mu sync.Mutex

	mode        Mode
	endpoint    Endpoint
	t           transport
	initialized bool
	stopped     bool
	sessionID   uint32

	callerID uint8
	sink     FrameSink
	filter   FrameFilter

	// generation changes every time the transport is opened or closed.
	generation uint64
	rxRunning  bool
	rxErr      error

	limiter *rate.Limiter
}

func newModule(r *Registry, id ModuleID) *module {
	m := &module{id: id, r: r}
	if r.sendLimit > 0 {
		m.limiter = rate.NewLimiter(r.sendLimit, r.sendBurst)
	}
	return m
}

func (m *module) fields(fields ...zap.Field) []zap.Field {
	return append([]zap.Field{zap.Uint8("module", uint8(m.id))}, fields...)
}

func (m *module) init(mode Mode, ep Endpoint) error {
	if ep == nil {
		return newError("init", m.id, ErrArgument, errors.New("endpoint is nil"))
	}
	if err := ep.validate(m.r.printer()); err != nil {
		return newError("init", m.id, ErrArgument, err)
	}
	m.io.Lock()
	defer m.io.Unlock()
	return m.initLocked("init", mode, ep)
}

// initLocked opens the transport of a validated endpoint. The I/O lock must
// be held.
func (m *module) initLocked(op string, mode Mode, ep Endpoint) error {
	if mode != ModeNormal && mode != ModeFD {
		return newError(op, m.id, ErrArgument, fmt.Errorf("invalid mode %s", mode))
	}
	m.mu.Lock()
	initialized := m.initialized
	m.mu.Unlock()
	if initialized {
		return newError(op, m.id, ErrAlreadyInitialized, nil)
	}
	p := m.r.printer()
	t := ep.newTransport(transportConfig{answerTimeout: m.r.answerTimeout})
	m.r.tracer.trace(gxcommon.TraceTypesInfo, p.Sprintf("msg.opening", m.id, ep), m.fields()...)
	if err := t.open(); err != nil {
		m.r.metrics.failed(m.id, op)
		m.r.tracer.trace(gxcommon.TraceTypesError, p.Sprintf("msg.open_failed", m.id, ep, err), m.fields(zap.Error(err))...)
		return newError(op, m.id, ErrTransport, err)
	}
	sessionID := m.r.newSessionID()
	m.mu.Lock()
	m.mode = mode
	m.endpoint = ep
	m.t = t
	m.initialized = true
	m.stopped = false
	m.sessionID = sessionID
	m.callerID = 0
	m.sink = nil
	m.filter = nil
	m.generation++
	m.rxRunning = false
	m.rxErr = nil
	m.mu.Unlock()
	m.r.tracer.trace(gxcommon.TraceTypesInfo, p.Sprintf("msg.opened", m.id, ep),
		m.fields(zap.String("transport", t.kind()), zap.Uint32("session", sessionID))...)
	return nil
}

// closeLocked closes the transport and ends the receive thread. The I/O
// lock must be held.
func (m *module) closeLocked(op string) error {
	m.mu.Lock()
	if !m.initialized {
		m.mu.Unlock()
		return newError(op, m.id, ErrNotInitialized, nil)
	}
	t, ep := m.t, m.endpoint
	m.initialized = false
	m.stopped = false
	m.t = nil
	m.generation++
	m.rxRunning = false
	m.mu.Unlock()

	p := m.r.printer()
	m.r.tracer.trace(gxcommon.TraceTypesInfo, p.Sprintf("msg.closing", m.id, ep), m.fields()...)
	err := t.close()
	m.r.tracer.trace(gxcommon.TraceTypesInfo, p.Sprintf("msg.closed", m.id, ep), m.fields()...)
	if err != nil {
		m.r.metrics.failed(m.id, op)
		return newError(op, m.id, nil, err)
	}
	return nil
}

func (m *module) close(op string) error {
	m.io.Lock()
	defer m.io.Unlock()
	return m.closeLocked(op)
}

// reset closes and opens the transport without releasing the I/O lock, so
// no other Init can take the module in between.
func (m *module) reset(mode Mode) error {
	if mode != ModeNormal && mode != ModeFD {
		return newError("reset", m.id, ErrArgument, fmt.Errorf("invalid mode %s", mode))
	}
	m.io.Lock()
	defer m.io.Unlock()
	m.mu.Lock()
	ep := m.endpoint
	m.mu.Unlock()
	err := m.closeLocked("reset")
	if errors.Is(err, ErrNotInitialized) {
		return err
	}
	if err != nil {
		// The transport is released even when the device didn't answer.
		m.r.tracer.logger.Warn("close failed during reset", m.fields(zap.Error(err))...)
	}
	return m.initLocked("reset", mode, ep)
}

func (m *module) setStopped(op string, stopped bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		return newError(op, m.id, ErrNotInitialized, nil)
	}
	m.stopped = stopped
	key := "msg.restarted"
	if stopped {
		key = "msg.stopped"
	}
	m.r.tracer.trace(gxcommon.TraceTypesInfo, m.r.printer().Sprintf(key, m.id), m.fields()...)
	return nil
}

// active returns the open transport. The I/O lock must be held.
func (m *module) active(op string) (transport, uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		return nil, 0, newError(op, m.id, ErrNotInitialized, nil)
	}
	if m.stopped {
		return nil, 0, newError(op, m.id, ErrStopped, nil)
	}
	return m.t, m.sessionID, nil
}

func (m *module) send(ctx context.Context, f Frame) error {
	if err := f.Validate(); err != nil {
		return newError("send", m.id, ErrArgument, err)
	}
	if m.limiter != nil {
		if err := m.limiter.Wait(ctx); err != nil {
			return newError("send", m.id, nil, err)
		}
	}
	m.io.Lock()
	defer m.io.Unlock()
	t, sessionID, err := m.active("send")
	if err != nil {
		return err
	}
	if err := t.writeFrame(f, sessionID); err != nil {
		m.r.metrics.failed(m.id, "send")
		m.r.tracer.trace(gxcommon.TraceTypesError, "send failed", m.fields(zap.Stringer("frame", f), zap.Error(err))...)
		return newError("send", m.id, nil, err)
	}
	m.r.metrics.sent(m.id, t.kind())
	m.r.tracer.frameSent(m.id, t.kind(), f)
	return nil
}

// recv returns the next received frame without waiting. Own UDP frames are skipped.
func (m *module) recv() (Frame, bool, error) {
	m.io.Lock()
	defer m.io.Unlock()
	t, sessionID, err := m.active("recv")
	if err != nil {
		return Frame{}, false, err
	}
	for {
		f, from, ok, err := t.readFrame()
		if err != nil {
			m.r.metrics.failed(m.id, "recv")
			return Frame{}, false, newError("recv", m.id, nil, err)
		}
		if !ok {
			return Frame{}, false, nil
		}
		if t.kind() == transportUDP && from == sessionID {
			m.r.metrics.dropped(m.id, DropLoopback)
			continue
		}
		m.r.metrics.received(m.id, t.kind())
		m.r.tracer.frameReceived(m.id, t.kind(), f)
		return f, true, nil
	}
}

func (m *module) command(cmd string) (string, error) {
	if err := checkCommand([]byte(cmd)); err != nil {
		return "", newError("command", m.id, ErrArgument, err)
	}
	m.io.Lock()
	defer m.io.Unlock()
	t, _, err := m.active("command")
	if err != nil {
		return "", err
	}
	c, ok := t.(commander)
	if !ok {
		return "", newError("command", m.id, ErrUnsupported, nil)
	}
	ret, err := c.sendCommand([]byte(cmd))
	if err != nil {
		m.r.metrics.failed(m.id, "command")
		return "", newError("command", m.id, nil, err)
	}
	return ret, nil
}

func (m *module) info() ModuleInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	ret := ModuleInfo{
		ID:                   m.id,
		Mode:                 m.mode.String(),
		Initialized:          m.initialized,
		Stopped:              m.stopped,
		ReceiveThreadRunning: m.rxRunning,
		SessionID:            m.sessionID,
	}
	if m.endpoint != nil {
		ret.Endpoint = m.endpoint.String()
	}
	if m.t != nil {
		ret.Transport = m.t.kind()
	}
	if m.rxErr != nil {
		ret.LastError = m.rxErr.Error()
	}
	return ret
}
