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
	"time"

	"github.com/Gurux/gxcommon-go"
	"go.uber.org/zap"
)

// FrameSink receives the frames read by the receive thread. PutFrame is
// called from the receive thread without any driver lock held.
// Returning an error stops the receive thread.
type FrameSink interface {
	PutFrame(callerID uint8, f Frame) error
}

// FrameSinkFunc adapts a function to FrameSink. Data is valid only during the call.
type FrameSinkFunc func(callerID uint8, id uint32, size uint8, data []byte, flags uint32) error

// PutFrame implements FrameSink.
func (fn FrameSinkFunc) PutFrame(callerID uint8, f Frame) error {
	return fn(callerID, f.ID, f.Size, f.Payload(), f.Flags)
}

// errReceiverClosed ends a receive thread whose transport was closed.
var errReceiverClosed = errors.New("gxcan: receive thread closed")

// SetReceiveCallback sets the sink for received frames. callerID is given
// back to the sink with every frame.
func (r *Registry) SetReceiveCallback(id ModuleID, callerID uint8, sink FrameSink) error {
	m, err := r.lookup("set receive callback", id)
	if err != nil {
		return err
	}
	if sink == nil {
		return newError("set receive callback", id, ErrArgument, errors.New("sink is nil"))
	}
	m.mu.Lock()
	m.callerID = callerID
	m.sink = sink
	m.mu.Unlock()
	return nil
}

// SetReceiveFilter sets which received frames are given to the sink.
// Nil delivers all frames.
func (r *Registry) SetReceiveFilter(id ModuleID, filter FrameFilter) error {
	m, err := r.lookup("set receive filter", id)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.filter = filter
	m.mu.Unlock()
	return nil
}

// StartReceiveThread starts reading frames in the background.
func (r *Registry) StartReceiveThread(id ModuleID) error {
	m, err := r.lookup("start receive thread", id)
	if err != nil {
		return err
	}
	return m.startReceiver("start receive thread", false)
}

// Process starts the receive thread if it is not running.
func (r *Registry) Process(id ModuleID) error {
	m, err := r.lookup("process", id)
	if err != nil {
		return err
	}
	return m.startReceiver("process", true)
}

// IsReceiveThreadRunning returns true while the receive thread runs.
func (r *Registry) IsReceiveThreadRunning(id ModuleID) (bool, error) {
	m, err := r.lookup("is receive thread running", id)
	if err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rxRunning, nil
}

// ReceiveStatus is the state of the receive thread of a module.
type ReceiveStatus struct {
	// Running is true while the receive thread runs.
	Running bool
	// Err is the error that stopped the last receive thread. It is nil while
	// the thread runs or if the thread was stopped by Reset, Destroy or Close.
	Err error
}

// ReceiveThreadStatus returns the state of the receive thread.
func (r *Registry) ReceiveThreadStatus(id ModuleID) (ReceiveStatus, error) {
	m, err := r.lookup("receive thread status", id)
	if err != nil {
		return ReceiveStatus{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return ReceiveStatus{Running: m.rxRunning, Err: m.rxErr}, nil
}

func (m *module) startReceiver(op string, ifStopped bool) error {
	m.mu.Lock()
	if !m.initialized {
		m.mu.Unlock()
		return newError(op, m.id, ErrNotInitialized, nil)
	}
	if m.sink == nil {
		m.mu.Unlock()
		return newError(op, m.id, ErrConfig, errors.New("receive callback is not set"))
	}
	if m.rxRunning {
		m.mu.Unlock()
		if ifStopped {
			return nil
		}
		return newError(op, m.id, ErrAlreadyRunning, nil)
	}
	m.rxRunning = true
	m.rxErr = nil
	generation := m.generation
	m.mu.Unlock()

	m.r.metrics.threadStarted(m.id)
	m.r.tracer.trace(gxcommon.TraceTypesInfo, m.r.printer().Sprintf("msg.rx_started", m.id), m.fields()...)
	go m.receive(generation)
	return nil
}

// polled is the result of one receive iteration.
type polled struct {
	f        Frame
	ok       bool
	paused   bool
	loopback bool
	callerID uint8
	sink     FrameSink
	filter   FrameFilter
}

func (m *module) receive(generation uint64) {
	var err error
	defer func() {
		m.mu.Lock()
		if m.generation == generation {
			m.rxRunning = false
			m.rxErr = err
		}
		m.mu.Unlock()
		m.r.metrics.threadStopped(m.id)
		if err != nil {
			m.r.tracer.logger.Warn("receive thread failed", m.fields(zap.Error(err))...)
		}
		m.r.tracer.trace(gxcommon.TraceTypesInfo, m.r.printer().Sprintf("msg.rx_stopped", m.id, err), m.fields()...)
	}()
	for {
		ret, e := m.pollOnce(generation)
		if errors.Is(e, errReceiverClosed) {
			return
		}
		if e != nil {
			m.r.metrics.failed(m.id, "receive")
			err = newError("receive", m.id, nil, e)
			return
		}
		if ret.paused || !ret.ok {
			time.Sleep(m.r.idleInterval)
			continue
		}
		if ret.loopback {
			m.r.metrics.dropped(m.id, DropLoopback)
			continue
		}
		if ret.filter != nil && !ret.filter(ret.f) {
			m.r.metrics.dropped(m.id, DropFilter)
			continue
		}
		if ret.sink == nil {
			continue
		}
		if e := ret.sink.PutFrame(ret.callerID, ret.f); e != nil {
			m.r.metrics.failed(m.id, "callback")
			err = newError("callback", m.id, nil, e)
			return
		}
	}
}

// pollOnce waits for one frame with the I/O lock held.
func (m *module) pollOnce(generation uint64) (polled, error) {
	m.io.Lock()
	defer m.io.Unlock()
	m.mu.Lock()
	if m.generation != generation || !m.initialized {
		m.mu.Unlock()
		return polled{}, errReceiverClosed
	}
	ret := polled{paused: m.stopped, callerID: m.callerID, sink: m.sink, filter: m.filter}
	t, sessionID := m.t, m.sessionID
	m.mu.Unlock()
	if ret.paused {
		return ret, nil
	}
	ready, err := t.pollReadable(m.r.pollTimeout)
	if err != nil || !ready {
		return ret, err
	}
	f, from, ok, err := t.readFrame()
	if err != nil || !ok {
		return ret, err
	}
	ret.f, ret.ok = f, true
	ret.loopback = t.kind() == transportUDP && from == sessionID
	if !ret.loopback {
		m.r.metrics.received(m.id, t.kind())
		m.r.tracer.frameReceived(m.id, t.kind(), f)
	}
	return ret, nil
}
