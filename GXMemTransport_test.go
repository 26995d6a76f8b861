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
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/text/message"
)

// memBus delivers every written frame to all open transports, the writer included.
type memBus struct {
	mu      sync.Mutex
	members map[*memTransport]struct{}
}

func newMemBus() *memBus {
	return &memBus{members: make(map[*memTransport]struct{})}
}

func (b *memBus) join(t *memTransport) {
	b.mu.Lock()
	b.members[t] = struct{}{}
	b.mu.Unlock()
}

func (b *memBus) leave(t *memTransport) {
	b.mu.Lock()
	delete(b.members, t)
	b.mu.Unlock()
}

func (b *memBus) broadcast(d memDatagram) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for t := range b.members {
		select {
		case t.ch <- d:
		default:
		}
	}
}

type memDatagram struct {
	f       Frame
	session uint32
}

// memEndpoint opens a memTransport on the bus.
type memEndpoint struct {
	bus  *memBus
	name string
	// kind defaults to udp.
	kind    string
	openErr error
	// answers enables device commands when set.
	answers map[string]string
	opened  *atomic.Int32
}

func (e memEndpoint) String() string {
	return "mem://" + e.name
}

func (e memEndpoint) Validate() error {
	return e.validate(defaultPrinter)
}

func (e memEndpoint) validate(*message.Printer) error {
	if e.bus == nil {
		return fmt.Errorf("%w: no bus", ErrArgument)
	}
	return nil
}

func (e memEndpoint) newTransport(transportConfig) transport {
	kind := e.kind
	if kind == "" {
		kind = transportUDP
	}
	t := &memTransport{endpoint: e, transportKind: kind}
	if e.answers != nil {
		return &memCommandTransport{memTransport: t}
	}
	return t
}

type memTransport struct {
	endpoint      memEndpoint
	transportKind string
	ch            chan memDatagram
	pending       *memDatagram
}

func (t *memTransport) kind() string {
	return t.transportKind
}

func (t *memTransport) open() error {
	if t.endpoint.openErr != nil {
		return t.endpoint.openErr
	}
	t.ch = make(chan memDatagram, 64)
	t.endpoint.bus.join(t)
	if t.endpoint.opened != nil {
		t.endpoint.opened.Add(1)
	}
	return nil
}

func (t *memTransport) close() error {
	t.endpoint.bus.leave(t)
	t.pending = nil
	return nil
}

func (t *memTransport) writeFrame(f Frame, sessionID uint32) error {
	if t.ch == nil {
		return errors.New("closed")
	}
	t.endpoint.bus.broadcast(memDatagram{f: f, session: sessionID})
	return nil
}

func (t *memTransport) pollReadable(timeout time.Duration) (bool, error) {
	if t.pending != nil {
		return true, nil
	}
	select {
	case d := <-t.ch:
		t.pending = &d
		return true, nil
	case <-time.After(timeout):
		return false, nil
	}
}

func (t *memTransport) readRaw() ([]byte, error) {
	return nil, nil
}

func (t *memTransport) readFrame() (Frame, uint32, bool, error) {
	if d := t.pending; d != nil {
		t.pending = nil
		return d.f, d.session, true, nil
	}
	select {
	case d := <-t.ch:
		return d.f, d.session, true, nil
	default:
		return Frame{}, 0, false, nil
	}
}

type memCommandTransport struct {
	*memTransport
}

func (t *memCommandTransport) sendCommand(cmd []byte) (string, error) {
	ret, ok := t.endpoint.answers[string(cmd)]
	if !ok {
		return "", ErrNoAnswer
	}
	return ret, nil
}

// frameEvent is one frame given to a chanSink.
type frameEvent struct {
	callerID uint8
	f        Frame
}

// chanSink forwards received frames to a channel.
type chanSink struct {
	ch  chan frameEvent
	err error
}

func newChanSink() *chanSink {
	return &chanSink{ch: make(chan frameEvent, 64)}
}

func (s *chanSink) PutFrame(callerID uint8, f Frame) error {
	select {
	case s.ch <- frameEvent{callerID: callerID, f: f}:
	default:
	}
	return s.err
}

// sequentialSessions returns session IDs 1, 2, 3...
func sequentialSessions() func() uint32 {
	var n atomic.Uint32
	return func() uint32 { return n.Add(1) }
}
