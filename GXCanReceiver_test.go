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
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 2 * time.Second

func waitFrame(t *testing.T, s *chanSink) frameEvent {
	t.Helper()
	select {
	case e := <-s.ch:
		return e
	case <-time.After(waitTimeout):
		require.FailNow(t, "frame not received")
	}
	return frameEvent{}
}

func assertNoFrame(t *testing.T, s *chanSink) {
	t.Helper()
	select {
	case e := <-s.ch:
		assert.Failf(t, "unexpected frame", "%s", e.f)
	case <-time.After(50 * time.Millisecond):
	}
}

func startSink(t *testing.T, r *Registry, id ModuleID, callerID uint8) *chanSink {
	t.Helper()
	s := newChanSink()
	require.NoError(t, r.SetReceiveCallback(id, callerID, s))
	require.NoError(t, r.StartReceiveThread(id))
	return s
}

func TestStartReceiveThreadErrors(t *testing.T) {
	r := newTestRegistry(t, 1)
	id, err := r.CreateModule()
	require.NoError(t, err)
	assert.ErrorIs(t, r.StartReceiveThread(id), ErrNotInitialized)

	require.NoError(t, r.Init(id, ModeNormal, memEndpoint{bus: newMemBus()}))
	assert.ErrorIs(t, r.StartReceiveThread(id), ErrConfig)
	assert.ErrorIs(t, r.SetReceiveCallback(id, 1, nil), ErrArgument)

	require.NoError(t, r.SetReceiveCallback(id, 1, newChanSink()))
	require.NoError(t, r.StartReceiveThread(id))
	assert.ErrorIs(t, r.StartReceiveThread(id), ErrAlreadyRunning)
	assert.NoError(t, r.Process(id))

	running, err := r.IsReceiveThreadRunning(id)
	require.NoError(t, err)
	assert.True(t, running)
	status, err := r.ReceiveThreadStatus(id)
	require.NoError(t, err)
	assert.Equal(t, ReceiveStatus{Running: true}, status)
	_, err = r.ReceiveThreadStatus(3)
	assert.ErrorIs(t, err, ErrInvalidModule)
}

func TestReceiveThreadLoopback(t *testing.T) {
	m := NewMetrics(nil)
	bus := newMemBus()
	r := newTestRegistry(t, 2, WithMetrics(m))
	a := initModule(t, r, memEndpoint{bus: bus, name: "a"})
	b := initModule(t, r, memEndpoint{bus: bus, name: "b"})
	sa := startSink(t, r, a, 1)
	sb := startSink(t, r, b, 2)

	require.NoError(t, r.Send(a, 0x701, 8, []byte{0x01, 0x23, 0x45, 0x67, 0x89, 0xAB, 0xCD, 0xEF}, 0))

	e := waitFrame(t, sb)
	assert.Equal(t, uint8(2), e.callerID)
	assert.Equal(t, uint32(0x701), e.f.ID)
	assert.Equal(t, []byte{0x01, 0x23, 0x45, 0x67, 0x89, 0xAB, 0xCD, 0xEF}, e.f.Payload())
	assertNoFrame(t, sa)
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(m.FramesDropped.WithLabelValues("0", DropLoopback)) == 1
	}, waitTimeout, time.Millisecond)
}

func TestReceiveFilter(t *testing.T) {
	bus := newMemBus()
	r := newTestRegistry(t, 2)
	a := initModule(t, r, memEndpoint{bus: bus})
	b := initModule(t, r, memEndpoint{bus: bus})
	require.NoError(t, r.SetReceiveFilter(b, ByID(0x10)))
	sb := startSink(t, r, b, 0)

	require.NoError(t, r.Send(a, 0x11, 0, nil, 0))
	require.NoError(t, r.Send(a, 0x10, 1, []byte{0x42}, 0))

	e := waitFrame(t, sb)
	assert.Equal(t, uint32(0x10), e.f.ID)
	assertNoFrame(t, sb)
}

func TestStoppedModuleDoesNotDeliver(t *testing.T) {
	bus := newMemBus()
	r := newTestRegistry(t, 2)
	a := initModule(t, r, memEndpoint{bus: bus})
	b := initModule(t, r, memEndpoint{bus: bus})
	sb := startSink(t, r, b, 0)

	require.NoError(t, r.Stop(b))
	require.NoError(t, r.Send(a, 0x10, 0, nil, 0))
	assertNoFrame(t, sb)

	running, err := r.IsReceiveThreadRunning(b)
	require.NoError(t, err)
	assert.True(t, running)

	require.NoError(t, r.Restart(b))
	assert.Equal(t, uint32(0x10), waitFrame(t, sb).f.ID)
}

func TestSinkErrorStopsReceiveThread(t *testing.T) {
	errSink := errors.New("sink failed")
	bus := newMemBus()
	r := newTestRegistry(t, 2)
	a := initModule(t, r, memEndpoint{bus: bus})
	b := initModule(t, r, memEndpoint{bus: bus})
	s := newChanSink()
	s.err = errSink
	require.NoError(t, r.SetReceiveCallback(b, 0, s))
	require.NoError(t, r.StartReceiveThread(b))

	require.NoError(t, r.Send(a, 0x10, 0, nil, 0))
	waitFrame(t, s)
	assert.Eventually(t, func() bool {
		running, err := r.IsReceiveThreadRunning(b)
		return err == nil && !running
	}, waitTimeout, time.Millisecond)

	status, err := r.ReceiveThreadStatus(b)
	require.NoError(t, err)
	assert.False(t, status.Running)
	assert.ErrorIs(t, status.Err, errSink)
	assert.Equal(t, status.Err.Error(), r.Modules()[1].LastError)

	// The thread can be started again.
	s.err = nil
	require.NoError(t, r.Process(b))
	require.NoError(t, r.Send(a, 0x20, 0, nil, 0))
	assert.Equal(t, uint32(0x20), waitFrame(t, s).f.ID)
}

func TestCloseEndsReceiveThread(t *testing.T) {
	r := newTestRegistry(t, 1)
	id := initModule(t, r, memEndpoint{bus: newMemBus()})
	startSink(t, r, id, 0)
	require.NoError(t, r.Reset(id, ModeNormal))

	running, err := r.IsReceiveThreadRunning(id)
	require.NoError(t, err)
	assert.False(t, running)
	// Reset clears the callback.
	assert.ErrorIs(t, r.StartReceiveThread(id), ErrConfig)
	status, err := r.ReceiveThreadStatus(id)
	require.NoError(t, err)
	assert.Equal(t, ReceiveStatus{}, status)
}

func TestFrameSinkFunc(t *testing.T) {
	var got []byte
	var gotID uint32
	sink := FrameSinkFunc(func(callerID uint8, id uint32, size uint8, data []byte, flags uint32) error {
		gotID = id
		got = append([]byte(nil), data...)
		assert.Equal(t, uint8(7), callerID)
		assert.Equal(t, uint8(2), size)
		assert.Equal(t, FlagExtended, flags)
		return nil
	})
	require.NoError(t, sink.PutFrame(7, Frame{ID: 0x1234, Size: 2, Data: [8]byte{1, 2}, Flags: FlagExtended}))
	assert.Equal(t, uint32(0x1234), gotID)
	assert.Equal(t, []byte{1, 2}, got)
}
