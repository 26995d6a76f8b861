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
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func newTestRegistry(t *testing.T, capacity int, opts ...Option) *Registry {
	t.Helper()
	opts = append([]Option{
		WithPollTimeout(time.Millisecond),
		WithIdleInterval(time.Millisecond),
	}, opts...)
	r := NewRegistry(capacity, opts...)
	r.newSessionID = sequentialSessions()
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func initModule(t *testing.T, r *Registry, ep Endpoint) ModuleID {
	t.Helper()
	id, err := r.CreateModule()
	require.NoError(t, err)
	require.NoError(t, r.Init(id, ModeNormal, ep))
	return id
}

func TestCreateModule(t *testing.T) {
	r := newTestRegistry(t, 2)
	assert.Equal(t, 2, r.Capacity())

	a, err := r.CreateModule()
	require.NoError(t, err)
	b, err := r.CreateModule()
	require.NoError(t, err)
	assert.Equal(t, ModuleID(0), a)
	assert.Equal(t, ModuleID(1), b)

	_, err = r.CreateModule()
	assert.ErrorIs(t, err, ErrNoFreeSlot)

	require.NoError(t, r.Destroy(a))
	id, err := r.CreateModule()
	require.NoError(t, err)
	assert.Equal(t, a, id)
}

func TestDefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultCapacity, NewRegistry(0).Capacity())
	assert.Equal(t, maxCapacity, NewRegistry(1000).Capacity())
}

func TestUnknownModule(t *testing.T) {
	r := newTestRegistry(t, 1)
	err := r.Init(0, ModeNormal, memEndpoint{bus: newMemBus()})
	assert.ErrorIs(t, err, ErrInvalidModule)
	assert.ErrorIs(t, err, ErrArgument)

	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, "init", e.Op)
	assert.Equal(t, 0, e.Module)

	_, err = r.IsInitialized(5)
	assert.ErrorIs(t, err, ErrArgument)
	assert.ErrorIs(t, r.Destroy(0), ErrArgument)
	assert.ErrorIs(t, r.Send(3, 0x10, 0, nil, 0), ErrArgument)
	_, _, err = r.Recv(3)
	assert.ErrorIs(t, err, ErrArgument)
	_, err = r.SendCommand(3, CmdVersion)
	assert.ErrorIs(t, err, ErrArgument)
	assert.ErrorIs(t, r.StartReceiveThread(3), ErrInvalidModule)
}

func TestInitErrors(t *testing.T) {
	bus := newMemBus()
	tests := []struct {
		name string
		mode Mode
		ep   Endpoint
		want error
	}{
		{"unknown mode", ModeUnknown, memEndpoint{bus: bus}, ErrArgument},
		{"nil endpoint", ModeNormal, nil, ErrArgument},
		{"invalid endpoint", ModeNormal, memEndpoint{}, ErrArgument},
		{"no serial port", ModeNormal, SerialEndpoint{}, ErrArgument},
		{"no udp port", ModeNormal, UDPEndpoint{}, ErrArgument},
		{"open failed", ModeNormal, memEndpoint{bus: bus, openErr: errors.New("boom")}, ErrTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRegistry(t, 1)
			id, err := r.CreateModule()
			require.NoError(t, err)
			err = r.Init(id, tt.mode, tt.ep)
			assert.ErrorIs(t, err, tt.want)
			ok, err := r.IsInitialized(id)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestLifecycle(t *testing.T) {
	r := newTestRegistry(t, 1)
	var opened atomic.Int32
	ep := memEndpoint{bus: newMemBus(), name: "a", opened: &opened}
	id := initModule(t, r, ep)

	ok, err := r.IsInitialized(id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.ErrorIs(t, r.Init(id, ModeNormal, ep), ErrAlreadyInitialized)

	session, err := r.SessionID(id)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), session)

	require.NoError(t, r.Stop(id))
	stopped, err := r.IsStopped(id)
	require.NoError(t, err)
	assert.True(t, stopped)
	assert.ErrorIs(t, r.Send(id, 0x10, 0, nil, 0), ErrStopped)
	_, _, err = r.Recv(id)
	assert.ErrorIs(t, err, ErrStopped)

	require.NoError(t, r.Restart(id))
	stopped, err = r.IsStopped(id)
	require.NoError(t, err)
	assert.False(t, stopped)
	require.NoError(t, r.Send(id, 0x10, 0, nil, 0))

	require.NoError(t, r.Reset(id, ModeFD))
	mode, err := r.Mode(id)
	require.NoError(t, err)
	assert.Equal(t, ModeFD, mode)
	assert.Equal(t, int32(2), opened.Load())
	session, err = r.SessionID(id)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), session)
	got, err := r.Endpoint(id)
	require.NoError(t, err)
	assert.Equal(t, "mem://a", got.String())

	require.NoError(t, r.Destroy(id))
	_, err = r.IsInitialized(id)
	assert.ErrorIs(t, err, ErrInvalidModule)
}

func TestResetIsAtomic(t *testing.T) {
	r := newTestRegistry(t, 1)
	ep := memEndpoint{bus: newMemBus()}
	id := initModule(t, r, ep)

	done := make(chan struct{})
	initErrs := make(chan error, 1)
	go func() {
		defer close(initErrs)
		for {
			select {
			case <-done:
				return
			default:
			}
			if err := r.Init(id, ModeNormal, ep); !errors.Is(err, ErrAlreadyInitialized) {
				if err == nil {
					err = errors.New("init opened the module during reset")
				}
				initErrs <- err
				return
			}
		}
	}()
	for range 200 {
		require.NoError(t, r.Reset(id, ModeNormal))
	}
	close(done)
	assert.NoError(t, <-initErrs)
	assert.ErrorIs(t, r.Reset(id, ModeUnknown), ErrArgument)
	ok, err := r.IsInitialized(id)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNotInitialized(t *testing.T) {
	r := newTestRegistry(t, 1)
	id, err := r.CreateModule()
	require.NoError(t, err)

	assert.ErrorIs(t, r.Send(id, 0x10, 0, nil, 0), ErrNotInitialized)
	_, _, err = r.Recv(id)
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.ErrorIs(t, r.Stop(id), ErrNotInitialized)
	assert.ErrorIs(t, r.Restart(id), ErrNotInitialized)
	assert.ErrorIs(t, r.Reset(id, ModeNormal), ErrNotInitialized)
	_, err = r.SessionID(id)
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = r.SendCommand(id, CmdVersion)
	assert.ErrorIs(t, err, ErrNotInitialized)
	// Destroying a created but not initialized module frees the slot.
	assert.NoError(t, r.Destroy(id))
}

func TestSendInvalidFrame(t *testing.T) {
	r := newTestRegistry(t, 1)
	id := initModule(t, r, memEndpoint{bus: newMemBus()})
	assert.ErrorIs(t, r.Send(id, 0x800, 0, nil, 0), ErrArgument)
	assert.ErrorIs(t, r.Send(id, 0x10, 9, make([]byte, 9), 0), ErrArgument)
	assert.ErrorIs(t, r.SendFrame(id, Frame{ID: 0x10, Size: 9}), ErrArgument)
}

func TestSendCanceled(t *testing.T) {
	r := newTestRegistry(t, 1, WithSendRate(1, 1))
	id := initModule(t, r, memEndpoint{bus: newMemBus()})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := r.SendContext(ctx, id, Frame{ID: 0x10})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRecvSkipsOwnFrames(t *testing.T) {
	bus := newMemBus()
	r := newTestRegistry(t, 2)
	a := initModule(t, r, memEndpoint{bus: bus, name: "a"})
	b := initModule(t, r, memEndpoint{bus: bus, name: "b"})

	require.NoError(t, r.Send(a, 0x701, 2, []byte{0xDE, 0xAD}, 0))

	f, ok, err := r.Recv(b)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint32(0x701), f.ID)
	assert.Equal(t, []byte{0xDE, 0xAD}, f.Payload())

	_, ok, err = r.Recv(a)
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = r.Recv(b)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSerialFramesAreNotLoopback(t *testing.T) {
	bus := newMemBus()
	r := newTestRegistry(t, 1)
	id := initModule(t, r, memEndpoint{bus: bus, kind: transportSerial})
	require.NoError(t, r.Send(id, 0x10, 0, nil, 0))
	_, ok, err := r.Recv(id)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSendCommand(t *testing.T) {
	r := newTestRegistry(t, 2)
	plain := initModule(t, r, memEndpoint{bus: newMemBus()})
	_, err := r.SendCommand(plain, CmdVersion)
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.ErrorIs(t, err, ErrConfig)

	dev := initModule(t, r, memEndpoint{bus: newMemBus(), kind: transportSerial, answers: map[string]string{
		CmdSerialNumber: "NA123",
		CmdVersion:      "V1013",
		CmdStatusFlags:  "F0C",
		CmdOpen:         "",
	}})
	_, err = r.SendCommand(dev, "V")
	assert.ErrorIs(t, err, ErrArgument)

	sn, err := r.SerialNumber(dev)
	require.NoError(t, err)
	assert.Equal(t, "A123", sn)
	v, err := r.Version(dev)
	require.NoError(t, err)
	assert.Equal(t, "1013", v)
	flags, err := r.StatusFlags(dev)
	require.NoError(t, err)
	assert.Equal(t, uint8(0x0C), flags)

	ret, err := r.SendCommand(dev, CmdOpen)
	require.NoError(t, err)
	assert.Empty(t, ret)
	_, err = r.SendCommand(dev, CmdClose)
	assert.ErrorIs(t, err, ErrNoAnswer)
}

func TestModules(t *testing.T) {
	r := newTestRegistry(t, 4)
	a := initModule(t, r, memEndpoint{bus: newMemBus(), name: "a"})
	_, err := r.CreateModule()
	require.NoError(t, err)

	modules := r.Modules()
	require.Len(t, modules, 2)
	assert.Equal(t, ModuleInfo{
		ID:          a,
		Mode:        "normal",
		Transport:   transportUDP,
		Endpoint:    "mem://a",
		Initialized: true,
		SessionID:   1,
	}, modules[0])
	assert.Equal(t, "unknown", modules[1].Mode)
	assert.False(t, modules[1].Initialized)
}

func TestRegistryClose(t *testing.T) {
	r := newTestRegistry(t, 3)
	initModule(t, r, memEndpoint{bus: newMemBus()})
	_, err := r.CreateModule()
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Empty(t, r.Modules())
}

func TestMetrics(t *testing.T) {
	m := NewMetrics(nil)
	bus := newMemBus()
	r := newTestRegistry(t, 2, WithMetrics(m))
	a := initModule(t, r, memEndpoint{bus: bus})
	b := initModule(t, r, memEndpoint{bus: bus})

	require.NoError(t, r.Send(a, 0x10, 0, nil, 0))
	_, _, err := r.Recv(a)
	require.NoError(t, err)
	_, _, err = r.Recv(b)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FramesSent.WithLabelValues("0", transportUDP)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FramesReceived.WithLabelValues("1", transportUDP)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FramesDropped.WithLabelValues("0", DropLoopback)))
}

func TestLocalize(t *testing.T) {
	r := newTestRegistry(t, 1)
	id, err := r.CreateModule()
	require.NoError(t, err)

	err = r.Init(id, ModeNormal, SerialEndpoint{})
	assert.ErrorContains(t, err, "No serial port selected.")

	r.Localize(language.German)
	err = r.Init(id, ModeNormal, SerialEndpoint{})
	assert.ErrorIs(t, err, ErrArgument)
	assert.NotContains(t, err.Error(), "No serial port selected.")
}
