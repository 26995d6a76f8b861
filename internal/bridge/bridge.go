// Package bridge forwards frames between a CANUSB adapter and a CAN over IP segment.
package bridge

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
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Gurux/gxcan-go"
	"github.com/Gurux/gxcan-go/internal/capture"
)

// Caller IDs given to the receive callbacks.
const (
	callerSerial uint8 = 1
	callerUDP    uint8 = 2
)

// Sender sends a frame on a module.
type Sender interface {
	SendContext(ctx context.Context, id gxcan.ModuleID, f gxcan.Frame) error
}

// Driver is the part of gxcan.Registry used by the bridge.
type Driver interface {
	Sender
	CreateModule() (gxcan.ModuleID, error)
	Init(id gxcan.ModuleID, mode gxcan.Mode, endpoint gxcan.Endpoint) error
	SetReceiveCallback(id gxcan.ModuleID, callerID uint8, sink gxcan.FrameSink) error
	SetReceiveFilter(id gxcan.ModuleID, filter gxcan.FrameFilter) error
	StartReceiveThread(id gxcan.ModuleID) error
	IsReceiveThreadRunning(id gxcan.ModuleID) (bool, error)
	Destroy(id gxcan.ModuleID) error
}

// Recorder stores forwarded frames.
type Recorder interface {
	Write(r capture.Record) error
}

// Stats are the bridge counters.
type Stats struct {
	Forwarded uint64 `json:"forwarded"`
	Failed    uint64 `json:"failed"`
}

// Options configure a Bridge.
type Options struct {
	Serial gxcan.SerialEndpoint
	UDP    gxcan.UDPEndpoint
	// Filter selects forwarded frames on both sides. Nil forwards all.
	Filter   gxcan.FrameFilter
	Recorder Recorder
	Logger   *zap.Logger
}

// Bridge owns two modules and sends the frames received by one on the other.
type Bridge struct {
	d         Driver
	opts      Options
	logger    *zap.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	serial    gxcan.ModuleID
	udp       gxcan.ModuleID
	started   atomic.Bool
	forwarded atomic.Uint64
	failed    atomic.Uint64
}

// New returns a bridge that uses the driver d.
func New(d Driver, opts Options) *Bridge {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Bridge{d: d, opts: opts, logger: logger, ctx: ctx, cancel: cancel}
}

// Start opens both sides and then starts the receive threads, so routing is
// complete before the first frame is delivered.
func (b *Bridge) Start() error {
	var err error
	if b.serial, err = b.open(callerSerial, b.opts.Serial); err != nil {
		return fmt.Errorf("serial side: %w", err)
	}
	if b.udp, err = b.open(callerUDP, b.opts.UDP); err != nil {
		_ = b.d.Destroy(b.serial)
		return fmt.Errorf("udp side: %w", err)
	}
	b.started.Store(true)
	for _, id := range []gxcan.ModuleID{b.serial, b.udp} {
		if err := b.d.StartReceiveThread(id); err != nil {
			b.started.Store(false)
			return errors.Join(fmt.Errorf("start receive thread: %w", err),
				b.d.Destroy(b.serial), b.d.Destroy(b.udp))
		}
	}
	b.logger.Info("bridge started",
		zap.Stringer("serial", b.opts.Serial), zap.Stringer("udp", b.opts.UDP))
	return nil
}

// open creates and initializes one side. The receive thread is not started.
func (b *Bridge) open(callerID uint8, ep gxcan.Endpoint) (gxcan.ModuleID, error) {
	id, err := b.d.CreateModule()
	if err != nil {
		return 0, err
	}
	err = b.d.Init(id, gxcan.ModeNormal, ep)
	if err == nil {
		err = b.d.SetReceiveCallback(id, callerID, b)
	}
	if err == nil && b.opts.Filter != nil {
		err = b.d.SetReceiveFilter(id, b.opts.Filter)
	}
	if err != nil {
		_ = b.d.Destroy(id)
		return 0, err
	}
	return id, nil
}

// PutFrame implements gxcan.FrameSink. Send errors are counted and logged
// and don't stop the receive thread. Frames are dropped until Start has
// opened both sides.
func (b *Bridge) PutFrame(callerID uint8, f gxcan.Frame) error {
	if !b.started.Load() {
		return nil
	}
	var src, dst gxcan.ModuleID
	var dir string
	switch callerID {
	case callerSerial:
		src, dst, dir = b.serial, b.udp, capture.SerialToUDP
	case callerUDP:
		src, dst, dir = b.udp, b.serial, capture.UDPToSerial
	default:
		return fmt.Errorf("bridge: unknown caller %d", callerID)
	}
	if err := b.d.SendContext(b.ctx, dst, f); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		b.failed.Add(1)
		b.logger.Warn("forward failed", zap.String("dir", dir), zap.Stringer("frame", f), zap.Error(err))
		return nil
	}
	b.forwarded.Add(1)
	if b.opts.Recorder != nil {
		if err := b.opts.Recorder.Write(capture.NewRecord(time.Now(), dir, src, f)); err != nil {
			b.logger.Warn("capture failed", zap.Error(err))
		}
	}
	return nil
}

// Ready returns true while both receive threads are running.
func (b *Bridge) Ready() bool {
	if !b.started.Load() {
		return false
	}
	for _, id := range []gxcan.ModuleID{b.serial, b.udp} {
		running, err := b.d.IsReceiveThreadRunning(id)
		if err != nil || !running {
			return false
		}
	}
	return true
}

// Stats returns the bridge counters.
func (b *Bridge) Stats() Stats {
	return Stats{Forwarded: b.forwarded.Load(), Failed: b.failed.Load()}
}

// Close stops forwarding and closes both sides.
func (b *Bridge) Close() error {
	b.cancel()
	if !b.started.Swap(false) {
		return nil
	}
	return errors.Join(b.d.Destroy(b.serial), b.d.Destroy(b.udp))
}
