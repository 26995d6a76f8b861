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
	"github.com/Gurux/gxcommon-go"
	"go.uber.org/zap"
)

// tracer writes traces allowed by the trace level to the logger.
type tracer struct {
	logger *zap.Logger
	level  gxcommon.TraceLevel
}

func newTracer(logger *zap.Logger, level gxcommon.TraceLevel) *tracer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &tracer{logger: logger, level: level}
}

func (t *tracer) enabled(traceType gxcommon.TraceTypes) bool {
	return t != nil && !(int(t.level) < int(traceType))
}

func (t *tracer) trace(traceType gxcommon.TraceTypes, msg string, fields ...zap.Field) {
	if !t.enabled(traceType) {
		return
	}
	switch traceType {
	case gxcommon.TraceTypesError:
		t.logger.Error(msg, fields...)
	case gxcommon.TraceTypesInfo:
		t.logger.Info(msg, fields...)
	default:
		t.logger.Debug(msg, fields...)
	}
}

// frameSent traces a sent frame.
func (t *tracer) frameSent(id ModuleID, transport string, f Frame) {
	if t.enabled(gxcommon.TraceTypesSent) {
		t.trace(gxcommon.TraceTypesSent, "TX", zap.Uint8("module", uint8(id)),
			zap.String("transport", transport), zap.Stringer("frame", f))
	}
}

// frameReceived traces a received frame.
func (t *tracer) frameReceived(id ModuleID, transport string, f Frame) {
	if t.enabled(gxcommon.TraceTypesReceived) {
		t.trace(gxcommon.TraceTypesReceived, "RX", zap.Uint8("module", uint8(id)),
			zap.String("transport", transport), zap.Stringer("frame", f))
	}
}
