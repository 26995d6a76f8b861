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
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Drop reasons.
const (
	DropLoopback = "loopback"
	DropFilter   = "filter"
)

// Metrics holds the driver collectors.
type Metrics struct {
	FramesSent     *prometheus.CounterVec
	FramesReceived *prometheus.CounterVec
	FramesDropped  *prometheus.CounterVec
	Errors         *prometheus.CounterVec
	ReceiveThreads *prometheus.GaugeVec
}

// NewMetrics creates the driver collectors and registers them to reg.
// Collectors are not registered when reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FramesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gxcan_frames_sent_total",
			Help: "Total number of CAN frames sent.",
		}, []string{"module", "transport"}),
		FramesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gxcan_frames_received_total",
			Help: "Total number of CAN frames received.",
		}, []string{"module", "transport"}),
		FramesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gxcan_frames_dropped_total",
			Help: "Total number of received CAN frames that were not delivered.",
		}, []string{"module", "reason"}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gxcan_errors_total",
			Help: "Total number of failed driver operations.",
		}, []string{"module", "op"}),
		ReceiveThreads: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gxcan_receive_threads",
			Help: "Number of running receive threads.",
		}, []string{"module"}),
	}
	if reg != nil {
		reg.MustRegister(m.FramesSent, m.FramesReceived, m.FramesDropped, m.Errors, m.ReceiveThreads)
	}
	return m
}

func moduleLabel(id ModuleID) string {
	return strconv.Itoa(int(id))
}

func (m *Metrics) sent(id ModuleID, transport string) {
	if m != nil {
		m.FramesSent.WithLabelValues(moduleLabel(id), transport).Inc()
	}
}

func (m *Metrics) received(id ModuleID, transport string) {
	if m != nil {
		m.FramesReceived.WithLabelValues(moduleLabel(id), transport).Inc()
	}
}

func (m *Metrics) dropped(id ModuleID, reason string) {
	if m != nil {
		m.FramesDropped.WithLabelValues(moduleLabel(id), reason).Inc()
	}
}

func (m *Metrics) failed(id ModuleID, op string) {
	if m != nil {
		m.Errors.WithLabelValues(moduleLabel(id), op).Inc()
	}
}

func (m *Metrics) threadStarted(id ModuleID) {
	if m != nil {
		m.ReceiveThreads.WithLabelValues(moduleLabel(id)).Inc()
	}
}

func (m *Metrics) threadStopped(id ModuleID) {
	if m != nil {
		m.ReceiveThreads.WithLabelValues(moduleLabel(id)).Dec()
	}
}
