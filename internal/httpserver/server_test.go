package httpserver

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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gurux/gxcan-go"
	"github.com/Gurux/gxcan-go/internal/config"
)

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHealthAndReady(t *testing.T) {
	ready := false
	s := New(config.HTTPConfig{}, nil, func() bool { return ready }, nil, nil)

	w := get(t, s.Handler(), "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())

	w = get(t, s.Handler(), "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "not-ready", w.Body.String())

	ready = true
	w = get(t, s.Handler(), "/readyz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ready", w.Body.String())
}

func TestModules(t *testing.T) {
	status := func() []gxcan.ModuleInfo {
		return []gxcan.ModuleInfo{{ID: 1, Mode: "normal", Transport: "udp", Initialized: true, SessionID: 42}}
	}
	stats := func() any { return map[string]int{"forwarded": 3} }
	s := New(config.HTTPConfig{}, nil, nil, status, stats)

	w := get(t, s.Handler(), "/modules")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Modules []gxcan.ModuleInfo `json:"modules"`
		Stats   map[string]int     `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Modules, 1)
	assert.Equal(t, uint32(42), body.Modules[0].SessionID)
	assert.Equal(t, 3, body.Stats["forwarded"])
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	gxcan.NewMetrics(reg).FramesSent.WithLabelValues("0", "udp").Inc()
	s := New(config.HTTPConfig{MetricsPath: "/stats"}, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), nil, nil, nil)

	w := get(t, s.Handler(), "/stats")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "gxcan_frames_sent_total")

	w = get(t, s.Handler(), "/metrics")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
