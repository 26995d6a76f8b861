package config

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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Gurux/gxcommon-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gurux/gxcan-go"
)

const testConfig = `
serial:
  port: /dev/ttyUSB0
  bitrate: 125k
udp:
  port: 5100
forward:
  ids: [0x10, 0x20]
  rate: 100
http:
  addr: 127.0.0.1:9090
driver:
  pollTimeout: 20ms
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gxcanbridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, testConfig))
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyUSB0", cfg.Serial.Port)
	assert.Equal(t, 115200, cfg.Serial.BaudRate)
	assert.Equal(t, 8, cfg.Serial.DataBits)
	assert.Equal(t, "125k", cfg.Serial.Bitrate)
	assert.Equal(t, gxcan.DefaultUDPHost, cfg.UDP.Host)
	assert.Equal(t, 5100, cfg.UDP.Port)
	assert.Equal(t, []uint32{0x10, 0x20}, cfg.Forward.IDs)
	assert.Equal(t, 100.0, cfg.Forward.Rate)
	assert.Equal(t, 1, cfg.Forward.Burst)
	assert.True(t, cfg.HTTP.Enable)
	assert.Equal(t, "127.0.0.1:9090", cfg.HTTP.Addr)
	assert.Equal(t, 5*time.Second, cfg.HTTP.ReadTimeout)
	assert.Equal(t, "/metrics", cfg.HTTP.MetricsPath)
	assert.Equal(t, 20*time.Millisecond, cfg.Driver.PollTimeout)
	assert.Equal(t, gxcan.DefaultAnswerTimeout, cfg.Driver.AnswerTimeout)
	assert.False(t, cfg.Capture.Enable)
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("GXCAN_UDP_PORT", "6000")
	t.Setenv("GXCAN_SERIAL_PORT", "/dev/ttyACM0")
	cfg, err := Load(writeConfig(t, testConfig))
	require.NoError(t, err)
	assert.Equal(t, 6000, cfg.UDP.Port)
	assert.Equal(t, "/dev/ttyACM0", cfg.Serial.Port)
}

func TestLoadConfigVariable(t *testing.T) {
	t.Setenv("GXCAN_CONFIG", writeConfig(t, testConfig))
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 5100, cfg.UDP.Port)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSerialEndpoint(t *testing.T) {
	ep, err := SerialConfig{Port: "/dev/ttyUSB0", BaudRate: 115200, DataBits: 8, Parity: "None", Bitrate: "1M"}.Endpoint()
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", ep.Port)
	assert.Equal(t, gxcommon.BaudRate(115200), ep.BaudRate)
	assert.Equal(t, gxcommon.ParityNone, ep.Parity)
	assert.Equal(t, gxcan.Bitrate1M, ep.Bitrate)

	_, err = SerialConfig{Port: "x", Bitrate: "2M"}.Endpoint()
	assert.ErrorIs(t, err, gxcan.ErrArgument)
	_, err = SerialConfig{Port: "x", Parity: "Sometimes"}.Endpoint()
	assert.Error(t, err)
}

func TestForwardFilter(t *testing.T) {
	assert.Nil(t, ForwardConfig{}.Filter())

	f := ForwardConfig{IDs: []uint32{0x10}}.Filter()
	require.NotNil(t, f)
	assert.True(t, f(gxcan.Frame{ID: 0x10}))
	assert.False(t, f(gxcan.Frame{ID: 0x11}))

	f = ForwardConfig{IDs: []uint32{0x10}, Mask: 0x700, MaskID: 0x200}.Filter()
	assert.True(t, f(gxcan.Frame{ID: 0x10}))
	assert.True(t, f(gxcan.Frame{ID: 0x2AB}))
	assert.False(t, f(gxcan.Frame{ID: 0x3AB}))
}

func TestTraceLevel(t *testing.T) {
	level, err := DriverConfig{}.TraceLevel()
	require.NoError(t, err)
	assert.Equal(t, gxcommon.TraceLevel(0), level)
}
