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
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Gurux/gxcommon-go"
	"github.com/spf13/viper"

	"github.com/Gurux/gxcan-go"
)

// SerialConfig selects the CANUSB adapter.
type SerialConfig struct {
	Port     string `mapstructure:"port"`
	BaudRate int    `mapstructure:"baudRate"`
	DataBits int    `mapstructure:"dataBits"`
	Parity   string `mapstructure:"parity"`
	StopBits string `mapstructure:"stopBits"`
	// Bitrate is the CAN bitrate, for example 125k. Empty keeps the device setting.
	Bitrate string `mapstructure:"bitrate"`
}

// UDPConfig selects the CAN over IP segment.
type UDPConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// ForwardConfig selects the forwarded frames.
type ForwardConfig struct {
	// IDs are forwarded. Empty forwards all identifiers unless Mask is set.
	IDs    []uint32 `mapstructure:"ids"`
	Mask   uint32   `mapstructure:"mask"`
	MaskID uint32   `mapstructure:"maskId"`
	// Rate limits forwarded frames per second and module. Zero is unlimited.
	Rate  float64 `mapstructure:"rate"`
	Burst int     `mapstructure:"burst"`
}

// HTTPConfig is the status HTTP service.
type HTTPConfig struct {
	Enable       bool          `mapstructure:"enable"`
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
	MetricsPath  string        `mapstructure:"metricsPath"`
}

// LumberjackConfig is the rolling log file.
type LumberjackConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAge"`
	Compress   bool   `mapstructure:"compress"`
}

// LoggingConfig is the log level and output.
type LoggingConfig struct {
	Level  string           `mapstructure:"level"`
	Format string           `mapstructure:"format"`
	File   LumberjackConfig `mapstructure:"file"`
}

// CaptureConfig writes forwarded frames to a file.
type CaptureConfig struct {
	Enable bool   `mapstructure:"enable"`
	File   string `mapstructure:"file"`
}

// DriverConfig tunes the CAN driver.
type DriverConfig struct {
	Trace         string        `mapstructure:"trace"`
	Language      string        `mapstructure:"language"`
	PollTimeout   time.Duration `mapstructure:"pollTimeout"`
	IdleInterval  time.Duration `mapstructure:"idleInterval"`
	AnswerTimeout time.Duration `mapstructure:"answerTimeout"`
}

// Config is the bridge configuration.
type Config struct {
	Serial  SerialConfig  `mapstructure:"serial"`
	UDP     UDPConfig     `mapstructure:"udp"`
	Forward ForwardConfig `mapstructure:"forward"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Logging LoggingConfig `mapstructure:"logging"`
	Capture CaptureConfig `mapstructure:"capture"`
	Driver  DriverConfig  `mapstructure:"driver"`
}

// Load reads the configuration from a YAML, TOML or JSON file and from
// GXCAN_ environment variables. If path is empty, GXCAN_CONFIG or
// gxcanbridge.yaml in . or ./configs is used. Only a missing default file is
// not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("GXCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = v.GetString("config")
	}
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.SetConfigName("gxcanbridge")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("serial.baudRate", int(gxcan.DefaultSerialBaudRate))
	v.SetDefault("serial.dataBits", gxcan.DefaultSerialDataBits)
	v.SetDefault("serial.parity", "None")

	v.SetDefault("udp.host", gxcan.DefaultUDPHost)
	v.SetDefault("udp.port", 5000)

	v.SetDefault("forward.burst", 1)

	v.SetDefault("http.enable", true)
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.readTimeout", "5s")
	v.SetDefault("http.writeTimeout", "10s")
	v.SetDefault("http.metricsPath", "/metrics")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file.filename", "logs/gxcanbridge.log")
	v.SetDefault("logging.file.maxSize", 100)
	v.SetDefault("logging.file.maxBackups", 7)
	v.SetDefault("logging.file.maxAge", 30)
	v.SetDefault("logging.file.compress", true)

	v.SetDefault("capture.enable", false)
	v.SetDefault("capture.file", "capture/frames.cbor")

	v.SetDefault("driver.pollTimeout", gxcan.DefaultPollTimeout)
	v.SetDefault("driver.idleInterval", gxcan.DefaultIdleInterval)
	v.SetDefault("driver.answerTimeout", gxcan.DefaultAnswerTimeout)
}

// Endpoint returns the serial endpoint of the configuration.
func (c SerialConfig) Endpoint() (gxcan.SerialEndpoint, error) {
	ret := gxcan.SerialEndpoint{
		Port:     c.Port,
		BaudRate: gxcommon.BaudRate(c.BaudRate),
		DataBits: c.DataBits,
	}
	var err error
	if c.Parity != "" {
		if ret.Parity, err = gxcommon.ParityParse(c.Parity); err != nil {
			return ret, fmt.Errorf("serial.parity: %w", err)
		}
	}
	if c.StopBits != "" {
		if ret.StopBits, err = gxcommon.StopBitsParse(c.StopBits); err != nil {
			return ret, fmt.Errorf("serial.stopBits: %w", err)
		}
	}
	if c.Bitrate != "" {
		if ret.Bitrate, err = gxcan.ParseCANBitrate(c.Bitrate); err != nil {
			return ret, fmt.Errorf("serial.bitrate: %w", err)
		}
	}
	return ret, nil
}

// Endpoint returns the UDP endpoint of the configuration.
func (c UDPConfig) Endpoint() gxcan.UDPEndpoint {
	return gxcan.UDPEndpoint{Host: c.Host, Port: c.Port}
}

// Filter returns the filter for forwarded frames, or nil when all frames
// are forwarded.
func (c ForwardConfig) Filter() gxcan.FrameFilter {
	var ret gxcan.FrameFilter
	if len(c.IDs) != 0 {
		ret = gxcan.ByIDs(c.IDs...)
	}
	if c.Mask != 0 {
		ret = gxcan.Or(ret, gxcan.ByMask(c.MaskID, c.Mask))
	}
	return ret
}

// TraceLevel returns the driver trace level.
func (c DriverConfig) TraceLevel() (gxcommon.TraceLevel, error) {
	if c.Trace == "" {
		return gxcommon.TraceLevel(0), nil
	}
	return gxcommon.TraceLevelParse(c.Trace)
}
