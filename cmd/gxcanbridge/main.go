package main

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
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/Gurux/gxcan-go"
	"github.com/Gurux/gxcan-go/internal/bridge"
	"github.com/Gurux/gxcan-go/internal/capture"
	"github.com/Gurux/gxcan-go/internal/config"
	"github.com/Gurux/gxcan-go/internal/httpserver"
	"github.com/Gurux/gxcan-go/internal/logging"
)

var (
	configPath = flag.String("c", "", "Configuration file.")
	port       = flag.String("S", "", "Serial port name.")
	baudRate   = flag.Int("b", 0, "Baud rate.")
	parity     = flag.String("p", "", "Parity (None, Odd, Even, Mark, Space).")
	udpPort    = flag.Int("u", 0, "UDP port.")
	t          = flag.String("t", "", "Trace level.")
	lang       = flag.String("lang", "", "Used language.")
	dump       = flag.String("dump", "", "Print frames of the capture file and exit.")
)

func main() {
	flag.Parse()
	if *dump != "" {
		if err := dumpCapture(*dump, os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		return
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	applyFlags(cfg)
	if cfg.Serial.Port == "" {
		flag.PrintDefaults()
		return
	}
	logger, err := logging.InitLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	if err := run(cfg, logger); err != nil {
		logger.Error("bridge failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

// applyFlags overrides the configuration with given command line flags.
func applyFlags(cfg *config.Config) {
	if *port != "" {
		cfg.Serial.Port = *port
	}
	if *baudRate != 0 {
		cfg.Serial.BaudRate = *baudRate
	}
	if *parity != "" {
		cfg.Serial.Parity = *parity
	}
	if *udpPort != 0 {
		cfg.UDP.Port = *udpPort
	}
	if *t != "" {
		cfg.Driver.Trace = *t
	}
	if *lang != "" {
		cfg.Driver.Language = *lang
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	serialEP, err := cfg.Serial.Endpoint()
	if err != nil {
		return err
	}
	level, err := cfg.Driver.TraceLevel()
	if err != nil {
		return fmt.Errorf("trace level: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	opts := []gxcan.Option{
		gxcan.WithLogger(logger),
		gxcan.WithTraceLevel(level),
		gxcan.WithMetrics(gxcan.NewMetrics(reg)),
		gxcan.WithPollTimeout(cfg.Driver.PollTimeout),
		gxcan.WithIdleInterval(cfg.Driver.IdleInterval),
		gxcan.WithAnswerTimeout(cfg.Driver.AnswerTimeout),
	}
	if cfg.Forward.Rate > 0 {
		opts = append(opts, gxcan.WithSendRate(cfg.Forward.Rate, cfg.Forward.Burst))
	}
	r := gxcan.NewRegistry(2, opts...)
	defer func() { _ = r.Close() }()
	if cfg.Driver.Language != "" {
		tag, err := language.Parse(cfg.Driver.Language)
		if err != nil {
			return fmt.Errorf("language: %w", err)
		}
		r.Localize(tag)
	}

	bopts := bridge.Options{
		Serial: serialEP,
		UDP:    cfg.UDP.Endpoint(),
		Filter: cfg.Forward.Filter(),
		Logger: logger,
	}
	if cfg.Capture.Enable {
		w, err := capture.Create(cfg.Capture.File)
		if err != nil {
			return err
		}
		defer func() { _ = w.Close() }()
		bopts.Recorder = w
	}
	b := bridge.New(r, bopts)
	if err := b.Start(); err != nil {
		if errors.Is(err, gxcan.ErrTransport) {
			if ports, perr := gxcan.GetPortNames(); perr == nil {
				logger.Info("available serial ports", zap.String("ports", strings.Join(ports, ",")))
			}
		}
		return err
	}
	defer func() { _ = b.Close() }()

	var srv *httpserver.Server
	if cfg.HTTP.Enable {
		handler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
		srv = httpserver.New(cfg.HTTP, handler, b.Ready, r.Modules, func() any { return b.Stats() })
		go func() {
			if err := srv.Start(); err != nil {
				logger.Error("http server failed", zap.Error(err))
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	logger.Info("shutting down", zap.Any("stats", b.Stats()))
	if srv != nil {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			logger.Warn("http shutdown failed", zap.Error(err))
		}
	}
	return nil
}

type dumpRecord struct {
	Time   string `yaml:"t"`
	Dir    string `yaml:"dir"`
	Module uint8  `yaml:"module"`
	Frame  string `yaml:"frame"`
}

// dumpCapture writes the records of a capture file as YAML documents.
func dumpCapture(path string, out io.Writer) error {
	rd, err := capture.Open(path)
	if err != nil {
		return err
	}
	defer rd.Close()
	enc := yaml.NewEncoder(out)
	defer enc.Close()
	for {
		rec, err := rd.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		f, err := rec.Frame()
		if err != nil {
			return err
		}
		if err := enc.Encode(dumpRecord{
			Time:   rec.Time.Format(time.RFC3339Nano),
			Dir:    rec.Dir,
			Module: rec.Module,
			Frame:  f.String(),
		}); err != nil {
			return err
		}
	}
}
