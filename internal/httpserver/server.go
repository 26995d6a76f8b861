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
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Gurux/gxcan-go"
	"github.com/Gurux/gxcan-go/internal/config"
)

// StatusFunc returns the module snapshots shown by /modules.
type StatusFunc func() []gxcan.ModuleInfo

// Server is the bridge status HTTP service.
type Server struct {
	srv *http.Server
}

// New creates the gin engine with the health, readiness, module status and
// metrics routes.
func New(cfg config.HTTPConfig, metricsHandler http.Handler, readyFn func() bool, statusFn StatusFunc, statsFn func() any) *Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.GET("/readyz", func(c *gin.Context) {
		if readyFn == nil || readyFn() {
			c.String(http.StatusOK, "ready")
			return
		}
		c.String(http.StatusServiceUnavailable, "not-ready")
	})
	r.GET("/modules", func(c *gin.Context) {
		modules := []gxcan.ModuleInfo{}
		if statusFn != nil {
			modules = statusFn()
		}
		var stats any
		if statsFn != nil {
			stats = statsFn()
		}
		c.JSON(http.StatusOK, gin.H{"modules": modules, "stats": stats})
	})
	metricsPath := cfg.MetricsPath
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	if metricsHandler != nil {
		r.GET(metricsPath, gin.WrapH(metricsHandler))
	}

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return &Server{srv: srv}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Start serves HTTP until Shutdown is called.
func (s *Server) Start() error {
	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
