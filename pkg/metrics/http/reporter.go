// Copyright (c) 2017 OysterPack, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package http exposes the metrics registry over HTTP for prometheus to scrape.
package http

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/oysterpack/sigint.go/pkg/logging"
	"github.com/oysterpack/sigint.go/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type pkgobject struct{}

var logger = logging.NewPackageLogger(pkgobject{})

// MetricsPath is where the metrics are reported
const MetricsPath = "/metrics"

// Handler returns the prometheus HTTP handler for the global metrics registry
func Handler() http.Handler {
	return promhttp.HandlerFor(
		metrics.Registry,
		promhttp.HandlerOpts{
			ErrorLog:      promLogger{},
			ErrorHandling: promhttp.ContinueOnError,
		},
	)
}

// Reporter reports prometheus metrics via HTTP
// endpoint : /metrics
type Reporter struct {
	mutex      sync.Mutex
	addr       string
	httpServer *http.Server
	listener   net.Listener
}

// NewReporter creates a reporter that will listen on addr, e.g., ":9090"
func NewReporter(addr string) *Reporter {
	return &Reporter{addr: addr}
}

// Start binds the listen address and serves metrics in the background
func (a *Reporter) Start() error {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	if a.httpServer != nil {
		return nil
	}
	listener, err := net.Listen("tcp", a.addr)
	if err != nil {
		return fmt.Errorf("metrics reporter failed to listen on %q : %w", a.addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle(MetricsPath, Handler())
	a.listener = listener
	a.httpServer = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func(server *http.Server) {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics reporter stopped")
		}
	}(a.httpServer)
	logger.Info().Str("addr", listener.Addr().String()).Msg("metrics reporter started")
	return nil
}

// Addr returns the bound address, or nil if the reporter is not started
func (a *Reporter) Addr() net.Addr {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	if a.listener == nil {
		return nil
	}
	return a.listener.Addr()
}

// Shutdown gracefully stops the HTTP server
func (a *Reporter) Shutdown(ctx context.Context) error {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	if a.httpServer == nil {
		return nil
	}
	err := a.httpServer.Shutdown(ctx)
	a.httpServer = nil
	a.listener = nil
	return err
}

// promLogger implements promhttp.Logger interface.
// It is used to log any errors reported by the prometheus http handler
type promLogger struct{}

func (promLogger) Println(v ...interface{}) {
	logger.Error().Msg(fmt.Sprint(v...))
}
