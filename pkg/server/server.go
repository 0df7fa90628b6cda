// Copyright 2023 Meta Platforms, Inc. and affiliates.
//
// Redistribution and use in source and binary forms, with or without modification, are permitted provided that the following conditions are met:
//
// 1. Redistributions of source code must retain the above copyright notice, this list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright notice, this list of conditions and the following disclaimer in the documentation and/or other materials provided with the distribution.
//
// 3. Neither the name of the copyright holder nor the names of its contributors may be used to endorse or promote products derived from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH DAMAGE.

package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/experimental/metrics"
	"github.com/facebookincubator/go-belt/tool/logger"

	"github.com/immune-gmbh/firmware-publisher/pkg/httputils/servermiddleware"
)

const (
	// DefaultShutdownTimeout is how long running requests are waited for
	// on shutdown by default.
	DefaultShutdownTimeout = 10 * time.Second

	readHeaderTimeout = 30 * time.Second
)

// Server is the HTTP server of the firmware publisher.
type Server struct {
	// HardConcurrentRequestsLimit is the maximal amount of requests
	// processed at the same time, the rest are replied with 503.
	// Zero means no limit.
	HardConcurrentRequestsLimit uint

	ShutdownTimeout time.Duration
	HTTPServer      *http.Server

	concurrentRequests atomic.Int64
	serveCount         atomic.Uint64
}

// NewServer returns a server of the handler with the default middleware set up
// by the tool belt.
func NewServer(
	handler http.Handler,
	obsBelt *belt.Belt,
	logLevel logger.Level,
	hardConcurrentRequestsLimit uint,
	shutdownTimeout time.Duration,
) *Server {
	if shutdownTimeout <= 0 {
		shutdownTimeout = DefaultShutdownTimeout
	}
	srv := &Server{
		HardConcurrentRequestsLimit: hardConcurrentRequestsLimit,
		ShutdownTimeout:             shutdownTimeout,
	}
	srv.HTTPServer = &http.Server{
		Handler:           servermiddleware.AddDefaultMiddleware(srv.shedLoad(handler), obsBelt, true, logLevel),
		ReadHeaderTimeout: readHeaderTimeout,
		ErrorLog:          log.New(errorLogWriter{Logger: logger.FromBelt(obsBelt).WithField("module", "net/http")}, "", 0),
	}
	return srv
}

type errorLogWriter struct {
	Logger logger.Logger
}

func (w errorLogWriter) Write(b []byte) (int, error) {
	w.Logger.Errorf("%s", strings.TrimSpace(string(b)))
	return len(b), nil
}

func (srv *Server) isOverloaded(ctx context.Context) bool {
	concurrentRequests := srv.concurrentRequests.Load()
	if srv.HardConcurrentRequestsLimit > 0 &&
		concurrentRequests > int64(srv.HardConcurrentRequestsLimit) {
		logger.FromCtx(ctx).Errorf("too many requests: %d", concurrentRequests)
		return true
	}
	return false
}

func (srv *Server) shedLoad(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(response http.ResponseWriter, request *http.Request) {
		srv.concurrentRequests.Add(1)
		defer srv.concurrentRequests.Add(-1)

		ctx := request.Context()
		if srv.isOverloaded(ctx) {
			metrics.FromCtx(ctx).Count("overloaded").Add(1)
			response.Header().Set("Retry-After", "1")
			http.Error(response, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			return
		}
		handler.ServeHTTP(response, request)
	})
}

// Serve starts listening on bindAddr and serves it until ctx is done,
// then waits for running requests up to ShutdownTimeout.
//
// This method could be executed only once.
func (srv *Server) Serve(ctx context.Context, bindAddr string) error {
	listener, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return fmt.Errorf("unable to listen '%s': %w", bindAddr, err)
	}
	return srv.ServeListener(ctx, listener)
}

// ServeListener is the same as Serve, but with a listener already opened.
func (srv *Server) ServeListener(ctx context.Context, listener net.Listener) error {
	if srv.serveCount.Add(1) > 1 {
		listener.Close()
		return fmt.Errorf("method Serve could be used only once")
	}
	logger.FromCtx(ctx).Infof("listening at %s", listener.Addr())

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.HTTPServer.Serve(listener)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logger.FromCtx(ctx).Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), srv.ShutdownTimeout)
	defer cancel()
	if err := srv.HTTPServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("unable to shutdown gracefully: %w", err)
	}
	if err := <-serveErr; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
