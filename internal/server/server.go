// Package server runs the admin HTTP server.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/emrvault/tiercache/pkg/logger"
)

// Default server timeouts (hardcoded, opinionated).
const (
	defaultAddress           = ":8080"
	defaultReadTimeout       = 15 * time.Second
	defaultWriteTimeout      = 30 * time.Second
	defaultIdleTimeout       = 120 * time.Second
	defaultReadHeaderTimeout = 5 * time.Second
	defaultMaxHeaderBytes    = 1 << 20 // 1MB
)

// Option configures a Server.
type Option func(*Server)

// WithAddress sets the listen address. Default: ":8080".
func WithAddress(addr string) Option {
	return func(s *Server) {
		if addr != "" {
			s.address = addr
		}
	}
}

// WithLogger sets the logger for start and stop events.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// Server is an http.Server that listens on Start and stops on Shutdown.
// Shutdown matches lifecycle.CleanupFunc so it can be registered with a
// coordinator.
type Server struct {
	http    *http.Server
	logger  *slog.Logger
	ln      net.Listener
	errs    chan error
	address string
}

// New creates a server for handler.
func New(handler http.Handler, opts ...Option) *Server {
	s := &Server{
		address: defaultAddress,
		logger:  logger.NewNope(),
		errs:    make(chan error, 1),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.http = &http.Server{
		Addr:              s.address,
		Handler:           handler,
		ReadTimeout:       defaultReadTimeout,
		WriteTimeout:      defaultWriteTimeout,
		IdleTimeout:       defaultIdleTimeout,
		ReadHeaderTimeout: defaultReadHeaderTimeout,
		MaxHeaderBytes:    defaultMaxHeaderBytes,
	}

	return s
}

// Start binds the address and serves in the background.
// Listen errors are returned; later serve errors arrive on Errors.
func (s *Server) Start() error {
	// Listen first to get actual address
	ln, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	s.ln = ln

	go func() {
		s.logger.Info("server starting", slog.String("address", ln.Addr().String()))
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.errs <- err
		}
		close(s.errs)
	}()

	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.address
}

// Errors delivers a serve failure, then closes. It closes without a value
// after a clean Shutdown.
func (s *Server) Errors() <-chan error {
	return s.errs
}

// Shutdown stops accepting connections and waits for active requests,
// bounded by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	return s.http.Shutdown(ctx)
}
