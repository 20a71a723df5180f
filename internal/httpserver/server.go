package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"
)

// ShutdownTimeout controls how long to wait for graceful shutdowns.
var ShutdownTimeout = 10 * time.Second

const (
	defaultReadHeaderTimeout = 5 * time.Second
	defaultWriteTimeout      = 10 * time.Second
	defaultIdleTimeout       = 60 * time.Second
)

// Options tunes the underlying http.Server. Zero values fall back to defaults.
type Options struct {
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
}

// OptionsFor derives server timeouts that leave room for a handler to hit its
// own operation deadline and still write the 504 response.
func OptionsFor(operationTimeout time.Duration) Options {
	opts := Options{}
	if operationTimeout > 0 && operationTimeout+time.Second > defaultWriteTimeout {
		opts.WriteTimeout = operationTimeout + time.Second
	}
	return opts
}

// Server wraps the http.Server with sensible defaults.
type Server struct {
	inner *http.Server

	mu       sync.Mutex
	listener net.Listener
}

// New constructs a server listening on the provided port. Port 0 picks a free
// port; Addr reports it once Start has bound the listener.
func New(port int, handler http.Handler, opts Options) *Server {
	return &Server{
		inner: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler,
			ReadHeaderTimeout: orDefault(opts.ReadHeaderTimeout, defaultReadHeaderTimeout),
			WriteTimeout:      orDefault(opts.WriteTimeout, defaultWriteTimeout),
			IdleTimeout:       orDefault(opts.IdleTimeout, defaultIdleTimeout),
		},
	}
}

func orDefault(value, fallback time.Duration) time.Duration {
	if value > 0 {
		return value
	}
	return fallback
}

// Start binds the listener and serves HTTP traffic until Shutdown. A clean
// shutdown returns nil.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.inner.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.inner.Addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	if err := s.inner.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.inner.Addr
}

// Shutdown gracefully terminates the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}
