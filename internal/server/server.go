// Package server receives the OAuth redirect on a local address during login.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Handler is an [http.Handler] that knows the path patterns it serves.
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // Routes returns the path patterns this handler serves
}

// Router defines HTTP routing and middleware management.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                          // Handler registers a custom Handler implementation
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}

// Server is a running HTTP listener.
type Server struct {
	http     *http.Server
	listener net.Listener
	errs     chan error
	logger   *log.Logger
}

// Listen binds addr and starts serving handler in the background. Bind errors are returned
// immediately; later serve errors arrive on [Server.Errors].
func Listen(addr string, handler http.Handler, logger *log.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s := &Server{
		http: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		listener: ln,
		errs:     make(chan error, 1),
		logger:   logger,
	}

	go func() {
		logger.Infof("callback server listening on %v", ln.Addr())
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.errs <- err
		}
		close(s.errs)
	}()

	return s, nil
}

// Addr is the bound address, useful when listening on port 0.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

func (s *Server) Errors() <-chan error {
	return s.errs
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Debug("shutting down callback server")
	return s.http.Shutdown(ctx)
}
