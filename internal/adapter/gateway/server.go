package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// httpRoute pairs a ServeMux pattern (Go 1.22+ "METHOD /path" syntax) with
// its handler.
type httpRoute struct {
	pattern string
	handler http.HandlerFunc
}

// Server is the HTTP gateway exposing the REST surface over the catalog,
// ingest, and search use cases.
type Server struct {
	logger          *slog.Logger
	addr            string
	readTimeout     time.Duration
	writeTimeout    time.Duration
	shutdownTimeout time.Duration
	httpSrv         *http.Server
	boundAddr       string
	routes          []httpRoute
	middleware      []func(http.Handler) http.Handler
}

// Option configures a Server at construction time.
type Option func(*Server)

// WithTimeouts overrides the default read/write/shutdown timeouts.
func WithTimeouts(read, write, shutdown time.Duration) Option {
	return func(s *Server) {
		s.readTimeout = read
		s.writeTimeout = write
		s.shutdownTimeout = shutdown
	}
}

// NewServer creates a gateway HTTP server bound to addr.
func NewServer(addr string, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		logger:          logger,
		addr:            addr,
		readTimeout:     30 * time.Second,
		writeTimeout:    60 * time.Second,
		shutdownTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterRoute adds an HTTP handler to the gateway's mux.
// Must be called before Start().
func (s *Server) RegisterRoute(pattern string, handler http.HandlerFunc) {
	s.routes = append(s.routes, httpRoute{pattern: pattern, handler: handler})
}

// Use appends middleware applied to every registered route, in order.
// Must be called before Start().
func (s *Server) Use(mw func(http.Handler) http.Handler) {
	s.middleware = append(s.middleware, mw)
}

// Start begins serving HTTP requests. Blocks until the context is cancelled
// or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	for _, route := range s.routes {
		var h http.Handler = route.handler
		for i := len(s.middleware) - 1; i >= 0; i-- {
			h = s.middleware[i](h)
		}
		mux.Handle(route.pattern, h)
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("gateway listen: %w", err)
	}
	s.boundAddr = listener.Addr().String()

	s.httpSrv = &http.Server{
		Handler:      mux,
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.writeTimeout,
	}

	s.logger.Info("gateway started", "addr", s.boundAddr)

	go func() {
		<-ctx.Done()
		s.Stop(context.Background())
	}()

	if err := s.httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("gateway serve: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the gateway server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()
	return s.httpSrv.Shutdown(shutdownCtx)
}

// BoundAddr returns the actual address the server bound to. Only valid after Start.
func (s *Server) BoundAddr() string { return s.boundAddr }
