// Package http provides the gin HTTP transport.
package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/kart-io/legal-rag/pkg/infra/middleware"
	mwopts "github.com/kart-io/legal-rag/pkg/options/middleware"
	options "github.com/kart-io/legal-rag/pkg/options/server/http"
	apierrors "github.com/kart-io/legal-rag/pkg/utils/errors"
	"github.com/kart-io/legal-rag/pkg/utils/response"
	"github.com/kart-io/legal-rag/pkg/validator"
)

// Server is the gin HTTP server.
type Server struct {
	opts     *options.Options
	engine   *gin.Engine
	server   *http.Server
	listener net.Listener
	errCh    chan error
	mu       sync.Mutex
}

var _ binding.StructValidator = (*validator.Binding)(nil)

// NewServer creates the gin engine with the global middleware chain.
func NewServer(serverOpts *options.Options, middlewareOpts *mwopts.Options) (*Server, error) {
	if serverOpts == nil {
		serverOpts = options.NewOptions()
	}

	gin.SetMode(serverOpts.Mode)
	binding.Validator = validator.NewBinding(validator.LangEN)

	engine := gin.New()
	chain, err := middleware.Chain(middlewareOpts)
	if err != nil {
		return nil, err
	}
	engine.Use(chain...)

	engine.NoRoute(func(c *gin.Context) {
		response.Fail(c, apierrors.ErrRouteNotFound)
	})

	return &Server{
		opts:   serverOpts,
		engine: engine,
		errCh:  make(chan error, 1),
	}, nil
}

// Name returns the server name.
func (s *Server) Name() string {
	return "http[gin]"
}

// Engine returns the gin engine for route registration.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Addr returns the bound address once started, otherwise the configured one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.opts.Addr
}

// Err delivers a fatal serve error.
func (s *Server) Err() <-chan error {
	return s.errCh
}

// Start binds the listener and serves in the background. Bind errors are
// returned directly.
func (s *Server) Start(_ context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:      s.engine,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  s.opts.IdleTimeout,
	}

	s.mu.Lock()
	s.listener = ln
	s.server = srv
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.errCh <- err
		}
	}()

	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
