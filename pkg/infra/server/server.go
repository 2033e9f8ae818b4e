// Package server runs the HTTP server and the service resources as one unit:
// start in order, stop on signal, release everything on the way out.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/kart-io/logger"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/kart-io/legal-rag/pkg/infra/server/http"
)

// Manager manages the HTTP server, extra runnables and shutdown closers.
type Manager struct {
	opts       *Options
	httpServer *http.Server
	servers    []Runnable
	closers    []closer
	mu         sync.Mutex
	started    bool
}

// NewManager creates a Manager and its HTTP server.
func NewManager(opts ...Option) (*Manager, error) {
	o := NewOptions()
	for _, opt := range opts {
		opt(o)
	}

	httpServer, err := http.NewServer(o.HTTP, o.Middleware)
	if err != nil {
		return nil, err
	}

	return &Manager{
		opts:       o,
		httpServer: httpServer,
	}, nil
}

// HTTPServer returns the HTTP server.
func (m *Manager) HTTPServer() *http.Server {
	return m.httpServer
}

// AddServer adds a runnable started after the HTTP server.
func (m *Manager) AddServer(server Runnable) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.servers = append(m.servers, server)
}

// AddCloser registers fn to run during Stop. Closers run in registration
// order after every server has stopped.
func (m *Manager) AddCloser(name string, fn CloseFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closers = append(m.closers, closer{name: name, fn: fn})
}

// Start starts the HTTP server and then every added runnable.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return fmt.Errorf("server manager already started")
	}
	m.started = true
	servers := append([]Runnable(nil), m.servers...)
	m.mu.Unlock()

	if err := m.httpServer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	logger.Infow("HTTP server started", "addr", m.httpServer.Addr())

	for i, server := range servers {
		if err := server.Start(ctx); err != nil {
			for j := i - 1; j >= 0; j-- {
				_ = servers[j].Stop(ctx)
			}
			_ = m.httpServer.Stop(ctx)
			return fmt.Errorf("failed to start server %s: %w", server.Name(), err)
		}
		logger.Infow("Custom server started", "name", server.Name())
	}

	return nil
}

// Stop stops the servers, then runs the closers. Every step runs even when
// an earlier one failed; the errors are aggregated.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = false
	servers := append([]Runnable(nil), m.servers...)
	closers := append([]closer(nil), m.closers...)
	m.mu.Unlock()

	var errs []error

	if err := m.httpServer.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop HTTP server: %w", err))
	}
	logger.Info("HTTP server stopped")

	for i := len(servers) - 1; i >= 0; i-- {
		if err := servers[i].Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop server %s: %w", servers[i].Name(), err))
		}
	}

	for _, c := range closers {
		if err := c.fn(ctx); err != nil {
			logger.Warnw("failed to close resource", "name", c.name, "error", err.Error())
			errs = append(errs, fmt.Errorf("failed to close %s: %w", c.name, err))
			continue
		}
		logger.Debugw("resource closed", "name", c.name)
	}

	return utilerrors.NewAggregate(errs)
}

// Run starts the manager and blocks until SIGINT/SIGTERM, ctx cancellation
// or a fatal HTTP server error, then stops within the shutdown timeout.
func (m *Manager) Run(ctx context.Context) error {
	if err := m.Start(ctx); err != nil {
		return err
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var runErr error
	select {
	case sig := <-quit:
		logger.Infow("Server shutting down...", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Server shutting down...")
	case err := <-m.httpServer.Err():
		logger.Errorw("HTTP server failed", "error", err.Error())
		runErr = err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), m.opts.ShutdownTimeout)
	defer cancel()

	if err := m.Stop(shutdownCtx); err != nil {
		return utilerrors.NewAggregate([]error{runErr, err})
	}
	return runErr
}
