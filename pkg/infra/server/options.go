package server

import (
	"time"

	mwopts "github.com/kart-io/legal-rag/pkg/options/middleware"
	httpopts "github.com/kart-io/legal-rag/pkg/options/server/http"
)

// Options configures the Manager.
type Options struct {
	HTTP            *httpopts.Options
	Middleware      *mwopts.Options
	ShutdownTimeout time.Duration
}

// Option configures Options.
type Option func(*Options)

// NewOptions returns the default manager options.
func NewOptions() *Options {
	return &Options{
		HTTP:            httpopts.NewOptions(),
		Middleware:      mwopts.NewOptions(),
		ShutdownTimeout: 30 * time.Second,
	}
}

// WithHTTPOptions sets the HTTP server options.
func WithHTTPOptions(opts *httpopts.Options) Option {
	return func(o *Options) {
		o.HTTP = opts
	}
}

// WithMiddleware sets the middleware options.
func WithMiddleware(opts *mwopts.Options) Option {
	return func(o *Options) {
		o.Middleware = opts
	}
}

// WithShutdownTimeout sets the graceful shutdown timeout.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.ShutdownTimeout = d
	}
}
