// Package middleware provides the gin middleware chain of the HTTP server.
//
// The individual middleware live in subpackages:
//
//	import "github.com/kart-io/legal-rag/pkg/infra/middleware/observability"
//	import "github.com/kart-io/legal-rag/pkg/infra/middleware/resilience"
//	import "github.com/kart-io/legal-rag/pkg/infra/middleware/security"
package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/kart-io/legal-rag/pkg/infra/middleware/observability"
	"github.com/kart-io/legal-rag/pkg/infra/middleware/resilience"
	"github.com/kart-io/legal-rag/pkg/infra/middleware/security"
	options "github.com/kart-io/legal-rag/pkg/options/middleware"
)

// Options is the middleware options container.
type Options = options.Options

// NewOptions creates default middleware options.
var NewOptions = options.NewOptions

// Re-exported constructors.
var (
	Recovery  = resilience.RecoveryWithOptions
	Timeout   = resilience.TimeoutWithOptions
	BodyLimit = resilience.BodyLimit
	Logger    = observability.LoggerWithOptions
	Tracing   = observability.Tracing
	CORS      = security.CORSWithOptions
)

// Chain builds the global middleware chain in execution order:
// recovery, request id, tracing, access log, CORS, timeout.
// Paths skipped by the access log are not traced either.
func Chain(opts *Options) ([]gin.HandlerFunc, error) {
	if opts == nil {
		opts = NewOptions()
	}

	cors, err := CORS(*opts.CORS)
	if err != nil {
		return nil, err
	}

	return []gin.HandlerFunc{
		Recovery(*opts.Recovery, nil),
		RequestIDWithOptions(*opts.RequestID, nil),
		Tracing(observability.WithTracingSkipPaths(opts.Logger.SkipPaths)),
		Logger(*opts.Logger),
		cors,
		Timeout(*opts.Timeout),
	}, nil
}
