package observability

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/kart-io/legal-rag/pkg/infra/middleware/internal/pathutil"
	"github.com/kart-io/legal-rag/pkg/infra/middleware/requestutil"
	"github.com/kart-io/legal-rag/pkg/infra/tracing"
)

// TracerName is the instrumentation name of the HTTP server spans.
const TracerName = "github.com/kart-io/legal-rag/pkg/infra/middleware"

// TracingOptions configures the tracing middleware.
type TracingOptions struct {
	TracerName       string
	SkipPaths        []string
	SkipPathPrefixes []string
}

// TracingOption configures TracingOptions.
type TracingOption func(*TracingOptions)

// WithTracerName sets the tracer name.
func WithTracerName(name string) TracingOption {
	return func(o *TracingOptions) {
		o.TracerName = name
	}
}

// WithTracingSkipPaths sets paths that are not traced.
func WithTracingSkipPaths(paths []string) TracingOption {
	return func(o *TracingOptions) {
		o.SkipPaths = paths
	}
}

// WithTracingSkipPathPrefixes sets path prefixes that are not traced.
func WithTracingSkipPathPrefixes(prefixes []string) TracingOption {
	return func(o *TracingOptions) {
		o.SkipPathPrefixes = prefixes
	}
}

// Tracing extracts the W3C trace context from the request headers and
// wraps the handler chain in a server span named "METHOD route".
func Tracing(opts ...TracingOption) gin.HandlerFunc {
	options := &TracingOptions{TracerName: TracerName}
	for _, opt := range opts {
		opt(options)
	}

	pathMatcher := pathutil.NewPathMatcher(options.SkipPaths, options.SkipPathPrefixes)

	return func(c *gin.Context) {
		req := c.Request
		if pathMatcher(req.URL.Path) {
			c.Next()
			return
		}

		ctx := otel.GetTextMapPropagator().Extract(req.Context(), propagation.HeaderCarrier(req.Header))

		route := c.FullPath()
		if route == "" {
			route = req.URL.Path
		}

		ctx, span := tracing.StartSpanWithKind(ctx, options.TracerName,
			fmt.Sprintf("%s %s", req.Method, route), trace.SpanKindServer)
		defer span.End()

		c.Request = req.WithContext(ctx)

		attrs := []attribute.KeyValue{
			attribute.String(tracing.HTTPMethod, req.Method),
			attribute.String(tracing.HTTPRoute, route),
			attribute.String(tracing.HTTPTarget, req.URL.Path),
			attribute.String(tracing.HTTPClientIP, requestutil.GetClientIP(req)),
		}
		if ua := req.UserAgent(); ua != "" {
			attrs = append(attrs, attribute.String(tracing.HTTPUserAgent, ua))
		}
		if requestID := requestutil.GetRequestID(ctx); requestID != "" {
			attrs = append(attrs, attribute.String(tracing.HTTPRequestID, requestID))
		}
		span.SetAttributes(attrs...)

		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int(tracing.HTTPStatusCode, status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
		if len(c.Errors) > 0 {
			span.RecordError(c.Errors.Last())
		}
	}
}
