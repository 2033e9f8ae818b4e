// Package observability holds the access-log and tracing middleware.
package observability

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/legal-rag/pkg/infra/middleware/internal/pathutil"
	"github.com/kart-io/legal-rag/pkg/infra/middleware/requestutil"
	mwopts "github.com/kart-io/legal-rag/pkg/options/middleware"
)

var fieldsPool = sync.Pool{
	New: func() interface{} {
		s := make([]interface{}, 0, 16)
		return &s
	},
}

func acquireFields() *[]interface{} {
	return fieldsPool.Get().(*[]interface{})
}

func releaseFields(fields *[]interface{}) {
	*fields = (*fields)[:0]
	fieldsPool.Put(fields)
}

// Logger returns an access-log middleware with the default options.
func Logger() gin.HandlerFunc {
	return LoggerWithOptions(*mwopts.NewLoggerOptions())
}

// LoggerWithOptions logs one structured line per request after it completes.
// 5xx responses are logged at error level, 4xx at warn level.
func LoggerWithOptions(opts mwopts.LoggerOptions) gin.HandlerFunc {
	pathMatcher := pathutil.NewPathMatcher(opts.SkipPaths, nil)

	return func(c *gin.Context) {
		req := c.Request
		path := req.URL.Path

		if pathMatcher(path) {
			c.Next()
			return
		}

		start := time.Now()

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		fields := acquireFields()
		defer releaseFields(fields)

		*fields = append(*fields,
			"method", req.Method,
			"path", path,
			"status", status,
			"client_ip", requestutil.GetClientIP(req),
			"latency", latency.String(),
			"latency_ms", latency.Milliseconds(),
		)
		// c.Request may have been replaced downstream; read the id from the
		// final request.
		if requestID := requestutil.GetRequestID(c.Request.Context()); requestID != "" {
			*fields = append(*fields, "request_id", requestID)
		}
		if len(c.Errors) > 0 {
			*fields = append(*fields, "errors", c.Errors.String())
		}

		switch {
		case status >= 500:
			logger.Errorw("HTTP Request", (*fields)...)
		case status >= 400:
			logger.Warnw("HTTP Request", (*fields)...)
		default:
			logger.Infow("HTTP Request", (*fields)...)
		}
	}
}
