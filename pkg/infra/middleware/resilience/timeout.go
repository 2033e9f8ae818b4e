package resilience

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/legal-rag/pkg/infra/middleware/internal/pathutil"
	mwopts "github.com/kart-io/legal-rag/pkg/options/middleware"
	"github.com/kart-io/legal-rag/pkg/utils/errors"
	"github.com/kart-io/legal-rag/pkg/utils/response"
)

// Timeout returns a middleware with the given request deadline.
func Timeout(timeout time.Duration) gin.HandlerFunc {
	return TimeoutWithOptions(mwopts.TimeoutOptions{Timeout: timeout})
}

// TimeoutWithOptions returns a middleware that puts a deadline on the
// request context. The handler runs on the serving goroutine; upstream calls
// observe the deadline through the context. If the deadline passed and the
// handler wrote nothing, a 408 error body is sent.
func TimeoutWithOptions(opts mwopts.TimeoutOptions) gin.HandlerFunc {
	if opts.Timeout <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	pathMatcher := pathutil.NewPathMatcher(opts.SkipPaths, nil)

	return func(c *gin.Context) {
		if pathMatcher(c.Request.URL.Path) {
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), opts.Timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if stderrors.Is(ctx.Err(), context.DeadlineExceeded) && !c.Writer.Written() {
			logger.Warnw("request timed out",
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
				"timeout", opts.Timeout.String(),
				"request_id", response.RequestID(c),
			)
			response.Fail(c, errors.ErrRequestTimeout)
		}
	}
}
