package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/kart-io/legal-rag/pkg/infra/middleware/common"
	mwopts "github.com/kart-io/legal-rag/pkg/options/middleware"
)

// HeaderXRequestID is re-exported from common.
const HeaderXRequestID = common.HeaderXRequestID

// RequestID returns a middleware that adds a unique request ID to each request.
// The request ID is added to:
//   - Response header (X-Request-ID)
//   - gin.Context under common.GinRequestIDKey
//   - Request context (can be retrieved with GetRequestID)
func RequestID() gin.HandlerFunc {
	return RequestIDWithOptions(*mwopts.NewRequestIDOptions(), nil)
}

// RequestIDWithOptions returns a RequestID middleware. A nil generator
// falls back to common.GenerateRequestID.
func RequestIDWithOptions(opts mwopts.RequestIDOptions, generator func() string) gin.HandlerFunc {
	if opts.Header == "" {
		opts.Header = HeaderXRequestID
	}
	if generator == nil {
		generator = common.GenerateRequestID
	}

	return func(c *gin.Context) {
		requestID := c.GetHeader(opts.Header)
		if requestID == "" {
			requestID = generator()
		}

		c.Header(opts.Header, requestID)
		c.Set(common.GinRequestIDKey, requestID)
		c.Request = c.Request.WithContext(common.WithRequestID(c.Request.Context(), requestID))

		c.Next()
	}
}

// GetRequestID returns the request ID from the context.
var GetRequestID = common.GetRequestID
