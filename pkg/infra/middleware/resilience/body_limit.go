package resilience

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/legal-rag/pkg/utils/errors"
	"github.com/kart-io/legal-rag/pkg/utils/response"
)

// BodyLimit 限制请求体大小。
//
// 先检查 Content-Length，超限直接返回 413；否则用 http.MaxBytesReader
// 包装请求体，读取超限时处理器会得到 *http.MaxBytesError（见 IsBodyTooLarge）。
func BodyLimit(maxSize int64) gin.HandlerFunc {
	if maxSize <= 0 {
		maxSize = 4 * 1024 * 1024 // 默认 4MB
	}

	return func(c *gin.Context) {
		req := c.Request

		if req.ContentLength > maxSize {
			logger.Warnw("request body too large (Content-Length check)",
				"path", req.URL.Path,
				"content_length", req.ContentLength,
				"max_size", maxSize,
			)
			response.Fail(c, errors.ErrPayloadTooLarge)
			return
		}

		req.Body = http.MaxBytesReader(c.Writer, req.Body, maxSize)

		c.Next()
	}
}

// IsBodyTooLarge reports whether err came from a body cut off by BodyLimit.
func IsBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return stderrors.As(err, &maxErr)
}
