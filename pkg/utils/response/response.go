// Package response writes HTTP replies for the gin handlers.
//
// Successful replies are written as the bare payload. Errors always use the
// ErrorBody shape so clients can rely on the "detail" key.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/legal-rag/pkg/infra/middleware/common"
	"github.com/kart-io/legal-rag/pkg/utils/errors"
)

// ErrorBody is the JSON body of every error reply.
type ErrorBody struct {
	// Code is the business error code
	Code int `json:"code"`

	// Message is the English errno message
	Message string `json:"message"`

	// Detail carries the message and, for server errors, the upstream cause
	Detail string `json:"detail"`

	// RequestID is the unique request identifier for tracing
	RequestID string `json:"request_id,omitempty"`
}

// NewErrorBody builds the body for e.
func NewErrorBody(e *errors.Errno, requestID string) *ErrorBody {
	return &ErrorBody{
		Code:      e.Code,
		Message:   e.MessageEN,
		Detail:    e.Detail(),
		RequestID: requestID,
	}
}

// OK writes data with status 200.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Fail writes the error body for e and aborts the handler chain.
func Fail(c *gin.Context, e *errors.Errno) {
	if e == nil {
		e = errors.ErrInternal
	}
	c.AbortWithStatusJSON(e.HTTPStatus(), NewErrorBody(e, RequestID(c)))
}

// FailWithError converts err with errors.FromError and writes it.
func FailWithError(c *gin.Context, err error) {
	Fail(c, errors.FromError(err))
}

// RequestID returns the request id set by the request-id middleware.
func RequestID(c *gin.Context) string {
	if id := c.GetString(common.GinRequestIDKey); id != "" {
		return id
	}
	if c.Request != nil {
		return common.GetRequestID(c.Request.Context())
	}
	return ""
}
