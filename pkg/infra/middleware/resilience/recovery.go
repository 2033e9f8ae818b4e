// Package resilience holds the middleware that keeps a request from taking
// the server down with it: panic recovery, deadlines and body limits.
package resilience

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	mwopts "github.com/kart-io/legal-rag/pkg/options/middleware"
	"github.com/kart-io/legal-rag/pkg/utils/errors"
	"github.com/kart-io/legal-rag/pkg/utils/response"
)

// PanicHandler 定义 panic 处理器类型。
// 参数：
//   - ctx: 请求上下文
//   - err: panic 值
//   - stack: 堆栈跟踪信息
type PanicHandler func(ctx *gin.Context, err interface{}, stack []byte)

// Recovery returns a middleware that recovers from panics with default options.
func Recovery() gin.HandlerFunc {
	return RecoveryWithOptions(*mwopts.NewRecoveryOptions(), nil)
}

// RecoveryWithOptions 返回 Recovery 中间件。
//
// panic 会被记录到日志（可选附带堆栈），客户端只收到 ErrPanic 与 panic 值，
// 不包含堆栈信息。onPanic 可为 nil。
func RecoveryWithOptions(opts mwopts.RecoveryOptions, onPanic PanicHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				stack := debug.Stack()
				logPanic(c, r, stack, opts.EnableStackTrace)

				if onPanic != nil {
					onPanic(c, r, stack)
				}

				response.Fail(c, errors.ErrPanic.WithMessage(fmt.Sprintf("panic: %v", r)))
			}
		}()
		c.Next()
	}
}

func logPanic(c *gin.Context, panicValue interface{}, stack []byte, withStack bool) {
	fields := []interface{}{
		"panic", panicValue,
		"path", c.Request.URL.Path,
		"method", c.Request.Method,
		"request_id", response.RequestID(c),
	}
	if withStack {
		fields = append(fields, "stack_trace", string(stack))
	}
	logger.Errorw("panic recovered", fields...)
}
