// Package security holds the cross-origin middleware.
package security

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	mwopts "github.com/kart-io/legal-rag/pkg/options/middleware"
)

// CORS returns a CORS middleware with the default options.
func CORS() gin.HandlerFunc {
	h, err := CORSWithOptions(*mwopts.NewCORSOptions())
	if err != nil {
		panic(err)
	}
	return h
}

func validateCORSOptions(opts mwopts.CORSOptions) error {
	if len(opts.AllowOrigins) == 0 {
		return fmt.Errorf("CORS: AllowOrigins must be explicitly configured, empty list not allowed")
	}

	hasWildcard := false
	for _, origin := range opts.AllowOrigins {
		if origin == "*" {
			hasWildcard = true
			continue
		}
		if err := validateOriginFormat(origin); err != nil {
			return fmt.Errorf("CORS: invalid origin format '%s': %w", origin, err)
		}
	}

	if hasWildcard && opts.AllowCredentials {
		return fmt.Errorf("CORS: cannot use wildcard origin '*' with AllowCredentials=true")
	}

	return nil
}

func validateOriginFormat(origin string) error {
	if origin == "" {
		return fmt.Errorf("origin cannot be empty")
	}

	idx := strings.Index(origin, "://")
	if idx < 0 {
		return fmt.Errorf("origin must include scheme (http:// or https://)")
	}

	if strings.ContainsAny(origin[idx+3:], "/?#") {
		return fmt.Errorf("origin should not include path, query, or fragment")
	}

	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// CORSWithOptions 返回 CORS 中间件。
//
// AllowMethods / AllowHeaders 为 "*" 时，预检响应回显请求中的
// Access-Control-Request-Method / Access-Control-Request-Headers。
func CORSWithOptions(opts mwopts.CORSOptions) (gin.HandlerFunc, error) {
	if err := validateCORSOptions(opts); err != nil {
		return nil, err
	}

	if len(opts.AllowMethods) == 0 {
		opts.AllowMethods = []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodHead,
			http.MethodOptions,
		}
	}
	if len(opts.AllowHeaders) == 0 {
		opts.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "X-Request-ID"}
	}
	if opts.MaxAge == 0 {
		opts.MaxAge = 86400
	}

	anyMethod := contains(opts.AllowMethods, "*")
	anyHeader := contains(opts.AllowHeaders, "*")
	allowMethods := strings.Join(opts.AllowMethods, ", ")
	allowHeaders := strings.Join(opts.AllowHeaders, ", ")
	exposeHeaders := strings.Join(opts.ExposeHeaders, ", ")
	maxAge := strconv.Itoa(opts.MaxAge)

	return func(c *gin.Context) {
		req := c.Request
		origin := req.Header.Get("Origin")
		if origin == "" {
			c.Next()
			return
		}

		allowedOrigin := ""
		for _, o := range opts.AllowOrigins {
			if o == "*" || o == origin {
				allowedOrigin = o
				break
			}
		}

		if allowedOrigin == "" {
			c.Next()
			return
		}

		c.Header("Access-Control-Allow-Origin", allowedOrigin)
		c.Header("Vary", "Origin")

		if opts.AllowCredentials {
			c.Header("Access-Control-Allow-Credentials", "true")
		}

		if exposeHeaders != "" {
			c.Header("Access-Control-Expose-Headers", exposeHeaders)
		}

		if req.Method == http.MethodOptions && req.Header.Get("Access-Control-Request-Method") != "" {
			methods := allowMethods
			if anyMethod {
				methods = req.Header.Get("Access-Control-Request-Method")
			}
			headers := allowHeaders
			if anyHeader {
				headers = req.Header.Get("Access-Control-Request-Headers")
			}

			c.Header("Access-Control-Allow-Methods", methods)
			if headers != "" {
				c.Header("Access-Control-Allow-Headers", headers)
			}
			c.Header("Access-Control-Max-Age", maxAge)
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}, nil
}
