// Package requestutil holds small helpers for inspecting HTTP requests.
package requestutil

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/kart-io/legal-rag/pkg/infra/middleware/common"
)

// GetClientIP returns the client IP address from the request.
// It checks X-Forwarded-For, X-Real-IP, and RemoteAddr.
func GetClientIP(r *http.Request) string {
	if ip := r.Header.Get(common.HeaderXForwardedFor); ip != "" {
		parts := strings.Split(ip, ",")
		return strings.TrimSpace(parts[0])
	}
	if ip := r.Header.Get(common.HeaderXRealIP); ip != "" {
		return ip
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// GetRequestID returns the request ID stored in ctx.
func GetRequestID(ctx context.Context) string {
	return common.GetRequestID(ctx)
}
