package web

import (
	"context"
	"net"
	"net/http"

	"github.com/JonMunkholm/txnimport/internal/core"
	"github.com/JonMunkholm/txnimport/internal/logging"
)

// withRequestMetadata adds the client IP, user agent and tenant to ctx for
// the import history and log lines.
func withRequestMetadata(ctx context.Context, r *http.Request, tenantID int64) context.Context {
	ctx = core.ContextWithClient(ctx, clientIP(r), r.UserAgent())
	return logging.ContextWithTenant(ctx, tenantID)
}

// clientIP returns the request's IP without the port. RemoteAddr is already
// processed by TrustedRealIP.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
