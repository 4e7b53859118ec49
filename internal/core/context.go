package core

import "context"

type contextKey string

const (
	ctxKeyIPAddress contextKey = "import_ip"
	ctxKeyUserAgent contextKey = "import_ua"
)

// ContextWithClient records the caller's address and user agent so that the
// import history can attribute each run.
func ContextWithClient(ctx context.Context, ip, userAgent string) context.Context {
	if ip != "" {
		ctx = context.WithValue(ctx, ctxKeyIPAddress, ip)
	}
	if userAgent != "" {
		ctx = context.WithValue(ctx, ctxKeyUserAgent, userAgent)
	}
	return ctx
}

// IPAddressFromContext returns the address stored by ContextWithClient.
func IPAddressFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyIPAddress).(string)
	return v
}

// UserAgentFromContext returns the user agent stored by ContextWithClient.
func UserAgentFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyUserAgent).(string)
	return v
}
