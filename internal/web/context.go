package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/iefreport/internal/core"
)

// WithRequestMetadata adds IP and User-Agent to context for export logging.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ip := clientIP(r) // RemoteAddr already rewritten by TrustedRealIP
	ua := r.Header.Get("User-Agent")
	ctx = core.ContextWithIPAddress(ctx, ip)
	ctx = core.ContextWithUserAgent(ctx, ua)
	return ctx
}
