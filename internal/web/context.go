package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/ticketimport/internal/core"
)

// WithRequestMetadata adds the client IP and User-Agent to the context so
// import logs can name the submitter.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ctx = core.ContextWithClientIP(ctx, clientIP(r))
	ctx = core.ContextWithUserAgent(ctx, r.UserAgent())
	return ctx
}
