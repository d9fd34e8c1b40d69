package web

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/JonMunkholm/stockroom/internal/core"
)

// ActorHeader carries the pre-authenticated caller identity.
const ActorHeader = "X-Actor-ID"

// WithRequestMetadata adds actor, IP and User-Agent to context for audit logging.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ctx = core.ContextWithActor(ctx, actorID(r))
	ctx = core.ContextWithIPAddress(ctx, clientIP(r))
	ctx = core.ContextWithUserAgent(ctx, r.UserAgent())
	return ctx
}

// requireActor rejects requests without an actor header with 401.
func requireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if actorID(r) == "" {
			respondError(w, r, core.ErrMissingActor)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithRequestMetadata(r.Context(), r)))
	})
}

func actorID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(ActorHeader))
}

// clientIP returns the host part of RemoteAddr, which TrustedRealIP has
// already resolved.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
