package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/driftlock/authd/internal/auth/domain"
	"github.com/driftlock/authd/internal/auth/service"
	"github.com/driftlock/authd/pkg/httpx"
)

// AuthnMiddleware resolves the bearer token into a Principal and stores it
// in the request context. Verification includes the live token-version
// check, so a revoked session fails here, not deeper in the handler.
func AuthnMiddleware(tokens *service.TokenService) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				httpx.Fail(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			principal, err := tokens.VerifyAccess(r.Context(), raw)
			if err != nil {
				if errors.Is(err, service.ErrTokenExpired) {
					httpx.Fail(w, http.StatusUnauthorized, "token expired")
					return
				}
				httpx.Fail(w, http.StatusUnauthorized, "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), httpx.CtxKeyPrincipal, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// principalFrom pulls the authenticated principal out of the context. Only
// meaningful behind AuthnMiddleware.
func principalFrom(ctx context.Context) (domain.Principal, bool) {
	p, ok := ctx.Value(httpx.CtxKeyPrincipal).(domain.Principal)
	return p, ok
}
