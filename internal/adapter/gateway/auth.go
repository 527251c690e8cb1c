package gateway

import (
	"context"
	"net/http"
	"strings"

	"cortexdb/internal/domain"
)

// KeyVerifier checks a raw API key presented in an Authorization header and
// returns the identity it resolves to.
type KeyVerifier interface {
	Verify(ctx context.Context, rawKey string) (domain.APIKeyAuth, error)
}

// RequireAPIKey returns middleware that authenticates every request against
// the Authorization header, given as "Bearer <key>" or as the bare key, and
// attaches the resolved identity to the request context via
// domain.ContextWithAuth.
func RequireAPIKey(verifier KeyVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawKey, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeError(w, domain.NewDomainError("gateway.auth", domain.ErrAPIKeyMissing, "missing bearer token"))
				return
			}

			auth, err := verifier.Verify(r.Context(), rawKey)
			if err != nil {
				writeError(w, err)
				return
			}

			ctx := domain.ContextWithAuth(r.Context(), auth)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	token := strings.TrimSpace(header)
	if strings.HasPrefix(header, prefix) {
		token = strings.TrimSpace(strings.TrimPrefix(header, prefix))
	} else if token == "Bearer" || strings.ContainsAny(token, " \t") {
		// A bare key carries no scheme word; any other scheme is rejected.
		return "", false
	}
	if token == "" {
		return "", false
	}
	return token, true
}

// requirePermission returns middleware that rejects the request unless the
// authenticated identity's Permissions satisfy flag (see domain.Permissions.Allows).
func requirePermission(flag string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth, ok := domain.AuthFromContext(r.Context())
			if !ok {
				writeError(w, domain.NewDomainError("gateway.auth", domain.ErrAPIKeyMissing, "no authenticated identity"))
				return
			}
			if !auth.Permissions.Allows(flag) {
				writeError(w, domain.NewDomainError("gateway.auth", domain.ErrAdminRequired, "missing permission: "+flag))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
