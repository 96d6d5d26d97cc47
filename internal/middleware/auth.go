package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/onnwee/listrank/internal/auth"
)

// TokenValidator validates admin bearer tokens.
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

// AdminAuth rejects requests without a valid admin bearer token. A nil
// validator rejects every request, which keeps admin routes closed when no
// secret is configured.
func AdminAuth(validator TokenValidator, metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if validator == nil {
				metrics.IncAuthFailures("disabled")
				writeError(w, r.Context(), http.StatusForbidden, ErrCodeForbidden, "Admin API is disabled")
				return
			}

			token, ok := bearerToken(r)
			if !ok {
				metrics.IncAuthFailures("missing")
				w.Header().Set("WWW-Authenticate", `Bearer realm="listrank"`)
				writeError(w, r.Context(), http.StatusUnauthorized, ErrCodeAuthFailed, "Missing bearer token")
				return
			}

			claims, err := validator.Validate(token)
			switch {
			case errors.Is(err, auth.ErrInsufficientScope):
				metrics.IncAuthFailures("scope")
				writeError(w, r.Context(), http.StatusForbidden, ErrCodeForbidden, "Token lacks admin scope")
				return
			case errors.Is(err, auth.ErrExpiredToken):
				metrics.IncAuthFailures("expired")
				w.Header().Set("WWW-Authenticate", `Bearer realm="listrank", error="invalid_token"`)
				writeError(w, r.Context(), http.StatusUnauthorized, ErrCodeAuthFailed, "Token has expired")
				return
			case err != nil:
				metrics.IncAuthFailures("invalid")
				w.Header().Set("WWW-Authenticate", `Bearer realm="listrank", error="invalid_token"`)
				writeError(w, r.Context(), http.StatusUnauthorized, ErrCodeAuthFailed, "Invalid token")
				return
			}

			ctx := SetSubject(r.Context(), claims.Subject)
			UpdateResponseContext(w, ctx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
