package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/quicktask/quicktask-api/internal/auth"
	"github.com/quicktask/quicktask-api/internal/httpx"
)

// TokenVerifier validates a bearer token and returns the subject id.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// Auth requires a valid "Authorization: Bearer <token>" header and attaches
// the verified subject to the request context. It only ever writes 401; the
// per-resource ownership checks live with the handlers and stores.
func Auth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := r.Header.Get("Authorization")
			token := strings.TrimPrefix(authz, "Bearer ")
			if authz == "" || token == authz {
				unauthorized(w, httpx.CodeUnauthorized, "No token provided. Authorization required.")
				return
			}

			subject, err := verifier.Verify(strings.TrimSpace(token))
			switch {
			case err == nil:
				next.ServeHTTP(w, r.WithContext(auth.WithUserID(r.Context(), subject)))
			case errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken):
				unauthorized(w, httpx.CodeInvalidToken, "Invalid or expired token")
			default:
				unauthorized(w, httpx.CodeAuthFailed, "Authentication failed")
			}
		})
	}
}

func unauthorized(w http.ResponseWriter, code, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="quicktask"`)
	httpx.WriteError(w, http.StatusUnauthorized, code, message)
}
