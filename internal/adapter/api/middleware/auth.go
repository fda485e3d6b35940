package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/storepilot/storepilot/internal/domain"
)

type contextKey string

const identityKey contextKey = "identity"

// TokenValidator resolves a bearer token into the acting identity.
type TokenValidator interface {
	Identify(token string) (domain.Identity, error)
}

// Auth is a middleware factory that authenticates requests via the
// Authorization header and stores the resulting identity in the request
// context. Requests without a valid token are rejected with 401.
func Auth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "authentication required")
				return
			}
			ident, err := validator.Identify(token)
			if err != nil {
				logger.Warn("invalid credential presented", "remote_addr", r.RemoteAddr, "error", err)
				writeAuthError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "invalid or expired token")
				return
			}
			ctx := context.WithValue(r.Context(), identityKey, ident)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin allows only admin identities through. It must run after Auth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident, ok := IdentityFrom(r.Context())
		if !ok || !ident.IsAdmin() {
			writeAuthError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "admin token required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// IdentityFrom returns the authenticated identity stored by Auth.
func IdentityFrom(ctx context.Context) (domain.Identity, bool) {
	ident, ok := ctx.Value(identityKey).(domain.Identity)
	return ident, ok
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

func writeAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]map[string]string{
		"error": {"code": code, "message": message},
	})
}
