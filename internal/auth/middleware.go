package auth

import (
	"context"
	"net/http"
	"strings"

	pkghttp "github.com/mwhite-dev/punchcard/pkg/http"
)

type contextKey string

// SessionContextKey is the request-context key holding *SessionClaims.
const SessionContextKey contextKey = "session_claims"

// ClaimsFromContext extracts session claims injected by the middleware.
func ClaimsFromContext(ctx context.Context) (*SessionClaims, bool) {
	claims, ok := ctx.Value(SessionContextKey).(*SessionClaims)
	return claims, ok
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// RequireStaff validates the bearer session and rejects anything that is not
// a staff session. Claims are injected into the request context.
func RequireStaff(sm *SessionManager) func(http.Handler) http.Handler {
	return requireSubject(sm, SubjectStaff)
}

// RequireCustomer validates the bearer session and rejects anything that is
// not a customer session.
func RequireCustomer(sm *SessionManager) func(http.Handler) http.Handler {
	return requireSubject(sm, SubjectCustomer)
}

func requireSubject(sm *SessionManager, subject string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				pkghttp.WriteUnauthorized(w, "Missing or malformed Authorization header")
				return
			}

			claims, err := sm.Validate(token)
			if err != nil || claims.Subject != subject {
				pkghttp.WriteUnauthorized(w, "Invalid session")
				return
			}

			ctx := context.WithValue(r.Context(), SessionContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole gates a staff route to specific roles. Must run after
// RequireStaff.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				pkghttp.WriteUnauthorized(w, "Missing session")
				return
			}
			if !allowed[claims.Role] {
				pkghttp.WriteForbidden(w, "Insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
