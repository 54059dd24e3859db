package chi

import (
	"context"
	"net/http"
	"strings"
)

// TokenValidator checks a bearer token and returns the subject username.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (string, error)
}

type contextKey string

const userContextKey contextKey = "auth_user"

// UserFromContext returns the authenticated username placed by the middleware.
func UserFromContext(ctx context.Context) (string, bool) {
	user, ok := ctx.Value(userContextKey).(string)
	return user, ok
}

// exemptPaths are routes that bypass authentication (login, health, metrics).
var exemptPaths = map[string]struct{}{
	"/token":   {},
	"/health":  {},
	"/metrics": {},
}

// BearerAuthMiddleware returns a middleware that validates Bearer session
// tokens. All failure modes get the same message so a caller cannot probe
// which check rejected the token.
func BearerAuthMiddleware(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Exempt paths
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			auth := r.Header.Get("Authorization")
			if auth == "" {
				writeError(w, http.StatusUnauthorized, codeAuthenticationFailed, "missing authorization header")
				return
			}

			const bearerPrefix = "Bearer "
			if !strings.HasPrefix(auth, bearerPrefix) {
				writeError(w, http.StatusUnauthorized,
					codeAuthenticationFailed, "authorization header must use Bearer scheme")
				return
			}

			username, err := validator.Validate(r.Context(), auth[len(bearerPrefix):])
			if err != nil {
				writeError(w, http.StatusUnauthorized, codeAuthenticationFailed, "could not validate credentials")
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey, username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
