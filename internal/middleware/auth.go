package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/jason-s-yu/tambola/internal/auth"
)

// AuthCookieName is the cookie the dashboard stores its identity token in.
const AuthCookieName = "auth_token"

// AuthMiddleware resolves the caller's identity token and stores the Identity in the
// request context. Missing tokens get 401, rejected tokens 403.
func AuthMiddleware(a auth.Authenticator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token == "" {
				http.Error(w, "missing auth token", http.StatusUnauthorized)
				return
			}

			id, err := a.Authenticate(token)
			if err != nil {
				if errors.Is(err, auth.ErrMissingToken) {
					http.Error(w, "missing auth token", http.StatusUnauthorized)
					return
				}
				http.Error(w, "invalid auth token", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
		})
	}
}

// TokenFromRequest returns the bearer token, falling back to the auth cookie.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(AuthCookieName); err == nil {
		return c.Value
	}
	return ""
}
