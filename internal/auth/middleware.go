package auth

import (
	"net/http"
	"strings"

	"bookshelf/internal/httpx"
)

// Authenticate requires a valid bearer token and stores its principal in
// the request context.
func Authenticate(tokens *Tokens) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scheme, raw, found := strings.Cut(r.Header.Get("Authorization"), " ")
			if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(raw) == "" {
				httpx.Error(w, r, ErrUnauthenticated)
				return
			}

			principal, err := tokens.Parse(strings.TrimSpace(raw))
			if err != nil {
				httpx.Error(w, r, err)
				return
			}

			httpx.SetLogUser(r.Context(), principal.UserID.String())
			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
		})
	}
}

// RequireAdmin rejects principals without the admin role. It must run
// after Authenticate.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := PrincipalFrom(r.Context())
		if !ok {
			httpx.Error(w, r, ErrUnauthenticated)
			return
		}
		if !principal.IsAdmin() {
			httpx.Error(w, r, ErrAdminOnly)
			return
		}
		next.ServeHTTP(w, r)
	})
}
