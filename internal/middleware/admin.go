package middleware

import (
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

// RequireAdmin guards admin-only routes behind a shared password checked
// against a bcrypt hash. An empty hash disables all admin routes.
func RequireAdmin(passwordHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if passwordHash == "" {
				http.Error(w, "admin access disabled", http.StatusForbidden)
				return
			}
			password := r.Header.Get("X-Admin-Password")
			if password == "" {
				http.Error(w, "missing admin password", http.StatusUnauthorized)
				return
			}
			if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)); err != nil {
				http.Error(w, "invalid admin password", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
