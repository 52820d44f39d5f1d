package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/vaidashi/hire-a-tutor/pkg/logger"
)

// AdminTokenHeader carries the shared admin token
const AdminTokenHeader = "X-Admin-Token"

// RequireToken rejects requests that do not present token. An empty token
// disables the check.
func RequireToken(token string, logger logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			presented := r.Header.Get(AdminTokenHeader)

			if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				logger.Warn("Rejected admin request", "path", r.URL.Path, "remoteAddr", r.RemoteAddr)
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte("unauthorized"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
