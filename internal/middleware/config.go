package middleware

import (
	"net/http"

	"github.com/loopfeed/loopfeed/internal/config"
	"github.com/loopfeed/loopfeed/internal/ctxkeys"
)

// Config adds the sanitized app configuration to the request context.
// Secrets such as JWTSecret and the storage credentials are left out.
func Config(cfg *config.Config) func(http.Handler) http.Handler {
	public := cfg.Sanitized()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := ctxkeys.WithConfig(r.Context(), public)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
