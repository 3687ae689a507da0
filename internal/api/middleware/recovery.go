package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/rvenkatesh9/outreach/internal/api/response"
)

// Recovery converts handler panics into 500 responses. A panicking stage
// executor never reaches here; only the HTTP path is covered.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				slog.Error("panic recovered",
					"panic", v,
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)
				response.Error(w, http.StatusInternalServerError,
					"INTERNAL_ERROR", "An unexpected error occurred", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
