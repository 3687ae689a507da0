package handler

import (
	"net/http"

	"github.com/rvenkatesh9/outreach/internal/api/response"
	"github.com/rvenkatesh9/outreach/internal/cache"
	"github.com/rvenkatesh9/outreach/internal/store"
)

// NewHealthHandler returns an http.HandlerFunc for GET /api/v1/health.
// It reports connectivity to the database and cache.
func NewHealthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dbStatus := "ok"
		if err := s.Ping(r.Context()); err != nil {
			dbStatus = "unreachable"
		}

		cacheStatus := "ok"
		if err := c.Ping(r.Context()); err != nil {
			cacheStatus = "unreachable"
		}

		status := http.StatusOK
		if dbStatus != "ok" || cacheStatus != "ok" {
			status = http.StatusServiceUnavailable
		}

		body := map[string]string{
			"status":   "ok",
			"database": dbStatus,
			"cache":    cacheStatus,
		}
		if status != http.StatusOK {
			body["status"] = "degraded"
			response.Error(w, status, "SERVICE_UNAVAILABLE", "One or more dependencies are unreachable", body)
			return
		}
		response.JSON(w, body)
	}
}
