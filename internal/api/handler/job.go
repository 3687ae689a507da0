package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	mw "github.com/rvenkatesh9/outreach/internal/api/middleware"
	"github.com/rvenkatesh9/outreach/internal/api/response"
	"github.com/rvenkatesh9/outreach/internal/store"
)

const jobListLimit = 20

// NewGetJobHandler returns an http.HandlerFunc for GET /api/v1/jobs/{jobID}.
// The full job document is returned, including accumulated artifacts and logs,
// so clients poll this endpoint to follow pipeline progress.
func NewGetJobHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user identity", nil)
			return
		}

		jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "jobID must be a valid UUID", nil)
			return
		}

		job, err := s.GetJob(r.Context(), jobID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load job", nil)
			return
		}
		if job.UserID != userID {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
			return
		}

		response.JSON(w, job)
	}
}

// NewListJobsHandler returns an http.HandlerFunc for GET /api/v1/jobs.
// Jobs belonging to the authenticated user, most recent first.
func NewListJobsHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user identity", nil)
			return
		}

		jobs, err := s.ListJobsByUser(r.Context(), userID, jobListLimit)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list jobs", nil)
			return
		}

		response.Collection(w, jobs, response.PaginationMeta{
			Page:    1,
			Limit:   jobListLimit,
			Total:   len(jobs),
			HasNext: false,
		})
	}
}
