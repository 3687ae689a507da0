package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	mw "github.com/rvenkatesh9/outreach/internal/api/middleware"
	"github.com/rvenkatesh9/outreach/internal/api/response"
	"github.com/rvenkatesh9/outreach/internal/pipeline"
	"github.com/rvenkatesh9/outreach/internal/store"
	"github.com/rvenkatesh9/outreach/pkg/models"
)

// NewDeployHandler returns an http.HandlerFunc for POST /api/v1/deploy.
// It creates a PENDING job and dispatches the first pipeline stage. The
// response returns immediately; progress is observed by polling the job.
func NewDeployHandler(s store.Store, d pipeline.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user identity", nil)
			return
		}

		var req struct {
			ProfileID   string `json:"profile_id"`
			TargetField string `json:"target_field"`
			Institution string `json:"institution"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		profileID, err := uuid.Parse(req.ProfileID)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "profile_id must be a valid UUID", nil)
			return
		}

		targetField := strings.TrimSpace(req.TargetField)
		if targetField == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "target_field is required", nil)
			return
		}

		profile, err := s.GetProfile(r.Context(), profileID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Profile not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load profile", nil)
			return
		}
		if profile.UserID != userID {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Profile not found", nil)
			return
		}

		now := time.Now().UTC()
		job := &models.Job{
			ID:          uuid.New(),
			UserID:      userID,
			ProfileID:   profileID,
			TargetField: targetField,
			Status:      models.StatusPending,
			Logs: []models.LogEntry{{
				Stage:     0,
				Message:   "Job created. Initializing pipeline...",
				Timestamp: now,
			}},
			CreatedAt: now,
			UpdatedAt: now,
		}

		if err := s.CreateJob(r.Context(), job); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create job", nil)
			return
		}

		msg := pipeline.Message{
			JobID:       job.ID,
			Stage:       1,
			ProfileID:   profileID,
			TargetField: targetField,
			Institution: strings.TrimSpace(req.Institution),
		}
		if err := d.Dispatch(r.Context(), msg); err != nil {
			// The job exists but never left PENDING. Surface the failure
			// instead of returning a job that will never progress.
			slog.Error("failed to dispatch first stage", "job_id", job.ID, "error", err)
			response.Error(w, http.StatusServiceUnavailable, "DISPATCH_FAILED",
				"Job accepted but pipeline dispatch failed", map[string]string{"job_id": job.ID.String()})
			return
		}

		response.Accepted(w, map[string]string{
			"job_id": job.ID.String(),
			"status": job.Status,
		})
	}
}
