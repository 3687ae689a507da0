package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rvenkatesh9/outreach/internal/api/response"
	"github.com/rvenkatesh9/outreach/internal/pipeline"
	"github.com/rvenkatesh9/outreach/internal/store"
)

// StageExecutor defines the interface the stage-invoke handler depends on.
type StageExecutor interface {
	Execute(ctx context.Context, msg pipeline.Message) error
}

// NewStageHandler returns an http.HandlerFunc for POST /api/v1/internal/stages/{stage}.
// It runs one pipeline stage synchronously with the forwarded message payload.
// The normal path dispatches stages through the in-process queue; this route
// exists for the internal scope to re-invoke a stage or drive a pipeline by
// hand. A stage failure has already moved the job to ERROR by the time the
// error response is written.
func NewStageHandler(exec StageExecutor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stageNum, err := strconv.Atoi(chi.URLParam(r, "stage"))
		if err != nil || stageNum < 1 {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "stage must be a positive integer", nil)
			return
		}

		var msg pipeline.Message
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if msg.JobID == uuid.Nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "job_id is required", nil)
			return
		}
		msg.Stage = stageNum

		if err := exec.Execute(r.Context(), msg); err != nil {
			switch {
			case errors.Is(err, pipeline.ErrUnknownStage):
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Unknown stage", nil)
			case errors.Is(err, store.ErrNotFound):
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
			case errors.Is(err, store.ErrInvalidTransition):
				response.Error(w, http.StatusConflict, "INVALID_TRANSITION",
					"Job is not ready for this stage", nil)
			default:
				response.Error(w, http.StatusInternalServerError, "STAGE_FAILED", err.Error(), nil)
			}
			return
		}

		response.JSON(w, map[string]any{
			"success": true,
			"stage":   stageNum,
			"job_id":  msg.JobID.String(),
		})
	}
}
