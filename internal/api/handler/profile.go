package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	mw "github.com/rvenkatesh9/outreach/internal/api/middleware"
	"github.com/rvenkatesh9/outreach/internal/api/response"
	"github.com/rvenkatesh9/outreach/internal/store"
	"github.com/rvenkatesh9/outreach/pkg/models"
)

const (
	maxCVUploadBytes = 5 << 20
	minCVLength      = 100
)

// NewCreateProfileHandler returns an http.HandlerFunc for POST /api/v1/profiles.
// The request is multipart form data with a "cv" file plus "bio" and
// "research_interests" fields. The CV is stored as plain text.
func NewCreateProfileHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user identity", nil)
			return
		}

		if err := r.ParseMultipartForm(maxCVUploadBytes); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid multipart form", nil)
			return
		}

		file, header, err := r.FormFile("cv")
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "cv file is required", nil)
			return
		}
		defer file.Close()

		raw, err := io.ReadAll(io.LimitReader(file, maxCVUploadBytes+1))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Failed to read cv file", nil)
			return
		}
		if len(raw) > maxCVUploadBytes {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "cv file exceeds the 5MB limit", nil)
			return
		}

		cvText := strings.TrimSpace(string(raw))
		if err := validateCV(cvText); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
			return
		}

		profile := &models.Profile{
			ID:                uuid.New(),
			UserID:            userID,
			Bio:               strings.TrimSpace(r.FormValue("bio")),
			ResearchInterests: strings.TrimSpace(r.FormValue("research_interests")),
			CVText:            cvText,
			CVFileName:        header.Filename,
			UploadedAt:        time.Now().UTC(),
		}

		if err := s.CreateProfile(r.Context(), profile); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to save profile", nil)
			return
		}

		response.Created(w, profile)
	}
}

// validateCV rejects CV uploads too short to analyze.
func validateCV(text string) error {
	if text == "" {
		return errors.New("cv file is empty")
	}
	if len(text) < minCVLength {
		return errors.New("cv text is too short to analyze")
	}
	return nil
}
