// Package pipeline contains the job orchestration core: the stage contract,
// the executor that advances a job through the four stages, and the
// dispatcher that hands work from one stage to the next.
package pipeline

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rvenkatesh9/outreach/pkg/models"
)

var (
	ErrUnknownStage     = errors.New("unknown pipeline stage")
	ErrNoProspects      = errors.New("prospect discovery returned no prospects")
	ErrMissingArtifacts = errors.New("missing required data from previous stages")
)

// Message is the dispatch payload carried from one stage to the next. Data a
// stage derives for its successor is passed forward here rather than re-read
// from the store, so the successor does not race the predecessor's write.
type Message struct {
	JobID       uuid.UUID         `json:"job_id"`
	Stage       int               `json:"stage"`
	ProfileID   uuid.UUID         `json:"profile_id"`
	TargetField string            `json:"target_field"`
	Institution string            `json:"institution,omitempty"`
	Prospects   []models.Prospect `json:"prospects,omitempty"`
}

// Stage is one unit of pipeline work. Run performs the stage's work and
// persists its artifact; it returns the message to dispatch to the next
// stage, or nil if it was the final stage and the job is complete.
//
// Run must not write job status transitions or terminal error state: the
// Executor owns entering the stage and converting failures into the job's
// ERROR state.
type Stage interface {
	Number() int
	Status() string
	StartLog() string
	Run(ctx context.Context, msg Message) (*Message, error)
}
