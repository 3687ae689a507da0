package models

import (
	"time"

	"github.com/google/uuid"
)

// Job statuses. A job moves strictly forward through the stage sequence;
// ERROR is reachable from any non-terminal status and is itself terminal.
const (
	StatusPending               = "PENDING"
	StatusFindingProspects      = "STAGE_1_FINDING_PROSPECTS"
	StatusAnalyzingPublications = "STAGE_2_ANALYZING_PUBLICATIONS"
	StatusAnalyzingCV           = "STAGE_3_ANALYZING_CV"
	StatusDraftingEmails        = "STAGE_4_DRAFTING_EMAILS"
	StatusComplete              = "COMPLETE"
	StatusError                 = "ERROR"
)

// NumStages is the number of pipeline stages a job passes through.
const NumStages = 4

// LogEntry is one line of a job's append-only audit trail.
// Entries are never edited or removed once written.
type LogEntry struct {
	Stage     int       `json:"stage"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Job tracks one end-to-end run of the outreach pipeline for a single
// profile and target field. The API returns a job id on POST /api/v1/deploy;
// the client polls GET /api/v1/jobs/{id} until status is COMPLETE or ERROR.
//
// The stage artifacts (Prospects, ResearchAnalyses, CVInsights, EmailDrafts)
// are denormalized onto the job so pollers read full progress without joins.
// Each is written in full by exactly one stage and never mutated afterwards.
type Job struct {
	ID           uuid.UUID `db:"id"            json:"id"`
	UserID       uuid.UUID `db:"user_id"       json:"user_id"`
	ProfileID    uuid.UUID `db:"profile_id"    json:"profile_id"`
	TargetField  string    `db:"target_field"  json:"target_field"`
	Status       string    `db:"status"        json:"status"`
	CurrentStage int       `db:"current_stage" json:"current_stage"`

	Prospects        []Prospect         `db:"prospects"         json:"prospects"`
	ResearchAnalyses []ResearchAnalysis `db:"research_analyses" json:"research_analyses"`
	CVInsights       *CVInsight         `db:"cv_insights"       json:"cv_insights"`
	EmailDrafts      []EmailDraft       `db:"email_drafts"      json:"email_drafts"`

	Logs []LogEntry `db:"logs" json:"logs"`

	Error       *string    `db:"error"        json:"error,omitempty"`
	CreatedAt   time.Time  `db:"created_at"   json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"   json:"updated_at"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

// Terminal reports whether the job can make no further progress.
func (j *Job) Terminal() bool {
	return j.Status == StatusComplete || j.Status == StatusError
}
