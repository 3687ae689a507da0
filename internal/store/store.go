package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rvenkatesh9/outreach/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")
var ErrInvalidTransition = errors.New("invalid job status transition")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	GetDefaultUser(ctx context.Context) (*models.User, error)

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context, userID uuid.UUID) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID, userID uuid.UUID) error

	CreateProfile(ctx context.Context, profile *models.Profile) error
	GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error)

	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	ListJobsByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Job, error)
	UpdateJob(ctx context.Context, id uuid.UUID, opts ...JobUpdateOption) error

	SaveProspects(ctx context.Context, jobID uuid.UUID, prospects []models.Prospect) error
	SaveAnalyses(ctx context.Context, jobID uuid.UUID, analyses []models.ResearchAnalysis) error
	SaveInsight(ctx context.Context, jobID uuid.UUID, insight *models.CVInsight) error
	SaveDrafts(ctx context.Context, drafts []models.EmailDraft) error
}

// validTransitions encodes the monotonic status sequence. ERROR is allowed
// from every non-terminal status; COMPLETE and ERROR allow nothing further.
var validTransitions = map[string][]string{
	models.StatusPending:               {models.StatusFindingProspects, models.StatusError},
	models.StatusFindingProspects:      {models.StatusAnalyzingPublications, models.StatusError},
	models.StatusAnalyzingPublications: {models.StatusAnalyzingCV, models.StatusError},
	models.StatusAnalyzingCV:           {models.StatusDraftingEmails, models.StatusError},
	models.StatusDraftingEmails:        {models.StatusComplete, models.StatusError},
}

func transitionAllowed(from, to string) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// terminalStatus reports whether a job in this status accepts no further
// writes of any kind. Terminal documents are immutable, so even a log-only
// or field-only update is refused, not just status changes.
func terminalStatus(s string) bool {
	return s == models.StatusComplete || s == models.StatusError
}

type jobUpdateParams struct {
	Status       *string
	CurrentStage *int
	Prospects    []models.Prospect
	Analyses     []models.ResearchAnalysis
	Insight      *models.CVInsight
	Drafts       []models.EmailDraft
	ErrorMessage *string
	CompletedAt  *time.Time
	LogEntry     *models.LogEntry
}

type JobUpdateOption func(*jobUpdateParams)

// WithStatus transitions the job's status. The store validates the change
// against the monotonic transition table before applying it.
func WithStatus(status string) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.Status = &status
	}
}

// WithStage records which stage has taken ownership of the job.
func WithStage(stage int) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.CurrentStage = &stage
	}
}

func WithProspects(prospects []models.Prospect) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.Prospects = prospects
	}
}

func WithAnalyses(analyses []models.ResearchAnalysis) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.Analyses = analyses
	}
}

func WithInsight(insight *models.CVInsight) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.Insight = insight
	}
}

func WithDrafts(drafts []models.EmailDraft) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.Drafts = drafts
	}
}

func WithErrorMessage(msg string) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.ErrorMessage = &msg
	}
}

func WithCompletedAt(t time.Time) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.CompletedAt = &t
	}
}

// WithLogEntry appends one entry to the job's audit log. The append is a
// jsonb concatenation in the same UPDATE, so a racing update can never
// overwrite a previously appended entry.
func WithLogEntry(stage int, message string) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.LogEntry = &models.LogEntry{
			Stage:     stage,
			Message:   message,
			Timestamp: time.Now().UTC(),
		}
	}
}

// ApplyUpdate applies update options to a job in memory with the same
// transition validation the Postgres store enforces. In-memory Store
// implementations use it to stay faithful to the persisted semantics.
func ApplyUpdate(job *models.Job, opts ...JobUpdateOption) error {
	params := &jobUpdateParams{}
	for _, opt := range opts {
		opt(params)
	}

	if terminalStatus(job.Status) {
		return fmt.Errorf("%w: job is %s", ErrInvalidTransition, job.Status)
	}
	if params.Status != nil {
		if !transitionAllowed(job.Status, *params.Status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, job.Status, *params.Status)
		}
		job.Status = *params.Status
	}
	if params.CurrentStage != nil {
		job.CurrentStage = *params.CurrentStage
	}
	if params.Prospects != nil {
		job.Prospects = params.Prospects
	}
	if params.Analyses != nil {
		job.ResearchAnalyses = params.Analyses
	}
	if params.Insight != nil {
		job.CVInsights = params.Insight
	}
	if params.Drafts != nil {
		job.EmailDrafts = params.Drafts
	}
	if params.ErrorMessage != nil {
		job.Error = params.ErrorMessage
	}
	if params.CompletedAt != nil {
		job.CompletedAt = params.CompletedAt
	}
	if params.LogEntry != nil {
		job.Logs = append(job.Logs, *params.LogEntry)
	}
	job.UpdatedAt = time.Now().UTC()
	return nil
}
