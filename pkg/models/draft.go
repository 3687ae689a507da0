package models

import (
	"time"

	"github.com/google/uuid"
)

// PersonalizedElements records which pieces of evidence stage 4 used to
// personalize a draft: a publication, a CV strength, and a shared theme.
type PersonalizedElements struct {
	PublicationMention string `json:"publication_mention"`
	CVMatch            string `json:"cv_match"`
	SharedInterest     string `json:"shared_interest"`
}

// EmailDraft is stage 4's artifact: one outreach email per prospect that
// has a matching research analysis.
type EmailDraft struct {
	JobID                uuid.UUID            `db:"job_id"                json:"job_id"`
	ProspectName         string               `db:"prospect_name"         json:"prospect_name"`
	Subject              string               `db:"subject"               json:"subject"`
	Body                 string               `db:"body"                  json:"body"`
	PersonalizedElements PersonalizedElements `db:"personalized_elements" json:"personalized_elements"`
	GeneratedBy          int                  `db:"generated_by"          json:"generated_by"`
	CreatedAt            time.Time            `db:"created_at"            json:"created_at"`
}
