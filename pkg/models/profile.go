package models

import (
	"time"

	"github.com/google/uuid"
)

// Profile holds a user's uploaded CV text and bio. TargetField inputs on a
// job reference a profile; profiles are immutable once created.
type Profile struct {
	ID                uuid.UUID `db:"id"                 json:"id"`
	UserID            uuid.UUID `db:"user_id"            json:"user_id"`
	Bio               string    `db:"bio"                json:"bio"`
	ResearchInterests string    `db:"research_interests" json:"research_interests"`
	CVText            string    `db:"cv_text"            json:"-"`
	CVFileName        string    `db:"cv_file_name"       json:"cv_file_name"`
	UploadedAt        time.Time `db:"uploaded_at"        json:"uploaded_at"`
}
