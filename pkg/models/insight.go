package models

import "github.com/google/uuid"

// Experience is one position extracted from the user's CV.
type Experience struct {
	Role         string   `json:"role"`
	Organization string   `json:"organization"`
	Highlights   []string `json:"highlights"`
}

// CVInsight is stage 3's artifact: structured extraction of the user's CV,
// used by stage 4 to ground email personalization.
type CVInsight struct {
	ProfileID         uuid.UUID    `db:"profile_id"         json:"profile_id"`
	Skills            []string     `db:"skills"             json:"skills"`
	Experience        []Experience `db:"experience"         json:"experience"`
	Achievements      []string     `db:"achievements"       json:"achievements"`
	RelevantStrengths []string     `db:"relevant_strengths" json:"relevant_strengths"`
	AnalyzedBy        int          `db:"analyzed_by"        json:"analyzed_by"`
}
