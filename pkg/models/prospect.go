package models

import "github.com/google/uuid"

// Prospect is a candidate contact discovered for outreach by stage 1.
// Immutable after creation.
type Prospect struct {
	ID            uuid.UUID `db:"id"             json:"id"`
	Name          string    `db:"name"           json:"name"`
	Title         string    `db:"title"          json:"title"`
	Institution   string    `db:"institution"    json:"institution"`
	Email         string    `db:"email"          json:"email,omitempty"`
	ProfileURL    string    `db:"profile_url"    json:"profile_url,omitempty"`
	ResearchAreas []string  `db:"research_areas" json:"research_areas"`
	FoundBy       int       `db:"found_by"       json:"found_by"`
}
