package models

import "github.com/google/uuid"

// Publication is a single paper attributed to a prospect. Verified is set
// only when the paper was cross-checked against the bibliographic API.
type Publication struct {
	Title       string `json:"title"`
	Year        int    `json:"year"`
	Summary     string `json:"summary"`
	Relevance   string `json:"relevance"`
	URL         string `json:"url,omitempty"`
	Verified    bool   `json:"verified,omitempty"`
	VerifiedURL string `json:"verified_url,omitempty"`
}

// ResearchAnalysis is stage 2's artifact for one prospect: their verified
// publications plus derived themes and outreach talking points.
type ResearchAnalysis struct {
	ProspectID    uuid.UUID     `db:"prospect_id"    json:"prospect_id"`
	ProspectName  string        `db:"prospect_name"  json:"prospect_name"`
	Publications  []Publication `db:"publications"   json:"publications"`
	KeyThemes     []string      `db:"key_themes"     json:"key_themes"`
	TalkingPoints []string      `db:"talking_points" json:"talking_points"`
	AnalyzedBy    int           `db:"analyzed_by"    json:"analyzed_by"`
}
