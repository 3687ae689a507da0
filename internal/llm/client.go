// Package llm defines the LLM collaborator interface the pipeline stages
// delegate to, plus its OpenAI-compatible and mock implementations.
package llm

import (
	"context"
	"errors"

	"github.com/rvenkatesh9/outreach/pkg/models"
)

var (
	ErrUnavailable     = errors.New("llm provider unavailable")
	ErrInvalidResponse = errors.New("llm provider returned invalid response")
)

// EmailContent is the drafted subject and body for one outreach email.
type EmailContent struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Client is the collaborator interface the stages depend on. Stages never
// call a specific provider directly; they are handed this interface.
type Client interface {
	// FindProspects discovers researchers in the given field. An empty result
	// is returned as-is; the prospect stage decides that it is a hard failure.
	FindProspects(ctx context.Context, field, institution string) ([]models.Prospect, error)
	// AnalyzeCV extracts structured insights from raw CV text.
	AnalyzeCV(ctx context.Context, cvText, field string) (*models.CVInsight, error)
	// DraftEmail writes one personalized outreach email.
	DraftEmail(ctx context.Context, prospect models.Prospect, analysis models.ResearchAnalysis, insight models.CVInsight, bio string) (*EmailContent, error)
	// Name returns the provider identifier (e.g., "openai", "mock").
	Name() string
}
