package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rvenkatesh9/outreach/internal/llm"
	"github.com/rvenkatesh9/outreach/internal/store"
	"github.com/rvenkatesh9/outreach/pkg/models"
)

// EmailStage (stage 4, final) drafts one outreach email per prospect that
// has a matching research analysis, then marks the job COMPLETE. It requires
// every upstream artifact to already be on the job document; their absence
// is a hard failure.
type EmailStage struct {
	store store.Store
	llm   llm.Client
}

func NewEmailStage(st store.Store, client llm.Client) *EmailStage {
	return &EmailStage{store: st, llm: client}
}

func (s *EmailStage) Number() int    { return 4 }
func (s *EmailStage) Status() string { return models.StatusDraftingEmails }
func (s *EmailStage) StartLog() string {
	return "Stage 4 reviewing analysis and drafting personalized emails..."
}

func (s *EmailStage) Run(ctx context.Context, msg Message) (*Message, error) {
	job, err := s.store.GetJob(ctx, msg.JobID)
	if err != nil {
		return nil, fmt.Errorf("fetching job: %w", err)
	}
	if len(job.Prospects) == 0 || len(job.ResearchAnalyses) == 0 || job.CVInsights == nil {
		return nil, ErrMissingArtifacts
	}

	profile, err := s.store.GetProfile(ctx, job.ProfileID)
	if err != nil {
		return nil, fmt.Errorf("fetching profile: %w", err)
	}

	analysisFor := make(map[string]models.ResearchAnalysis, len(job.ResearchAnalyses))
	for _, a := range job.ResearchAnalyses {
		analysisFor[a.ProspectID.String()] = a
	}

	drafts := make([]models.EmailDraft, 0, len(job.Prospects))
	for _, prospect := range job.Prospects {
		analysis, ok := analysisFor[prospect.ID.String()]
		if !ok {
			// No analysis survived stage 2 for this prospect; no draft.
			continue
		}

		err := s.store.UpdateJob(ctx, msg.JobID,
			store.WithLogEntry(s.Number(),
				fmt.Sprintf("Drafting email to %s...", prospect.Name)))
		if err != nil {
			return nil, fmt.Errorf("logging progress: %w", err)
		}

		content, err := s.llm.DraftEmail(ctx, prospect, analysis, *job.CVInsights, profile.Bio)
		if err != nil {
			return nil, fmt.Errorf("drafting email for %s: %w", prospect.Name, err)
		}

		drafts = append(drafts, models.EmailDraft{
			JobID:                job.ID,
			ProspectName:         prospect.Name,
			Subject:              content.Subject,
			Body:                 content.Body,
			PersonalizedElements: personalization(analysis, job.CVInsights),
			GeneratedBy:          s.Number(),
			CreatedAt:            time.Now().UTC(),
		})
	}

	if len(drafts) > 0 {
		if err := s.store.SaveDrafts(ctx, drafts); err != nil {
			return nil, fmt.Errorf("saving drafts: %w", err)
		}
	}

	err = s.store.UpdateJob(ctx, msg.JobID,
		store.WithStatus(models.StatusComplete),
		store.WithDrafts(drafts),
		store.WithCompletedAt(time.Now().UTC()),
		store.WithLogEntry(s.Number(),
			fmt.Sprintf("Successfully drafted %d personalized emails. Job complete!", len(drafts))),
	)
	if err != nil {
		return nil, fmt.Errorf("completing job: %w", err)
	}

	// Final stage: nothing further to dispatch.
	return nil, nil
}

// personalization records the evidence triple used for the draft: the first
// publication, the first CV strength, and the first shared theme.
func personalization(analysis models.ResearchAnalysis, insight *models.CVInsight) models.PersonalizedElements {
	elements := models.PersonalizedElements{
		PublicationMention: "your recent work",
		CVMatch:            "background",
		SharedInterest:     "research",
	}
	if len(analysis.Publications) > 0 {
		elements.PublicationMention = analysis.Publications[0].Title
	}
	if len(insight.RelevantStrengths) > 0 {
		elements.CVMatch = insight.RelevantStrengths[0]
	}
	if len(analysis.KeyThemes) > 0 {
		elements.SharedInterest = analysis.KeyThemes[0]
	}
	return elements
}

var _ Stage = (*EmailStage)(nil)
