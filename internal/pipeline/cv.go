package pipeline

import (
	"context"
	"fmt"

	"github.com/rvenkatesh9/outreach/internal/llm"
	"github.com/rvenkatesh9/outreach/internal/store"
	"github.com/rvenkatesh9/outreach/pkg/models"
)

// CVStage (stage 3) extracts structured insights from the profile's raw CV
// text so stage 4 can ground its personalization.
type CVStage struct {
	store store.Store
	llm   llm.Client
}

func NewCVStage(st store.Store, client llm.Client) *CVStage {
	return &CVStage{store: st, llm: client}
}

func (s *CVStage) Number() int    { return 3 }
func (s *CVStage) Status() string { return models.StatusAnalyzingCV }
func (s *CVStage) StartLog() string {
	return "Stage 3 initialized. Analyzing CV..."
}

func (s *CVStage) Run(ctx context.Context, msg Message) (*Message, error) {
	profile, err := s.store.GetProfile(ctx, msg.ProfileID)
	if err != nil {
		return nil, fmt.Errorf("fetching profile: %w", err)
	}

	insight, err := s.llm.AnalyzeCV(ctx, profile.CVText, msg.TargetField)
	if err != nil {
		return nil, fmt.Errorf("analyzing cv: %w", err)
	}
	insight.ProfileID = profile.ID
	insight.AnalyzedBy = s.Number()

	err = s.store.UpdateJob(ctx, msg.JobID,
		store.WithInsight(insight),
		store.WithLogEntry(s.Number(),
			fmt.Sprintf("Extracted %d skills and %d experiences from CV",
				len(insight.Skills), len(insight.Experience))),
	)
	if err != nil {
		return nil, fmt.Errorf("storing cv insights: %w", err)
	}
	if err := s.store.SaveInsight(ctx, msg.JobID, insight); err != nil {
		return nil, fmt.Errorf("saving cv insights: %w", err)
	}

	next := msg
	next.Stage = 4
	return &next, nil
}

var _ Stage = (*CVStage)(nil)
