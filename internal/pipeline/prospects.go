package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rvenkatesh9/outreach/internal/llm"
	"github.com/rvenkatesh9/outreach/internal/store"
	"github.com/rvenkatesh9/outreach/pkg/models"
)

// ProspectStage (stage 1) discovers researchers in the job's target field.
// An empty discovery result is a hard failure: the only purpose of the rest
// of the chain is prospects to act on.
type ProspectStage struct {
	store store.Store
	llm   llm.Client
}

func NewProspectStage(st store.Store, client llm.Client) *ProspectStage {
	return &ProspectStage{store: st, llm: client}
}

func (s *ProspectStage) Number() int    { return 1 }
func (s *ProspectStage) Status() string { return models.StatusFindingProspects }
func (s *ProspectStage) StartLog() string {
	return "Stage 1 initialized. Searching for prospects..."
}

func (s *ProspectStage) Run(ctx context.Context, msg Message) (*Message, error) {
	prospects, err := s.llm.FindProspects(ctx, msg.TargetField, msg.Institution)
	if err != nil {
		return nil, fmt.Errorf("finding prospects: %w", err)
	}
	if len(prospects) == 0 {
		return nil, ErrNoProspects
	}

	names := make([]string, 0, len(prospects))
	for i := range prospects {
		prospects[i].ID = uuid.New()
		prospects[i].FoundBy = s.Number()
		names = append(names, prospects[i].Name)
	}

	err = s.store.UpdateJob(ctx, msg.JobID,
		store.WithProspects(prospects),
		store.WithLogEntry(s.Number(),
			fmt.Sprintf("Found %d prospects: %s", len(prospects), strings.Join(names, ", "))),
	)
	if err != nil {
		return nil, fmt.Errorf("storing prospects: %w", err)
	}
	if err := s.store.SaveProspects(ctx, msg.JobID, prospects); err != nil {
		return nil, fmt.Errorf("saving prospects: %w", err)
	}

	next := msg
	next.Stage = 2
	next.Prospects = prospects
	return &next, nil
}

var _ Stage = (*ProspectStage)(nil)
