package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rvenkatesh9/outreach/internal/cache"
	"github.com/rvenkatesh9/outreach/internal/scholar"
	"github.com/rvenkatesh9/outreach/internal/store"
	"github.com/rvenkatesh9/outreach/pkg/models"
)

const (
	maxAuthorMatches = 3
	maxPapersFetched = 5
	maxPublications  = 3

	papersCacheTTL = 24 * time.Hour
)

// PublicationStage (stage 2) verifies each prospect's publications against
// the bibliographic API and derives themes and talking points from them.
// A prospect with zero verified publications contributes no analysis; the
// skip is recorded in the job log rather than failing the stage.
type PublicationStage struct {
	store   store.Store
	scholar scholar.Client
	cache   cache.Cache
}

func NewPublicationStage(st store.Store, client scholar.Client, ca cache.Cache) *PublicationStage {
	return &PublicationStage{store: st, scholar: client, cache: ca}
}

func (s *PublicationStage) Number() int    { return 2 }
func (s *PublicationStage) Status() string { return models.StatusAnalyzingPublications }
func (s *PublicationStage) StartLog() string {
	return "Stage 2 initialized. Finding and verifying publications..."
}

func (s *PublicationStage) Run(ctx context.Context, msg Message) (*Message, error) {
	analyses := make([]models.ResearchAnalysis, 0, len(msg.Prospects))
	verifiedCount := 0

	for _, prospect := range msg.Prospects {
		err := s.store.UpdateJob(ctx, msg.JobID,
			store.WithLogEntry(s.Number(),
				fmt.Sprintf("Analyzing publications for %s...", prospect.Name)))
		if err != nil {
			return nil, fmt.Errorf("logging progress: %w", err)
		}

		pubs, err := s.verifiedPublications(ctx, prospect.Name)
		if err != nil {
			return nil, fmt.Errorf("verifying publications for %s: %w", prospect.Name, err)
		}
		if len(pubs) == 0 {
			err := s.store.UpdateJob(ctx, msg.JobID,
				store.WithLogEntry(s.Number(),
					fmt.Sprintf("No verified publications found for %s; skipping", prospect.Name)))
			if err != nil {
				return nil, fmt.Errorf("logging skip: %w", err)
			}
			continue
		}

		verifiedCount += len(pubs)
		analyses = append(analyses, buildAnalysis(prospect, pubs, s.Number()))
	}

	err := s.store.UpdateJob(ctx, msg.JobID,
		store.WithAnalyses(analyses),
		store.WithLogEntry(s.Number(),
			fmt.Sprintf("Found %d verified publications for %d prospects", verifiedCount, len(analyses))),
	)
	if err != nil {
		return nil, fmt.Errorf("storing analyses: %w", err)
	}
	if len(analyses) > 0 {
		if err := s.store.SaveAnalyses(ctx, msg.JobID, analyses); err != nil {
			return nil, fmt.Errorf("saving analyses: %w", err)
		}
	}

	next := msg
	next.Stage = 3
	next.Prospects = nil
	return &next, nil
}

// verifiedPublications looks the author up by name and returns up to
// maxPublications of their papers, all marked verified. No matching author
// is a valid empty result, not an error.
func (s *PublicationStage) verifiedPublications(ctx context.Context, authorName string) ([]models.Publication, error) {
	authors, err := s.scholar.SearchAuthors(ctx, authorName, maxAuthorMatches)
	if err != nil {
		return nil, err
	}
	if len(authors) == 0 {
		return nil, nil
	}

	papers, err := s.authorPapers(ctx, authors[0].AuthorID)
	if err != nil {
		return nil, err
	}

	var pubs []models.Publication
	for _, paper := range papers {
		if paper.Title == "" || paper.Year == 0 {
			continue
		}
		url := paper.URL
		if url == "" {
			url = fmt.Sprintf("https://www.semanticscholar.org/paper/%s", paper.PaperID)
		}
		pubs = append(pubs, models.Publication{
			Title:       paper.Title,
			Year:        paper.Year,
			Summary:     fmt.Sprintf("Research paper by %s", authorName),
			Relevance:   "High - verified publication",
			URL:         url,
			Verified:    true,
			VerifiedURL: url,
		})
		if len(pubs) == maxPublications {
			break
		}
	}
	return pubs, nil
}

// authorPapers fetches an author's papers through the cache. Author
// bibliographies move slowly, so a day-old answer is fine and spares the
// rate-limited bibliographic API. Cache failures fall through to a fetch.
func (s *PublicationStage) authorPapers(ctx context.Context, authorID string) ([]scholar.Paper, error) {
	key := cache.AuthorPapersKey(authorID)

	if s.cache != nil {
		if raw, ok, err := s.cache.Get(ctx, key); err == nil && ok {
			var papers []scholar.Paper
			if err := json.Unmarshal(raw, &papers); err == nil {
				return papers, nil
			}
		}
	}

	papers, err := s.scholar.AuthorPapers(ctx, authorID, maxPapersFetched)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if raw, err := json.Marshal(papers); err == nil {
			_ = s.cache.Set(ctx, key, raw, papersCacheTTL)
		}
	}
	return papers, nil
}

var _ Stage = (*PublicationStage)(nil)
