package llm

import (
	"context"
	"fmt"

	"github.com/rvenkatesh9/outreach/pkg/models"
)

// MockClient satisfies Client for tests and keyless development.
type MockClient struct {
	ProviderName      string
	FindProspectsFunc func(ctx context.Context, field, institution string) ([]models.Prospect, error)
	AnalyzeCVFunc     func(ctx context.Context, cvText, field string) (*models.CVInsight, error)
	DraftEmailFunc    func(ctx context.Context, prospect models.Prospect, analysis models.ResearchAnalysis, insight models.CVInsight, bio string) (*EmailContent, error)
}

func (m *MockClient) Name() string { return m.ProviderName }

func (m *MockClient) FindProspects(ctx context.Context, field, institution string) ([]models.Prospect, error) {
	if m.FindProspectsFunc != nil {
		return m.FindProspectsFunc(ctx, field, institution)
	}
	return nil, nil
}

func (m *MockClient) AnalyzeCV(ctx context.Context, cvText, field string) (*models.CVInsight, error) {
	if m.AnalyzeCVFunc != nil {
		return m.AnalyzeCVFunc(ctx, cvText, field)
	}
	return &models.CVInsight{}, nil
}

func (m *MockClient) DraftEmail(ctx context.Context, prospect models.Prospect, analysis models.ResearchAnalysis, insight models.CVInsight, bio string) (*EmailContent, error) {
	if m.DraftEmailFunc != nil {
		return m.DraftEmailFunc(ctx, prospect, analysis, insight, bio)
	}
	return &EmailContent{}, nil
}

// NewMockClient returns a MockClient with deterministic demo responses.
func NewMockClient() *MockClient {
	return &MockClient{
		ProviderName: "mock",
		FindProspectsFunc: func(_ context.Context, field, institution string) ([]models.Prospect, error) {
			inst1, inst2 := "Stanford University", "MIT"
			if institution != "" {
				inst1, inst2 = institution, institution
			}
			return []models.Prospect{
				{
					Name:          "Dr. Sarah Chen",
					Title:         "Associate Professor",
					Institution:   inst1,
					Email:         "s.chen@stanford.edu",
					ProfileURL:    "https://profiles.stanford.edu/sarah-chen",
					ResearchAreas: []string{field, "Machine Learning", "Computer Vision"},
				},
				{
					Name:          "Prof. Michael Rodriguez",
					Title:         "Professor",
					Institution:   inst2,
					ProfileURL:    "https://www.mit.edu/~rodriguez",
					ResearchAreas: []string{field, "Neural Networks", "AI Safety"},
				},
			}, nil
		},
		AnalyzeCVFunc: func(_ context.Context, _ string, field string) (*models.CVInsight, error) {
			return &models.CVInsight{
				Skills: []string{"Python", "Machine Learning", "Data Analysis", "React", "PostgreSQL"},
				Experience: []models.Experience{
					{
						Role:         "Research Intern",
						Organization: "AI Lab",
						Highlights: []string{
							"Developed ML models for image classification",
							"Published paper at undergraduate research conference",
						},
					},
					{
						Role:         "Full Stack Developer",
						Organization: "Tech Startup",
						Highlights: []string{
							"Built web applications with React and Node.js",
							"Won 2 hackathons",
						},
					},
				},
				Achievements: []string{
					"Dean's List for 3 consecutive semesters",
					"Winner of University Hackathon 2024",
					"Published research paper on neural networks",
				},
				RelevantStrengths: []string{
					"Strong programming skills in Python and ML libraries",
					fmt.Sprintf("Demonstrated research experience in %s", field),
					"Proven track record of completing projects",
				},
			}, nil
		},
		DraftEmailFunc: func(_ context.Context, prospect models.Prospect, analysis models.ResearchAnalysis, insight models.CVInsight, bio string) (*EmailContent, error) {
			area := "your field"
			if len(prospect.ResearchAreas) > 0 {
				area = prospect.ResearchAreas[0]
			}
			pub := "your recent work"
			if len(analysis.Publications) > 0 {
				pub = analysis.Publications[0].Title
			}
			if bio == "" {
				bio = "I am a motivated student with a strong interest in research."
			}
			return &EmailContent{
				Subject: fmt.Sprintf("Research Opportunity - Interest in %s", area),
				Body: fmt.Sprintf("Dear %s,\n\n%s\n\nI have been following your recent work on %q with great interest. "+
					"Would you be open to a brief conversation about potential research opportunities?\n\n"+
					"Thank you for considering my inquiry.\n\nBest regards", prospect.Name, bio, pub),
			}, nil
		},
	}
}

// NewFailingClient returns a MockClient whose every call returns err.
func NewFailingClient(err error) *MockClient {
	return &MockClient{
		ProviderName: "mock-failing",
		FindProspectsFunc: func(_ context.Context, _, _ string) ([]models.Prospect, error) {
			return nil, err
		},
		AnalyzeCVFunc: func(_ context.Context, _, _ string) (*models.CVInsight, error) {
			return nil, err
		},
		DraftEmailFunc: func(_ context.Context, _ models.Prospect, _ models.ResearchAnalysis, _ models.CVInsight, _ string) (*EmailContent, error) {
			return nil, err
		},
	}
}

var _ Client = (*MockClient)(nil)
