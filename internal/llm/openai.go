package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"github.com/rvenkatesh9/outreach/internal/config"
	"github.com/rvenkatesh9/outreach/pkg/models"
)

var ErrAPIKeyNotSet = errors.New("llm api key not set")

// OpenAIClient implements Client against any OpenAI-compatible chat
// completions endpoint (the default base URL points at Fireworks).
type OpenAIClient struct {
	client openai.Client
	model  string
}

// NewOpenAIClient creates a client from config. BaseURL may point at any
// OpenAI-compatible endpoint.
func NewOpenAIClient(cfg config.LLMConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIClient{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
	}, nil
}

func (c *OpenAIClient) Name() string { return "openai" }

func (c *OpenAIClient) FindProspects(ctx context.Context, field, institution string) ([]models.Prospect, error) {
	prompt := fmt.Sprintf("Find 2-3 prominent professors or researchers in the field of %q.", field)
	if institution != "" {
		prompt = fmt.Sprintf("Find 2-3 prominent professors or researchers in the field of %q at %s.", field, institution)
	}
	prompt += " Return as JSON array with fields: name, title, institution, researchAreas."

	content, err := c.complete(ctx, prompt, 0.7)
	if err != nil {
		return nil, err
	}

	wire, err := parseProspects(content)
	if err != nil {
		return nil, err
	}

	prospects := make([]models.Prospect, 0, len(wire))
	for _, w := range wire {
		prospects = append(prospects, models.Prospect{
			Name:          w.Name,
			Title:         w.Title,
			Institution:   w.Institution,
			Email:         w.Email,
			ProfileURL:    w.ProfileURL,
			ResearchAreas: w.ResearchAreas,
		})
	}
	return prospects, nil
}

func (c *OpenAIClient) AnalyzeCV(ctx context.Context, cvText, field string) (*models.CVInsight, error) {
	const maxCVBytes = 10000
	if len(cvText) > maxCVBytes {
		cvText = cvText[:maxCVBytes]
	}

	prompt := fmt.Sprintf("Analyze this CV for someone interested in %s research. "+
		"Extract: skills, experience (role, organization, highlights), achievements, "+
		"and relevant strengths for academic outreach.\n\nCV:\n%s\n\nReturn JSON.", field, cvText)

	content, err := c.complete(ctx, prompt, 0.5)
	if err != nil {
		return nil, err
	}

	wire, err := parseInsight(content)
	if err != nil {
		return nil, err
	}

	insight := &models.CVInsight{
		Skills:            wire.Skills,
		Achievements:      wire.Achievements,
		RelevantStrengths: wire.RelevantStrengths,
	}
	for _, e := range wire.Experience {
		insight.Experience = append(insight.Experience, models.Experience{
			Role:         e.Role,
			Organization: e.Organization,
			Highlights:   e.Highlights,
		})
	}
	return insight, nil
}

func (c *OpenAIClient) DraftEmail(ctx context.Context, prospect models.Prospect, analysis models.ResearchAnalysis, insight models.CVInsight, bio string) (*EmailContent, error) {
	research, err := json.Marshal(analysis)
	if err != nil {
		return nil, fmt.Errorf("marshal analysis: %w", err)
	}
	cv, err := json.Marshal(insight)
	if err != nil {
		return nil, fmt.Errorf("marshal insight: %w", err)
	}

	prompt := fmt.Sprintf(`Write a personalized academic outreach email to %s (%s at %s).

Context:
- Their research: %s
- Student's CV insights: %s
- Student's bio: %s

Write a professional, genuine email that:
1. References specific publications
2. Connects student's experience to professor's work
3. Shows genuine interest
4. Requests a conversation

Return as JSON: { subject: string, body: string }`,
		prospect.Name, prospect.Title, prospect.Institution, research, cv, bio)

	content, err := c.complete(ctx, prompt, 0.7)
	if err != nil {
		return nil, err
	}
	return parseEmail(content)
}

func (c *OpenAIClient) complete(ctx context.Context, prompt string, temperature float64) (string, error) {
	completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(temperature),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{Type: "json_object"},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%w: no completion choices returned", ErrInvalidResponse)
	}
	return completion.Choices[0].Message.Content, nil
}

var _ Client = (*OpenAIClient)(nil)
