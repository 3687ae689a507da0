package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProspects(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantNames []string
		wantErr   bool
	}{
		{
			name:      "bare array",
			content:   `[{"name": "Dr. A"}, {"name": "Dr. B"}]`,
			wantNames: []string{"Dr. A", "Dr. B"},
		},
		{
			name:      "prospects wrapper",
			content:   `{"prospects": [{"name": "Dr. A"}]}`,
			wantNames: []string{"Dr. A"},
		},
		{
			name:      "professors wrapper",
			content:   `{"professors": [{"name": "Dr. A", "institution": "MIT"}]}`,
			wantNames: []string{"Dr. A"},
		},
		{
			name:      "researchers wrapper",
			content:   `{"researchers": [{"name": "Dr. A"}]}`,
			wantNames: []string{"Dr. A"},
		},
		{
			name:      "surrounding whitespace tolerated",
			content:   "\n  [{\"name\": \"Dr. A\"}]  \n",
			wantNames: []string{"Dr. A"},
		},
		{
			name:    "unknown wrapper key",
			content: `{"people": [{"name": "Dr. A"}]}`,
			wantErr: true,
		},
		{
			name:    "not json",
			content: `here are some great professors!`,
			wantErr: true,
		},
		{
			name:    "wrapper value not an array",
			content: `{"prospects": {"name": "Dr. A"}}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseProspects(tt.content)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidResponse)
				return
			}
			require.NoError(t, err)
			var names []string
			for _, p := range got {
				names = append(names, p.Name)
			}
			assert.Equal(t, tt.wantNames, names)
		})
	}
}

func TestParseProspects_ErrorNamesAttemptedShapes(t *testing.T) {
	_, err := parseProspects(`42`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "array")
	assert.Contains(t, err.Error(), "prospects")
	assert.Contains(t, err.Error(), "researchers")
}

func TestParseInsight(t *testing.T) {
	insight, err := parseInsight(`{
		"skills": ["Python"],
		"experience": [{"role": "RA", "organization": "Lab", "highlights": ["x"]}],
		"achievements": ["award"],
		"relevantStrengths": ["ml experience"]
	}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"Python"}, insight.Skills)
	assert.Equal(t, "RA", insight.Experience[0].Role)
	assert.Equal(t, []string{"ml experience"}, insight.RelevantStrengths)
}

func TestParseInsight_StrengthsFallback(t *testing.T) {
	insight, err := parseInsight(`{"skills": [], "strengths": ["persistence"]}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"persistence"}, insight.RelevantStrengths)
}

func TestParseInsight_NotJSON(t *testing.T) {
	_, err := parseInsight(`the cv shows strong skills`)
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestParseEmail(t *testing.T) {
	email, err := parseEmail(`{"subject": "Hello", "body": "Dear Dr. A"}`)
	require.NoError(t, err)
	assert.Equal(t, "Hello", email.Subject)
	assert.Equal(t, "Dear Dr. A", email.Body)
}

func TestParseEmail_MissingFields(t *testing.T) {
	_, err := parseEmail(`{"subject": "Hello"}`)
	require.ErrorIs(t, err, ErrInvalidResponse)

	_, err = parseEmail(`{"body": "Dear Dr. A"}`)
	require.ErrorIs(t, err, ErrInvalidResponse)
}
