package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// The LLM is asked for JSON but is loose about the wrapper: a bare array,
// or an object keyed "prospects", "professors", or "researchers". Each shape
// gets its own parse strategy; strategies are tried in a fixed order and each
// either returns a typed result or a named failure, so a bad response reports
// exactly which shapes were attempted.

// wireProspect is the prospect shape as the LLM emits it.
type wireProspect struct {
	Name          string   `json:"name"`
	Title         string   `json:"title"`
	Institution   string   `json:"institution"`
	Email         string   `json:"email"`
	ProfileURL    string   `json:"profileUrl"`
	ResearchAreas []string `json:"researchAreas"`
}

type prospectStrategy struct {
	name  string
	parse func(data []byte) ([]wireProspect, error)
}

var prospectStrategies = []prospectStrategy{
	{"array", parseProspectArray},
	{"prospects", parseProspectWrapper("prospects")},
	{"professors", parseProspectWrapper("professors")},
	{"researchers", parseProspectWrapper("researchers")},
}

func parseProspectArray(data []byte) ([]wireProspect, error) {
	var out []wireProspect
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("not a top-level array")
	}
	return out, nil
}

func parseProspectWrapper(key string) func(data []byte) ([]wireProspect, error) {
	return func(data []byte) ([]wireProspect, error) {
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return nil, fmt.Errorf("not an object")
		}
		raw, ok := wrapper[key]
		if !ok {
			return nil, fmt.Errorf("missing %q key", key)
		}
		var out []wireProspect
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("%q is not an array of prospects", key)
		}
		return out, nil
	}
}

// parseProspects tries each strategy in order and returns the first success.
func parseProspects(content string) ([]wireProspect, error) {
	data := []byte(strings.TrimSpace(content))

	var attempts []string
	for _, s := range prospectStrategies {
		out, err := s.parse(data)
		if err == nil {
			return out, nil
		}
		attempts = append(attempts, s.name+": "+err.Error())
	}
	return nil, fmt.Errorf("%w: no parse strategy matched (%s)",
		ErrInvalidResponse, strings.Join(attempts, "; "))
}

// wireInsight tolerates the key variants the LLM uses for CV extraction.
type wireInsight struct {
	Skills            []string         `json:"skills"`
	Experience        []wireExperience `json:"experience"`
	Achievements      []string         `json:"achievements"`
	RelevantStrengths []string         `json:"relevantStrengths"`
	Strengths         []string         `json:"strengths"`
}

type wireExperience struct {
	Role         string   `json:"role"`
	Organization string   `json:"organization"`
	Highlights   []string `json:"highlights"`
}

func parseInsight(content string) (*wireInsight, error) {
	var out wireInsight
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &out); err != nil {
		return nil, fmt.Errorf("%w: cv insight is not a JSON object: %v", ErrInvalidResponse, err)
	}
	if out.RelevantStrengths == nil {
		out.RelevantStrengths = out.Strengths
	}
	return &out, nil
}

func parseEmail(content string) (*EmailContent, error) {
	var out EmailContent
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &out); err != nil {
		return nil, fmt.Errorf("%w: email draft is not a JSON object: %v", ErrInvalidResponse, err)
	}
	if out.Subject == "" || out.Body == "" {
		return nil, fmt.Errorf("%w: email draft missing subject or body", ErrInvalidResponse)
	}
	return &out, nil
}
