package pipeline

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rvenkatesh9/outreach/pkg/models"
)

const (
	maxThemes         = 5
	maxDeclaredAreas  = 2
	minThemeTokenSize = 6
)

var fallbackThemes = []string{"Research", "Analysis", "Study"}

// buildAnalysis assembles a prospect's research analysis from their verified
// publications: frequency-ranked title keywords merged with their declared
// research areas, plus one templated talking point per publication.
func buildAnalysis(prospect models.Prospect, pubs []models.Publication, stage int) models.ResearchAnalysis {
	points := make([]string, 0, len(pubs))
	for _, p := range pubs {
		points = append(points, fmt.Sprintf("Their work on %q is relevant to your interests", p.Title))
	}

	return models.ResearchAnalysis{
		ProspectID:    prospect.ID,
		ProspectName:  prospect.Name,
		Publications:  pubs,
		KeyThemes:     extractThemes(pubs, prospect.ResearchAreas),
		TalkingPoints: points,
		AnalyzedBy:    stage,
	}
}

// extractThemes derives theme keywords from publication titles: tokens are
// case-normalized, short words discarded, ranked by frequency with ties
// broken by first appearance, and the top results merged with the prospect's
// declared research areas.
func extractThemes(pubs []models.Publication, researchAreas []string) []string {
	freq := make(map[string]int)
	var order []string

	for _, pub := range pubs {
		for _, token := range strings.Fields(strings.ToLower(pub.Title)) {
			if len(token) < minThemeTokenSize {
				continue
			}
			if freq[token] == 0 {
				order = append(order, token)
			}
			freq[token]++
		}
	}

	// Stable sort over first-seen order gives the frequency ranking with
	// first-seen tie-breaking.
	sort.SliceStable(order, func(i, j int) bool {
		return freq[order[i]] > freq[order[j]]
	})
	if len(order) > maxThemes {
		order = order[:maxThemes]
	}

	themes := make([]string, 0, maxThemes)
	seen := make(map[string]bool)
	add := func(theme string) {
		if theme == "" || seen[theme] || len(themes) >= maxThemes {
			return
		}
		seen[theme] = true
		themes = append(themes, theme)
	}

	for _, token := range order {
		add(capitalize(token))
	}
	for i, area := range researchAreas {
		if i == maxDeclaredAreas {
			break
		}
		add(area)
	}

	if len(themes) == 0 {
		return fallbackThemes
	}
	return themes
}

// capitalize upper-cases the first rune, not the first byte, so tokens like
// "école" come out as "École" rather than untouched.
func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 || r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
