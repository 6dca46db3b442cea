package coverage

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

const candidateSystemPrompt = `You are a local-market analyst for a business lead-generation service. Given a target area and business keywords, propose the ZIP codes where matching businesses concentrate. Respond with only a JSON array, no prose:
[{"zip": "45202", "density_score": 0.9, "relevance_score": 0.8, "estimated_businesses": 40}]
density_score (0.0-1.0) rates how densely populated and commercial the ZIP is. relevance_score (0.0-1.0) rates how strongly businesses in the ZIP match the keywords. estimated_businesses is the expected count of matching businesses in the ZIP.`

const candidateUserPrompt = `Target area: %s
Keywords: %s

Return up to %d candidate ZIP codes.`

const cityEnumSystemPrompt = `You are a local-market analyst for a business lead-generation service. Enumerate cities in a US state where a scraping campaign should look for businesses. Respond with only a JSON object, no prose:
{"major": ["Houston", "San Antonio"], "medium": ["Waco"], "small": ["Fredericksburg"]}`

const cityEnumUserPrompt = `State: %s
Keywords: %s

List the %d largest cities, %d mid-sized cities, and %d smaller cities where businesses matching the keywords operate.`

// llmCandidate is one entry of the model's candidate-ZIP array.
type llmCandidate struct {
	Zip                 string  `json:"zip"`
	DensityScore        float64 `json:"density_score"`
	RelevanceScore      float64 `json:"relevance_score"`
	EstimatedBusinesses int     `json:"estimated_businesses"`
}

// parseCandidates decodes the model's candidate array, dropping entries
// without a valid 5-digit ZIP and clamping scores into [0, 1].
func parseCandidates(text string) ([]llmCandidate, error) {
	cleaned := cleanJSON(text)

	var raw []llmCandidate
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, eris.Wrap(err, "coverage: parse candidate ZIPs")
	}

	valid := raw[:0]
	for _, c := range raw {
		c.Zip = strings.TrimSpace(c.Zip)
		if !zipRe.MatchString(c.Zip) {
			continue
		}
		c.DensityScore = clamp01(c.DensityScore)
		c.RelevanceScore = clamp01(c.RelevanceScore)
		if c.EstimatedBusinesses < 0 {
			c.EstimatedBusinesses = 0
		}
		valid = append(valid, c)
	}
	return valid, nil
}

// cityList is the model's state-mode city enumeration.
type cityList struct {
	Major  []string `json:"major"`
	Medium []string `json:"medium"`
	Small  []string `json:"small"`
}

// flatten returns major, medium, then small cities with blanks and
// duplicates removed.
func (l cityList) flatten() []string {
	seen := make(map[string]bool)
	var out []string
	for _, group := range [][]string{l.Major, l.Medium, l.Small} {
		for _, city := range group {
			city = strings.TrimSpace(city)
			if city == "" || seen[strings.ToLower(city)] {
				continue
			}
			seen[strings.ToLower(city)] = true
			out = append(out, city)
		}
	}
	return out
}

func parseCityList(text string) (cityList, error) {
	cleaned := cleanJSON(text)

	var list cityList
	if err := json.Unmarshal([]byte(cleaned), &list); err != nil {
		return cityList{}, eris.Wrap(err, "coverage: parse city list")
	}
	return list, nil
}

// cleanJSON attempts to extract a JSON value (object or array) from text
// that may contain markdown code fences or other wrapping.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	// Strip markdown code fences.
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}
	text = strings.TrimSpace(text)

	// Slice out the outermost JSON value, whichever delimiter comes first.
	objStart := strings.Index(text, "{")
	arrStart := strings.Index(text, "[")
	switch {
	case arrStart >= 0 && (objStart < 0 || arrStart < objStart):
		if end := strings.LastIndex(text, "]"); end > arrStart {
			text = text[arrStart : end+1]
		}
	case objStart >= 0:
		if end := strings.LastIndex(text, "}"); end > objStart {
			text = text[objStart : end+1]
		}
	}

	return strings.TrimSpace(text)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
