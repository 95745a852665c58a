package repair

import (
	"encoding/json"
	"fmt"
	"strings"
)

// pageAnalysis is the JSON shape the explanation prompt asks the model for.
type pageAnalysis struct {
	Content string `json:"content"`
	Summary string `json:"summary"`
}

const summaryLimit = 200

// ParseExplanation turns raw model output into (content, summary). JSON-shaped
// output goes through Repair first; plain markdown is accepted as-is with a
// derived summary, since not every model honors the response format.
func ParseExplanation(raw string) (content, summary string, err error) {
	text := StripFences(raw)
	if text == "" {
		return "", "", fmt.Errorf("%w: empty output", ErrUnrepairable)
	}

	if strings.HasPrefix(text, "{") {
		repaired, err := Repair(text)
		if err != nil {
			return "", "", err
		}
		var pa pageAnalysis
		if err := json.Unmarshal([]byte(repaired), &pa); err != nil {
			return "", "", fmt.Errorf("%w: %v", ErrUnrepairable, err)
		}
		// Truncated output may have lost the content field entirely; the
		// summary alone is still a usable explanation.
		if pa.Content == "" && pa.Summary != "" {
			pa.Content = pa.Summary
		}
		if pa.Content == "" {
			return "", "", fmt.Errorf("%w: no usable fields", ErrUnrepairable)
		}
		if pa.Summary == "" {
			pa.Summary = DeriveSummary(pa.Content)
		}
		return pa.Content, pa.Summary, nil
	}

	return text, DeriveSummary(text), nil
}

// DeriveSummary extracts a short summary from markdown content: the first
// non-heading lines up to roughly 200 characters.
func DeriveSummary(content string) string {
	var parts []string
	count := 0
	for _, line := range strings.Split(content, "\n") {
		if count > summaryLimit {
			break
		}
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts = append(parts, line)
		count += len(line)
	}
	summary := strings.Join(parts, " ")
	if len(summary) > summaryLimit {
		cut := summaryLimit
		for cut > 0 && summary[cut]&0xC0 == 0x80 {
			cut--
		}
		summary = summary[:cut]
	}
	return summary
}
