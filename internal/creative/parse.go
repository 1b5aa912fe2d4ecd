package creative

import (
	"encoding/json"
	"strings"
)

// rawPayload is the exact field set the system prompt demands of the model.
type rawPayload struct {
	Mood        []string        `json:"mood"`
	Genre       []string        `json:"genre"`
	Theme       []string        `json:"theme"`
	Instrument  []string        `json:"instrument"`
	Vocals      []string        `json:"vocals"`
	LyricThemes []string        `json:"lyricThemes"`
	Narrative   string          `json:"narrative"`
	Confidence  json.RawMessage `json:"confidence"`
}

// parseJSON decodes content into a rawPayload, tolerating the formatting
// quirks local models routinely produce: markdown code fences, leading/
// trailing prose around the object, and trailing commas.
func parseJSON(content string) (rawPayload, bool) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return rawPayload{}, false
	}

	var out rawPayload
	if err := json.Unmarshal([]byte(trimmed), &out); err == nil {
		return out, true
	}

	sanitized := sanitizeJSONPayload(trimmed)
	if sanitized == "" {
		return rawPayload{}, false
	}
	if err := json.Unmarshal([]byte(sanitized), &out); err == nil {
		return out, true
	}

	repaired := stripTrailingCommas(sanitized)
	if err := json.Unmarshal([]byte(repaired), &out); err == nil {
		return out, true
	}
	return rawPayload{}, false
}

func sanitizeJSONPayload(content string) string {
	trimmed := strings.TrimSpace(stripCodeFenceBlock(content))
	if trimmed == "" {
		return ""
	}
	if trimmed[0] == '{' {
		return trimmed
	}
	if start := strings.Index(trimmed, "{"); start >= 0 {
		if end := strings.LastIndex(trimmed, "}"); end > start {
			return strings.TrimSpace(trimmed[start : end+1])
		}
	}
	return trimmed
}

func stripCodeFenceBlock(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := trimmed[3:]
	body = strings.TrimLeft(body, " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = body[4:]
		body = strings.TrimLeft(body, " \t\r\n")
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

// stripTrailingCommas removes commas that immediately precede a closing
// brace or bracket, a common malformation in hand-rolled JSON from smaller
// local models (e.g. `"a": [1, 2, ]`).
func stripTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == ',' {
			j := i + 1
			for j < len(runes) && (runes[j] == ' ' || runes[j] == '\t' || runes[j] == '\n' || runes[j] == '\r') {
				j++
			}
			if j < len(runes) && (runes[j] == '}' || runes[j] == ']') {
				continue
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}
