package creative

import (
	"strings"
)

// normalize maps a rawPayload's free-form lists onto the closed taxonomies,
// applies the suggested-instrument cap, and enforces the vocals/lyricThemes
// coupling invariant.
func normalize(raw rawPayload) Facts {
	facts := Facts{
		Genre:       closedSet(raw.Genre, Genre),
		Mood:        closedSet(raw.Mood, Mood),
		Theme:       closedSet(raw.Theme, Theme),
		Narrative:   truncateNarrative(raw.Narrative),
		Confidence:  parseConfidence(raw.Confidence),
		LyricThemes: dedupeNonEmpty(raw.LyricThemes),
	}

	facts.SuggestedInstruments = mapSynonyms(raw.Instrument, instrumentSynonyms, maxSuggestedInstruments)
	facts.Vocals = mapSynonyms(raw.Vocals, vocalSynonyms, 0)

	if len(facts.Vocals) == 0 {
		facts.Vocals = []string{noVocals}
	}
	if len(facts.Vocals) == 1 && facts.Vocals[0] == noVocals {
		facts.LyricThemes = nil
	}

	return facts
}

// closedSet keeps only values present (case-insensitively) in allowed,
// preserving the allowed taxonomy's canonical casing and deduplicating.
func closedSet(values, allowed []string) []string {
	index := make(map[string]string, len(allowed))
	for _, a := range allowed {
		index[strings.ToLower(a)] = a
	}
	seen := make(map[string]bool, len(values))
	var out []string
	for _, v := range values {
		key := strings.ToLower(strings.TrimSpace(v))
		canonical, ok := index[key]
		if !ok || seen[canonical] {
			continue
		}
		seen[canonical] = true
		out = append(out, canonical)
	}
	return out
}

// mapSynonyms canonicalizes each entry via the supplied synonym table,
// dropping unmapped entries, deduplicating, and capping the result to limit
// entries (0 means unlimited).
func mapSynonyms(values []string, synonyms map[string]string, limit int) []string {
	seen := make(map[string]bool, len(values))
	var out []string
	for _, v := range values {
		key := strings.ToLower(strings.TrimSpace(v))
		canonical, ok := synonyms[key]
		if !ok || seen[canonical] {
			continue
		}
		seen[canonical] = true
		out = append(out, canonical)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

func dedupeNonEmpty(values []string) []string {
	seen := make(map[string]bool, len(values))
	var out []string
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" || seen[trimmed] {
			continue
		}
		seen[trimmed] = true
		out = append(out, trimmed)
	}
	return out
}

const maxNarrativeRunes = 200

func truncateNarrative(s string) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= maxNarrativeRunes {
		return s
	}
	return string(runes[:maxNarrativeRunes])
}
