package creative

import "testing"

func TestNormalizeVocalsDefaultsAndClearsLyricThemes(t *testing.T) {
	raw := rawPayload{
		Vocals:      []string{"nonsense"},
		LyricThemes: []string{"love", "loss"},
	}
	facts := normalize(raw)

	if len(facts.Vocals) != 1 || facts.Vocals[0] != noVocals {
		t.Fatalf("expected vocals to default to No Vocals, got %v", facts.Vocals)
	}
	if facts.LyricThemes != nil {
		t.Fatalf("expected lyric themes cleared, got %v", facts.LyricThemes)
	}
}

func TestNormalizeInstrumentCap(t *testing.T) {
	raw := rawPayload{
		Instrument: []string{
			"piano", "synth", "bass", "drums", "violin", "cello", "trumpet", "flute", "organ",
		},
	}
	facts := normalize(raw)
	if len(facts.SuggestedInstruments) != maxSuggestedInstruments {
		t.Fatalf("expected cap of %d, got %d", maxSuggestedInstruments, len(facts.SuggestedInstruments))
	}
}

func TestNormalizeClosedSetDropsUnknown(t *testing.T) {
	raw := rawPayload{Genre: []string{"Rock", "Polka"}}
	facts := normalize(raw)
	if len(facts.Genre) != 1 || facts.Genre[0] != "Rock" {
		t.Fatalf("expected only Rock to survive, got %v", facts.Genre)
	}
}

func TestNormalizeNarrativeTruncated(t *testing.T) {
	long := make([]byte, 250)
	for i := range long {
		long[i] = 'a'
	}
	facts := normalize(rawPayload{Narrative: string(long)})
	if len([]rune(facts.Narrative)) != maxNarrativeRunes {
		t.Fatalf("expected narrative truncated to %d runes, got %d", maxNarrativeRunes, len([]rune(facts.Narrative)))
	}
}

func TestParseConfidenceVariants(t *testing.T) {
	cases := []struct {
		raw  string
		want float64
	}{
		{`0.5`, 0.5},
		{`90`, 1},
		{`"80%"`, 0.8},
		{`"bogus"`, 0},
	}
	for _, tc := range cases {
		got := parseConfidence([]byte(tc.raw))
		if got != tc.want {
			t.Errorf("parseConfidence(%s) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}
