package creative

// Facts is the persisted CreativeFacts record.
type Facts struct {
	Genre                []string `json:"genre"`
	Mood                 []string `json:"mood"`
	Theme                []string `json:"theme"`
	SuggestedInstruments []string `json:"suggestedInstruments"`
	Vocals               []string `json:"vocals"`
	LyricThemes          []string `json:"lyricThemes"`
	Narrative            string   `json:"narrative"`
	Confidence           float64  `json:"confidence"`
}

// DefaultFacts is the value persisted when the creative phase is skipped for
// any reason (offline, missing model, unparseable response).
func DefaultFacts() Facts {
	return Facts{
		Vocals: []string{noVocals},
	}
}
