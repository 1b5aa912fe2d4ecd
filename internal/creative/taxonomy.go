package creative

// Mood is the closed mood taxonomy.
var Mood = []string{
	"Upbeat/Energetic", "Happy/Cheerful", "Inspiring/Uplifting", "Epic/Powerful",
	"Dramatic/Emotional", "Chill/Mellow", "Funny/Quirky", "Angry/Aggressive",
}

// Genre is the closed genre taxonomy.
var Genre = []string{
	"Cinematic", "Corporate", "Hip hop/Rap", "Rock", "Electronic", "Ambient", "Funk", "Classical",
}

// Theme is the closed theme taxonomy.
var Theme = []string{
	"Corporate", "Documentary", "Action", "Lifestyle", "Sports", "Drama", "Nature", "Technology",
}

// Vocals is the closed vocals taxonomy.
var Vocals = []string{
	"No Vocals", "Background Vocals", "Female Vocals", "Lead Vocals", "Vocal Samples", "Male Vocals",
}

const noVocals = "No Vocals"

// maxSuggestedInstruments caps the Creative path's advisory instrument list;
// this list is never merged into analysis.instruments.
const maxSuggestedInstruments = 8

// instrumentSynonyms maps common free-form model output to the canonical
// instrument taxonomy used by suggested_instruments. Kept separate from the
// vocals synonym table per the normalization design.
var instrumentSynonyms = map[string]string{
	"guitar":          "Electric Guitar",
	"electric guitar": "Electric Guitar",
	"e-guitar":        "Electric Guitar",
	"acoustic guitar": "Acoustic Guitar",
	"nylon guitar":    "Acoustic Guitar",
	"bass":            "Bass Guitar",
	"bass guitar":     "Bass Guitar",
	"upright bass":    "Double Bass",
	"double bass":     "Double Bass",
	"drums":           "Drum Kit",
	"drum kit":        "Drum Kit",
	"drum machine":    "Drum Machine",
	"piano":           "Piano",
	"grand piano":     "Piano",
	"keys":            "Keyboard",
	"keyboard":        "Keyboard",
	"synth":           "Synth",
	"synthesizer":     "Synth",
	"organ":           "Organ",
	"strings":         "Strings",
	"violin":          "Violin",
	"viola":           "Viola",
	"cello":           "Cello",
	"brass":           "Brass",
	"trumpet":         "Trumpet",
	"trombone":        "Trombone",
	"french horn":     "French Horn",
	"saxophone":       "Saxophone",
	"sax":             "Saxophone",
	"flute":           "Flute",
	"clarinet":        "Clarinet",
	"percussion":      "Percussion",
	"vocals":          "Vocals",
}

// vocalSynonyms maps common free-form model output to the closed vocals
// taxonomy. Any entry that fails to map here is dropped; if the whole
// normalized set ends up empty, the caller defaults to ["No Vocals"].
var vocalSynonyms = map[string]string{
	"no vocals":         noVocals,
	"instrumental":      noVocals,
	"none":              noVocals,
	"background vocals": "Background Vocals",
	"backing vocals":    "Background Vocals",
	"harmony vocals":    "Background Vocals",
	"female vocals":     "Female Vocals",
	"female vocal":      "Female Vocals",
	"female singer":     "Female Vocals",
	"woman vocals":      "Female Vocals",
	"lead vocals":       "Lead Vocals",
	"lead vocal":        "Lead Vocals",
	"main vocals":       "Lead Vocals",
	"vocal samples":     "Vocal Samples",
	"vocal chops":       "Vocal Samples",
	"sampled vocals":    "Vocal Samples",
	"male vocals":       "Male Vocals",
	"male vocal":        "Male Vocals",
	"male singer":       "Male Vocals",
	"man vocals":        "Male Vocals",
}
