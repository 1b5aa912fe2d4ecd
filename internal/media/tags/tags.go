// Package tags reads embedded ID3/AIFF/FLAC metadata via github.com/dhowden/tag.
// Failure here is always non-fatal: callers receive an empty TagMap.
package tags

import (
	"os"
	"strconv"
	"strings"

	"github.com/dhowden/tag"
)

// TagMap mirrors the closed tag field set spec.md requires on TechnicalFacts.
type TagMap struct {
	Title     string   `json:"title"`
	Artist    string   `json:"artist"`
	Album     string   `json:"album"`
	Year      int      `json:"year"`
	Genre     []string `json:"genre"`
	Track     int      `json:"track"`
	Comment   string   `json:"comment"`
	Composer  string   `json:"composer"`
	Copyright string   `json:"copyright"`
	TBPM      string   `json:"tbpm,omitempty"`
	Key       string   `json:"key,omitempty"`
	Mood      string   `json:"mood,omitempty"`
}

// Read extracts the embedded tag map from path. Any failure (missing tags,
// unsupported container, corrupt frame) is swallowed and returns an empty
// TagMap — TagReadFailed is non-fatal per the error handling design.
func Read(path string) TagMap {
	f, err := os.Open(path)
	if err != nil {
		return TagMap{}
	}
	defer f.Close()

	metadata, err := tag.ReadFrom(f)
	if err != nil {
		return TagMap{}
	}

	out := TagMap{
		Title:    strings.TrimSpace(metadata.Title()),
		Artist:   strings.TrimSpace(metadata.Artist()),
		Album:    strings.TrimSpace(metadata.Album()),
		Year:     metadata.Year(),
		Comment:  strings.TrimSpace(metadata.Comment()),
		Composer: strings.TrimSpace(metadata.Composer()),
	}
	if raw, ok := metadata.Raw()["copyright"]; ok {
		out.Copyright = rawString(raw)
	}
	if genre := strings.TrimSpace(metadata.Genre()); genre != "" {
		out.Genre = []string{genre}
	}
	track, _ := metadata.Track()
	out.Track = track

	if raw, ok := metadata.Raw()["TBPM"]; ok {
		out.TBPM = rawString(raw)
	}
	if raw, ok := metadata.Raw()["TKEY"]; ok {
		out.Key = rawString(raw)
	}
	if raw, ok := metadata.Raw()["TMOO"]; ok {
		out.Mood = rawString(raw)
	}

	return out
}

func rawString(value any) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case int:
		return strconv.Itoa(v)
	case fmt_Stringer:
		return v.String()
	default:
		return ""
	}
}

type fmt_Stringer interface {
	String() string
}

// ParseBPM parses the TBPM tag per the id3-override invariant: must be a
// valid integer in [1,399]. Non-numeric values (e.g. "148 bpm") are salvaged
// by extracting the leading digit run.
func ParseBPM(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	digits := leadingDigits(raw)
	if digits == "" {
		return 0, false
	}
	value, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	if value < 1 || value > 399 {
		return 0, false
	}
	return value, true
}

func leadingDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
			continue
		}
		break
	}
	return b.String()
}
