// Package instruments implements the pure instrument finalizer (C6): alias
// normalization, stable dedup, family collapse, and the strings soft-guard,
// over the concatenation of the ensemble, probe-rescue, and any additional
// instrument sources.
package instruments

// aliases maps common label variants onto the canonical taxonomy token.
var aliases = map[string]string{
	"Drum set":             "Drum Kit (acoustic)",
	"Drums":                "Drum Kit (acoustic)",
	"Electric organ":       "Organ",
	"Hammond organ":        "Organ",
	"Strings (section)":    "Strings",
	"Brass (section)":      "Brass",
	"Woodwinds (section)":  "Woodwinds",
	"Woodwind":             "Woodwinds",
	"Guitars":              "Electric Guitar",
}

var brassMembers = []string{
	"Trumpet", "Trombone", "French Horn", "Tuba", "Flugelhorn", "Cornet",
	"Trumpet (mute)", "Trumpet (muted)",
}

var woodwindMembers = []string{
	"Saxophone", "Alto Saxophone", "Tenor Saxophone", "Baritone Saxophone",
	"Flute", "Clarinet", "Oboe", "Bassoon", "Piccolo",
}

var stringMembers = []string{
	"Violin", "Viola", "Cello", "Double Bass", "Harp",
}

var padInstruments = map[string]bool{
	"Organ": true, "Keyboard": true, "Synth": true,
}

// Finalize runs the four-step finalizer (normalize, dedup, family collapse,
// strings soft-guard) over the concatenation of ensemble, probeRescues, and
// additional, in that order, and returns the canonical, ordered, deduplicated
// instrument list. A family token synthesized during collapse takes the
// position of its first collapsed member, so a leading brass member sorts
// "Brass" ahead of any surviving non-family token.
func Finalize(ensemble, probeRescues, additional []string) []string {
	combined := make([]string, 0, len(ensemble)+len(probeRescues)+len(additional))
	combined = append(combined, ensemble...)
	combined = append(combined, probeRescues...)
	combined = append(combined, additional...)

	normalized := normalizeAliases(combined)
	deduped := stableDedup(normalized)
	collapsed, families := collapseFamilies(deduped)
	guarded, _ := stringsSoftGuard(collapsed, families)
	return guarded
}

// familyPresence records, per family, whether the family is present after
// collapse (its token arrived literally or its members triggered a collapse;
// strings need two or more bowed members), and whether any individual bowed
// member was present before collapse — the strings soft-guard needs the
// latter distinction.
type familyPresence struct {
	brass, woodwinds, strings bool
	stringMemberPresent       bool
}

func normalizeAliases(in []string) []string {
	out := make([]string, len(in))
	for i, v := range in {
		if canonical, ok := aliases[v]; ok {
			out[i] = canonical
			continue
		}
		out[i] = v
	}
	return out
}

func stableDedup(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// collapseFamilies folds section members into their family token, emitting
// the token at the position of the first collapsed member (or leaving it at
// its own position when the token already arrived literally) rather than at
// the tail — per the worked family-collapse scenario, a leading brass member
// sorts the synthesized "Brass" ahead of any surviving non-family token.
func collapseFamilies(in []string) ([]string, familyPresence) {
	present := make(map[string]bool, len(in))
	for _, v := range in {
		present[v] = true
	}

	var fp familyPresence
	// Unlike brass/woodwinds (collapse on any single member), strings only
	// collapse when two or more distinct bowed members are present — a lone
	// bowed instrument is left as-is rather than folded into "Strings".
	stringMemberCount := countPresent(present, stringMembers)
	fp.stringMemberPresent = stringMemberCount > 0
	fp.brass = anyPresent(present, brassMembers) || present["Brass"]
	fp.woodwinds = anyPresent(present, woodwindMembers) || present["Woodwinds"]
	fp.strings = stringMemberCount >= 2 || present["Strings"]

	brassSet := memberSet(brassMembers)
	woodwindSet := memberSet(woodwindMembers)
	stringSet := memberSet(stringMembers)

	var brassEmitted, woodwindsEmitted, stringsEmitted bool

	out := make([]string, 0, len(in))
	for _, v := range in {
		switch {
		case v == "Brass", v == "Woodwinds", v == "Strings":
			out = append(out, v)
		case fp.brass && brassSet[v]:
			if !brassEmitted && !present["Brass"] {
				out = append(out, "Brass")
				brassEmitted = true
			}
		case fp.woodwinds && woodwindSet[v]:
			if !woodwindsEmitted && !present["Woodwinds"] {
				out = append(out, "Woodwinds")
				woodwindsEmitted = true
			}
		case fp.strings && stringSet[v]:
			if !stringsEmitted && !present["Strings"] {
				out = append(out, "Strings")
				stringsEmitted = true
			}
		default:
			out = append(out, v)
		}
	}
	return out, fp
}

func memberSet(members []string) map[string]bool {
	set := make(map[string]bool, len(members))
	for _, m := range members {
		set[m] = true
	}
	return set
}

func anyPresent(present map[string]bool, members []string) bool {
	for _, m := range members {
		if present[m] {
			return true
		}
	}
	return false
}

func countPresent(present map[string]bool, members []string) int {
	count := 0
	for _, m := range members {
		if present[m] {
			count++
		}
	}
	return count
}

// stringsSoftGuard removes "Strings" when no bowed member backed its
// presence, a pad-like instrument is present, and there is no orchestral
// anchor (Brass). The second return value reports whether it fired.
func stringsSoftGuard(in []string, families familyPresence) ([]string, bool) {
	if !families.strings || families.stringMemberPresent {
		return in, false
	}
	present := make(map[string]bool, len(in))
	for _, v := range in {
		present[v] = true
	}
	hasPad := false
	for pad := range padInstruments {
		if present[pad] {
			hasPad = true
			break
		}
	}
	if hasPad && !families.brass {
		out := make([]string, 0, len(in))
		for _, v := range in {
			if v == "Strings" {
				continue
			}
			out = append(out, v)
		}
		return out, true
	}
	return in, false
}
