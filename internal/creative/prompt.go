package creative

import (
	"fmt"
	"strconv"
	"strings"
)

// buildSystemPrompt enumerates the closed taxonomy and demands the exact
// field set the parser expects back.
func buildSystemPrompt(model string) string {
	var b strings.Builder
	b.WriteString("You are a music analysis assistant. Given a track's title, tempo, and instrument hints, ")
	b.WriteString("respond with a single JSON object and nothing else. Use only these values:\n")
	fmt.Fprintf(&b, "mood: one or more of %s\n", quoteJoin(Mood))
	fmt.Fprintf(&b, "genre: one or more of %s\n", quoteJoin(Genre))
	fmt.Fprintf(&b, "theme: one or more of %s\n", quoteJoin(Theme))
	fmt.Fprintf(&b, "vocals: one or more of %s\n", quoteJoin(Vocals))
	b.WriteString("instrument: your best guesses at instruments present, free text, up to 8\n")
	b.WriteString("lyricThemes: short phrases describing lyrical content, empty if no vocals\n")
	b.WriteString("narrative: a one or two sentence description, 200 characters maximum\n")
	b.WriteString("confidence: your confidence in this analysis, a number from 0 to 1\n")
	b.WriteString(`Respond with exactly: {"mood":[],"genre":[],"theme":[],"instrument":[],"vocals":[],"lyricThemes":[],"narrative":"","confidence":0}`)
	return b.String()
}

func buildUserPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", req.Title)
	if req.BPM != nil {
		fmt.Fprintf(&b, "Tempo: %d BPM\n", *req.BPM)
	}
	if len(req.Hints) > 0 {
		var present []string
		for label, ok := range req.Hints {
			if ok {
				present = append(present, label)
			}
		}
		if len(present) > 0 {
			fmt.Fprintf(&b, "Detected instrument hints: %s\n", strings.Join(present, ", "))
		}
	}
	return b.String()
}

func quoteJoin(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = strconv.Quote(v)
	}
	return strings.Join(quoted, ", ")
}
