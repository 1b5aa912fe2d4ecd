// Package ensemble spawns the external multi-model instrument classifier and
// applies the mix-only rescue and booster-merge steps specified for C5. It
// never returns an error to the caller: every failure mode resolves to a
// stable, empty-instrument Output.
package ensemble

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"sort"
	"strings"

	"audiolib/internal/services"
)

// Output is the stable shape resolved on any outcome, success or failure.
type Output struct {
	Mode               string              `json:"mode"`
	UsedDemucs         bool                `json:"used_demucs"`
	Instruments        []string            `json:"instruments"`
	DecisionTrace      DecisionTrace       `json:"decision_trace"`
	ElectronicElements *ElectronicElements `json:"electronic_elements,omitempty"`
}

// ElectronicElements is the classifier's optional electronic-signal verdict,
// carried through untouched except for the confidence elevation the caller
// applies once creative genre facts are available.
type ElectronicElements struct {
	Detected   bool     `json:"detected"`
	Confidence string   `json:"confidence"` // low | medium | high
	Reasons    []string `json:"reasons,omitempty"`
}

// DecisionTrace carries the per-model statistics the mix-only rescue and
// electronic-elements heuristics key on.
type DecisionTrace struct {
	PerModel map[string]ModelStats `json:"per_model"`
	Boosts   map[string]Boost      `json:"boosts"`
}

// ModelStats holds one model's per-label mean probability and positive ratio.
type ModelStats struct {
	MeanProbs map[string]float64 `json:"mean_probs"`
	PosRatio  map[string]float64 `json:"pos_ratio"`
}

// Boost is a classifier-side label addition.
type Boost struct {
	Added []string `json:"added"`
}

// rescueCandidates is the fixed candidate set the mix-only rescue inspects.
var rescueCandidates = []string{
	"electric_guitar", "acoustic_guitar", "bass_guitar", "drum_kit", "piano", "organ", "brass", "strings",
}

// rescueDisplayNames maps rescue candidate tokens to their display names.
var rescueDisplayNames = map[string]string{
	"electric_guitar": "Electric Guitar",
	"acoustic_guitar": "Acoustic Guitar",
	"bass_guitar":     "Bass Guitar",
	"drum_kit":        "Drum Kit (acoustic)",
	"piano":           "Piano",
	"organ":           "Organ",
	"brass":           "Brass",
	"strings":         "Strings",
}

const (
	rescueMeanPosMeanThreshold = 0.006
	rescueMeanPosPosThreshold  = 0.02
	rescuePANNSOnlyThreshold   = 0.06
	rescueMaxEmitted           = 4
)

// Run spawns the classifier binary against path with the requested demucs
// toggle, reads the output JSON file it writes, and applies the mix-only
// rescue and booster merge. outputJSONPath is the path of the transient
// output JSON file the classifier is asked to write.
func Run(ctx context.Context, binary, path, outputJSONPath string, useDemucs bool) Output {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return Output{Instruments: []string{}}
	}

	demucsFlag := "0"
	if useDemucs {
		demucsFlag = "1"
	}
	args := []string{"--audio", path, "--json-out", outputJSONPath, "--demucs", demucsFlag}
	cmd := exec.CommandContext(ctx, binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		_ = services.Wrap(services.ErrExternalTool, "ensemble", "run", strings.TrimSpace(stderr.String()), err)
		return Output{Instruments: []string{}}
	}

	data, err := os.ReadFile(outputJSONPath)
	if err != nil {
		return Output{Instruments: []string{}}
	}

	var out Output
	if err := json.Unmarshal(data, &out); err != nil {
		return Output{Instruments: []string{}}
	}
	if out.Instruments == nil {
		out.Instruments = []string{}
	}

	out.Instruments = mergeBoosts(out.Instruments, out.DecisionTrace.Boosts)

	if len(out.Instruments) == 0 && !out.UsedDemucs {
		out.Instruments = mixOnlyRescue(out.DecisionTrace)
	}

	return out
}

// mergeBoosts appends any boosted label not already present, preserving
// insertion order. Runs before finalization per the booster-merge step.
func mergeBoosts(instruments []string, boosts map[string]Boost) []string {
	if len(boosts) == 0 {
		return instruments
	}
	seen := make(map[string]bool, len(instruments))
	for _, v := range instruments {
		seen[v] = true
	}

	// Deterministic iteration: sort boost keys so merge order doesn't depend
	// on Go's randomized map iteration.
	keys := make([]string, 0, len(boosts))
	for k := range boosts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := append([]string{}, instruments...)
	for _, k := range keys {
		for _, label := range boosts[k].Added {
			if !seen[label] {
				seen[label] = true
				out = append(out, label)
			}
		}
	}
	return out
}

type rescueScore struct {
	token string
	score float64
}

// mixOnlyRescue implements the fixed-threshold salvage heuristic run when
// the ensemble returns no instruments and stem separation was not used.
func mixOnlyRescue(trace DecisionTrace) []string {
	panns := trace.PerModel["panns"]
	yamnet := trace.PerModel["yamnet"]

	var passing []rescueScore
	for _, candidate := range rescueCandidates {
		meanPanns := panns.MeanProbs[candidate]
		meanYamnet := yamnet.MeanProbs[candidate]
		posPanns := panns.PosRatio[candidate]
		posYamnet := yamnet.PosRatio[candidate]

		meanSum := meanPanns + meanYamnet
		posSum := posPanns + posYamnet

		passes := (meanSum >= rescueMeanPosMeanThreshold && posSum >= rescueMeanPosPosThreshold) ||
			posPanns >= rescuePANNSOnlyThreshold
		if !passes {
			continue
		}
		passing = append(passing, rescueScore{
			token: candidate,
			score: meanSum*0.7 + posSum*0.3,
		})
	}

	sort.SliceStable(passing, func(i, j int) bool { return passing[i].score > passing[j].score })

	limit := rescueMaxEmitted
	if len(passing) < limit {
		limit = len(passing)
	}

	out := make([]string, 0, limit)
	for _, p := range passing[:limit] {
		out = append(out, rescueDisplayNames[p.token])
	}
	return out
}
