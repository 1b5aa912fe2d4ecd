// Package track assembles the per-track analysis record from the three
// phases' outputs (C8) and owns its atomic on-disk persistence beside the
// source audio file.
package track

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"audiolib/internal/creative"
	"audiolib/internal/ensemble"
	"audiolib/internal/fileutil"
	"audiolib/internal/media/ffprobe"
	"audiolib/internal/media/tags"
	"audiolib/internal/pathkey"
)

// Tags mirrors the closed tag field set carried on TechnicalFacts.
type Tags = tags.TagMap

// TechnicalFacts is the technical-phase output.
type TechnicalFacts struct {
	DurationSec   float64 `json:"duration_sec"`
	SampleRateHz  int     `json:"sample_rate_hz"`
	Channels      int     `json:"channels"`
	BitRate       int     `json:"bit_rate"`
	Codec         string  `json:"codec"`
	HasWAVVersion bool    `json:"has_wav_version"`
	Tags          Tags    `json:"tags"`
	BPM           *int    `json:"bpm"`
	BPMSource     string  `json:"bpm_source,omitempty"`
	BPMAltHalf    *int    `json:"bpm_alt_half,omitempty"`
	BPMAltDouble  *int    `json:"bpm_alt_double,omitempty"`
}

// ElectronicElements captures the ensemble's optional electronic-signal verdict.
type ElectronicElements struct {
	Detected   bool     `json:"detected"`
	Confidence string   `json:"confidence"` // low | medium | high
	Reasons    []string `json:"reasons,omitempty"`
}

// Analysis is the instrumentation phase's contribution to the record.
type Analysis struct {
	Instruments        []string             `json:"instruments"`
	FinalInstruments   []string             `json:"final_instruments"`
	DecisionTrace      ensemble.DecisionTrace `json:"decision_trace"`
	ElectronicElements *ElectronicElements  `json:"electronic_elements,omitempty"`
}

// Record is the persisted TrackRecord.
type Record struct {
	Key         string         `json:"key"`
	Path        string         `json:"path"`
	File        string         `json:"file"`
	AnalyzedAt  time.Time      `json:"analyzed_at"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	Technical   TechnicalFacts `json:"technical"`
	Creative    creative.Facts `json:"creative"`
	CreativeStatus string      `json:"creative_status"`
	Analysis    Analysis       `json:"analysis"`
	WaveformPNG string         `json:"waveform_png,omitempty"`
}

// Assemble builds a Record from the Technical phase's output plus whatever
// the Creative and Instrumentation phases produced (possibly zero-valued on
// failure, per the non-fatal error policy). now is the assembly timestamp;
// existingCreatedAt, if non-zero, is preserved as CreatedAt (first-write
// semantics owned by the caller, typically the library store).
func Assemble(path string, technical TechnicalFacts, creativeResult creative.Result, analysis Analysis, existingCreatedAt time.Time, now time.Time) Record {
	key := pathkey.Key(path)
	createdAt := existingCreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	return Record{
		Key:            key,
		Path:           path,
		File:           filepath.Base(path),
		AnalyzedAt:     now,
		CreatedAt:      createdAt,
		UpdatedAt:      now,
		Technical:      technical,
		Creative:       creativeResult.Facts,
		CreativeStatus: string(creativeResult.Status),
		Analysis:       analysis,
	}
}

// TechnicalFromProbe seeds a TechnicalFacts from a container probe result and
// tag map; BPM fields are left unset for the tempo estimator to fill in.
func TechnicalFromProbe(facts ffprobe.Facts, tagMap Tags) TechnicalFacts {
	return TechnicalFacts{
		DurationSec:  facts.DurationSec,
		SampleRateHz: facts.SampleRateHz,
		Channels:     facts.Channels,
		BitRate:      int(facts.BitRate),
		Codec:        facts.Codec,
		Tags:         tagMap,
	}
}

// ApplyBPM fills in the BPM fields per the id3-override and alt-tempo rules:
// if the tag carries a valid TBPM it wins outright; otherwise the estimate
// (if any) is used. Alt tempos are emitted only within [50,200].
func (tf *TechnicalFacts) ApplyBPM(estimateBPM float64, estimateSource string, estimateFound bool) {
	if raw, ok := tags.ParseBPM(tf.Tags.TBPM); ok {
		tf.setBPM(raw, "id3")
		return
	}
	if estimateFound {
		tf.setBPM(int(estimateBPM), estimateSource)
	}
}

func (tf *TechnicalFacts) setBPM(bpm int, source string) {
	v := bpm
	tf.BPM = &v
	tf.BPMSource = source
	tf.BPMAltHalf = nil
	tf.BPMAltDouble = nil
	if half := roundDiv(bpm, 2); half >= 50 && half <= 200 {
		tf.BPMAltHalf = intPtr(half)
	}
	if double := bpm * 2; double >= 50 && double <= 200 {
		tf.BPMAltDouble = intPtr(double)
	}
}

func intPtr(v int) *int { return &v }

func roundDiv(a, b int) int {
	return (a + b/2) / b
}

// WaveformPath computes the deterministic cache filename (stem + 10-char
// path hash) used when a library waveform folder is configured.
func WaveformPath(libraryFolder, path string) string {
	if strings.TrimSpace(libraryFolder) == "" {
		return ""
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	sum := sha1.Sum([]byte(pathkey.Key(path)))
	hash := hex.EncodeToString(sum[:])[:10]
	return filepath.Join(libraryFolder, fmt.Sprintf("%s-%s.png", stem, hash))
}

// PerFilePath returns the <stem>.json path beside the audio file.
func PerFilePath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".json"
}

// perFileDocument is the authoritative projection's exact field set (§6).
type perFileDocument struct {
	File            string              `json:"file"`
	Path            string              `json:"path"`
	AnalyzedAt      time.Time           `json:"analyzed_at"`
	DurationSec     float64             `json:"duration_sec"`
	SampleRateHz    int                 `json:"sample_rate_hz"`
	Channels        int                 `json:"channels"`
	BitRate         int                 `json:"bit_rate"`
	Title           string              `json:"title"`
	ID3             Tags                `json:"id3"`
	HasWAVVersion   bool                `json:"has_wav_version"`
	EstimatedTempo  *int                `json:"estimated_tempo_bpm,omitempty"`
	TempoBPM        *int                `json:"tempo_bpm,omitempty"`
	BPM             *int                `json:"bpm"`
	TempoSource     string              `json:"tempo_source,omitempty"`
	TempoAltHalf    *int                `json:"tempo_alt_half_bpm,omitempty"`
	TempoAltDouble  *int                `json:"tempo_alt_double_bpm,omitempty"`
	Creative        creativeDocument    `json:"creative"`
	CreativeStatus  string              `json:"creative_status"`
	Instruments     []string            `json:"instruments"`
	FinalInstruments []string           `json:"final_instruments"`
	InstrumentsEnsemble ensembleDocument `json:"instruments_ensemble"`
	WaveformPNG     string              `json:"waveform_png,omitempty"`
}

type creativeDocument struct {
	Mood                 []string `json:"mood"`
	Genre                []string `json:"genre"`
	Theme                []string `json:"theme"`
	SuggestedInstruments []string `json:"suggestedInstruments"`
	Vocals               []string `json:"vocals"`
	LyricThemes          []string `json:"lyricThemes"`
	Narrative            string   `json:"narrative"`
	Confidence           float64  `json:"confidence"`
}

type ensembleDocument struct {
	UsedDemucs         bool                  `json:"used_demucs"`
	Mode               string                `json:"mode"`
	DecisionTrace      ensemble.DecisionTrace `json:"decision_trace"`
	ElectronicElements *ElectronicElements   `json:"electronic_elements,omitempty"`
}

// ToPerFileDocument projects Record onto the authoritative per-file JSON shape.
func (r Record) ToPerFileDocument(mode string, usedDemucs bool) any {
	return perFileDocument{
		File:          r.File,
		Path:          r.Path,
		AnalyzedAt:    r.AnalyzedAt,
		DurationSec:   r.Technical.DurationSec,
		SampleRateHz:  r.Technical.SampleRateHz,
		Channels:      r.Technical.Channels,
		BitRate:       r.Technical.BitRate,
		Title:         r.Technical.Tags.Title,
		ID3:           r.Technical.Tags,
		HasWAVVersion: r.Technical.HasWAVVersion,
		BPM:           r.Technical.BPM,
		TempoBPM:      r.Technical.BPM,
		TempoSource:   r.Technical.BPMSource,
		TempoAltHalf:  r.Technical.BPMAltHalf,
		TempoAltDouble: r.Technical.BPMAltDouble,
		Creative: creativeDocument{
			Mood:                 r.Creative.Mood,
			Genre:                r.Creative.Genre,
			Theme:                r.Creative.Theme,
			SuggestedInstruments: r.Creative.SuggestedInstruments,
			Vocals:               r.Creative.Vocals,
			LyricThemes:          r.Creative.LyricThemes,
			Narrative:            r.Creative.Narrative,
			Confidence:           r.Creative.Confidence,
		},
		CreativeStatus:   r.CreativeStatus,
		Instruments:      r.Analysis.Instruments,
		FinalInstruments: r.Analysis.FinalInstruments,
		InstrumentsEnsemble: ensembleDocument{
			UsedDemucs:         usedDemucs,
			Mode:               mode,
			DecisionTrace:      r.Analysis.DecisionTrace,
			ElectronicElements: r.Analysis.ElectronicElements,
		},
		WaveformPNG: r.WaveformPNG,
	}
}

// Persist writes the per-file JSON document beside the audio file atomically.
func Persist(r Record, mode string, usedDemucs bool) error {
	return fileutil.WriteJSONAtomic(PerFilePath(r.Path), r.ToPerFileDocument(mode, usedDemucs))
}
