package track

import (
	"testing"

	"audiolib/internal/media/tags"
)

func TestApplyBPMIDOverrideWins(t *testing.T) {
	tf := TechnicalFacts{Tags: tags.TagMap{TBPM: "148 bpm"}}
	tf.ApplyBPM(98, "thirds", true)

	if tf.BPM == nil || *tf.BPM != 148 {
		t.Fatalf("expected bpm=148, got %v", tf.BPM)
	}
	if tf.BPMSource != "id3" {
		t.Fatalf("expected source id3, got %q", tf.BPMSource)
	}
	if tf.BPMAltHalf == nil || *tf.BPMAltHalf != 74 {
		t.Fatalf("expected alt_half=74, got %v", tf.BPMAltHalf)
	}
	if tf.BPMAltDouble != nil {
		t.Fatalf("expected alt_double absent (296 out of range), got %v", *tf.BPMAltDouble)
	}
}

func TestApplyBPMFallsBackToEstimate(t *testing.T) {
	tf := TechnicalFacts{}
	tf.ApplyBPM(120, "acf", true)

	if tf.BPM == nil || *tf.BPM != 120 {
		t.Fatalf("expected bpm=120, got %v", tf.BPM)
	}
	if tf.BPMSource != "acf" {
		t.Fatalf("expected source acf, got %q", tf.BPMSource)
	}
}

func TestApplyBPMNoEstimateLeavesNull(t *testing.T) {
	tf := TechnicalFacts{}
	tf.ApplyBPM(0, "", false)

	if tf.BPM != nil {
		t.Fatalf("expected bpm=nil, got %v", *tf.BPM)
	}
}

func TestWaveformPathEmptyWithoutLibraryFolder(t *testing.T) {
	if got := WaveformPath("", "/music/song.mp3"); got != "" {
		t.Fatalf("expected empty path, got %q", got)
	}
}

func TestWaveformPathDeterministic(t *testing.T) {
	a := WaveformPath("/cache", "/Music/Song.mp3")
	b := WaveformPath("/cache", "/music/Song.MP3")
	if a != b {
		t.Fatalf("expected path-key-normalized inputs to produce the same waveform path, got %q and %q", a, b)
	}
}

func TestPerFilePathReplacesExtension(t *testing.T) {
	if got := PerFilePath("/music/song.mp3"); got != "/music/song.json" {
		t.Fatalf("got %q", got)
	}
}
