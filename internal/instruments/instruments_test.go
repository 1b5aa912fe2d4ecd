package instruments

import (
	"reflect"
	"testing"
)

func TestFinalizeAliasNormalization(t *testing.T) {
	got := Finalize([]string{"Drums", "Hammond organ"}, nil, nil)
	want := []string{"Drum Kit (acoustic)", "Organ"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestFinalizeStableDedupAcrossSources(t *testing.T) {
	got := Finalize([]string{"Piano"}, []string{"Piano"}, []string{"Piano", "Synth"})
	want := []string{"Piano", "Synth"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestFinalizeBrassFamilyCollapse(t *testing.T) {
	// The synthesized family token takes the position of its first
	// collapsed member (Trumpet, index 0), ahead of the surviving Piano.
	got := Finalize([]string{"Trumpet", "Trombone", "Piano"}, nil, nil)
	want := []string{"Brass", "Piano"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestFinalizeWoodwindsFamilyCollapse(t *testing.T) {
	got := Finalize([]string{"Saxophone", "Flute"}, nil, nil)
	want := []string{"Woodwinds"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestFinalizeStringsSoftGuardRemovesWithoutAnchor(t *testing.T) {
	// "Strings" arrives as a literal label (no bowed member), with a pad
	// instrument present and no Brass anchor: the guard should drop it.
	got := Finalize([]string{"Strings", "Synth"}, nil, nil)
	want := []string{"Synth"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestFinalizeStringsSoftGuardKeepsWithBrassAnchor(t *testing.T) {
	got := Finalize([]string{"Strings", "Synth", "Brass"}, nil, nil)
	want := []string{"Strings", "Synth", "Brass"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestFinalizeSingleBowedMemberDoesNotCollapse(t *testing.T) {
	// A lone bowed instrument is left as its own token; strings collapse
	// requires two or more distinct bowed members per the worked scenario.
	// Brass still collapses on a single member and lands at Trumpet's
	// original position (index 0), ahead of the surviving Violin.
	got := Finalize([]string{"Trumpet", "Trombone", "Violin"}, nil, nil)
	want := []string{"Brass", "Violin"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestFinalizeTwoBowedMembersCollapse(t *testing.T) {
	// Violin (the first bowed member) sits at index 0, so the synthesized
	// "Strings" token takes that position ahead of the surviving Synth.
	got := Finalize([]string{"Violin", "Cello", "Synth"}, nil, nil)
	want := []string{"Strings", "Synth"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestFinalizeStringsSoftGuardKeepsWithoutPad(t *testing.T) {
	got := Finalize([]string{"Strings", "Piano"}, nil, nil)
	want := []string{"Strings", "Piano"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestFinalizeSynthesizedFamilyFollowsSurvivingToken(t *testing.T) {
	// Trumpet's first occurrence (index 1) is after Piano, so Brass lands
	// after Piano rather than displacing it to the front.
	got := Finalize([]string{"Piano", "Trumpet"}, nil, nil)
	want := []string{"Piano", "Brass"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestFinalizeSoftGuardWorkedExample(t *testing.T) {
	got := Finalize([]string{"Strings", "Organ"}, nil, nil)
	want := []string{"Organ"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestFinalizeSoftGuardWorkedExampleWithAnchorPreservesOrder(t *testing.T) {
	// Both "Strings" and "Brass" arrive as literal tokens here, so each
	// keeps its own position; see the instrument-finalizer entry in
	// DESIGN.md for the family-token positioning rule.
	got := Finalize([]string{"Strings", "Organ", "Brass"}, nil, nil)
	want := []string{"Strings", "Organ", "Brass"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestFinalizeEmptyInputsYieldsEmptySlice(t *testing.T) {
	got := Finalize(nil, nil, nil)
	if len(got) != 0 {
		t.Fatalf("expected empty result, got %v", got)
	}
}
