package library

import (
	"os"
	"testing"
	"time"

	"audiolib/internal/creative"
	"audiolib/internal/track"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	return New(dir)
}

func TestUpsertCreatesAndUpdatesTimestamps(t *testing.T) {
	store := newTestStore(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	rec := track.Assemble("/Music/Song.mp3", track.TechnicalFacts{}, creative.Result{Facts: creative.DefaultFacts()}, track.Analysis{}, time.Time{}, now)
	merged, err := store.Upsert(rec, now)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if merged.CreatedAt != now || merged.UpdatedAt != now {
		t.Fatalf("expected created/updated at %v, got created=%v updated=%v", now, merged.CreatedAt, merged.UpdatedAt)
	}

	later := now.Add(time.Hour)
	rec2 := track.Assemble("/music/Song.MP3", track.TechnicalFacts{}, creative.Result{Facts: creative.DefaultFacts()}, track.Analysis{}, time.Time{}, later)
	merged2, err := store.Upsert(rec2, later)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if merged2.CreatedAt != now {
		t.Fatalf("expected created_at preserved at %v, got %v", now, merged2.CreatedAt)
	}
	if merged2.UpdatedAt != later {
		t.Fatalf("expected updated_at advanced to %v, got %v", later, merged2.UpdatedAt)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded.Tracks) != 1 {
		t.Fatalf("expected path-normalized upserts to collapse to one entry, got %d", len(loaded.Tracks))
	}
}

func TestUpsertUnionsCreativeListsPreservingOrder(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()

	first := track.Assemble("/music/a.mp3", track.TechnicalFacts{}, creative.Result{Facts: creative.Facts{Genre: []string{"Rock"}, Vocals: []string{"No Vocals"}}}, track.Analysis{}, time.Time{}, now)
	if _, err := store.Upsert(first, now); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	second := track.Assemble("/music/a.mp3", track.TechnicalFacts{}, creative.Result{Facts: creative.Facts{Genre: []string{"Electronic", "Rock"}, Vocals: []string{"No Vocals"}}}, track.Analysis{}, time.Time{}, now)
	merged, err := store.Upsert(second, now)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	want := []string{"Rock", "Electronic"}
	if len(merged.Creative.Genre) != len(want) {
		t.Fatalf("got %v, want %v", merged.Creative.Genre, want)
	}
	for i := range want {
		if merged.Creative.Genre[i] != want[i] {
			t.Fatalf("got %v, want %v", merged.Creative.Genre, want)
		}
	}
}

func TestResolveInstrumentPrecedence(t *testing.T) {
	rec := track.Record{
		Analysis: track.Analysis{
			FinalInstruments: []string{"Brass"},
			Instruments:      []string{"Piano"},
		},
		Creative: creative.Facts{SuggestedInstruments: []string{"Synth"}},
	}
	if got := ResolveInstrument(rec); len(got) != 1 || got[0] != "Brass" {
		t.Fatalf("expected FinalInstruments to win, got %v", got)
	}

	rec.Analysis.FinalInstruments = nil
	if got := ResolveInstrument(rec); len(got) != 1 || got[0] != "Piano" {
		t.Fatalf("expected Instruments to win next, got %v", got)
	}

	rec.Analysis.Instruments = nil
	if got := ResolveInstrument(rec); len(got) != 1 || got[0] != "Synth" {
		t.Fatalf("expected SuggestedInstruments as last resort, got %v", got)
	}
}

func TestTempoBandBucketing(t *testing.T) {
	cases := []struct {
		bpm  int
		want string
	}{
		{59, "Very Slow (Below 60 BPM)"},
		{60, "Slow (60-90 BPM)"},
		{90, "Medium (90-110 BPM)"},
		{110, "Upbeat (110-140 BPM)"},
		{140, "Fast (140-160 BPM)"},
		{160, "Very Fast (160+ BPM)"},
	}
	for _, tc := range cases {
		if got := TempoBand(tc.bpm); got != tc.want {
			t.Errorf("TempoBand(%d) = %q, want %q", tc.bpm, got, tc.want)
		}
	}
}

func TestRebuildCriteriaIsPureFunctionOfMainStore(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()
	bpm := 95
	rec := track.Assemble("/music/a.mp3", track.TechnicalFacts{BPM: &bpm}, creative.Result{Facts: creative.Facts{Genre: []string{"Rock"}, Vocals: []string{"No Vocals"}}}, track.Analysis{FinalInstruments: []string{"Piano"}}, time.Time{}, now)
	if _, err := store.Upsert(rec, now); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	first, err := store.RebuildCriteria()
	if err != nil {
		t.Fatalf("first rebuild: %v", err)
	}
	firstBytes, err := os.ReadFile(criteriaStorePath(store.dbFolder))
	if err != nil {
		t.Fatalf("read criteria store: %v", err)
	}

	if _, err := store.RebuildCriteria(); err != nil {
		t.Fatalf("second rebuild: %v", err)
	}
	secondBytes, err := os.ReadFile(criteriaStorePath(store.dbFolder))
	if err != nil {
		t.Fatalf("read criteria store: %v", err)
	}

	if string(firstBytes) != string(secondBytes) {
		t.Fatal("expected two successive rebuilds to produce byte-identical criteria stores")
	}
	if len(first.TempoBands) != 1 || first.TempoBands[0] != "Medium (90-110 BPM)" {
		t.Fatalf("expected Medium tempo band, got %v", first.TempoBands)
	}
}
