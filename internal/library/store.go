// Package library implements the main and criteria store upsert/rebuild
// rules of C9: instrument precedence, list-field union, case-insensitive
// facet sets, and single-writer-per-file locking via flock.
package library

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"audiolib/internal/fileutil"
	"audiolib/internal/track"
)

const (
	mainStoreFile     = "RhythmDB.json"
	criteriaStoreFile = "CriteriaDB.json"
)

// MainStore is the library-wide keyed record set.
type MainStore struct {
	Tracks map[string]track.Record `json:"tracks"`
}

// CriteriaStore is the flat, sorted, deduplicated facet index.
type CriteriaStore struct {
	Genre              []string `json:"genre"`
	Mood               []string `json:"mood"`
	Instrument         []string `json:"instrument"`
	Vocals             []string `json:"vocals"`
	Theme              []string `json:"theme"`
	TempoBands         []string `json:"tempo_bands"`
	Keys               []string `json:"keys"`
	Artists            []string `json:"artists"`
	ElectronicElements []string `json:"electronic_elements"`
}

// Store owns the on-disk main and criteria stores under dbFolder, with a
// dedicated flock-backed lock per file so concurrent library writers never
// interleave partial writes.
type Store struct {
	dbFolder string

	mainMu   sync.Mutex
	mainLock *flock.Flock

	criteriaMu   sync.Mutex
	criteriaLock *flock.Flock
}

// New constructs a Store rooted at dbFolder.
func New(dbFolder string) *Store {
	return &Store{
		dbFolder:     dbFolder,
		mainLock:     flock.New(mainStorePath(dbFolder) + ".lock"),
		criteriaLock: flock.New(criteriaStorePath(dbFolder) + ".lock"),
	}
}

func mainStorePath(dbFolder string) string     { return joinPath(dbFolder, mainStoreFile) }
func criteriaStorePath(dbFolder string) string { return joinPath(dbFolder, criteriaStoreFile) }

func joinPath(dir, file string) string {
	if dir == "" {
		return file
	}
	if strings.HasSuffix(dir, "/") {
		return dir + file
	}
	return dir + "/" + file
}

// Load reads the current main store, tolerating a missing file as empty.
func (s *Store) Load() (MainStore, error) {
	var store MainStore
	ok, err := fileutil.ReadJSON(mainStorePath(s.dbFolder), &store)
	if err != nil {
		return MainStore{}, err
	}
	if !ok || store.Tracks == nil {
		store.Tracks = map[string]track.Record{}
	}
	return store, nil
}

// Upsert merges rec into the main store by TrackKey under an exclusive
// per-file lock and persists the result atomically.
func (s *Store) Upsert(rec track.Record, now time.Time) (track.Record, error) {
	s.mainMu.Lock()
	defer s.mainMu.Unlock()

	if err := s.mainLock.Lock(); err != nil {
		return track.Record{}, err
	}
	defer s.mainLock.Unlock()

	store, err := s.Load()
	if err != nil {
		return track.Record{}, err
	}

	existing, had := store.Tracks[rec.Key]
	merged := mergeRecord(existing, rec, had, now)
	store.Tracks[rec.Key] = merged

	if err := fileutil.WriteJSONAtomic(mainStorePath(s.dbFolder), store); err != nil {
		return track.Record{}, err
	}
	return merged, nil
}

// mergeRecord applies the upsert rule: the incoming record replaces the
// stored one field for field (an empty incoming scalar or list replaces a
// non-empty stored value), except that the creative genre/mood/vocals/theme
// lists union preserving existing order first, and created_at is only ever
// set on first write. No instrument precedence is applied here;
// ResolveInstrument applies it when the criteria store is rebuilt.
func mergeRecord(existing, incoming track.Record, had bool, now time.Time) track.Record {
	merged := incoming
	if had {
		merged.CreatedAt = existing.CreatedAt
		merged.Creative.Genre = unionPreserveOrder(existing.Creative.Genre, incoming.Creative.Genre)
		merged.Creative.Mood = unionPreserveOrder(existing.Creative.Mood, incoming.Creative.Mood)
		merged.Creative.Vocals = unionPreserveOrder(existing.Creative.Vocals, incoming.Creative.Vocals)
		merged.Creative.Theme = unionPreserveOrder(existing.Creative.Theme, incoming.Creative.Theme)
	} else {
		merged.CreatedAt = now
	}
	merged.UpdatedAt = now
	return merged
}

func unionPreserveOrder(existingList, incomingList []string) []string {
	seen := make(map[string]bool, len(existingList)+len(incomingList))
	out := make([]string, 0, len(existingList)+len(incomingList))
	for _, v := range existingList {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	for _, v := range incomingList {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// ResolveInstrument applies the fixed instrument precedence chain (highest
// wins, first non-empty): analysis.final_instruments > analysis.instruments
// > root finalInstruments > root instruments > creative.suggestedInstruments
// > creative.instrument. This module carries only three of these sources
// (root finalInstruments/instruments and a bare creative.instrument field
// are legacy per-file aliases the core does not itself populate), so
// resolution here is equivalent over analysis.final_instruments,
// analysis.instruments, and creative.suggestedInstruments.
func ResolveInstrument(rec track.Record) []string {
	if len(rec.Analysis.FinalInstruments) > 0 {
		return rec.Analysis.FinalInstruments
	}
	if len(rec.Analysis.Instruments) > 0 {
		return rec.Analysis.Instruments
	}
	if len(rec.Creative.SuggestedInstruments) > 0 {
		return rec.Creative.SuggestedInstruments
	}
	return nil
}

// RebuildCriteria performs a full sweep of the main store and rewrites the
// criteria store atomically under its own exclusive lock. It is a pure
// function of the main store's contents: repeated rebuilds without
// intervening upserts are byte-identical.
func (s *Store) RebuildCriteria() (CriteriaStore, error) {
	s.criteriaMu.Lock()
	defer s.criteriaMu.Unlock()

	if err := s.criteriaLock.Lock(); err != nil {
		return CriteriaStore{}, err
	}
	defer s.criteriaLock.Unlock()

	store, err := s.Load()
	if err != nil {
		return CriteriaStore{}, err
	}

	genre := newFacetSet()
	mood := newFacetSet()
	instrument := newFacetSet()
	vocals := newFacetSet()
	theme := newFacetSet()
	tempoBands := newFacetSet()
	keys := newFacetSet()
	artists := newFacetSet()
	electronic := newFacetSet()

	// Walk tracks in key order: facetSet keeps the first-seen casing of each
	// value, so map order would otherwise leak into the output.
	trackKeys := make([]string, 0, len(store.Tracks))
	for k := range store.Tracks {
		trackKeys = append(trackKeys, k)
	}
	sort.Strings(trackKeys)
	for _, k := range trackKeys {
		rec := store.Tracks[k]
		genre.addAll(rec.Creative.Genre)
		mood.addAll(rec.Creative.Mood)
		vocals.addAll(rec.Creative.Vocals)
		theme.addAll(rec.Creative.Theme)
		keys.add(rec.Key)
		artists.add(rec.Technical.Tags.Artist)

		for _, token := range ResolveInstrument(rec) {
			instrument.add(stripSectionSuffix(token))
		}

		if rec.Technical.BPM != nil {
			tempoBands.add(TempoBand(*rec.Technical.BPM))
		}

		if rec.Analysis.ElectronicElements != nil {
			if rec.Analysis.ElectronicElements.Detected {
				electronic.add("Yes")
			} else {
				electronic.add("No")
			}
		}
	}

	criteria := CriteriaStore{
		Genre:              genre.sorted(),
		Mood:               mood.sorted(),
		Instrument:         instrument.sorted(),
		Vocals:             vocals.sorted(),
		Theme:              theme.sorted(),
		TempoBands:         tempoBands.sorted(),
		Keys:               keys.sorted(),
		Artists:            artists.sorted(),
		ElectronicElements: electronic.sorted(),
	}

	if err := fileutil.WriteJSONAtomic(criteriaStorePath(s.dbFolder), criteria); err != nil {
		return CriteriaStore{}, err
	}
	return criteria, nil
}

func stripSectionSuffix(s string) string {
	return strings.TrimSuffix(s, " (section)")
}

// facetSet accumulates case-insensitively deduplicated facet values,
// remembering the first-seen casing for display.
type facetSet struct {
	byLower map[string]string
}

func newFacetSet() *facetSet {
	return &facetSet{byLower: map[string]string{}}
}

func (f *facetSet) add(value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	key := strings.ToLower(value)
	if _, ok := f.byLower[key]; !ok {
		f.byLower[key] = value
	}
}

func (f *facetSet) addAll(values []string) {
	for _, v := range values {
		f.add(v)
	}
}

func (f *facetSet) sorted() []string {
	out := make([]string, 0, len(f.byLower))
	for _, v := range f.byLower {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i]) < strings.ToLower(out[j])
	})
	return out
}

// TempoBand buckets bpm into the fixed, labeled band set. Lower bound
// inclusive, upper bound exclusive, per the bucketing invariant.
func TempoBand(bpm int) string {
	switch {
	case bpm < 60:
		return "Very Slow (Below 60 BPM)"
	case bpm < 90:
		return "Slow (60-90 BPM)"
	case bpm < 110:
		return "Medium (90-110 BPM)"
	case bpm < 140:
		return "Upbeat (110-140 BPM)"
	case bpm < 160:
		return "Fast (140-160 BPM)"
	default:
		return "Very Fast (160+ BPM)"
	}
}
