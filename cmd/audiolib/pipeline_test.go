package main

import (
	"context"
	"encoding/json"
	"testing"

	"audiolib/internal/analysiscache"
)

func openTestCache(t *testing.T) *analysiscache.Cache {
	t.Helper()
	dbPath := t.TempDir() + "/cache.db"
	cache, err := analysiscache.Open(dbPath, nil)
	if err != nil {
		t.Fatalf("analysiscache.Open: %v", err)
	}
	t.Cleanup(func() { _ = cache.Close() })
	return cache
}

func TestStoreCacheFieldPreservesSibling(t *testing.T) {
	cache := openTestCache(t)
	ctx := context.Background()

	technicalPayload, _ := json.Marshal(map[string]string{"kind": "technical"})
	storeCacheField(ctx, cache, "track-1", "hash-1", technicalPayload, nil)

	ensemblePayload, _ := json.Marshal(map[string]string{"kind": "ensemble"})
	storeCacheField(ctx, cache, "track-1", "hash-1", nil, ensemblePayload)

	entry, ok, err := cache.Lookup(ctx, "track-1", "hash-1")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !ok {
		t.Fatal("expected cache entry to exist")
	}
	if string(entry.Technical) != string(technicalPayload) {
		t.Errorf("technical payload was clobbered: got %s", entry.Technical)
	}
	if string(entry.Ensemble) != string(ensemblePayload) {
		t.Errorf("ensemble payload was clobbered: got %s", entry.Ensemble)
	}
}

func TestCacheIdentityNilCache(t *testing.T) {
	key, hash := cacheIdentity(nil, "/music/a.mp3")
	if key != "" || hash != "" {
		t.Fatalf("expected empty identity for nil cache, got (%q, %q)", key, hash)
	}
}
