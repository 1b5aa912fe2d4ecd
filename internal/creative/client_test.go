package creative

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTagsServer(t *testing.T, models []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			var listed []map[string]string
			for _, m := range models {
				listed = append(listed, map[string]string{"name": m})
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"models": listed})
			return
		}
		payload := map[string]any{
			"message": map[string]string{
				"content": `{"mood":["Chill/Mellow"],"genre":["Ambient"],"theme":["Nature"],"instrument":["piano","synth"],"vocals":[],"lyricThemes":[],"narrative":"A calm ambient piece.","confidence":0.82}`,
			},
		}
		_ = json.NewEncoder(w).Encode(payload)
	}))
}

func TestClientAnalyzeOK(t *testing.T) {
	server := newTagsServer(t, []string{"demo-model"})
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Model: "demo-model"})
	bpm := 120
	result := client.Analyze(context.Background(), Request{Title: "Track", BPM: &bpm})

	if result.Status != StatusOK {
		t.Fatalf("expected StatusOK, got %v", result.Status)
	}
	if len(result.Facts.Genre) != 1 || result.Facts.Genre[0] != "Ambient" {
		t.Fatalf("unexpected genre: %v", result.Facts.Genre)
	}
	if len(result.Facts.Vocals) != 1 || result.Facts.Vocals[0] != noVocals {
		t.Fatalf("expected empty vocals to default to No Vocals, got %v", result.Facts.Vocals)
	}
	if len(result.Facts.SuggestedInstruments) != 2 {
		t.Fatalf("expected 2 suggested instruments, got %v", result.Facts.SuggestedInstruments)
	}
}

func TestClientAnalyzeModelMissing(t *testing.T) {
	server := newTagsServer(t, []string{"other-model"})
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Model: "demo-model"})
	result := client.Analyze(context.Background(), Request{Title: "Track"})

	if result.Status != StatusModelMissing {
		t.Fatalf("expected StatusModelMissing, got %v", result.Status)
	}
	if len(result.Facts.Vocals) != 1 || result.Facts.Vocals[0] != noVocals {
		t.Fatalf("expected default facts, got %+v", result.Facts)
	}
}

func TestClientAnalyzeOffline(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:0", Model: "demo-model"})
	result := client.Analyze(context.Background(), Request{Title: "Track"})

	if result.Status != StatusOffline {
		t.Fatalf("expected StatusOffline, got %v", result.Status)
	}
}

func TestClientAnalyzeParseError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			_ = json.NewEncoder(w).Encode(map[string]any{"models": []map[string]string{{"name": "demo-model"}}})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]string{"content": "not json at all"},
		})
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Model: "demo-model"})
	result := client.Analyze(context.Background(), Request{Title: "Track"})

	if result.Status != StatusParseError {
		t.Fatalf("expected StatusParseError, got %v", result.Status)
	}
}
