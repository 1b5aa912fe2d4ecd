package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"audiolib/internal/config"
	"audiolib/internal/notifications"
)

func TestNewServiceReturnsNoopWhenDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.NotificationsEnabled = false
	cfg.NotificationsURL = "http://example.invalid/topic"
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventBatchCompleted, notifications.Payload{"processed": 3}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNewServiceReturnsNoopWhenURLMissing(t *testing.T) {
	cfg := config.Default()
	cfg.NotificationsEnabled = true
	cfg.NotificationsURL = ""
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventBatchCompleted, notifications.Payload{}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestPublishSendsFormattedBatchCompletedPayload(t *testing.T) {
	var gotTitle, gotBody, gotTags string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTitle = r.Header.Get("Title")
		gotTags = r.Header.Get("Tags")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.NotificationsEnabled = true
	cfg.NotificationsURL = server.URL
	svc := notifications.NewService(&cfg)

	err := svc.Publish(context.Background(), notifications.EventBatchCompleted, notifications.Payload{
		"processed": 10,
		"failed":    1,
		"duration":  90 * time.Second,
	})
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	if gotTitle != "audiolib - Batch Complete" {
		t.Errorf("unexpected title: %q", gotTitle)
	}
	if gotTags != "white_check_mark" {
		t.Errorf("unexpected tags: %q", gotTags)
	}
	wantLines := "Processed: 10\nFailed: 1\nElapsed: 1m30s"
	if gotBody != wantLines {
		t.Errorf("unexpected body: got %q, want %q", gotBody, wantLines)
	}
}

func TestPublishBatchFailedSetsHighPriority(t *testing.T) {
	var gotPriority string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPriority = r.Header.Get("Priority")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.NotificationsEnabled = true
	cfg.NotificationsURL = server.URL
	svc := notifications.NewService(&cfg)

	err := svc.Publish(context.Background(), notifications.EventBatchFailed, notifications.Payload{"reason": "disk full"})
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if gotPriority != "high" {
		t.Errorf("expected high priority, got %q", gotPriority)
	}
}

func TestPublishPropagatesNonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.NotificationsEnabled = true
	cfg.NotificationsURL = server.URL
	svc := notifications.NewService(&cfg)

	if err := svc.Publish(context.Background(), notifications.EventTestNotification, notifications.Payload{}); err == nil {
		t.Fatal("expected an error when the endpoint returns a non-2xx/3xx status")
	}
}

func TestPublishRejectsUnknownEvent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.NotificationsEnabled = true
	cfg.NotificationsURL = server.URL
	svc := notifications.NewService(&cfg)

	if err := svc.Publish(context.Background(), notifications.Event("unknown"), notifications.Payload{}); err == nil {
		t.Fatal("expected an error for an unrecognized event")
	}
}
