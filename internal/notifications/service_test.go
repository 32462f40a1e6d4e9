package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"crucible/internal/config"
	"crucible/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyRunStarted(context.Background(), "task-1", 10, []string{"UTS"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

type captured struct {
	title    string
	tags     string
	priority string
	body     string
}

func newCaptureServer(t *testing.T, sink *[]captured) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		*sink = append(*sink, captured{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		})
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNtfyServiceFormatsMessages(t *testing.T) {
	var got []captured
	server := newCaptureServer(t, &got)

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	svc := notifications.NewService(&cfg)
	ctx := context.Background()

	if err := svc.NotifyRunStarted(ctx, "task-1", 12, []string{"UTS", "elongation"}); err != nil {
		t.Fatalf("NotifyRunStarted: %v", err)
	}
	if err := svc.NotifyRoundCompleted(ctx, "task-1", 2, 5, 1, 12); err != nil {
		t.Fatalf("NotifyRoundCompleted: %v", err)
	}
	if err := svc.NotifyRunCompleted(ctx, "task-1", 11, 1, 12, 90*time.Second); err != nil {
		t.Fatalf("NotifyRunCompleted: %v", err)
	}
	if err := svc.NotifyError(ctx, errors.New("boom"), "round 2"); err != nil {
		t.Fatalf("NotifyError: %v", err)
	}

	if len(got) != 4 {
		t.Fatalf("expected 4 notifications, got %d", len(got))
	}
	if got[0].title != "Crucible - Run Started" || !strings.Contains(got[0].body, "UTS, elongation") {
		t.Fatalf("run started notification: %+v", got[0])
	}
	if !strings.Contains(got[1].body, "round 2: 5/12 converged, 1 failed") {
		t.Fatalf("round completed notification: %+v", got[1])
	}
	if got[2].priority != "high" || !strings.Contains(got[2].body, "1 failed in 1m30s") {
		t.Fatalf("run completed notification: %+v", got[2])
	}
	if got[3].title != "Crucible - Error" || !strings.Contains(got[3].body, "Error with round 2: boom") {
		t.Fatalf("error notification: %+v", got[3])
	}
}

func TestNtfyServiceSurfacesServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	svc := notifications.NewService(&cfg)
	if err := svc.TestNotification(context.Background()); err == nil {
		t.Fatal("expected error for 403 response")
	}
}
