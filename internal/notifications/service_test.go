package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"shuttle/internal/config"
	"shuttle/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyStorageLow(context.Background(), "/srv/incoming", "2 GiB", "10 GiB"); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		publish        func(svc notifications.Service) error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name: "storage low",
			publish: func(svc notifications.Service) error {
				return svc.NotifyStorageLow(context.Background(), "/srv/incoming", "8.0 GiB", "10 GiB")
			},
			expectTitle:    "Shuttle - Storage Low",
			expectMessage:  "Free space on /srv/incoming is down to 8.0 GiB (floor 10 GiB)",
			expectTags:     "shuttle,storage,low",
			expectPriority: "high",
		},
		{
			name: "admin alert",
			publish: func(svc notifications.Service) error {
				return svc.NotifyAdminAlert(context.Background(), "Unmatched batches", "2 batches await review")
			},
			expectTitle:    "Shuttle - Attention Required",
			expectMessage:  "Unmatched batches\n2 batches await review",
			expectTags:     "shuttle,admin,alert",
			expectPriority: "high",
		},
		{
			name: "transfer completed",
			publish: func(svc notifications.Service) error {
				return svc.NotifyTransferCompleted(context.Background(), "alice", "2026-01-02__03-04-05", "1.5 GiB")
			},
			expectTitle:   "Shuttle - Transfer Complete",
			expectMessage: "Delivered 2026-01-02__03-04-05 for alice (1.5 GiB)",
			expectTags:    "shuttle,transfer,completed",
		},
		{
			name: "grace report",
			publish: func(svc notifications.Service) error {
				return svc.NotifyGraceReport(context.Background(), "alice/2026-01-01__00-00-00 (31d)")
			},
			expectTitle:   "Shuttle - Grace Area Report",
			expectMessage: "alice/2026-01-01__00-00-00 (31d)",
			expectTags:    "shuttle,grace,expired",
		},
		{
			name: "error",
			publish: func(svc notifications.Service) error {
				return svc.NotifyError(context.Background(), errors.New("rsync exited 23"), "transfer")
			},
			expectTitle:    "Shuttle - Error",
			expectMessage:  "Error with transfer: rsync exited 23",
			expectTags:     "shuttle,error,alert",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var gotTitle, gotMessage, gotTags, gotPriority string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				body, _ := io.ReadAll(r.Body)
				gotMessage = string(body)
				gotTitle = r.Header.Get("Title")
				gotTags = r.Header.Get("Tags")
				gotPriority = r.Header.Get("Priority")
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			svc := notifications.NewService(&cfg)

			if err := tc.publish(svc); err != nil {
				t.Fatalf("publish: %v", err)
			}
			if gotTitle != tc.expectTitle {
				t.Fatalf("title = %q, want %q", gotTitle, tc.expectTitle)
			}
			if gotMessage != tc.expectMessage {
				t.Fatalf("message = %q, want %q", gotMessage, tc.expectMessage)
			}
			if gotTags != tc.expectTags {
				t.Fatalf("tags = %q, want %q", gotTags, tc.expectTags)
			}
			if gotPriority != tc.expectPriority {
				t.Fatalf("priority = %q, want %q", gotPriority, tc.expectPriority)
			}
		})
	}
}

func TestNtfyServiceSurfacesServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "topic quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	svc := notifications.NewService(&cfg)

	err := svc.TestNotification(context.Background())
	if err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}
