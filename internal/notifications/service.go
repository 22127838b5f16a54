package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"shuttle/internal/config"
)

const userAgent = "Shuttle-Go/0.1.0"

// Service defines the notification surface exposed to the daemon.
type Service interface {
	NotifyStorageLow(ctx context.Context, drive, free, floor string) error
	NotifyAdminAlert(ctx context.Context, subject, detail string) error
	NotifyGraceReport(ctx context.Context, report string) error
	NotifyTransferCompleted(ctx context.Context, user, batch, size string) error
	NotifyError(ctx context.Context, err error, contextLabel string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &http.Client{Timeout: timeout}
	return &ntfyService{
		endpoint: topic,
		client:   client,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyStorageLow(ctx context.Context, drive, free, floor string) error {
	drive = strings.TrimSpace(drive)
	data := payload{
		title:    "Shuttle - Storage Low",
		message:  fmt.Sprintf("Free space on %s is down to %s (floor %s)", drive, free, floor),
		tags:     []string{"shuttle", "storage", "low"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyAdminAlert(ctx context.Context, subject, detail string) error {
	subject = strings.TrimSpace(subject)
	message := subject
	if detail = strings.TrimSpace(detail); detail != "" {
		message = fmt.Sprintf("%s\n%s", subject, detail)
	}
	data := payload{
		title:    "Shuttle - Attention Required",
		message:  message,
		tags:     []string{"shuttle", "admin", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyGraceReport(ctx context.Context, report string) error {
	data := payload{
		title:   "Shuttle - Grace Area Report",
		message: strings.TrimSpace(report),
		tags:    []string{"shuttle", "grace", "expired"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyTransferCompleted(ctx context.Context, user, batch, size string) error {
	user = strings.TrimSpace(user)
	batch = strings.TrimSpace(batch)
	data := payload{
		title:   "Shuttle - Transfer Complete",
		message: fmt.Sprintf("Delivered %s for %s (%s)", batch, user, size),
		tags:    []string{"shuttle", "transfer", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Shuttle - Error",
		message:  builder.String(),
		tags:     []string{"shuttle", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Shuttle - Test",
		message:  "Notification system test",
		tags:     []string{"shuttle", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyStorageLow(context.Context, string, string, string) error        { return nil }
func (noopService) NotifyAdminAlert(context.Context, string, string) error                { return nil }
func (noopService) NotifyGraceReport(context.Context, string) error                       { return nil }
func (noopService) NotifyTransferCompleted(context.Context, string, string, string) error { return nil }
func (noopService) NotifyError(context.Context, error, string) error                      { return nil }
func (noopService) TestNotification(context.Context) error                                { return nil }
