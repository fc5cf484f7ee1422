package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"docket/internal/config"
)

const userAgent = "Docket/0.1.0"

// Service defines the notification surface exposed to pipeline components.
type Service interface {
	NotifyDocumentIngested(ctx context.Context, filename string) error
	NotifyDuplicateDetected(ctx context.Context, filename, existingID string) error
	NotifyDocumentCompleted(ctx context.Context, title string) error
	NotifyStatusChanged(ctx context.Context, docID, from, to string) error
	NotifyQueueStarted(ctx context.Context, count int) error
	NotifyQueueCompleted(ctx context.Context, processed, failed int, duration time.Duration) error
	NotifyError(ctx context.Context, err error, context string) error
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

	return &ntfyService{
		endpoint:        topic,
		client:          &http.Client{Timeout: timeout},
		ingestEnabled:   cfg.Notifications.Ingest,
		completeEnabled: cfg.Notifications.Completion,
		errorsEnabled:   cfg.Notifications.Errors,
		statusEnabled:   cfg.Notifications.StatusChanges,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint        string
	client          *http.Client
	ingestEnabled   bool
	completeEnabled bool
	errorsEnabled   bool
	statusEnabled   bool
}

func (n *ntfyService) NotifyDocumentIngested(ctx context.Context, filename string) error {
	if !n.ingestEnabled {
		return nil
	}
	data := payload{
		title:   "Docket - Document Received",
		message: fmt.Sprintf("New document: %s", strings.TrimSpace(filename)),
		tags:    []string{"docket", "ingest", "received"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyDuplicateDetected(ctx context.Context, filename, existingID string) error {
	if !n.ingestEnabled {
		return nil
	}
	data := payload{
		title:   "Docket - Duplicate Detected",
		message: fmt.Sprintf("Duplicate content: %s (matches document %s)", strings.TrimSpace(filename), existingID),
		tags:    []string{"docket", "ingest", "duplicate"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyDocumentCompleted(ctx context.Context, title string) error {
	if !n.completeEnabled {
		return nil
	}
	data := payload{
		title:   "Docket - Document Ready",
		message: fmt.Sprintf("Processing complete: %s", strings.TrimSpace(title)),
		tags:    []string{"docket", "pipeline", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyStatusChanged(ctx context.Context, docID, from, to string) error {
	if !n.statusEnabled {
		return nil
	}
	data := payload{
		title:    "Docket - Status Changed",
		message:  fmt.Sprintf("Document %s: %s -> %s", strings.TrimSpace(docID), from, to),
		tags:     []string{"docket", "pipeline", "status"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyQueueStarted(ctx context.Context, count int) error {
	data := payload{
		title:   "Docket - Processing Started",
		message: fmt.Sprintf("Started processing %d documents", count),
		tags:    []string{"docket", "queue", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyQueueCompleted(ctx context.Context, processed, failed int, duration time.Duration) error {
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	durationText := duration.String()
	if duration == 0 {
		durationText = "0s"
	}

	var title, message string
	if failed == 0 {
		title = "Docket - Queue Complete"
		message = fmt.Sprintf("Queue processing complete: %d documents processed in %s", processed, durationText)
	} else {
		title = "Docket - Queue Complete (with errors)"
		message = fmt.Sprintf("Queue processing complete: %d succeeded, %d failed in %s", processed, failed, durationText)
	}

	data := payload{
		title:   title,
		message: message,
		tags:    []string{"docket", "queue", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errorsEnabled {
		return nil
	}
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
		title:    "Docket - Error",
		message:  builder.String(),
		tags:     []string{"docket", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Docket - Test",
		message:  "Notification system test",
		tags:     []string{"docket", "test"},
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

func (noopService) NotifyDocumentIngested(context.Context, string) error                { return nil }
func (noopService) NotifyDuplicateDetected(context.Context, string, string) error       { return nil }
func (noopService) NotifyDocumentCompleted(context.Context, string) error               { return nil }
func (noopService) NotifyStatusChanged(context.Context, string, string, string) error   { return nil }
func (noopService) NotifyQueueStarted(context.Context, int) error                       { return nil }
func (noopService) NotifyQueueCompleted(context.Context, int, int, time.Duration) error { return nil }
func (noopService) NotifyError(context.Context, error, string) error                    { return nil }
func (noopService) TestNotification(context.Context) error                              { return nil }
