// Package notify delivers one-shot "new weather available" notifications.
// Delivery is fire-and-forget from the sync path's perspective.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const httpTimeout = 10 * time.Second

// Notification is a one-line summary of the nearest upcoming day, with the
// date it deep-links to.
type Notification struct {
	Title string    `json:"title"`
	Body  string    `json:"body"`
	Date  time.Time `json:"date"`
}

// Notifier shows a notification to the user.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// WebhookNotifier POSTs notifications as JSON to a configured endpoint.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// NewWebhookNotifier constructs a WebhookNotifier for the given URL.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: httpTimeout},
	}
}

// Notify delivers n to the webhook endpoint.
func (w *WebhookNotifier) Notify(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshaling notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", w.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("POST %s returned status %d", w.url, resp.StatusCode)
	}
	return nil
}

// LogNotifier writes notifications to the log. Used when no webhook is
// configured.
type LogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier constructs a LogNotifier.
func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

// Notify logs n.
func (l *LogNotifier) Notify(_ context.Context, n Notification) error {
	l.log.Info("notification", "title", n.Title, "body", n.Body, "date", n.Date.Format(time.DateOnly))
	return nil
}
