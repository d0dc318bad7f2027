package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// WebhookNotifier POSTs alerts as JSON to a generic HTTP endpoint,
// dropping alerts beyond perMinute.
type WebhookNotifier struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
	log     *slog.Logger
}

// NewWebhookNotifier creates a webhook notifier. perMinute ≤ 0 disables throttling.
func NewWebhookNotifier(url string, perMinute int, log *slog.Logger) *WebhookNotifier {
	limit := rate.Inf
	burst := 1
	if perMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(perMinute))
		burst = perMinute
	}
	return &WebhookNotifier{
		url: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter: rate.NewLimiter(limit, burst),
		log:     log,
	}
}

func (w *WebhookNotifier) Send(ctx context.Context, alert Alert) error {
	if !w.limiter.Allow() {
		return ErrThrottled
	}

	payload := map[string]interface{}{
		"level":   string(alert.Level),
		"title":   alert.Title,
		"message": alert.Message,
		"ts":      time.Now().UTC().Format(time.RFC3339Nano),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("webhook: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook: unexpected status %d", resp.StatusCode)
	}

	w.log.Debug("webhook alert sent", "url", w.url, "title", alert.Title)
	return nil
}
