package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"edgegate/logger"
)

// Alerter receives operator-facing alerts. Implementations must not block
// the caller.
type Alerter interface {
	Alert(msg string, severity string)
}

type WebhookMessage struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Severity  string    `json:"severity"`
}

type Webhook struct {
	URL    string
	Client *http.Client
}

// NewWebhook returns nil when url is empty so callers can skip alerting.
func NewWebhook(url string) *Webhook {
	if url == "" {
		return nil
	}
	return &Webhook{
		URL:    url,
		Client: &http.Client{Timeout: 5 * time.Second},
	}
}

// Send posts one alert and waits for the response.
func (w *Webhook) Send(ctx context.Context, msg string, severity string) error {
	payload := WebhookMessage{
		Text:      fmt.Sprintf("[edgegate] %s", msg),
		Timestamp: time.Now(),
		Severity:  severity,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.Client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("webhook returned %s", resp.Status)
	}
	return nil
}

// Alert sends asynchronously so request handling never waits on the webhook.
func (w *Webhook) Alert(msg string, severity string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), w.Client.Timeout)
		defer cancel()
		if err := w.Send(ctx, msg, severity); err != nil {
			logger.Error("Failed to send webhook alert", "err", err)
		}
	}()
}
