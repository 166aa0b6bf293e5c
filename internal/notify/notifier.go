// Package notify decides how notification intents leave the process. The
// timer core only decides that a notification is due; delivery mechanics
// (channel, retries, formatting) belong to whatever consumes the webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Notifier delivers a message to a household member. An error means "not
// delivered"; callers decide whether to retry on a later pass.
type Notifier interface {
	Notify(ctx context.Context, userID, subject, message string) error
}

// Webhook posts notification intents as JSON to a configured endpoint
// (e.g. a household chat or email bridge).
type Webhook struct {
	url    string
	client *http.Client
	logger zerolog.Logger
}

// NewWebhook creates a webhook notifier with a bounded request timeout.
func NewWebhook(url string, timeout time.Duration, logger zerolog.Logger) *Webhook {
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger.With().Str("component", "notifier").Logger(),
	}
}

type webhookPayload struct {
	UserID  string `json:"user_id"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// Notify posts the notification; any non-2xx response counts as failure.
func (w *Webhook) Notify(ctx context.Context, userID, subject, message string) error {
	body, err := json.Marshal(webhookPayload{
		UserID:  userID,
		Subject: subject,
		Message: message,
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("post notification: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("notification endpoint returned %d", resp.StatusCode)
	}

	w.logger.Debug().Str("user_id", userID).Str("subject", subject).Msg("Notification delivered")
	return nil
}

// LogNotifier writes notifications to the log only. Useful for development
// and as a safe default when no webhook is configured.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier creates a log-only notifier.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "notifier").Logger()}
}

// Notify logs the notification and always succeeds.
func (n *LogNotifier) Notify(ctx context.Context, userID, subject, message string) error {
	n.logger.Info().
		Str("user_id", userID).
		Str("subject", subject).
		Str("message", message).
		Msg("Notification")
	return nil
}
