// Package webhook delivers notifications to generic HTTP endpoints as JSON.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ironsource-mobile/devops-terraform-aws-cloudtrail-to-slack/internal/message"
	"github.com/ironsource-mobile/devops-terraform-aws-cloudtrail-to-slack/internal/notify/payload"
	"github.com/ironsource-mobile/devops-terraform-aws-cloudtrail-to-slack/internal/notify/validation"
)

// Sender posts notifications to webhook endpoints.
type Sender struct {
	httpClient *http.Client
}

func NewSender() *Sender {
	return &Sender{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Type returns the channel name this sender handles.
func (s *Sender) Type() string {
	return "webhook"
}

// Placeholder hosts that show up in half-finished routing tables; sending
// to them only produces noise and DNS errors.
var dummyWebhookHosts = []string{
	"example.com",
	"example.org",
	"example.net",
	"test.com",
	"localhost",
	"invalid",
}

func isDummyWebhookURL(target string) bool {
	parsed, err := url.Parse(target)
	if err != nil {
		return false
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return false
	}
	for _, dummy := range dummyWebhookHosts {
		if host == dummy || strings.HasSuffix(host, "."+dummy) {
			return true
		}
	}
	return false
}

// Send posts the notification as JSON to the URL in target.
func (s *Sender) Send(ctx context.Context, target string, n *message.Notification) error {
	if target == "" {
		return fmt.Errorf("webhook URL is required")
	}
	if !validation.IsValidURL(target) {
		return fmt.Errorf("invalid webhook URL: %q (must be an HTTP/HTTPS URL)", target)
	}
	if isDummyWebhookURL(target) {
		slog.Info("Skipping dummy webhook endpoint",
			"webhook_url", target,
			"notification_id", n.ID,
		)
		return nil
	}

	webhookPayload := payload.BuildWebhookPayload(n)
	jsonData, err := json.Marshal(webhookPayload)
	if err != nil {
		return fmt.Errorf("marshaling webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("creating webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		slog.Error("Failed to send webhook notification",
			"error", err,
			"webhook_url", validation.MaskURL(target),
			"notification_id", n.ID,
		)
		return fmt.Errorf("sending webhook notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Error("Webhook returned error status",
			"status_code", resp.StatusCode,
			"webhook_url", validation.MaskURL(target),
			"notification_id", n.ID,
		)
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	slog.Info("Sent webhook notification",
		"webhook_url", validation.MaskURL(target),
		"notification_id", n.ID,
		"kind", n.Kind,
	)
	return nil
}
