// Package slack delivers notifications to Slack Incoming Webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ironsource-mobile/devops-terraform-aws-cloudtrail-to-slack/internal/message"
	"github.com/ironsource-mobile/devops-terraform-aws-cloudtrail-to-slack/internal/notify/payload"
	"github.com/ironsource-mobile/devops-terraform-aws-cloudtrail-to-slack/internal/notify/validation"
)

// Sender posts notifications to Slack via Incoming Webhooks.
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
	return "slack"
}

// Send posts the notification to the webhook URL in target.
func (s *Sender) Send(ctx context.Context, target string, n *message.Notification) error {
	if target == "" {
		return fmt.Errorf("slack webhook URL is required")
	}
	if !validation.IsValidURL(target) {
		return fmt.Errorf("invalid slack webhook URL: %q (must be an HTTP/HTTPS URL, not a channel name)", target)
	}

	slackPayload := payload.BuildSlackPayload(n)
	jsonData, err := json.Marshal(slackPayload)
	if err != nil {
		return fmt.Errorf("marshaling slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("creating slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		slog.Error("Failed to send Slack notification",
			"error", err,
			"webhook_url", validation.MaskURL(target),
			"notification_id", n.ID,
		)
		return fmt.Errorf("sending slack notification to %s: %w", validation.MaskURL(target), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Error("Slack webhook returned error status",
			"status_code", resp.StatusCode,
			"notification_id", n.ID,
		)
		return fmt.Errorf("slack webhook returned status %d", resp.StatusCode)
	}

	slog.Info("Sent Slack notification",
		"notification_id", n.ID,
		"kind", n.Kind,
		"account_id", n.AccountID,
	)
	return nil
}
