// Package payload renders notifications into channel-specific payloads.
package payload

import (
	"fmt"
	"strings"
	"time"

	"github.com/ironsource-mobile/devops-terraform-aws-cloudtrail-to-slack/internal/message"
)

// SlackPayload is a Slack incoming-webhook message.
type SlackPayload struct {
	Text        string       `json:"text,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Attachment is a Slack message attachment.
type Attachment struct {
	Color     string  `json:"color,omitempty"`
	Title     string  `json:"title,omitempty"`
	Text      string  `json:"text,omitempty"`
	Fields    []Field `json:"fields,omitempty"`
	Footer    string  `json:"footer,omitempty"`
	Timestamp int64   `json:"ts,omitempty"`
}

// Field is a field in a Slack attachment.
type Field struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// BuildSlackPayload renders a notification as one colored attachment.
func BuildSlackPayload(n *message.Notification) SlackPayload {
	fields := make([]Field, 0, len(n.Fields))
	for _, f := range n.Fields {
		fields = append(fields, Field{Title: f.Title, Value: f.Value, Short: f.Short})
	}

	text := n.Text
	if n.Kind == message.KindFailure && text != "" {
		text = "```" + text + "```"
	}

	return SlackPayload{
		Attachments: []Attachment{
			{
				Color:  n.Color,
				Title:  n.Title,
				Text:   text,
				Fields: fields,
				Footer: n.SourceKey,
			},
		},
	}
}

// WebhookPayload is the generic JSON form posted to plain webhooks.
type WebhookPayload struct {
	ID        string            `json:"id"`
	Kind      string            `json:"kind"`
	AccountID string            `json:"account_id,omitempty"`
	Title     string            `json:"title"`
	Text      string            `json:"text,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
	SourceKey string            `json:"source_key,omitempty"`
	Timestamp string            `json:"timestamp"`
}

// BuildWebhookPayload renders a notification for generic webhook consumers.
func BuildWebhookPayload(n *message.Notification) WebhookPayload {
	fields := make(map[string]string, len(n.Fields))
	for _, f := range n.Fields {
		fields[f.Title] = f.Value
	}
	return WebhookPayload{
		ID:        n.ID,
		Kind:      string(n.Kind),
		AccountID: n.AccountID,
		Title:     n.Title,
		Text:      n.Text,
		Fields:    fields,
		SourceKey: n.SourceKey,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// EmailPayload is the subject and plain-text body of an email notification.
type EmailPayload struct {
	Subject string
	Body    string
}

// BuildEmailPayload renders a notification as a plain-text email.
func BuildEmailPayload(n *message.Notification) EmailPayload {
	var sb strings.Builder
	sb.WriteString(n.Title + "\n")
	sb.WriteString(strings.Repeat("=", len(n.Title)) + "\n\n")
	for _, f := range n.Fields {
		sb.WriteString(fmt.Sprintf("%s: %s\n", f.Title, f.Value))
	}
	if n.Text != "" {
		sb.WriteString("\n" + n.Text + "\n")
	}
	sb.WriteString(fmt.Sprintf("\nNotification ID: %s\n", n.ID))

	return EmailPayload{
		Subject: fmt.Sprintf("CloudTrail: %s", n.Title),
		Body:    sb.String(),
	}
}
