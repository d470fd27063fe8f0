// Package email delivers notifications by email through a provider
// registry, SES first with Resend as fallback.
package email

import (
	"context"
	"fmt"
	"strings"

	"github.com/ironsource-mobile/devops-terraform-aws-cloudtrail-to-slack/internal/message"
	"github.com/ironsource-mobile/devops-terraform-aws-cloudtrail-to-slack/internal/notify/email/provider"
	"github.com/ironsource-mobile/devops-terraform-aws-cloudtrail-to-slack/internal/notify/payload"
)

// Sender renders notifications as plain-text email and hands them to the
// provider registry.
type Sender struct {
	registry *provider.Registry
	from     string
}

// NewSender creates the email sender. SES is primary and Resend the
// fallback; either being unconfigured is fine as long as one works.
func NewSender(from string) *Sender {
	registry := provider.NewRegistry()
	registry.Register(provider.NewSESProvider())
	registry.Register(provider.NewResendProvider())

	// Both names were just registered.
	_ = registry.SetPrimary("ses")
	_ = registry.SetFallback("resend")

	return &Sender{
		registry: registry,
		from:     from,
	}
}

// NewSenderWithRegistry creates an email sender over a custom registry.
func NewSenderWithRegistry(registry *provider.Registry, from string) *Sender {
	return &Sender{
		registry: registry,
		from:     from,
	}
}

// Type returns the channel name this sender handles.
func (s *Sender) Type() string {
	return "email"
}

// Send emails the notification to the addresses in target, a
// comma-separated list.
func (s *Sender) Send(ctx context.Context, target string, n *message.Notification) error {
	if target == "" {
		return fmt.Errorf("email recipient is required")
	}
	if s.from == "" {
		return fmt.Errorf("email sender address is required (set EMAIL_FROM)")
	}

	recipients := parseRecipients(target)
	if len(recipients) == 0 {
		return fmt.Errorf("no valid email recipients in %q", target)
	}
	for _, recipient := range recipients {
		if !strings.Contains(recipient, "@") {
			return fmt.Errorf("invalid email address: %q", recipient)
		}
	}

	emailPayload := payload.BuildEmailPayload(n)
	return s.registry.Send(ctx, &provider.EmailRequest{
		From:    s.from,
		To:      recipients,
		Subject: emailPayload.Subject,
		Body:    emailPayload.Body,
	})
}

func parseRecipients(target string) []string {
	var recipients []string
	for _, part := range strings.Split(target, ",") {
		if part = strings.TrimSpace(part); part != "" {
			recipients = append(recipients, part)
		}
	}
	return recipients
}
