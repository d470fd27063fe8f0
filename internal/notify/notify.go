// Package notify routes notifications by originating account and delivers
// them through the registered channel senders.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ironsource-mobile/devops-terraform-aws-cloudtrail-to-slack/internal/message"
	"github.com/ironsource-mobile/devops-terraform-aws-cloudtrail-to-slack/internal/notify/email"
	"github.com/ironsource-mobile/devops-terraform-aws-cloudtrail-to-slack/internal/notify/retry"
	"github.com/ironsource-mobile/devops-terraform-aws-cloudtrail-to-slack/internal/notify/slack"
	"github.com/ironsource-mobile/devops-terraform-aws-cloudtrail-to-slack/internal/notify/strategy"
	"github.com/ironsource-mobile/devops-terraform-aws-cloudtrail-to-slack/internal/notify/validation"
	"github.com/ironsource-mobile/devops-terraform-aws-cloudtrail-to-slack/internal/notify/webhook"
)

// Destination is one channel/target pair a notification is delivered to.
type Destination struct {
	Channel string
	Target  string
}

// Route binds originating account IDs to a destination. An account may
// appear in several routes; it then notifies all of them.
type Route struct {
	Accounts []string `json:"accounts"`
	Channel  string   `json:"channel"`
	Target   string   `json:"target"`
}

// Notifier delivers notifications to every destination routed for their
// account, falling back to the default Slack webhook.
type Notifier struct {
	registry    *strategy.Registry
	routes      []Route
	defaultDest Destination
	retryCfg    retry.Config
}

// New creates a Notifier with the slack, webhook, and email channels
// registered.
func New(defaultHookURL string, routes []Route, emailFrom string) *Notifier {
	registry := strategy.NewRegistry()
	registry.Register(slack.NewSender())
	registry.Register(webhook.NewSender())
	registry.Register(email.NewSender(emailFrom))
	return NewWithRegistry(registry, defaultHookURL, routes)
}

// NewWithRegistry creates a Notifier over a custom sender registry.
func NewWithRegistry(registry *strategy.Registry, defaultHookURL string, routes []Route) *Notifier {
	return &Notifier{
		registry:    registry,
		routes:      routes,
		defaultDest: Destination{Channel: "slack", Target: defaultHookURL},
		retryCfg:    retry.DefaultConfig(),
	}
}

// resolve returns every destination routed for the account. Unknown and
// empty accounts get the default destination.
func (n *Notifier) resolve(accountID string) []Destination {
	var dests []Destination
	if accountID != "" {
		for _, route := range n.routes {
			for _, acct := range route.Accounts {
				if acct == accountID {
					dests = append(dests, Destination{Channel: route.Channel, Target: route.Target})
					break
				}
			}
		}
	}
	if len(dests) == 0 {
		return []Destination{n.defaultDest}
	}
	return dests
}

// Send delivers one notification to all destinations for its account,
// retrying transient failures per destination. It returns an error only
// when every delivery failed, so one broken channel does not silence the
// rest.
func (n *Notifier) Send(ctx context.Context, msg *message.Notification) error {
	dests := n.resolve(msg.AccountID)

	var errs []string
	successes := 0
	for _, dest := range dests {
		sender, ok := n.registry.Get(dest.Channel)
		if !ok {
			slog.Warn("Unknown notification channel, skipping",
				"channel", dest.Channel,
				"notification_id", msg.ID,
			)
			errs = append(errs, fmt.Sprintf("%s: unknown channel", dest.Channel))
			continue
		}

		operation := fmt.Sprintf("send_%s_%s", dest.Channel, msg.ID)
		err := retry.WithRetry(ctx, n.retryCfg, operation, func() error {
			return sender.Send(ctx, dest.Target, msg)
		})
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s (%s): %s", dest.Channel, validation.MaskURL(dest.Target), err))
		} else {
			successes++
		}
	}

	if len(errs) > 0 && successes == 0 {
		return fmt.Errorf("all deliveries failed: %s", strings.Join(errs, "; "))
	}
	if len(errs) > 0 {
		slog.Warn("Some deliveries failed",
			"notification_id", msg.ID,
			"successful", successes,
			"failed", len(errs),
			"errors", strings.Join(errs, "; "),
		)
	}
	return nil
}
