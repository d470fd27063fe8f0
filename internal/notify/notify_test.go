package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ironsource-mobile/devops-terraform-aws-cloudtrail-to-slack/internal/message"
	"github.com/ironsource-mobile/devops-terraform-aws-cloudtrail-to-slack/internal/notify/retry"
	"github.com/ironsource-mobile/devops-terraform-aws-cloudtrail-to-slack/internal/notify/strategy"
)

type fakeSender struct {
	channel string
	targets []string
	err     error
}

func (f *fakeSender) Send(ctx context.Context, target string, n *message.Notification) error {
	f.targets = append(f.targets, target)
	return f.err
}

func (f *fakeSender) Type() string { return f.channel }

// fastRetry keeps test runs from sleeping through real backoff windows.
func fastRetry() retry.Config {
	return retry.Config{
		MaxRetries:     2,
		InitialBackoff: 0,
		BackoffFactor:  1.0,
		MaxBackoff:     0,
	}
}

func newTestNotifier(routes []Route, senders ...*fakeSender) *Notifier {
	registry := strategy.NewRegistry()
	for _, s := range senders {
		registry.Register(s)
	}
	n := NewWithRegistry(registry, "https://hooks.slack.com/services/default", routes)
	n.retryCfg = fastRetry()
	return n
}

func TestResolve(t *testing.T) {
	routes := []Route{
		{Accounts: []string{"111111111111"}, Channel: "slack", Target: "https://hooks.slack.com/services/prod"},
		{Accounts: []string{"111111111111", "222222222222"}, Channel: "email", Target: "ops@example.com"},
		{Accounts: []string{"333333333333"}, Channel: "webhook", Target: "https://alerts.internal/hook"},
	}
	n := newTestNotifier(routes)

	tests := []struct {
		name      string
		accountID string
		want      []Destination
	}{
		{
			name:      "account with two routes gets both destinations",
			accountID: "111111111111",
			want: []Destination{
				{Channel: "slack", Target: "https://hooks.slack.com/services/prod"},
				{Channel: "email", Target: "ops@example.com"},
			},
		},
		{
			name:      "account with one route",
			accountID: "333333333333",
			want:      []Destination{{Channel: "webhook", Target: "https://alerts.internal/hook"}},
		},
		{
			name:      "unknown account falls back to default",
			accountID: "999999999999",
			want:      []Destination{{Channel: "slack", Target: "https://hooks.slack.com/services/default"}},
		},
		{
			name:      "empty account falls back to default",
			accountID: "",
			want:      []Destination{{Channel: "slack", Target: "https://hooks.slack.com/services/default"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := n.resolve(tt.accountID)
			if len(got) != len(tt.want) {
				t.Fatalf("resolve(%q) returned %d destinations, want %d", tt.accountID, len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("resolve(%q)[%d] = %+v, want %+v", tt.accountID, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSendRoutesByAccount(t *testing.T) {
	slackSender := &fakeSender{channel: "slack"}
	emailSender := &fakeSender{channel: "email"}
	routes := []Route{
		{Accounts: []string{"111111111111"}, Channel: "email", Target: "secops@example.com"},
	}
	n := newTestNotifier(routes, slackSender, emailSender)

	msg := &message.Notification{ID: "n-1", Kind: message.KindEvent, AccountID: "111111111111"}
	if err := n.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if len(emailSender.targets) != 1 || emailSender.targets[0] != "secops@example.com" {
		t.Errorf("email sender targets = %v, want [secops@example.com]", emailSender.targets)
	}
	if len(slackSender.targets) != 0 {
		t.Errorf("slack sender should not be called for routed account, got %v", slackSender.targets)
	}
}

func TestSendFallsBackToDefault(t *testing.T) {
	slackSender := &fakeSender{channel: "slack"}
	n := newTestNotifier(nil, slackSender)

	msg := &message.Notification{ID: "n-2", Kind: message.KindEvent, AccountID: "999999999999"}
	if err := n.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if len(slackSender.targets) != 1 || slackSender.targets[0] != "https://hooks.slack.com/services/default" {
		t.Errorf("slack sender targets = %v, want default hook", slackSender.targets)
	}
}

func TestSendPartialFailureSucceeds(t *testing.T) {
	slackSender := &fakeSender{channel: "slack", err: errors.New("webhook returned status 500")}
	emailSender := &fakeSender{channel: "email"}
	routes := []Route{
		{Accounts: []string{"111111111111"}, Channel: "slack", Target: "https://hooks.slack.com/services/prod"},
		{Accounts: []string{"111111111111"}, Channel: "email", Target: "ops@example.com"},
	}
	n := newTestNotifier(routes, slackSender, emailSender)

	msg := &message.Notification{ID: "n-3", Kind: message.KindEvent, AccountID: "111111111111"}
	if err := n.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send() should succeed when at least one destination worked, got %v", err)
	}
	if len(emailSender.targets) != 1 {
		t.Errorf("email sender should still be called, targets = %v", emailSender.targets)
	}
}

func TestSendAllFailuresError(t *testing.T) {
	slackSender := &fakeSender{channel: "slack", err: errors.New("invalid webhook URL")}
	n := newTestNotifier(nil, slackSender)

	msg := &message.Notification{ID: "n-4", Kind: message.KindEvent}
	err := n.Send(context.Background(), msg)
	if err == nil {
		t.Fatal("Send() should fail when every destination failed")
	}
	if !strings.Contains(err.Error(), "all deliveries failed") {
		t.Errorf("error = %v, want all-deliveries-failed", err)
	}
}

func TestSendUnknownChannel(t *testing.T) {
	routes := []Route{
		{Accounts: []string{"111111111111"}, Channel: "pager", Target: "oncall"},
	}
	n := newTestNotifier(routes)

	msg := &message.Notification{ID: "n-5", Kind: message.KindEvent, AccountID: "111111111111"}
	err := n.Send(context.Background(), msg)
	if err == nil {
		t.Fatal("Send() should fail when the only destination has no registered sender")
	}
	if !strings.Contains(err.Error(), "unknown channel") {
		t.Errorf("error = %v, want unknown channel", err)
	}
}

func TestSendRetriesTransientFailures(t *testing.T) {
	registry := strategy.NewRegistry()
	sender := &countingSender{channel: "slack", failures: 2, err: errors.New("connection refused")}
	registry.Register(sender)
	n := NewWithRegistry(registry, "https://hooks.slack.com/services/default", nil)
	n.retryCfg = retry.Config{MaxRetries: 3, InitialBackoff: 0, BackoffFactor: 1.0, MaxBackoff: 0}

	msg := &message.Notification{ID: "n-6", Kind: message.KindEvent}
	if err := n.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send() error = %v, want success after retries", err)
	}
	if sender.calls != 3 {
		t.Errorf("sender called %d times, want 3", sender.calls)
	}
}

type countingSender struct {
	channel  string
	calls    int
	failures int
	err      error
}

func (c *countingSender) Send(ctx context.Context, target string, n *message.Notification) error {
	c.calls++
	if c.calls <= c.failures {
		return c.err
	}
	return nil
}

func (c *countingSender) Type() string { return c.channel }
