// Package strategy defines the interface notification channels implement
// and the registry destinations are resolved against.
package strategy

import (
	"context"

	"github.com/ironsource-mobile/devops-terraform-aws-cloudtrail-to-slack/internal/message"
)

// ChannelSender delivers one notification to one target of its channel.
type ChannelSender interface {
	// Send delivers the notification to the target. The target format
	// depends on the channel:
	//   - slack: incoming webhook URL
	//   - webhook: any HTTP(S) URL accepting JSON
	//   - email: email address(es) as a comma-separated string
	Send(ctx context.Context, target string, n *message.Notification) error

	// Type returns the channel name this sender handles.
	Type() string
}

// Registry maps channel names to their senders.
type Registry struct {
	senders map[string]ChannelSender
}

func NewRegistry() *Registry {
	return &Registry{
		senders: make(map[string]ChannelSender),
	}
}

func (r *Registry) Register(sender ChannelSender) {
	r.senders[sender.Type()] = sender
}

func (r *Registry) Get(channel string) (ChannelSender, bool) {
	sender, ok := r.senders[channel]
	return sender, ok
}

// List returns all registered channel names.
func (r *Registry) List() []string {
	channels := make([]string, 0, len(r.senders))
	for c := range r.senders {
		channels = append(channels, c)
	}
	return channels
}
