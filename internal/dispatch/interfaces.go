// Package dispatch orchestrates the processing of S3 change notifications.
package dispatch

import (
	"context"

	"github.com/ironsource-mobile/devops-terraform-aws-cloudtrail-to-slack/internal/events"
	"github.com/ironsource-mobile/devops-terraform-aws-cloudtrail-to-slack/internal/message"
	"github.com/ironsource-mobile/devops-terraform-aws-cloudtrail-to-slack/internal/trail"
)

// LogFetcher retrieves and decodes one CloudTrail log object.
type LogFetcher interface {
	// Fetch returns the decoded log batch for the object. A nil batch with
	// a nil error means the object is not a log file and was skipped.
	Fetch(ctx context.Context, bucket, key string) (*trail.LogBatch, error)
}

// Notifier delivers one notification to its routed destinations.
type Notifier interface {
	Send(ctx context.Context, n *message.Notification) error
}

// Suppressor reports whether an event already produced a notification.
// Implementations fail open: when they cannot tell, they return false.
type Suppressor interface {
	Seen(ctx context.Context, eventID string) bool
}

// Publisher tees matched events to a downstream pipeline.
type Publisher interface {
	Publish(ctx context.Context, ev *events.MatchedEvent) error
}
