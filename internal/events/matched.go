package events

import (
	"github.com/ironsource-mobile/devops-terraform-aws-cloudtrail-to-slack/internal/flatten"
)

// MatchedEvent is the record published downstream for each CloudTrail event
// that matched a rule. It carries the identifying fields unpacked next to
// the full flattened event so consumers can filter without decoding Event.
type MatchedEvent struct {
	NotificationID string       `json:"notification_id"`
	AccountID      string       `json:"account_id,omitempty"`
	EventName      string       `json:"event_name,omitempty"`
	EventID        string       `json:"event_id,omitempty"`
	EventTime      string       `json:"event_time,omitempty"`
	Region         string       `json:"region,omitempty"`
	SourceKey      string       `json:"source_key"`
	MatchedRule    string       `json:"matched_rule"`
	Event          flatten.Flat `json:"event"`
}

// NewMatchedEvent builds the downstream record for a flattened event that
// matched rule, keyed to the notification it produced.
func NewMatchedEvent(notificationID, sourceKey, rule string, event flatten.Flat) *MatchedEvent {
	return &MatchedEvent{
		NotificationID: notificationID,
		AccountID:      flatString(event, "userIdentity.accountId"),
		EventName:      flatString(event, "eventName"),
		EventID:        flatString(event, "eventID"),
		EventTime:      flatString(event, "eventTime"),
		Region:         flatString(event, "awsRegion"),
		SourceKey:      sourceKey,
		MatchedRule:    rule,
		Event:          event,
	}
}

func flatString(event flatten.Flat, key string) string {
	if v, ok := event[key].(string); ok {
		return v
	}
	return ""
}
