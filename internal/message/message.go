// Package message builds the channel-independent notifications this service
// delivers: matched CloudTrail events, object removals, rule evaluation
// errors, and processing failures.
package message

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/ironsource-mobile/devops-terraform-aws-cloudtrail-to-slack/internal/events"
	"github.com/ironsource-mobile/devops-terraform-aws-cloudtrail-to-slack/internal/flatten"
)

// Kind tells a channel sender which notification variant it is rendering.
type Kind string

const (
	KindEvent     Kind = "event"
	KindRemoval   Kind = "removal"
	KindRuleError Kind = "rule_error"
	KindFailure   Kind = "failure"
)

// Colors understood by chat channels.
const (
	ColorDanger  = "danger"
	ColorWarning = "warning"
	ColorGood    = "good"
)

// Field is one titled value in a notification.
type Field struct {
	Title string
	Value string
	Short bool
}

// Notification is the channel-independent form of one outbound message.
// AccountID routes it to destinations; the rest is rendered per channel.
type Notification struct {
	ID        string
	Kind      Kind
	AccountID string
	Title     string
	Color     string
	Text      string
	Fields    []Field
	SourceKey string
}

// maxInlinePayload bounds how much of a failing batch is quoted inside a
// failure notification.
const maxInlinePayload = 2000

// ForEvent builds the notification for one matched CloudTrail event. The
// event arrives flattened, the same form rules were evaluated against.
func ForEvent(event flatten.Flat, sourceKey string) *Notification {
	accountID := str(event, "userIdentity.accountId")
	eventName := str(event, "eventName")
	if eventName == "" {
		eventName = "CloudTrail"
	}

	var fields []Field
	fields = appendField(fields, "Event", eventName, true)
	fields = appendField(fields, "Account", accountID, true)
	fields = appendField(fields, "Region", str(event, "awsRegion"), true)
	fields = appendField(fields, "Time", str(event, "eventTime"), true)
	fields = appendField(fields, "Actor", actor(event), false)

	color := ColorWarning
	if errorCode := str(event, "errorCode"); errorCode != "" {
		color = ColorDanger
		fields = appendField(fields, "Error Code", errorCode, true)
		fields = appendField(fields, "Error Message", str(event, "errorMessage"), false)
	}
	fields = appendField(fields, "Source File", sourceKey, false)

	return &Notification{
		ID:        uuid.New().String(),
		Kind:      KindEvent,
		AccountID: accountID,
		Title:     fmt.Sprintf("%s event in account %s", eventName, orUnknown(accountID)),
		Color:     color,
		Fields:    fields,
		SourceKey: sourceKey,
	}
}

// ForRemoval builds the notification for an object removal record. Removals
// are reported directly, without rules, since audit logs are not supposed
// to disappear.
func ForRemoval(rec events.Record) *Notification {
	n := &Notification{
		ID:        uuid.New().String(),
		Kind:      KindRemoval,
		AccountID: rec.UserIdentity.AccountID,
		Title:     fmt.Sprintf("S3 object removed (%s)", rec.EventName),
		Color:     ColorDanger,
	}

	var fields []Field
	if rec.S3 != nil {
		n.SourceKey = rec.S3.Object.Key
		fields = appendField(fields, "Bucket", rec.S3.Bucket.Name, true)
		fields = appendField(fields, "Key", rec.S3.Object.Key, false)
	}
	fields = appendField(fields, "Principal", rec.UserIdentity.PrincipalID, true)
	fields = appendField(fields, "Account", rec.UserIdentity.AccountID, true)
	fields = appendField(fields, "Region", rec.AWSRegion, true)
	fields = appendField(fields, "Time", rec.EventTime, true)
	n.Fields = fields
	return n
}

// ForRuleError builds the notification for a rule that failed to evaluate
// against an event.
func ForRuleError(rule string, evalErr error, objectKey, accountID string) *Notification {
	var fields []Field
	fields = appendField(fields, "Rule", rule, false)
	if evalErr != nil {
		fields = appendField(fields, "Error", evalErr.Error(), false)
	}
	fields = appendField(fields, "Source File", objectKey, false)

	return &Notification{
		ID:        uuid.New().String(),
		Kind:      KindRuleError,
		AccountID: accountID,
		Title:     "Rule evaluation failed",
		Color:     ColorWarning,
		Fields:    fields,
		SourceKey: objectKey,
	}
}

// ForFailure builds the single notification emitted when processing a batch
// fails entirely. The triggering payload is quoted, truncated, so the
// message stays deliverable no matter how large the input was.
func ForFailure(err error, payload []byte) *Notification {
	var fields []Field
	if err != nil {
		fields = appendField(fields, "Error", err.Error(), false)
	}
	return &Notification{
		ID:     uuid.New().String(),
		Kind:   KindFailure,
		Title:  "Failed to process S3 notification",
		Color:  ColorDanger,
		Text:   truncate(string(payload), maxInlinePayload),
		Fields: fields,
	}
}

func appendField(fields []Field, title, value string, short bool) []Field {
	if value == "" {
		return fields
	}
	return append(fields, Field{Title: title, Value: value, Short: short})
}

// actor picks the most specific identity the event carries.
func actor(event flatten.Flat) string {
	for _, key := range []string{"userIdentity.arn", "userIdentity.principalId", "userIdentity.type"} {
		if v := str(event, key); v != "" {
			return v
		}
	}
	return ""
}

func str(event flatten.Flat, key string) string {
	if v, ok := event[key].(string); ok {
		return v
	}
	return ""
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "... (truncated)"
}
