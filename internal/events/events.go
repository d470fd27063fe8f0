// Package events defines the S3 change notification types the notifier
// consumes and classifies records by their event name.
//
// The types cover the notification fields this service reads; see
// https://docs.aws.amazon.com/AmazonS3/latest/userguide/notification-content-structure.html
package events

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Notification is one S3 event notification payload, a batch of records.
type Notification struct {
	Records []Record `json:"Records"`
}

// Record describes a single change to an S3 object.
type Record struct {
	EventName    string       `json:"eventName"`
	EventSource  string       `json:"eventSource"`
	AWSRegion    string       `json:"awsRegion"`
	EventTime    string       `json:"eventTime"`
	UserIdentity UserIdentity `json:"userIdentity"`
	S3           *Entity      `json:"s3"`
}

// UserIdentity identifies who caused the change. AccountID is empty for
// changes made by AWS services and some principals.
type UserIdentity struct {
	PrincipalID string `json:"principalId"`
	AccountID   string `json:"accountId"`
}

// Entity is the s3 section of a record.
type Entity struct {
	Bucket Bucket `json:"bucket"`
	Object Object `json:"object"`
}

type Bucket struct {
	Name string `json:"name"`
	ARN  string `json:"arn,omitempty"`
}

type Object struct {
	Key  string `json:"key"`
	Size int64  `json:"size,omitempty"`
}

// Kind classifies a record by its event name prefix.
type Kind int

const (
	// KindOther covers event names this service does not handle; records
	// of this kind are skipped silently.
	KindOther Kind = iota
	KindCreated
	KindRemoved
)

// Classify maps the record's event name onto the two prefixes this service
// reacts to, ObjectCreated* and ObjectRemoved*.
func (r Record) Classify() Kind {
	switch {
	case strings.HasPrefix(r.EventName, "ObjectCreated"):
		return KindCreated
	case strings.HasPrefix(r.EventName, "ObjectRemoved"):
		return KindRemoved
	default:
		return KindOther
	}
}

type snsEnvelope struct {
	Type    string `json:"Type"`
	Message string `json:"Message"`
}

// Parse decodes an S3 change notification payload. Buckets are sometimes
// wired to a queue through an SNS topic, which wraps the notification in an
// envelope with the real payload as a JSON string; Parse unwraps one such
// envelope.
func Parse(data []byte) (Notification, error) {
	var n Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return Notification{}, fmt.Errorf("decoding s3 notification: %w", err)
	}
	if len(n.Records) > 0 {
		return n, nil
	}
	var env snsEnvelope
	if err := json.Unmarshal(data, &env); err != nil || env.Message == "" {
		return n, nil
	}
	var inner Notification
	if err := json.Unmarshal([]byte(env.Message), &inner); err != nil {
		return Notification{}, fmt.Errorf("decoding sns-wrapped s3 notification: %w", err)
	}
	return inner, nil
}
