package dispatch

import (
	"context"
	"time"

	"github.com/ironsource-mobile/devops-terraform-aws-cloudtrail-to-slack/internal/events"
	"github.com/ironsource-mobile/devops-terraform-aws-cloudtrail-to-slack/internal/message"
	"github.com/ironsource-mobile/devops-terraform-aws-cloudtrail-to-slack/internal/trail"
)

// FakeFetcher is a test fake for LogFetcher.
type FakeFetcher struct {
	Batches  map[string]*trail.LogBatch
	Err      error
	PanicMsg string
	Calls    []string
}

func (f *FakeFetcher) Fetch(ctx context.Context, bucket, key string) (*trail.LogBatch, error) {
	f.Calls = append(f.Calls, bucket+"/"+key)
	if f.PanicMsg != "" {
		panic(f.PanicMsg)
	}
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Batches[key], nil
}

// FakeNotifier is a test fake for Notifier. Every attempt is recorded in
// Sent, including failed ones.
type FakeNotifier struct {
	Sent     []*message.Notification
	SendErr  error
	SendFunc func(n *message.Notification) error
}

func (f *FakeNotifier) Send(ctx context.Context, n *message.Notification) error {
	f.Sent = append(f.Sent, n)
	if f.SendFunc != nil {
		return f.SendFunc(n)
	}
	return f.SendErr
}

// OfKind returns the recorded notifications of one kind.
func (f *FakeNotifier) OfKind(kind message.Kind) []*message.Notification {
	var out []*message.Notification
	for _, n := range f.Sent {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

// FakeSuppressor is a test fake for Suppressor.
type FakeSuppressor struct {
	SeenIDs map[string]bool
	Calls   []string
}

func (f *FakeSuppressor) Seen(ctx context.Context, eventID string) bool {
	f.Calls = append(f.Calls, eventID)
	return f.SeenIDs[eventID]
}

// FakePublisher is a test fake for Publisher.
type FakePublisher struct {
	Published  []*events.MatchedEvent
	PublishErr error
}

func (f *FakePublisher) Publish(ctx context.Context, ev *events.MatchedEvent) error {
	if f.PublishErr != nil {
		return f.PublishErr
	}
	f.Published = append(f.Published, ev)
	return nil
}

// FakeMetrics is a test fake for MetricsRecorder that tracks calls.
type FakeMetrics struct {
	ReceivedCount    int
	ProcessedCount   int
	PublishedCount   int
	ErrorCount       int
	CustomIncrements map[string]int
}

func NewFakeMetrics() *FakeMetrics {
	return &FakeMetrics{
		CustomIncrements: make(map[string]int),
	}
}

func (f *FakeMetrics) RecordReceived() {
	f.ReceivedCount++
}

func (f *FakeMetrics) RecordProcessed(_ time.Duration) {
	f.ProcessedCount++
}

func (f *FakeMetrics) RecordPublished() {
	f.PublishedCount++
}

func (f *FakeMetrics) RecordError() {
	f.ErrorCount++
}

func (f *FakeMetrics) IncrementCustom(name string) {
	f.CustomIncrements[name]++
}
