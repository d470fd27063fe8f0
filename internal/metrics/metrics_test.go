package metrics

import (
	"context"
	"testing"
	"time"
)

func TestGetSnapshotCounters(t *testing.T) {
	c := NewCollector("cloudtrail-to-slack", nil)

	c.RecordReceived()
	c.RecordReceived()
	c.RecordProcessed(10 * time.Millisecond)
	c.RecordPublished()
	c.RecordError()
	c.IncrementCustom("events_matched")
	c.IncrementCustom("events_matched")
	c.IncrementCustom("events_ignored")

	snap := c.GetSnapshot()

	if snap.ServiceName != "cloudtrail-to-slack" {
		t.Errorf("service name = %q", snap.ServiceName)
	}
	if snap.BatchesReceived != 2 {
		t.Errorf("batches received = %d, want 2", snap.BatchesReceived)
	}
	if snap.BatchesProcessed != 1 {
		t.Errorf("batches processed = %d, want 1", snap.BatchesProcessed)
	}
	if snap.NotificationsSent != 1 {
		t.Errorf("notifications sent = %d, want 1", snap.NotificationsSent)
	}
	if snap.ProcessingErrors != 1 {
		t.Errorf("processing errors = %d, want 1", snap.ProcessingErrors)
	}
	if snap.CustomCounters["events_matched"] != 2 {
		t.Errorf("events_matched = %d, want 2", snap.CustomCounters["events_matched"])
	}
	if snap.CustomCounters["events_ignored"] != 1 {
		t.Errorf("events_ignored = %d, want 1", snap.CustomCounters["events_ignored"])
	}
	if snap.AvgBatchLatencyNs != float64((10 * time.Millisecond).Nanoseconds()) {
		t.Errorf("avg latency = %f", snap.AvgBatchLatencyNs)
	}
	if snap.Status != "healthy" {
		t.Errorf("status = %q, want healthy", snap.Status)
	}
}

func TestWriteMetricsWithoutRedis(t *testing.T) {
	c := NewCollector("cloudtrail-to-slack", nil)
	c.RecordReceived()

	// Must be a no-op, not a panic.
	c.writeMetrics(context.Background())
}
