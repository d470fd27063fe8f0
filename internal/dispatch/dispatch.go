// Package dispatch orchestrates the processing of S3 change notifications:
// it classifies records, retrieves the CloudTrail log batches they point
// at, evaluates each log event against the rules, and hands matches to the
// notifier. Failures never escape HandleBatch; they are reported as a
// failure notification and the batch counts as handled.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ironsource-mobile/devops-terraform-aws-cloudtrail-to-slack/internal/events"
	"github.com/ironsource-mobile/devops-terraform-aws-cloudtrail-to-slack/internal/flatten"
	"github.com/ironsource-mobile/devops-terraform-aws-cloudtrail-to-slack/internal/message"
	"github.com/ironsource-mobile/devops-terraform-aws-cloudtrail-to-slack/internal/rules"
)

// Dispatcher drives the pipeline for one notification batch at a time.
type Dispatcher struct {
	ruleset    rules.Ruleset
	fetcher    LogFetcher
	notifier   Notifier
	suppressor Suppressor
	publisher  Publisher
	metrics    MetricsRecorder

	notifyEvalErrors bool
}

// NewDispatcher wires the batch pipeline. suppressor, publisher, and m may
// each be nil: a nil suppressor never suppresses, a nil publisher disables
// the downstream tee, and nil metrics are discarded. notifyEvalErrors
// controls whether rule evaluation errors produce notifications of their
// own; they are always logged.
func NewDispatcher(
	ruleset rules.Ruleset,
	fetcher LogFetcher,
	notifier Notifier,
	suppressor Suppressor,
	publisher Publisher,
	m MetricsRecorder,
	notifyEvalErrors bool,
) *Dispatcher {
	if m == nil {
		m = &NoOpMetrics{}
	}
	return &Dispatcher{
		ruleset:          ruleset,
		fetcher:          fetcher,
		notifier:         notifier,
		suppressor:       suppressor,
		publisher:        publisher,
		metrics:          m,
		notifyEvalErrors: notifyEvalErrors,
	}
}

// HandleBatch processes one S3 change notification payload. It never fails
// outward: any error, panics included, becomes a single failure
// notification plus a log entry, and the batch counts as handled. Callers
// acknowledge their input unconditionally.
func (d *Dispatcher) HandleBatch(ctx context.Context, payload []byte) {
	start := time.Now()
	d.metrics.RecordReceived()

	defer func() {
		if r := recover(); r != nil {
			d.reportFailure(ctx, fmt.Errorf("panic while processing batch: %v", r), payload)
		}
	}()

	if err := d.processBatch(ctx, payload); err != nil {
		d.reportFailure(ctx, err, payload)
		return
	}

	d.metrics.RecordProcessed(time.Since(start))
}

// reportFailure emits the one failure notification a broken batch gets.
// There is nothing above this to report to, so a delivery failure here is
// only logged.
func (d *Dispatcher) reportFailure(ctx context.Context, err error, payload []byte) {
	d.metrics.RecordError()
	slog.Error("Failed to process notification batch", "error", err)

	n := message.ForFailure(err, payload)
	if sendErr := d.notifier.Send(ctx, n); sendErr != nil {
		slog.Error("Failed to deliver failure notification",
			"error", sendErr,
			"cause", err,
		)
	}
}

func (d *Dispatcher) processBatch(ctx context.Context, payload []byte) error {
	notification, err := events.Parse(payload)
	if err != nil {
		return err
	}
	slog.Debug("Processing change notification", "records", len(notification.Records))

	for _, rec := range notification.Records {
		switch rec.Classify() {
		case events.KindRemoved:
			if err := d.handleRemoval(ctx, rec); err != nil {
				return err
			}
		case events.KindCreated:
			if err := d.handleCreation(ctx, rec); err != nil {
				return err
			}
		default:
			slog.Debug("Skipping unhandled record", "event_name", rec.EventName)
		}
	}
	return nil
}

// handleRemoval notifies about a removed object directly. Audit logs are
// not supposed to disappear, so removals bypass rules and suppression, and
// digest objects are not exempt.
func (d *Dispatcher) handleRemoval(ctx context.Context, rec events.Record) error {
	n := message.ForRemoval(rec)
	if err := d.notifier.Send(ctx, n); err != nil {
		return fmt.Errorf("notifying object removal: %w", err)
	}

	d.metrics.RecordPublished()
	d.metrics.IncrementCustom("removal_notifications")
	slog.Info("Notified object removal",
		"event_name", rec.EventName,
		"key", n.SourceKey,
		"principal", rec.UserIdentity.PrincipalID,
	)
	return nil
}

// handleCreation retrieves the log batch a creation record points at and
// runs every embedded event through the rules.
func (d *Dispatcher) handleCreation(ctx context.Context, rec events.Record) error {
	if rec.S3 == nil || rec.S3.Bucket.Name == "" {
		return fmt.Errorf("record %q has no s3 section", rec.EventName)
	}

	batch, err := d.fetcher.Fetch(ctx, rec.S3.Bucket.Name, rec.S3.Object.Key)
	if err != nil {
		return err
	}
	if batch == nil {
		return nil
	}

	d.metrics.IncrementCustom("log_batches_fetched")

	for _, raw := range batch.Events {
		if err := d.processLogEvent(ctx, raw, batch.Key); err != nil {
			return err
		}
	}
	return nil
}

// processLogEvent evaluates one CloudTrail event and notifies when it
// matches. Rule evaluation errors are reported before the match outcome is
// applied, so a broken rule stays visible even when another rule ignores
// the event.
func (d *Dispatcher) processLogEvent(ctx context.Context, raw map[string]any, sourceKey string) error {
	flat := flatten.Flatten(raw)
	result := d.ruleset.Evaluate(flat)

	d.metrics.IncrementCustom("events_evaluated")

	for _, evalErr := range result.Errors {
		d.metrics.IncrementCustom("rule_evaluation_errors")
		slog.Warn("Rule failed to evaluate",
			"rule", evalErr.Rule,
			"error", evalErr.Err,
			"source_key", sourceKey,
		)
		if !d.notifyEvalErrors {
			continue
		}
		n := message.ForRuleError(evalErr.Rule, evalErr.Err, sourceKey, strField(flat, "userIdentity.accountId"))
		if err := d.notifier.Send(ctx, n); err != nil {
			return fmt.Errorf("notifying rule evaluation error: %w", err)
		}
		d.metrics.RecordPublished()
	}

	if result.Ignored {
		d.metrics.IncrementCustom("events_ignored")
		slog.Info("Event matched ignore rule",
			"rule", result.MatchedRule,
			"event_name", strField(flat, "eventName"),
		)
		return nil
	}
	if !result.Process {
		slog.Debug("Event did not match any rule",
			"event_name", strField(flat, "eventName"),
			"principal", strField(flat, "userIdentity.principalId"),
		)
		return nil
	}

	d.metrics.IncrementCustom("events_matched")

	if eventID := strField(flat, "eventID"); eventID != "" && d.suppressor != nil && d.suppressor.Seen(ctx, eventID) {
		d.metrics.IncrementCustom("events_suppressed")
		slog.Info("Suppressing duplicate event",
			"event_id", eventID,
			"rule", result.MatchedRule,
		)
		return nil
	}

	// Access-denied events get their full body logged so the blocked call
	// can be reconstructed without opening the log file.
	if code := strField(flat, "errorCode"); strings.Contains(code, "AccessDenied") {
		if body, err := json.Marshal(raw); err == nil {
			slog.Info("Access denied event", "event", string(body))
		}
	}

	n := message.ForEvent(flat, sourceKey)

	if d.publisher != nil {
		matched := events.NewMatchedEvent(n.ID, sourceKey, result.MatchedRule, flat)
		if err := d.publisher.Publish(ctx, matched); err != nil {
			slog.Error("Failed to publish matched event",
				"notification_id", n.ID,
				"error", err,
			)
		}
	}

	if err := d.notifier.Send(ctx, n); err != nil {
		return fmt.Errorf("notifying matched event: %w", err)
	}

	d.metrics.RecordPublished()
	slog.Info("Notified matched event",
		"notification_id", n.ID,
		"event_name", strField(flat, "eventName"),
		"account_id", n.AccountID,
		"rule", result.MatchedRule,
	)
	return nil
}

func strField(event flatten.Flat, key string) string {
	if v, ok := event[key].(string); ok {
		return v
	}
	return ""
}
