// Package consumer runs the worker-mode intake loop: long-poll an SQS
// queue for S3 change notifications and hand each message body to the
// dispatcher.
package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// receiveErrorBackoff is how long the loop waits after a failed receive
// before polling again.
const receiveErrorBackoff = 5 * time.Second

// Client is the slice of the SQS API the consumer uses.
type Client interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// BatchHandler processes one notification payload. It reports failures
// out-of-band and never returns them, so the consumer can acknowledge
// every message it hands over.
type BatchHandler interface {
	HandleBatch(ctx context.Context, payload []byte)
}

// Consumer long-polls one SQS queue for S3 change notifications.
type Consumer struct {
	client      Client
	handler     BatchHandler
	queueURL    string
	waitTime    int32
	maxMessages int32
}

// NewConsumer creates a consumer for the queue. waitTimeSeconds and
// maxMessages are clamped to the ranges SQS accepts, 0-20 seconds and
// 1-10 messages.
func NewConsumer(client Client, handler BatchHandler, queueURL string, waitTimeSeconds, maxMessages int32) (*Consumer, error) {
	if queueURL == "" {
		return nil, fmt.Errorf("queue URL cannot be empty")
	}

	if waitTimeSeconds < 0 {
		waitTimeSeconds = 0
	}
	if waitTimeSeconds > 20 {
		waitTimeSeconds = 20
	}
	if maxMessages < 1 {
		maxMessages = 1
	}
	if maxMessages > 10 {
		maxMessages = 10
	}

	return &Consumer{
		client:      client,
		handler:     handler,
		queueURL:    queueURL,
		waitTime:    waitTimeSeconds,
		maxMessages: maxMessages,
	}, nil
}

// Run polls until ctx ends. Every received message is dispatched and then
// deleted regardless of the dispatch outcome; the dispatcher reports its
// own failures, so redelivering a broken batch would only repeat them.
func (c *Consumer) Run(ctx context.Context) error {
	slog.Info("Starting notification consumer",
		"queue_url", c.queueURL,
		"wait_time_seconds", c.waitTime,
		"max_messages", c.maxMessages,
	)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Notification consumer stopped")
			return nil
		default:
			if err := c.poll(ctx); err != nil {
				if ctx.Err() != nil {
					slog.Info("Notification consumer stopped")
					return nil
				}
				slog.Error("Failed to receive messages", "error", err)
				select {
				case <-ctx.Done():
				case <-time.After(receiveErrorBackoff):
				}
			}
		}
	}
}

// poll performs one receive and processes everything it returned.
func (c *Consumer) poll(ctx context.Context) error {
	out, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            &c.queueURL,
		MaxNumberOfMessages: c.maxMessages,
		WaitTimeSeconds:     c.waitTime,
	})
	if err != nil {
		return fmt.Errorf("receiving messages: %w", err)
	}

	for _, msg := range out.Messages {
		var body string
		if msg.Body != nil {
			body = *msg.Body
		}

		c.handler.HandleBatch(ctx, []byte(body))

		if _, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
			QueueUrl:      &c.queueURL,
			ReceiptHandle: msg.ReceiptHandle,
		}); err != nil {
			// The message will be redelivered after the visibility
			// timeout and processed again.
			slog.Error("Failed to delete message",
				"message_id", strValue(msg.MessageId),
				"error", err,
			)
		}
	}
	return nil
}

func strValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
