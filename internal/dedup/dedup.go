// Package dedup suppresses duplicate notifications. CloudTrail delivers
// log files at least once, so the same event can show up in more than one
// batch; the suppressor remembers notified event IDs in Redis for a TTL.
package dedup

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// KeyPrefix is the Redis key prefix for notified event IDs.
	KeyPrefix = "notified:"
	// DefaultTTL bounds how long an event ID stays suppressed.
	DefaultTTL = time.Hour
)

// RedisSuppressor is a best-effort duplicate gate backed by Redis.
type RedisSuppressor struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSuppressor creates a suppressor over an existing Redis client.
// A non-positive ttl falls back to DefaultTTL.
func NewRedisSuppressor(client *redis.Client, ttl time.Duration) *RedisSuppressor {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisSuppressor{
		client: client,
		ttl:    ttl,
	}
}

// Seen marks eventID as notified and reports whether it already was. Check
// and mark are a single SETNX, so concurrent workers cannot both pass. The
// suppressor fails open: an empty event ID or any Redis failure reports
// unseen.
func (s *RedisSuppressor) Seen(ctx context.Context, eventID string) bool {
	if eventID == "" {
		return false
	}

	set, err := s.client.SetNX(ctx, KeyPrefix+eventID, 1, s.ttl).Result()
	if err != nil {
		slog.Warn("Duplicate check failed, treating event as unseen",
			"event_id", eventID,
			"error", err,
		)
		return false
	}
	return !set
}

// NoopSuppressor never suppresses. It stands in when Redis is not
// configured.
type NoopSuppressor struct{}

// Seen always reports unseen.
func (NoopSuppressor) Seen(_ context.Context, _ string) bool {
	return false
}
