// Package trail downloads and decodes the CloudTrail log files referenced
// by S3 change notifications.
package trail

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectGetter is the single S3 operation the retriever needs.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// LogBatch is one decoded CloudTrail log file: the decoded object key it
// came from and its events in file order. Events stay as raw maps since
// rules address arbitrary paths inside them.
type LogBatch struct {
	Key    string
	Events []map[string]any
}

// Retriever fetches gzip-compressed CloudTrail log files from S3.
type Retriever struct {
	client ObjectGetter
}

func NewRetriever(client ObjectGetter) *Retriever {
	return &Retriever{client: client}
}

// Fetch downloads and decodes one log object. Digest objects carry
// integrity metadata instead of events, so Fetch returns (nil, nil) for
// them without touching S3. Keys arrive URL-encoded in notifications and
// are decoded before use.
func (r *Retriever) Fetch(ctx context.Context, bucket, rawKey string) (*LogBatch, error) {
	key, err := url.QueryUnescape(rawKey)
	if err != nil {
		return nil, fmt.Errorf("decoding object key %q: %w", rawKey, err)
	}
	if strings.Contains(key, "Digest") {
		slog.Debug("Skipping digest object", "bucket", bucket, "key", key)
		return nil, nil
	}

	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		slog.Error("Failed to get object", "bucket", bucket, "key", key, "error", err)
		return nil, fmt.Errorf("getting s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	gz, err := gzip.NewReader(out.Body)
	if err != nil {
		return nil, fmt.Errorf("opening gzip stream of s3://%s/%s: %w", bucket, key, err)
	}
	defer gz.Close()

	var batch struct {
		Records []map[string]any `json:"Records"`
	}
	if err := json.NewDecoder(gz).Decode(&batch); err != nil {
		return nil, fmt.Errorf("decoding log batch s3://%s/%s: %w", bucket, key, err)
	}

	slog.Debug("Fetched log batch", "bucket", bucket, "key", key, "events", len(batch.Records))
	return &LogBatch{Key: key, Events: batch.Records}, nil
}
