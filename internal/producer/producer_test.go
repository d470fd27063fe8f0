package producer

import (
	"strings"
	"testing"
)

func TestNewProducer(t *testing.T) {
	tests := []struct {
		name    string
		brokers string
		topic   string
		wantErr string
	}{
		{
			name:    "valid producer",
			brokers: "localhost:9092",
			topic:   "cloudtrail.matched",
		},
		{
			name:    "empty brokers",
			brokers: "",
			topic:   "cloudtrail.matched",
			wantErr: "brokers cannot be empty",
		},
		{
			name:    "empty topic",
			brokers: "localhost:9092",
			topic:   "",
			wantErr: "topic cannot be empty",
		},
		{
			name:    "multiple brokers with spaces",
			brokers: "localhost:9092, localhost:9093",
			topic:   "cloudtrail.matched",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// NewProducer probes the first broker to create the topic; that
			// probe is best effort and may fail without a local Kafka.
			p, err := NewProducer(tt.brokers, tt.topic)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("NewProducer() error = %v", err)
				}
				p.Close()
				return
			}
			if err == nil {
				t.Fatalf("NewProducer() should fail")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}
