package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ironsource-mobile/devops-terraform-aws-cloudtrail-to-slack/internal/message"
	"github.com/ironsource-mobile/devops-terraform-aws-cloudtrail-to-slack/internal/notify/payload"
)

func TestSendPostsJSON(t *testing.T) {
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := &message.Notification{
		ID:        "n-1",
		Kind:      message.KindEvent,
		AccountID: "111111111111",
		Title:     "StopLogging event in account 111111111111",
		Fields: []message.Field{
			{Title: "Event", Value: "StopLogging", Short: true},
			{Title: "Region", Value: "us-east-1", Short: true},
		},
	}

	sender := NewSender()
	if err := sender.Send(context.Background(), server.URL, n); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	var got payload.WebhookPayload
	if err := json.Unmarshal(gotBody, &got); err != nil {
		t.Fatalf("unmarshaling posted body: %v", err)
	}
	if got.ID != "n-1" {
		t.Errorf("payload id = %q, want n-1", got.ID)
	}
	if got.Kind != string(message.KindEvent) {
		t.Errorf("payload kind = %q, want %q", got.Kind, message.KindEvent)
	}
	if got.Fields["Event"] != "StopLogging" {
		t.Errorf("payload fields = %v, want Event=StopLogging", got.Fields)
	}
	if got.Timestamp == "" {
		t.Error("payload timestamp should be set")
	}
}

func TestSendSkipsDummyEndpoints(t *testing.T) {
	tests := []struct {
		name   string
		target string
		dummy  bool
	}{
		{name: "example.com", target: "https://hooks.example.com/alerts", dummy: true},
		{name: "test.com", target: "http://test.com/hook", dummy: true},
		{name: "localhost", target: "http://localhost:9999/hook", dummy: true},
		{name: "real host", target: "https://alerts.internal.corp/hook", dummy: false},
		{name: "loopback address is not dummy", target: "http://127.0.0.1:9/hook", dummy: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isDummyWebhookURL(tt.target); got != tt.dummy {
				t.Errorf("isDummyWebhookURL(%q) = %v, want %v", tt.target, got, tt.dummy)
			}
		})
	}
}

func TestSendDummyEndpointReturnsNil(t *testing.T) {
	sender := NewSender()
	// No server behind this host; a real send attempt would fail.
	err := sender.Send(context.Background(), "https://webhook.example.com/x", &message.Notification{ID: "n-2"})
	if err != nil {
		t.Fatalf("Send() to dummy endpoint should be skipped, got %v", err)
	}
}

func TestSendErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer server.Close()

	sender := NewSender()
	err := sender.Send(context.Background(), server.URL, &message.Notification{ID: "n-3"})
	if err == nil {
		t.Fatal("Send() should fail on a 5xx response")
	}
	if !strings.Contains(err.Error(), "status 502") {
		t.Errorf("error = %v, want status 502", err)
	}
}

func TestSendValidatesTarget(t *testing.T) {
	sender := NewSender()

	if err := sender.Send(context.Background(), "", &message.Notification{ID: "n-4"}); err == nil {
		t.Error("Send() with empty target should fail")
	}
	if err := sender.Send(context.Background(), "alerts-queue", &message.Notification{ID: "n-5"}); err == nil {
		t.Error("Send() with a non-URL target should fail")
	}
}
