package slack

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

func TestSendPostsAttachment(t *testing.T) {
	var (
		gotContentType string
		gotBody        []byte
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := &message.Notification{
		ID:        "n-1",
		Kind:      message.KindEvent,
		AccountID: "111111111111",
		Title:     "DeleteTrail event in account 111111111111",
		Color:     message.ColorDanger,
		Fields: []message.Field{
			{Title: "Event", Value: "DeleteTrail", Short: true},
			{Title: "Account", Value: "111111111111", Short: true},
		},
		SourceKey: "AWSLogs/111111111111/CloudTrail/us-east-1/log.json.gz",
	}

	sender := NewSender()
	if err := sender.Send(context.Background(), server.URL, n); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", gotContentType)
	}

	var got payload.SlackPayload
	if err := json.Unmarshal(gotBody, &got); err != nil {
		t.Fatalf("unmarshaling posted body: %v", err)
	}
	if len(got.Attachments) != 1 {
		t.Fatalf("got %d attachments, want 1", len(got.Attachments))
	}
	att := got.Attachments[0]
	if att.Title != n.Title {
		t.Errorf("attachment title = %q, want %q", att.Title, n.Title)
	}
	if att.Color != message.ColorDanger {
		t.Errorf("attachment color = %q, want %q", att.Color, message.ColorDanger)
	}
	if att.Footer != n.SourceKey {
		t.Errorf("attachment footer = %q, want source key", att.Footer)
	}
	if len(att.Fields) != 2 {
		t.Errorf("got %d fields, want 2", len(att.Fields))
	}
}

func TestSendFailureTextIsFenced(t *testing.T) {
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := &message.Notification{
		ID:    "n-2",
		Kind:  message.KindFailure,
		Title: "Failed to process notification",
		Color: message.ColorDanger,
		Text:  `{"Records": [`,
	}

	sender := NewSender()
	if err := sender.Send(context.Background(), server.URL, n); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	var got payload.SlackPayload
	if err := json.Unmarshal(gotBody, &got); err != nil {
		t.Fatalf("unmarshaling posted body: %v", err)
	}
	if !strings.HasPrefix(got.Attachments[0].Text, "```") || !strings.HasSuffix(got.Attachments[0].Text, "```") {
		t.Errorf("failure text should be fenced as a code block, got %q", got.Attachments[0].Text)
	}
}

func TestSendErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no_service", http.StatusInternalServerError)
	}))
	defer server.Close()

	sender := NewSender()
	err := sender.Send(context.Background(), server.URL, &message.Notification{ID: "n-3"})
	if err == nil {
		t.Fatal("Send() should fail on a 5xx response")
	}
	if !strings.Contains(err.Error(), "status 500") {
		t.Errorf("error = %v, want status 500", err)
	}
}

func TestSendValidatesTarget(t *testing.T) {
	tests := []struct {
		name    string
		target  string
		wantErr string
	}{
		{
			name:    "empty target",
			target:  "",
			wantErr: "required",
		},
		{
			name:    "channel name instead of URL",
			target:  "#security-alerts",
			wantErr: "invalid slack webhook URL",
		},
	}

	sender := NewSender()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sender.Send(context.Background(), tt.target, &message.Notification{ID: "n-4"})
			if err == nil {
				t.Fatalf("Send(%q) should fail", tt.target)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}
