package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"capture-scheduler-go/internal/models"

	natsserver "github.com/nats-io/nats-server/v2/server"
	natstest "github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
)

func runNATSServer(t *testing.T) *natsserver.Server {
	t.Helper()
	opts := natstest.DefaultTestOptions
	opts.Port = -1
	srv := natstest.RunServer(&opts)
	t.Cleanup(srv.Shutdown)
	return srv
}

func TestNATSNotifier_PublishesPerKind(t *testing.T) {
	srv := runNATSServer(t)

	sub, err := nats.Connect(srv.ClientURL())
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer sub.Close()

	msgs := make(chan *nats.Msg, 8)
	if _, err := sub.ChanSubscribe("captures.>", msgs); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if err := sub.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	notifier, err := NewNATSNotifier(models.NotifyConfig{Backend: "nats", NatsURL: srv.ClientURL(), Subject: "captures"})
	if err != nil {
		t.Fatalf("NewNATSNotifier failed: %v", err)
	}

	scheduleId := int64(3)
	tests := []struct {
		notification Notification
		wantSubject  string
	}{
		{Notification{Kind: KindCaptureReminder, UserId: "user1", ScheduleId: &scheduleId, Message: "capture starting", At: time.Now().UTC()}, "captures.capture_reminder"},
		{Notification{Kind: KindSessionCompleted, UserId: "user1", SessionId: "s-1", Status: "SUCCEEDED", Message: "done", At: time.Now().UTC()}, "captures.session_completed"},
	}
	for _, tt := range tests {
		if err := notifier.Notify(context.Background(), tt.notification); err != nil {
			t.Fatalf("Notify failed: %v", err)
		}
	}

	// Close drains, so every publish reaches the server before it returns
	notifier.Close()
	if !notifier.conn.IsClosed() {
		t.Fatal("Expected connection closed after Close")
	}

	for _, tt := range tests {
		select {
		case msg := <-msgs:
			if msg.Subject != tt.wantSubject {
				t.Errorf("Subject = %q, want %q", msg.Subject, tt.wantSubject)
			}
			var got Notification
			if err := json.Unmarshal(msg.Data, &got); err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			if got.Kind != tt.notification.Kind || got.UserId != tt.notification.UserId || got.SessionId != tt.notification.SessionId {
				t.Errorf("Payload = %+v, want %+v", got, tt.notification)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("Timed out waiting for %s", tt.wantSubject)
		}
	}
}

func TestNATSNotifier_RejectsCancelledContext(t *testing.T) {
	srv := runNATSServer(t)

	notifier, err := NewNATSNotifier(models.NotifyConfig{NatsURL: srv.ClientURL(), Subject: "captures"})
	if err != nil {
		t.Fatalf("NewNATSNotifier failed: %v", err)
	}
	defer notifier.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := notifier.Notify(ctx, Notification{Kind: KindCaptureReminder, UserId: "user1"}); err == nil {
		t.Error("Expected error for cancelled context")
	}
}

func TestNewNATSNotifier_Unreachable(t *testing.T) {
	if _, err := NewNATSNotifier(models.NotifyConfig{NatsURL: "nats://127.0.0.1:1", Subject: "captures"}); err == nil {
		t.Error("Expected connect error")
	}
}
