package notify

import (
	"context"
	"testing"
	"time"
)

func TestLogNotifier(t *testing.T) {
	var n Notifier = NewLogNotifier()
	defer n.Close()

	id := int64(7)
	err := n.Notify(context.Background(), Notification{
		Kind: KindCaptureReminder, UserId: "user1", ScheduleId: &id, Message: "capture starting", At: time.Now(),
	})
	if err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
}
