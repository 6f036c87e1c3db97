package notify

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Kinds of notification published
const (
	KindCaptureReminder  = "capture_reminder"
	KindSessionCompleted = "session_completed"
)

// Notification is a single message about a user's capture activity
type Notification struct {
	Kind       string    `json:"kind"`
	UserId     string    `json:"user_id"`
	ScheduleId *int64    `json:"schedule_id,omitempty"`
	SessionId  string    `json:"session_id,omitempty"`
	Status     string    `json:"status,omitempty"`
	Message    string    `json:"message"`
	At         time.Time `json:"at"`
}

// Notifier delivers notifications. Delivery is best effort: callers log and continue on error.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
	Close()
}

// LogNotifier writes notifications to the structured log
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (LogNotifier) Notify(ctx context.Context, n Notification) error {
	fields := []zap.Field{
		zap.String("kind", n.Kind),
		zap.String("user_id", n.UserId),
		zap.String("message", n.Message),
	}
	if n.ScheduleId != nil {
		fields = append(fields, zap.Int64("schedule_id", *n.ScheduleId))
	}
	if n.SessionId != "" {
		fields = append(fields, zap.String("session_id", n.SessionId), zap.String("status", n.Status))
	}
	zap.L().Info("Notification", fields...)
	return nil
}

func (LogNotifier) Close() {}
