package api

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"capture-scheduler-go/internal/database"
	"capture-scheduler-go/internal/lock"
	"capture-scheduler-go/internal/models"
	"capture-scheduler-go/internal/storage"
	"capture-scheduler-go/internal/store"
)

// stubTrigger creates sessions directly and never runs them
type stubTrigger struct {
	db     *database.Service
	locker *lock.LocalLocker
}

func (s *stubTrigger) TriggerManual(ctx context.Context, userId string) (*models.CaptureSession, error) {
	if _, err := s.locker.Acquire(ctx, userId); err != nil {
		return nil, err
	}
	return s.db.CreateSession(ctx, userId, nil, time.Now())
}

func (s *stubTrigger) Status(ctx context.Context) (*models.SchedulerStatus, error) {
	return &models.SchedulerStatus{Running: true, TickInterval: "1m0s"}, nil
}

func setupTestService(t *testing.T) (*CaptureService, *database.Service) {
	t.Helper()
	db, err := database.NewService(context.Background(), models.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "captures.db"),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		PingTimeout:  time.Second,
		BusyTimeout:  5 * time.Second,
	}, 5)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(db.Close)

	writer := storage.NewWriter(storage.NewMemoryStore(), storage.NewMemoryStore(), models.StorageConfig{
		KeyPrefix:     "photos",
		PublicBaseURL: "https://cdn.example.com",
		MaxAttempts:   1,
	})
	trigger := &stubTrigger{db: db, locker: lock.NewLocalLocker(time.Minute)}
	return NewCaptureService(db, db, writer, trigger), db
}

func TestScheduleLifecycle(t *testing.T) {
	service, _ := setupTestService(t)
	ctx := context.Background()

	_, err := service.CreateSchedule(ctx, "user1", 30*time.Minute, models.ScheduleOptions{})
	if !errors.Is(err, store.ErrInvalidFrequency) {
		t.Fatalf("Expected ErrInvalidFrequency, got %v", err)
	}
	if _, err := service.CreateSchedule(ctx, "", time.Hour, models.ScheduleOptions{}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("Expected ErrInvalidRequest for empty user, got %v", err)
	}

	sched, err := service.CreateSchedule(ctx, "user1", 2*time.Hour, models.ScheduleOptions{NotificationsEnabled: true})
	if err != nil {
		t.Fatalf("CreateSchedule failed: %v", err)
	}
	if sched.FrequencyHours != 2 || !sched.Active || sched.NextCaptureAt == nil {
		t.Errorf("Unexpected schedule: %+v", sched)
	}

	paused, err := service.PauseSchedule(ctx, "user1", sched.Id)
	if err != nil {
		t.Fatalf("PauseSchedule failed: %v", err)
	}
	if paused.Active || paused.PausedAt == nil || paused.NextCaptureAt != nil {
		t.Errorf("Expected paused schedule without next capture, got %+v", paused)
	}
	if _, err := service.PauseSchedule(ctx, "user1", sched.Id); err != nil {
		t.Errorf("Pausing twice should be a no-op, got %v", err)
	}

	resumed, err := service.ResumeSchedule(ctx, "user1", sched.Id)
	if err != nil {
		t.Fatalf("ResumeSchedule failed: %v", err)
	}
	if !resumed.Active {
		t.Errorf("Expected active schedule after resume")
	}

	hours := 4 * time.Hour
	updated, err := service.UpdateSchedule(ctx, "user1", sched.Id, models.ScheduleUpdate{Frequency: &hours})
	if err != nil {
		t.Fatalf("UpdateSchedule failed: %v", err)
	}
	if updated.FrequencyHours != 4 {
		t.Errorf("Expected 4 hours, got %v", updated.FrequencyHours)
	}

	if err := service.DeleteSchedule(ctx, "user1", sched.Id); err != nil {
		t.Fatalf("DeleteSchedule failed: %v", err)
	}
	if _, err := service.ResumeSchedule(ctx, "user1", sched.Id); !errors.Is(err, store.ErrScheduleArchived) {
		t.Errorf("Expected ErrScheduleArchived, got %v", err)
	}

	schedules, err := service.ListSchedules(ctx, "user1")
	if err != nil {
		t.Fatalf("ListSchedules failed: %v", err)
	}
	if len(schedules) != 1 || !schedules[0].Archived {
		t.Errorf("Expected the archived schedule to remain listed, got %+v", schedules)
	}
}

func TestSchedule_OtherUserHidden(t *testing.T) {
	service, _ := setupTestService(t)
	ctx := context.Background()

	sched, err := service.CreateSchedule(ctx, "owner", time.Hour, models.ScheduleOptions{})
	if err != nil {
		t.Fatalf("CreateSchedule failed: %v", err)
	}

	tests := []struct {
		name string
		call func() error
	}{
		{"get", func() error { _, err := service.GetSchedule(ctx, "intruder", sched.Id); return err }},
		{"pause", func() error { _, err := service.PauseSchedule(ctx, "intruder", sched.Id); return err }},
		{"delete", func() error { return service.DeleteSchedule(ctx, "intruder", sched.Id) }},
		{"missing", func() error { _, err := service.GetSchedule(ctx, "owner", 999); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, store.ErrScheduleNotFound) {
				t.Errorf("Expected ErrScheduleNotFound, got %v", err)
			}
		})
	}
}

func TestTriggerCapture(t *testing.T) {
	service, _ := setupTestService(t)
	ctx := context.Background()

	session, err := service.TriggerCapture(ctx, "user1")
	if err != nil {
		t.Fatalf("TriggerCapture failed: %v", err)
	}
	if session.Status != models.SessionPending || session.ScheduleId != nil {
		t.Errorf("Expected pending manual session, got %+v", session)
	}

	if _, err := service.TriggerCapture(ctx, "user1"); !errors.Is(err, lock.ErrLockContention) {
		t.Errorf("Expected ErrLockContention, got %v", err)
	}

	got, err := service.GetSession(ctx, "user1", session.Id)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.Id != session.Id {
		t.Errorf("Expected session %s, got %s", session.Id, got.Id)
	}
	if _, err := service.GetSession(ctx, "user2", session.Id); !errors.Is(err, store.ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound for another user, got %v", err)
	}

	sessions, err := service.ListSessions(ctx, "user1", 0, -5)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 1 {
		t.Errorf("Expected 1 session, got %d", len(sessions))
	}
}

func TestConsent(t *testing.T) {
	service, _ := setupTestService(t)
	ctx := context.Background()

	if _, err := service.GrantConsent(ctx, "user1", nil); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("Expected ErrInvalidRequest for empty scopes, got %v", err)
	}
	if _, err := service.GrantConsent(ctx, "user1", []string{"face_matching"}); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("Expected ErrInvalidRequest for unknown scope, got %v", err)
	}

	current, err := service.CurrentConsent(ctx, "user1")
	if err != nil || current != nil {
		t.Fatalf("Expected no consent, got %+v, %v", current, err)
	}

	granted, err := service.GrantConsent(ctx, "user1", []string{models.ScopePhotoStorage, models.ScopePhotoMonetization})
	if err != nil {
		t.Fatalf("GrantConsent failed: %v", err)
	}
	if granted.Version != 1 || len(granted.Scopes) != 2 {
		t.Errorf("Unexpected consent: %+v", granted)
	}

	if err := service.RevokeConsent(ctx, "user1", granted.Version); err != nil {
		t.Fatalf("RevokeConsent failed: %v", err)
	}
	if err := service.RevokeConsent(ctx, "user1", 42); !errors.Is(err, store.ErrConsentNotFound) {
		t.Errorf("Expected ErrConsentNotFound, got %v", err)
	}
	current, err = service.CurrentConsent(ctx, "user1")
	if err != nil || current != nil {
		t.Errorf("Expected no current consent after revoke, got %+v, %v", current, err)
	}
}

func TestBalanceAndEarnings(t *testing.T) {
	service, db := setupTestService(t)
	ctx := context.Background()

	empty, err := service.GetUserBalance(ctx, "user1")
	if err != nil {
		t.Fatalf("GetUserBalance failed: %v", err)
	}
	if empty.BalanceCents != 0 || empty.UpdatedAt != nil {
		t.Errorf("Expected empty balance, got %+v", empty)
	}

	for i := 0; i < 25; i++ {
		if _, err := db.AppendEarning(ctx, store.AppendEarningParams{
			UserId: "user1", AmountCents: 5, PhotoId: "photo-" + string(rune('a'+i)), Reason: "photo_capture",
		}); err != nil {
			t.Fatalf("AppendEarning failed: %v", err)
		}
	}

	balance, err := service.GetUserBalance(ctx, "user1")
	if err != nil {
		t.Fatalf("GetUserBalance failed: %v", err)
	}
	if balance.BalanceCents != 125 || balance.Balance.String() != "1.25" {
		t.Errorf("Expected 125 cents / 1.25, got %d / %s", balance.BalanceCents, balance.Balance)
	}

	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{"default", 0, 20},
		{"explicit", 5, 5},
		{"over max", 500, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			history, err := service.GetEarningHistory(ctx, "user1", tt.limit, 0)
			if err != nil {
				t.Fatalf("GetEarningHistory failed: %v", err)
			}
			if len(history) != tt.want {
				t.Errorf("Expected %d records, got %d", tt.want, len(history))
			}
		})
	}
}

func TestListPhotos_URLs(t *testing.T) {
	service, db := setupTestService(t)
	ctx := context.Background()

	key := "photos/user1/20250301T120000_s1.jpg"
	tests := []struct {
		name    string
		key     *string
		tier    models.StorageTier
		wantURL string
	}{
		{"primary", &key, models.TierPrimary, "https://cdn.example.com/" + key},
		{"fallback", &key, models.TierFallback, ""},
		{"discarded", nil, "", ""},
	}

	want := map[string]string{}
	for i, tt := range tests {
		session, err := db.CreateSession(ctx, "user1", nil, time.Now().Add(time.Duration(i)*time.Second))
		if err != nil {
			t.Fatalf("CreateSession failed: %v", err)
		}
		photoId := "photo-" + tt.name
		if err := db.SaveArtifact(ctx, &models.PhotoArtifact{
			Id: photoId, SessionId: session.Id, UserId: "user1", StorageKey: tt.key, StorageTier: tt.tier,
			Checksum: "abc", CapturedAt: time.Now().Add(time.Duration(i) * time.Second), IsValid: true,
		}); err != nil {
			t.Fatalf("SaveArtifact failed: %v", err)
		}
		if err := db.TransitionSession(ctx, store.TransitionParams{SessionId: session.Id, To: models.SessionSucceeded, At: time.Now(), PhotoId: photoId}); err != nil {
			t.Fatalf("Transition failed: %v", err)
		}
		want[photoId] = tt.wantURL
	}

	photos, err := service.ListPhotos(ctx, "user1", 10, 0)
	if err != nil {
		t.Fatalf("ListPhotos failed: %v", err)
	}
	if len(photos) != len(tests) {
		t.Fatalf("Expected %d photos, got %d", len(tests), len(photos))
	}
	for _, photo := range photos {
		if photo.URL != want[photo.Id] {
			t.Errorf("Photo %s: expected URL %q, got %q", photo.Id, want[photo.Id], photo.URL)
		}
	}
}

func TestHealthAndStatus(t *testing.T) {
	service, _ := setupTestService(t)
	ctx := context.Background()

	if err := service.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck failed: %v", err)
	}
	status, err := service.SchedulerStatus(ctx)
	if err != nil {
		t.Fatalf("SchedulerStatus failed: %v", err)
	}
	if !status.Running {
		t.Errorf("Expected running status, got %+v", status)
	}
}
