package models

import (
	"testing"
	"time"
)

func TestSchedule_IsDue(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	last := now.Add(-time.Hour)
	recent := now.Add(-59 * time.Minute)

	tests := []struct {
		name     string
		schedule Schedule
		want     bool
	}{
		{"never triggered", Schedule{Active: true, Frequency: time.Hour}, true},
		{"exactly one period", Schedule{Active: true, Frequency: time.Hour, LastTriggeredAt: &last}, true},
		{"inside period", Schedule{Active: true, Frequency: time.Hour, LastTriggeredAt: &recent}, false},
		{"paused", Schedule{Active: false, Frequency: time.Hour}, false},
		{"archived", Schedule{Active: true, Archived: true, Frequency: time.Hour}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.schedule.IsDue(now); got != tt.want {
				t.Errorf("IsDue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSchedule_NextCaptureAt(t *testing.T) {
	created := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	last := created.Add(2 * time.Hour)

	if next := (Schedule{Active: true, CreatedAt: created}).NextCaptureAt(); next == nil || !next.Equal(created) {
		t.Errorf("expected created_at for a fresh schedule, got %v", next)
	}
	s := Schedule{Active: true, Frequency: 3 * time.Hour, LastTriggeredAt: &last, CreatedAt: created}
	if next := s.NextCaptureAt(); next == nil || !next.Equal(last.Add(3*time.Hour)) {
		t.Errorf("expected last + frequency, got %v", next)
	}
	if next := (Schedule{Active: false}).NextCaptureAt(); next != nil {
		t.Errorf("expected nil for paused schedule, got %v", next)
	}
}

func TestSchedule_ShouldNotify(t *testing.T) {
	tests := []struct {
		enabled, silent, want bool
	}{
		{true, false, true},
		{true, true, false},
		{false, false, false},
	}
	for _, tt := range tests {
		s := Schedule{NotificationsEnabled: tt.enabled, SilentMode: tt.silent}
		if got := s.ShouldNotify(); got != tt.want {
			t.Errorf("ShouldNotify(enabled=%v, silent=%v) = %v", tt.enabled, tt.silent, got)
		}
	}
}

func TestSessionStatus_IsTerminal(t *testing.T) {
	for _, status := range []SessionStatus{SessionPending, SessionCapturing, SessionValidating, SessionStoring, SessionRecording} {
		if status.IsTerminal() {
			t.Errorf("%s should not be terminal", status)
		}
	}
	for _, status := range []SessionStatus{SessionSucceeded, SessionFailed} {
		if !status.IsTerminal() {
			t.Errorf("%s should be terminal", status)
		}
	}
}

func TestConsentRecord_Grants(t *testing.T) {
	c := ConsentRecord{Scope: ScopePhotoStorage + " " + ScopePhotoMonetization}
	if !c.Grants(ScopePhotoStorage) || !c.Grants(ScopePhotoMonetization) {
		t.Error("expected both scopes granted")
	}
	if c.Grants("photo") {
		t.Error("partial scope names must not match")
	}
	if (ConsentRecord{}).Grants(ScopePhotoStorage) {
		t.Error("empty scope grants nothing")
	}
}

func TestCentsToDollars(t *testing.T) {
	if got := CentsToDollars(5).String(); got != "0.05" {
		t.Errorf("expected 0.05, got %s", got)
	}
	if got := CentsToDollars(-1250).StringFixed(2); got != "-12.50" {
		t.Errorf("expected -12.50, got %s", got)
	}
}
