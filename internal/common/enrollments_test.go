package common

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseEnrollments(t *testing.T) {
	data := []byte(`
enrollments:
  - user_id: alice
    frequency_hours: 1
    consent_scopes: [photo_storage, photo_monetization]
  - user_id: bob
    frequency_hours: 6
    notifications_enabled: false
    silent_mode: true
`)

	enrollments, err := ParseEnrollments(data)
	if err != nil {
		t.Fatalf("ParseEnrollments failed: %v", err)
	}
	if len(enrollments) != 2 {
		t.Fatalf("expected 2 enrollments, got %d", len(enrollments))
	}

	alice, bob := enrollments[0], enrollments[1]
	if !alice.Notifications() {
		t.Error("expected notifications to default to enabled")
	}
	if len(alice.ConsentScopes) != 2 || alice.ConsentScopes[1] != "photo_monetization" {
		t.Errorf("unexpected consent scopes: %v", alice.ConsentScopes)
	}
	if bob.Notifications() || !bob.SilentMode {
		t.Errorf("expected bob silent with notifications off, got %+v", bob)
	}
	if bob.FrequencyHours != 6 {
		t.Errorf("expected 6 hours, got %v", bob.FrequencyHours)
	}
}

func TestParseEnrollments_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{"missing user", "enrollments:\n  - frequency_hours: 2\n", "missing user_id"},
		{"short frequency", "enrollments:\n  - user_id: alice\n    frequency_hours: 0.5\n", "at least 1"},
		{"duplicate user", "enrollments:\n  - user_id: alice\n    frequency_hours: 1\n  - user_id: alice\n    frequency_hours: 2\n", "duplicates user"},
		{"bad yaml", "enrollments: [", "unable to parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseEnrollments([]byte(tt.data))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadEnrollments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "enrollments.yaml")
	if err := os.WriteFile(path, []byte("enrollments:\n  - user_id: carol\n    frequency_hours: 24\n"), 0o600); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	enrollments, err := LoadEnrollments(path)
	if err != nil {
		t.Fatalf("LoadEnrollments failed: %v", err)
	}
	if len(enrollments) != 1 || enrollments[0].UserId != "carol" {
		t.Errorf("unexpected enrollments: %+v", enrollments)
	}

	if _, err := LoadEnrollments(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
