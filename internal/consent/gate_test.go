package consent

import (
	"testing"
	"time"

	"capture-scheduler-go/internal/models"
)

func TestDecide(t *testing.T) {
	record := func(scope string) *models.ConsentRecord {
		return &models.ConsentRecord{UserId: "user1", Version: 3, Scope: scope, GrantedAt: time.Now()}
	}

	tests := []struct {
		name         string
		current      *models.ConsentRecord
		isValid      bool
		wantStore    bool
		wantMonetize bool
		wantVersion  bool
	}{
		{"no consent stores but never pays", nil, true, true, false, false},
		{"full consent valid photo", record("photo_storage photo_monetization"), true, true, true, true},
		{"full consent invalid photo", record("photo_storage photo_monetization"), false, true, false, true},
		{"storage only", record("photo_storage"), true, true, false, true},
		{"monetization without storage discards", record("photo_monetization"), true, false, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decide(tt.current, tt.isValid)
			if got.Store != tt.wantStore {
				t.Errorf("Store = %v, want %v", got.Store, tt.wantStore)
			}
			if got.Monetize != tt.wantMonetize {
				t.Errorf("Monetize = %v, want %v", got.Monetize, tt.wantMonetize)
			}
			if (got.Version != nil) != tt.wantVersion {
				t.Errorf("Version = %v, want present=%v", got.Version, tt.wantVersion)
			}
			if got.Version != nil && *got.Version != 3 {
				t.Errorf("Version = %d, want 3", *got.Version)
			}
		})
	}
}
