package formance

import (
	"context"
	"math/big"
	"strings"
	"testing"
	"time"

	"capture-scheduler-go/internal/models"

	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
)

// ---------- Unit tests for pure helpers (no Formance stack needed) ----------

func TestUserFromAccount(t *testing.T) {
	tests := []struct {
		address string
		want    string
		ok      bool
	}{
		{"users:alice", "alice", true},
		{"users:", "", false},
		{"platform:incentives", "", false},
	}
	for _, tt := range tests {
		got, ok := userFromAccount(tt.address)
		if got != tt.want || ok != tt.ok {
			t.Errorf("userFromAccount(%q) = %q, %v, want %q, %v", tt.address, got, ok, tt.want, tt.ok)
		}
	}
}

func TestReferencePhoto(t *testing.T) {
	tests := []struct {
		reference string
		want      string
	}{
		{earningReference("photo-1"), "photo-1"},
		{"earning:adjustment:abc", ""},
		{"other", ""},
	}
	for _, tt := range tests {
		if got := referencePhoto(tt.reference); got != tt.want {
			t.Errorf("referencePhoto(%q) = %q, want %q", tt.reference, got, tt.want)
		}
	}
}

func TestVolumeBalance(t *testing.T) {
	vols := map[string]shared.V2Volume{
		earningAsset: {Input: big.NewInt(500), Output: big.NewInt(120)},
		"EUR/2":      {Input: big.NewInt(1), Output: big.NewInt(0), Balance: big.NewInt(1)},
	}
	if got := balanceCents(vols); got != 380 {
		t.Errorf("expected 380 cents, got %d", got)
	}
	if got := volumeBalance(vols, "EUR/2"); got.Int64() != 1 {
		t.Errorf("expected explicit balance 1, got %s", got)
	}
	if got := balanceCents(nil); got != 0 {
		t.Errorf("expected 0 for missing volumes, got %d", got)
	}
}

func TestSignedPostingCents(t *testing.T) {
	account := userAccount("alice")
	tests := []struct {
		name    string
		posting shared.V2Posting
		want    int64
	}{
		{"credit", shared.V2Posting{Source: "platform:incentives", Destination: account, Asset: earningAsset, Amount: big.NewInt(5)}, 5},
		{"debit", shared.V2Posting{Source: account, Destination: "platform:incentives", Asset: earningAsset, Amount: big.NewInt(3)}, -3},
		{"other asset", shared.V2Posting{Source: "world", Destination: account, Asset: "EUR/2", Amount: big.NewInt(9)}, 0},
		{"other account", shared.V2Posting{Source: "world", Destination: "users:bob", Asset: earningAsset, Amount: big.NewInt(9)}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := signedPostingCents(tt.posting, account); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestAccountUpdatedAt(t *testing.T) {
	first := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	updated := first.Add(time.Hour)

	if got := accountUpdatedAt(shared.V2Account{FirstUsage: &first, UpdatedAt: &updated}); !got.Equal(updated) {
		t.Errorf("expected updated_at, got %v", got)
	}
	if got := accountUpdatedAt(shared.V2Account{FirstUsage: &first}); !got.Equal(first) {
		t.Errorf("expected first usage, got %v", got)
	}
	if got := accountUpdatedAt(shared.V2Account{}); !got.IsZero() {
		t.Errorf("expected zero time, got %v", got)
	}
}

func TestIsConflictError(t *testing.T) {
	// nil error should not be a conflict
	if isConflictError(nil) {
		t.Error("nil should not be a conflict error")
	}
	if isNotFoundError(nil) {
		t.Error("nil should not be a not-found error")
	}
}

func TestNewService_RequiresCredentials(t *testing.T) {
	_, err := NewService(context.Background(), models.FormanceConfig{StackURL: "http://localhost:8080"})
	if err == nil {
		t.Fatal("expected error without client credentials")
	}
	for _, name := range []string{"FORMANCE_CLIENT_ID", "FORMANCE_CLIENT_SECRET"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("expected %s in error, got %v", name, err)
		}
	}
	if strings.Contains(err.Error(), "FORMANCE_STACK_URL") {
		t.Errorf("stack url was provided, got %v", err)
	}
}
