package database

import (
	"context"
	"strings"
	"testing"

	"capture-scheduler-go/internal/store"
)

func TestGetBalance_NoBalance(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	balance, err := service.GetBalance(context.Background(), "user1")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if balance.BalanceCents != 0 {
		t.Errorf("Expected balance 0, got %d", balance.BalanceCents)
	}
	if balance.UserId != "user1" {
		t.Errorf("Expected user id user1, got %s", balance.UserId)
	}
}

func TestListBalances(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	for _, p := range []store.AppendEarningParams{
		{UserId: "bob", AmountCents: 5, PhotoId: "p1", Reason: "photo_capture"},
		{UserId: "alice", AmountCents: 5, PhotoId: "p2", Reason: "photo_capture"},
		{UserId: "alice", AmountCents: 5, PhotoId: "p3", Reason: "photo_capture"},
	} {
		if _, err := service.AppendEarning(ctx, p); err != nil {
			t.Fatalf("AppendEarning failed: %v", err)
		}
	}

	balances, err := service.ListBalances(ctx)
	if err != nil {
		t.Fatalf("ListBalances failed: %v", err)
	}
	if len(balances) != 2 {
		t.Fatalf("Expected 2 balances, got %d", len(balances))
	}
	if balances[0].UserId != "alice" || balances[0].BalanceCents != 10 {
		t.Errorf("Expected alice=10 first, got %s=%d", balances[0].UserId, balances[0].BalanceCents)
	}
	if balances[1].UserId != "bob" || balances[1].BalanceCents != 5 {
		t.Errorf("Expected bob=5 second, got %s=%d", balances[1].UserId, balances[1].BalanceCents)
	}
}

func TestReconcileBalance_DetectsDrift(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	if _, err := service.AppendEarning(ctx, store.AppendEarningParams{UserId: "user1", AmountCents: 5, PhotoId: "p1", Reason: "photo_capture"}); err != nil {
		t.Fatalf("AppendEarning failed: %v", err)
	}
	if err := service.ReconcileBalance(ctx, "user1"); err != nil {
		t.Fatalf("Expected clean reconcile, got %v", err)
	}

	// Corrupt the derived balance behind the ledger's back
	if _, err := service.db.Exec("UPDATE earning_balances SET balance_cents = 99 WHERE user_id = ?", "user1"); err != nil {
		t.Fatalf("Failed to corrupt balance: %v", err)
	}

	err := service.ReconcileBalance(ctx, "user1")
	if err == nil {
		t.Fatal("Expected reconcile mismatch")
	}
	if !strings.Contains(err.Error(), "current=99, calculated=5") {
		t.Errorf("Unexpected mismatch message: %v", err)
	}
}
