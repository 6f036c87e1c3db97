package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"capture-scheduler-go/internal/lock"
)

func TestLeaseLocker_ContentionAndExpiry(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	locker := NewLeaseLocker(service, time.Minute)
	locker.now = func() time.Time { return now }

	first, err := locker.Acquire(ctx, "user1")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if _, err := locker.Acquire(ctx, "user1"); !errors.Is(err, lock.ErrLockContention) {
		t.Fatalf("Expected ErrLockContention, got %v", err)
	}
	if _, err := locker.Acquire(ctx, "user2"); err != nil {
		t.Fatalf("Other user should not contend: %v", err)
	}

	now = now.Add(2 * time.Minute)
	second, err := locker.Acquire(ctx, "user1")
	if err != nil {
		t.Fatalf("Expected expired lease to be taken over, got %v", err)
	}

	// The expired holder's release leaves the new lease in place
	if err := locker.Release(ctx, first); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if _, err := locker.Acquire(ctx, "user1"); !errors.Is(err, lock.ErrLockContention) {
		t.Fatalf("Stale release dropped lease %s", second.Token)
	}

	if err := locker.Release(ctx, second); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if _, err := locker.Acquire(ctx, "user1"); err != nil {
		t.Fatalf("Acquire after release failed: %v", err)
	}
}
