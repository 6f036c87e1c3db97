package database

import (
	"context"
	"fmt"
	"time"

	"capture-scheduler-go/internal/lock"

	"github.com/google/uuid"
)

var _ lock.Locker = (*LeaseLocker)(nil)

// LeaseLocker implements lock.Locker over the user_locks table. An expired
// lease is taken over by the next acquirer.
type LeaseLocker struct {
	service *Service
	ttl     time.Duration
	now     func() time.Time
}

func NewLeaseLocker(service *Service, ttl time.Duration) *LeaseLocker {
	return &LeaseLocker{service: service, ttl: ttl, now: time.Now}
}

func (l *LeaseLocker) Acquire(ctx context.Context, userId string) (*lock.Lease, error) {
	now := l.now().UTC()
	lease := &lock.Lease{UserId: userId, Token: uuid.New().String(), ExpiresAt: now.Add(l.ttl)}

	result, err := l.service.db.ExecContext(ctx, queryAcquireLease, userId, lease.Token, lease.ExpiresAt, now)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lease: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, lock.ErrLockContention
	}
	return lease, nil
}

func (l *LeaseLocker) Release(ctx context.Context, lease *lock.Lease) error {
	if lease == nil {
		return nil
	}
	if _, err := l.service.db.ExecContext(ctx, queryReleaseLease, lease.UserId, lease.Token); err != nil {
		return fmt.Errorf("failed to release lease: %w", err)
	}
	return nil
}
