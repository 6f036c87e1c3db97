package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrLockContention is returned when another holder owns a live lease for the user
var ErrLockContention = errors.New("user has a capture in progress")

// Lease is a held per-user execution lock. It expires on its own after the TTL
// so a crashed holder never blocks the user forever.
type Lease struct {
	UserId    string
	Token     string
	ExpiresAt time.Time
}

// Locker grants at most one live lease per user
type Locker interface {
	Acquire(ctx context.Context, userId string) (*Lease, error)
	Release(ctx context.Context, lease *Lease) error
}

func newToken() string {
	return uuid.New().String()
}

// LocalLocker is an in-process Locker for single-node deployments and tests
type LocalLocker struct {
	ttl    time.Duration
	now    func() time.Time
	mutex  sync.Mutex
	leases map[string]Lease
}

func NewLocalLocker(ttl time.Duration) *LocalLocker {
	return &LocalLocker{
		ttl:    ttl,
		now:    time.Now,
		leases: make(map[string]Lease),
	}
}

func (l *LocalLocker) Acquire(_ context.Context, userId string) (*Lease, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	now := l.now()
	if held, ok := l.leases[userId]; ok && now.Before(held.ExpiresAt) {
		return nil, ErrLockContention
	}
	lease := Lease{UserId: userId, Token: newToken(), ExpiresAt: now.Add(l.ttl)}
	l.leases[userId] = lease
	return &lease, nil
}

// Release drops the lease if it is still held by the same token
func (l *LocalLocker) Release(_ context.Context, lease *Lease) error {
	if lease == nil {
		return nil
	}
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if held, ok := l.leases[lease.UserId]; ok && held.Token == lease.Token {
		delete(l.leases, lease.UserId)
	}
	return nil
}
