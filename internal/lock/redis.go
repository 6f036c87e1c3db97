package lock

import (
	"context"
	"fmt"
	"time"

	"capture-scheduler-go/internal/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// compare-and-delete so a holder whose lease expired cannot drop its successor's lease
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker holds leases as SET NX PX keys, shared across scheduler replicas
type RedisLocker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisClient connects to redis and verifies the connection
func NewRedisClient(ctx context.Context, cfg models.LockConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("unable to ping redis: %w", err)
	}

	zap.L().Info("Connected to Redis", zap.String("addr", cfg.RedisAddr), zap.Int("db", cfg.RedisDB))
	return client, nil
}

func NewRedisLocker(client *redis.Client, prefix string, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: client, prefix: prefix, ttl: ttl}
}

func (l *RedisLocker) key(userId string) string {
	return l.prefix + userId
}

func (l *RedisLocker) Acquire(ctx context.Context, userId string) (*Lease, error) {
	token := newToken()
	ok, err := l.client.SetNX(ctx, l.key(userId), token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lease: %w", err)
	}
	if !ok {
		return nil, ErrLockContention
	}
	return &Lease{UserId: userId, Token: token, ExpiresAt: time.Now().Add(l.ttl)}, nil
}

func (l *RedisLocker) Release(ctx context.Context, lease *Lease) error {
	if lease == nil {
		return nil
	}
	deleted, err := releaseScript.Run(ctx, l.client, []string{l.key(lease.UserId)}, lease.Token).Int64()
	if err != nil {
		return fmt.Errorf("failed to release lease: %w", err)
	}
	if deleted == 0 {
		zap.L().Warn("Lease already expired or taken over on release",
			zap.String("user_id", lease.UserId))
	}
	return nil
}
