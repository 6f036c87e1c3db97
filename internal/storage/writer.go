package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"capture-scheduler-go/internal/models"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// ErrStorageUnavailable is returned when neither tier accepted the photo.
var ErrStorageUnavailable = errors.New("photo storage unavailable")

const presignExpiry = time.Hour

// Locator records where a photo's bytes landed.
type Locator struct {
	Key       string
	Tier      models.StorageTier
	SizeBytes int64
	Checksum  string
}

// Checksum returns the hex sha256 of data
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Writer stores photos on the primary tier, falling back to the secondary
// once the primary's retry budget is spent.
type Writer struct {
	primary  ObjectStore
	fallback ObjectStore

	keyPrefix      string
	baseURL        string
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	maxElapsed     time.Duration
}

// NewWriter builds a writer; fallback may be nil.
func NewWriter(primary, fallback ObjectStore, cfg models.StorageConfig) *Writer {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &Writer{
		primary:        primary,
		fallback:       fallback,
		keyPrefix:      strings.Trim(cfg.KeyPrefix, "/"),
		baseURL:        strings.TrimRight(cfg.PublicBaseURL, "/"),
		maxAttempts:    maxAttempts,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		maxElapsed:     cfg.MaxAttemptDuration,
	}
}

// KeyFor builds <prefix>/<user>/<yyyymmddThhmmss>_<session>.<ext>. The key only depends on
// its inputs so a retried PUT overwrites the same object.
func (w *Writer) KeyFor(userId, sessionId string, capturedAt time.Time, ext string) string {
	name := fmt.Sprintf("%s_%s.%s", capturedAt.UTC().Format("20060102T150405"), sessionId, strings.TrimPrefix(ext, "."))
	if w.keyPrefix == "" {
		return userId + "/" + name
	}
	return w.keyPrefix + "/" + userId + "/" + name
}

func (w *Writer) userPrefix(userId string) string {
	if w.keyPrefix == "" {
		return userId + "/"
	}
	return w.keyPrefix + "/" + userId + "/"
}

// Store writes data under key. Primary failures are retried with exponential backoff
// until the attempt or elapsed-time budget runs out.
func (w *Writer) Store(ctx context.Context, key string, data []byte, contentType string) (*Locator, error) {
	locator := &Locator{Key: key, SizeBytes: int64(len(data)), Checksum: Checksum(data)}

	primaryErr := w.putPrimary(ctx, key, data, contentType)
	if primaryErr == nil {
		locator.Tier = models.TierPrimary
		return locator, nil
	}

	if w.fallback == nil {
		zap.L().Error("Primary storage failed and no fallback configured",
			zap.String("key", key), zap.Error(primaryErr))
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, primaryErr)
	}

	zap.L().Warn("Primary storage failed, writing to fallback tier",
		zap.String("key", key), zap.Error(primaryErr))
	if err := w.fallback.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		zap.L().Error("Fallback storage failed",
			zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("%w: primary: %v, fallback: %v", ErrStorageUnavailable, primaryErr, err)
	}

	locator.Tier = models.TierFallback
	return locator, nil
}

func (w *Writer) putPrimary(ctx context.Context, key string, data []byte, contentType string) error {
	if w.primary == nil {
		return errors.New("no primary storage configured")
	}

	b := backoff.NewExponentialBackOff()
	if w.initialBackoff > 0 {
		b.InitialInterval = w.initialBackoff
	}
	if w.maxBackoff > 0 {
		b.MaxInterval = w.maxBackoff
	}

	opts := []backoff.RetryOption{backoff.WithBackOff(b), backoff.WithMaxTries(uint(w.maxAttempts))}
	if w.maxElapsed > 0 {
		opts = append(opts, backoff.WithMaxElapsedTime(w.maxElapsed))
	}

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := w.primary.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType)
		if err != nil {
			zap.L().Debug("Primary storage attempt failed",
				zap.String("key", key),
				zap.Int("attempt", attempt),
				zap.Error(err))
		}
		return struct{}{}, err
	}, opts...)
	return err
}

func (w *Writer) tier(tier models.StorageTier) (ObjectStore, error) {
	switch tier {
	case models.TierPrimary:
		if w.primary != nil {
			return w.primary, nil
		}
	case models.TierFallback:
		if w.fallback != nil {
			return w.fallback, nil
		}
	}
	return nil, fmt.Errorf("storage tier %q not configured", tier)
}

func (w *Writer) Get(ctx context.Context, key string, tier models.StorageTier) ([]byte, error) {
	store, err := w.tier(tier)
	if err != nil {
		return nil, err
	}
	return store.Get(ctx, key)
}

func (w *Writer) Delete(ctx context.Context, key string, tier models.StorageTier) error {
	store, err := w.tier(tier)
	if err != nil {
		return err
	}
	return store.Delete(ctx, key)
}

// List returns a user's objects across both tiers, primary first.
func (w *Writer) List(ctx context.Context, userId string) ([]Locator, error) {
	var locators []Locator
	for _, t := range []struct {
		store ObjectStore
		tier  models.StorageTier
	}{{w.primary, models.TierPrimary}, {w.fallback, models.TierFallback}} {
		if t.store == nil {
			continue
		}
		objects, err := t.store.List(ctx, w.userPrefix(userId))
		if err != nil {
			return nil, fmt.Errorf("list %s tier: %w", t.tier, err)
		}
		for _, obj := range objects {
			locators = append(locators, Locator{Key: obj.Key, Tier: t.tier, SizeBytes: obj.SizeBytes})
		}
	}
	return locators, nil
}

// URL returns a fetchable URL for a primary-tier object; fallback objects are not served.
func (w *Writer) URL(ctx context.Context, key string, tier models.StorageTier) string {
	if tier != models.TierPrimary || key == "" {
		return ""
	}
	if w.baseURL != "" {
		return w.baseURL + "/" + key
	}
	if p, ok := w.primary.(Presigner); ok {
		url, err := p.PresignGet(ctx, key, presignExpiry)
		if err != nil {
			zap.L().Warn("Failed to presign photo URL", zap.String("key", key), zap.Error(err))
			return ""
		}
		return url
	}
	return ""
}
