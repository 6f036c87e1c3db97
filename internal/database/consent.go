package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"capture-scheduler-go/internal/models"
	"capture-scheduler-go/internal/store"

	"go.uber.org/zap"
)

// GrantConsent records a new consent version. Older open versions are revoked at the
// same instant so at most one version is current.
func (s *Service) GrantConsent(ctx context.Context, userId, scope string, at time.Time) (*models.ConsentRecord, error) {
	if userId == "" {
		return nil, fmt.Errorf("user id cannot be empty")
	}
	scope = strings.Join(strings.Fields(scope), " ")
	at = at.UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var latest int64
	if err := tx.QueryRowContext(ctx, queryMaxConsentVersion, userId).Scan(&latest); err != nil {
		return nil, fmt.Errorf("failed to read consent version: %w", err)
	}
	if _, err := tx.ExecContext(ctx, querySupersedeConsent, at, userId); err != nil {
		return nil, fmt.Errorf("failed to supersede consent: %w", err)
	}

	record := &models.ConsentRecord{UserId: userId, Version: latest + 1, Scope: scope, GrantedAt: at}
	if _, err := tx.ExecContext(ctx, queryInsertConsent, record.UserId, record.Version, record.Scope, record.GrantedAt); err != nil {
		return nil, fmt.Errorf("failed to insert consent: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	zap.L().Info("Consent granted",
		zap.String("user_id", userId),
		zap.Int64("version", record.Version),
		zap.String("scope", scope))
	return record, nil
}

// RevokeConsent sets revoked_at on a version; revoking an already revoked version is a no-op
func (s *Service) RevokeConsent(ctx context.Context, userId string, version int64, at time.Time) error {
	result, err := s.db.ExecContext(ctx, queryRevokeConsent, at.UTC(), userId, version)
	if err != nil {
		return fmt.Errorf("failed to revoke consent: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		var exists int
		err := s.db.QueryRowContext(ctx, queryConsentExists, userId, version).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: user %s version %d", store.ErrConsentNotFound, userId, version)
		}
		if err != nil {
			return fmt.Errorf("failed to check consent: %w", err)
		}
		return nil
	}

	zap.L().Info("Consent revoked", zap.String("user_id", userId), zap.Int64("version", version))
	return nil
}

// CurrentConsent returns the highest non-revoked version, or nil when the user has none
func (s *Service) CurrentConsent(ctx context.Context, userId string) (*models.ConsentRecord, error) {
	var record models.ConsentRecord
	var revokedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, queryCurrentConsent, userId).
		Scan(&record.UserId, &record.Version, &record.Scope, &record.GrantedAt, &revokedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get current consent: %w", err)
	}
	record.GrantedAt = record.GrantedAt.UTC()
	record.RevokedAt = nullTimePtr(revokedAt)
	return &record, nil
}
