package api

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"capture-scheduler-go/internal/models"
	"capture-scheduler-go/internal/store"

	"go.uber.org/zap"
)

var knownScopes = map[string]bool{
	models.ScopePhotoStorage:      true,
	models.ScopePhotoMonetization: true,
}

// GrantConsent records a new consent version for the given scopes
func (s *CaptureService) GrantConsent(ctx context.Context, userId string, scopes []string) (*models.ConsentView, error) {
	if err := requireUser(userId); err != nil {
		return nil, err
	}
	if len(scopes) == 0 {
		return nil, invalid("at least one scope is required")
	}
	for _, scope := range scopes {
		if !knownScopes[scope] {
			return nil, invalid("unknown consent scope %q", scope)
		}
	}

	record, err := s.store.GrantConsent(ctx, userId, strings.Join(scopes, " "), s.now())
	if err != nil {
		zap.L().Error("Failed to grant consent", zap.String("user_id", userId), zap.Error(err))
		return nil, fmt.Errorf("failed to record consent")
	}
	return toConsentView(record), nil
}

// RevokeConsent revokes one consent version. Revoking twice is a no-op.
func (s *CaptureService) RevokeConsent(ctx context.Context, userId string, version int64) error {
	if err := requireUser(userId); err != nil {
		return err
	}

	if err := s.store.RevokeConsent(ctx, userId, version, s.now()); err != nil {
		if errors.Is(err, store.ErrConsentNotFound) {
			return err
		}
		zap.L().Error("Failed to revoke consent",
			zap.String("user_id", userId),
			zap.Int64("version", version),
			zap.Error(err))
		return fmt.Errorf("failed to revoke consent")
	}
	return nil
}

// CurrentConsent returns the active consent, nil when none is in force
func (s *CaptureService) CurrentConsent(ctx context.Context, userId string) (*models.ConsentView, error) {
	if err := requireUser(userId); err != nil {
		return nil, err
	}
	record, err := s.store.CurrentConsent(ctx, userId)
	if err != nil {
		zap.L().Error("Failed to get consent", zap.String("user_id", userId), zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve consent")
	}
	if record == nil {
		return nil, nil
	}
	return toConsentView(record), nil
}

func toConsentView(record *models.ConsentRecord) *models.ConsentView {
	return &models.ConsentView{
		UserId:    record.UserId,
		Version:   record.Version,
		Scopes:    strings.Fields(record.Scope),
		GrantedAt: record.GrantedAt,
		RevokedAt: record.RevokedAt,
	}
}
