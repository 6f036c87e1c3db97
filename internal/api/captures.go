package api

import (
	"context"
	"errors"
	"fmt"

	"capture-scheduler-go/internal/lock"
	"capture-scheduler-go/internal/models"
	"capture-scheduler-go/internal/store"

	"go.uber.org/zap"
)

// TriggerCapture starts a manual capture and returns the pending session right away
func (s *CaptureService) TriggerCapture(ctx context.Context, userId string) (*models.SessionRecord, error) {
	if err := requireUser(userId); err != nil {
		return nil, err
	}
	if s.trigger == nil {
		return nil, fmt.Errorf("scheduler not configured")
	}

	session, err := s.trigger.TriggerManual(ctx, userId)
	if err != nil {
		if errors.Is(err, lock.ErrLockContention) {
			return nil, err
		}
		zap.L().Error("Failed to trigger capture", zap.String("user_id", userId), zap.Error(err))
		return nil, fmt.Errorf("failed to trigger capture")
	}
	return toSessionRecord(session), nil
}

// GetSession returns one of the user's capture sessions
func (s *CaptureService) GetSession(ctx context.Context, userId, sessionId string) (*models.SessionRecord, error) {
	if err := requireUser(userId); err != nil {
		return nil, err
	}

	session, err := s.store.GetSession(ctx, sessionId)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return nil, err
		}
		zap.L().Error("Failed to get session", zap.String("session_id", sessionId), zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve session")
	}
	if session.UserId != userId {
		return nil, store.ErrSessionNotFound
	}
	return toSessionRecord(session), nil
}

// ListSessions returns the user's sessions, newest first
func (s *CaptureService) ListSessions(ctx context.Context, userId string, limit, offset int) ([]models.SessionRecord, error) {
	if err := requireUser(userId); err != nil {
		return nil, err
	}
	limit, offset = clampPage(limit, offset)

	sessions, err := s.store.ListSessionsByUser(ctx, userId, limit, offset)
	if err != nil {
		zap.L().Error("Failed to list sessions", zap.String("user_id", userId), zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve sessions")
	}

	result := make([]models.SessionRecord, len(sessions))
	for i := range sessions {
		result[i] = *toSessionRecord(&sessions[i])
	}
	return result, nil
}

// ListPhotos returns the user's photo artifacts with a display URL where one exists
func (s *CaptureService) ListPhotos(ctx context.Context, userId string, limit, offset int) ([]models.PhotoRecord, error) {
	if err := requireUser(userId); err != nil {
		return nil, err
	}
	limit, offset = clampPage(limit, offset)

	artifacts, err := s.store.ListArtifactsByUser(ctx, userId, limit, offset)
	if err != nil {
		zap.L().Error("Failed to list photos", zap.String("user_id", userId), zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve photos")
	}

	result := make([]models.PhotoRecord, len(artifacts))
	for i, artifact := range artifacts {
		result[i] = models.PhotoRecord{
			Id:          artifact.Id,
			SessionId:   artifact.SessionId,
			StorageTier: artifact.StorageTier,
			SizeBytes:   artifact.SizeBytes,
			CapturedAt:  artifact.CapturedAt,
			IsValid:     artifact.IsValid,
			Monetizable: artifact.Monetizable,
		}
		if artifact.StorageKey != nil && s.writer != nil {
			result[i].URL = s.writer.URL(ctx, *artifact.StorageKey, artifact.StorageTier)
		}
	}
	return result, nil
}

func toSessionRecord(session *models.CaptureSession) *models.SessionRecord {
	record := &models.SessionRecord{
		Id:          session.Id,
		UserId:      session.UserId,
		ScheduleId:  session.ScheduleId,
		Status:      session.Status,
		StartedAt:   session.StartedAt,
		CompletedAt: session.CompletedAt,
		Earnings:    models.CentsToDollars(session.EarningsCents),
	}
	if session.FailureReason != nil {
		record.FailureReason = *session.FailureReason
	}
	if session.PhotoId != nil {
		record.PhotoId = *session.PhotoId
	}
	return record
}
