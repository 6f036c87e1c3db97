package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"capture-scheduler-go/internal/models"
	"capture-scheduler-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func scanSession(row rowScanner) (*models.CaptureSession, error) {
	var session models.CaptureSession
	var scheduleId sql.NullInt64
	var completedAt sql.NullTime
	var failureReason, photoId sql.NullString
	var status string
	err := row.Scan(&session.Id, &session.UserId, &scheduleId, &status, &session.StartedAt,
		&completedAt, &failureReason, &photoId, &session.EarningsCents)
	if err != nil {
		return nil, err
	}
	session.Status = models.SessionStatus(status)
	session.ScheduleId = nullInt64Ptr(scheduleId)
	session.StartedAt = session.StartedAt.UTC()
	session.CompletedAt = nullTimePtr(completedAt)
	session.FailureReason = nullStringPtr(failureReason)
	session.PhotoId = nullStringPtr(photoId)
	return &session, nil
}

// CreateSession inserts a PENDING session; a nil scheduleId marks a manual capture
func (s *Service) CreateSession(ctx context.Context, userId string, scheduleId *int64, at time.Time) (*models.CaptureSession, error) {
	if userId == "" {
		return nil, fmt.Errorf("user id cannot be empty")
	}
	row := s.db.QueryRowContext(ctx, queryInsertSession, uuid.New().String(), userId, scheduleId, at.UTC())
	session, err := scanSession(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", store.ErrSessionInProgress, userId)
		}
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

func (s *Service) GetSession(ctx context.Context, id string) (*models.CaptureSession, error) {
	session, err := scanSession(s.db.QueryRowContext(ctx, queryGetSession, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", store.ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

func (s *Service) ListSessionsByUser(ctx context.Context, userId string, limit, offset int) ([]models.CaptureSession, error) {
	rows, err := s.db.QueryContext(ctx, queryGetSessionsByUser, userId, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer closeRows(rows)

	var sessions []models.CaptureSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, *session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating session rows: %w", err)
	}
	return sessions, nil
}

// TransitionSession persists a state change. Terminal sessions are immutable.
func (s *Service) TransitionSession(ctx context.Context, params store.TransitionParams) error {
	var completedAt *time.Time
	if params.To.IsTerminal() {
		t := params.At.UTC()
		completedAt = &t
	}

	result, err := s.db.ExecContext(ctx, queryTransitionSession,
		string(params.To), completedAt, params.FailureReason, params.PhotoId, params.EarningsCents, params.SessionId)
	if err != nil {
		return fmt.Errorf("failed to transition session: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		if _, err := s.GetSession(ctx, params.SessionId); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s", store.ErrSessionTerminal, params.SessionId)
	}

	zap.L().Debug("Session transitioned",
		zap.String("session_id", params.SessionId),
		zap.String("status", string(params.To)))
	return nil
}

// CountSessionsSince counts sessions of any status started at or after since
func (s *Service) CountSessionsSince(ctx context.Context, userId string, since time.Time) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, queryCountSessionsSince, userId, since.UTC()).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return count, nil
}

// FailStaleSessions moves non-terminal sessions started before the cutoff to FAILED
func (s *Service) FailStaleSessions(ctx context.Context, startedBefore, at time.Time, reason string) (int64, error) {
	result, err := s.db.ExecContext(ctx, queryFailStaleSessions, at.UTC(), reason, startedBefore.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to fail stale sessions: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected > 0 {
		zap.L().Warn("Failed stale capture sessions",
			zap.Int64("count", rowsAffected),
			zap.Time("started_before", startedBefore),
			zap.String("reason", reason))
	}
	return rowsAffected, nil
}

func (s *Service) AbandonUserSessions(ctx context.Context, userId string, at time.Time, reason string) (int64, error) {
	result, err := s.db.ExecContext(ctx, queryAbandonUserSessions, at.UTC(), reason, userId)
	if err != nil {
		return 0, fmt.Errorf("failed to abandon user sessions: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected > 0 {
		zap.L().Warn("Abandoned orphaned capture sessions",
			zap.String("user_id", userId),
			zap.Int64("count", rowsAffected),
			zap.String("reason", reason))
	}
	return rowsAffected, nil
}
