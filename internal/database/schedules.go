package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"capture-scheduler-go/internal/models"
	"capture-scheduler-go/internal/store"

	"go.uber.org/zap"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSchedule(row rowScanner) (*models.Schedule, error) {
	var sched models.Schedule
	var frequencySeconds int64
	var lastTriggeredAt, pausedAt sql.NullTime
	err := row.Scan(&sched.Id, &sched.UserId, &frequencySeconds, &sched.Active, &sched.Archived,
		&sched.NotificationsEnabled, &sched.SilentMode, &lastTriggeredAt, &sched.TriggerCount,
		&pausedAt, &sched.CreatedAt, &sched.UpdatedAt)
	if err != nil {
		return nil, err
	}
	sched.Frequency = time.Duration(frequencySeconds) * time.Second
	sched.LastTriggeredAt = nullTimePtr(lastTriggeredAt)
	sched.PausedAt = nullTimePtr(pausedAt)
	sched.CreatedAt = sched.CreatedAt.UTC()
	sched.UpdatedAt = sched.UpdatedAt.UTC()
	return &sched, nil
}

func (s *Service) CreateSchedule(ctx context.Context, params store.CreateScheduleParams) (*models.Schedule, error) {
	if params.UserId == "" {
		return nil, fmt.Errorf("user id cannot be empty")
	}
	if params.Frequency < models.MinFrequency {
		return nil, fmt.Errorf("%w: got %v", store.ErrInvalidFrequency, params.Frequency)
	}

	now := time.Now().UTC()
	row := s.db.QueryRowContext(ctx, queryInsertSchedule,
		params.UserId, int64(params.Frequency/time.Second), params.NotificationsEnabled, params.SilentMode, now, now)
	sched, err := scanSchedule(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create schedule: %w", err)
	}

	zap.L().Info("Schedule created",
		zap.Int64("schedule_id", sched.Id),
		zap.String("user_id", sched.UserId),
		zap.Duration("frequency", sched.Frequency))
	return sched, nil
}

func (s *Service) GetSchedule(ctx context.Context, id int64) (*models.Schedule, error) {
	sched, err := scanSchedule(s.db.QueryRowContext(ctx, queryGetSchedule, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", store.ErrScheduleNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get schedule: %w", err)
	}
	return sched, nil
}

func (s *Service) ListSchedulesByUser(ctx context.Context, userId string) ([]models.Schedule, error) {
	return s.querySchedules(ctx, queryGetSchedulesByUser, userId)
}

// ListActiveSchedules returns active, non-archived schedules in ascending id order
func (s *Service) ListActiveSchedules(ctx context.Context) ([]models.Schedule, error) {
	return s.querySchedules(ctx, queryGetActiveSchedules)
}

// ListDueSchedules returns active schedules whose frequency has elapsed at now, ascending by id
func (s *Service) ListDueSchedules(ctx context.Context, now time.Time) ([]models.Schedule, error) {
	active, err := s.ListActiveSchedules(ctx)
	if err != nil {
		return nil, err
	}
	due := active[:0]
	for _, sched := range active {
		if sched.IsDue(now) {
			due = append(due, sched)
		}
	}
	return due, nil
}

func (s *Service) querySchedules(ctx context.Context, query string, args ...any) ([]models.Schedule, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedules: %w", err)
	}
	defer closeRows(rows)

	var schedules []models.Schedule
	for rows.Next() {
		sched, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}
		schedules = append(schedules, *sched)
	}

	if err := rows.Err(); err != nil {
		zap.L().Error("Error during schedule row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating schedule rows: %w", err)
	}
	return schedules, nil
}

func (s *Service) UpdateSchedule(ctx context.Context, id int64, update models.ScheduleUpdate) (*models.Schedule, error) {
	sched, err := s.GetSchedule(ctx, id)
	if err != nil {
		return nil, err
	}

	if update.Frequency != nil {
		if *update.Frequency < models.MinFrequency {
			return nil, fmt.Errorf("%w: got %v", store.ErrInvalidFrequency, *update.Frequency)
		}
		sched.Frequency = *update.Frequency
	}
	if update.NotificationsEnabled != nil {
		sched.NotificationsEnabled = *update.NotificationsEnabled
	}
	if update.SilentMode != nil {
		sched.SilentMode = *update.SilentMode
	}

	_, err = s.db.ExecContext(ctx, queryUpdateScheduleSettings,
		int64(sched.Frequency/time.Second), sched.NotificationsEnabled, sched.SilentMode, time.Now().UTC(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update schedule: %w", err)
	}
	return s.GetSchedule(ctx, id)
}

// SetScheduleActive pauses or resumes a schedule. Already being in the requested state is a no-op.
func (s *Service) SetScheduleActive(ctx context.Context, id int64, active bool, at time.Time) (*models.Schedule, error) {
	sched, err := s.GetSchedule(ctx, id)
	if err != nil {
		return nil, err
	}
	if sched.Active == active {
		return sched, nil
	}
	if sched.Archived {
		return nil, fmt.Errorf("%w: %d", store.ErrScheduleArchived, id)
	}

	var pausedAt *time.Time
	if !active {
		t := at.UTC()
		pausedAt = &t
	}

	if _, err := s.db.ExecContext(ctx, queryUpdateScheduleActive, active, pausedAt, at.UTC(), id); err != nil {
		return nil, fmt.Errorf("failed to update schedule state: %w", err)
	}

	zap.L().Info("Schedule state changed",
		zap.Int64("schedule_id", id),
		zap.Bool("active", active))
	return s.GetSchedule(ctx, id)
}

// ArchiveSchedule soft-deletes a schedule; sessions keep their reference to it
func (s *Service) ArchiveSchedule(ctx context.Context, id int64, at time.Time) error {
	result, err := s.db.ExecContext(ctx, queryArchiveSchedule, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to archive schedule: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %d", store.ErrScheduleNotFound, id)
	}

	zap.L().Info("Schedule archived", zap.Int64("schedule_id", id))
	return nil
}

// RecordTrigger counts a successful fire and advances last_triggered_at monotonically
func (s *Service) RecordTrigger(ctx context.Context, id int64, at time.Time) error {
	at = at.UTC()
	result, err := s.db.ExecContext(ctx, queryRecordTrigger, at, at, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to record trigger: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %d", store.ErrScheduleNotFound, id)
	}

	zap.L().Debug("Schedule trigger recorded", zap.Int64("schedule_id", id), zap.Time("at", at))
	return nil
}
