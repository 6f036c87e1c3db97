package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"capture-scheduler-go/internal/models"
	"capture-scheduler-go/internal/store"

	"go.uber.org/zap"
)

// CreateSchedule registers a recurring capture cadence for a user
func (s *CaptureService) CreateSchedule(ctx context.Context, userId string, frequency time.Duration, opts models.ScheduleOptions) (*models.ScheduleRecord, error) {
	if err := requireUser(userId); err != nil {
		return nil, err
	}

	sched, err := s.store.CreateSchedule(ctx, store.CreateScheduleParams{
		UserId:               userId,
		Frequency:            frequency,
		NotificationsEnabled: opts.NotificationsEnabled,
		SilentMode:           opts.SilentMode,
	})
	if err != nil {
		if errors.Is(err, store.ErrInvalidFrequency) {
			return nil, err
		}
		zap.L().Error("Failed to create schedule", zap.String("user_id", userId), zap.Error(err))
		return nil, fmt.Errorf("failed to create schedule")
	}

	zap.L().Info("Schedule created",
		zap.String("user_id", userId),
		zap.Int64("schedule_id", sched.Id),
		zap.Duration("frequency", sched.Frequency))
	return toScheduleRecord(sched), nil
}

// GetSchedule returns one of the user's schedules
func (s *CaptureService) GetSchedule(ctx context.Context, userId string, id int64) (*models.ScheduleRecord, error) {
	sched, err := s.ownedSchedule(ctx, userId, id)
	if err != nil {
		return nil, err
	}
	return toScheduleRecord(sched), nil
}

// ListSchedules returns every schedule of the user, archived ones included
func (s *CaptureService) ListSchedules(ctx context.Context, userId string) ([]models.ScheduleRecord, error) {
	if err := requireUser(userId); err != nil {
		return nil, err
	}

	schedules, err := s.store.ListSchedulesByUser(ctx, userId)
	if err != nil {
		zap.L().Error("Failed to list schedules", zap.String("user_id", userId), zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve schedules")
	}

	result := make([]models.ScheduleRecord, len(schedules))
	for i := range schedules {
		result[i] = *toScheduleRecord(&schedules[i])
	}
	return result, nil
}

// UpdateSchedule edits frequency and notification flags
func (s *CaptureService) UpdateSchedule(ctx context.Context, userId string, id int64, update models.ScheduleUpdate) (*models.ScheduleRecord, error) {
	if _, err := s.ownedSchedule(ctx, userId, id); err != nil {
		return nil, err
	}

	sched, err := s.store.UpdateSchedule(ctx, id, update)
	if err != nil {
		return nil, s.scheduleError("update", id, err)
	}
	return toScheduleRecord(sched), nil
}

// PauseSchedule stops a schedule from firing. Pausing a paused schedule is a no-op.
func (s *CaptureService) PauseSchedule(ctx context.Context, userId string, id int64) (*models.ScheduleRecord, error) {
	return s.setActive(ctx, userId, id, false)
}

// ResumeSchedule lets a paused schedule fire again
func (s *CaptureService) ResumeSchedule(ctx context.Context, userId string, id int64) (*models.ScheduleRecord, error) {
	return s.setActive(ctx, userId, id, true)
}

func (s *CaptureService) setActive(ctx context.Context, userId string, id int64, active bool) (*models.ScheduleRecord, error) {
	if _, err := s.ownedSchedule(ctx, userId, id); err != nil {
		return nil, err
	}

	sched, err := s.store.SetScheduleActive(ctx, id, active, s.now())
	if err != nil {
		return nil, s.scheduleError("toggle", id, err)
	}

	zap.L().Info("Schedule state changed",
		zap.String("user_id", userId),
		zap.Int64("schedule_id", id),
		zap.Bool("active", sched.Active))
	return toScheduleRecord(sched), nil
}

// DeleteSchedule archives the schedule. Its sessions keep their reference.
func (s *CaptureService) DeleteSchedule(ctx context.Context, userId string, id int64) error {
	if _, err := s.ownedSchedule(ctx, userId, id); err != nil {
		return err
	}
	if err := s.store.ArchiveSchedule(ctx, id, s.now()); err != nil {
		return s.scheduleError("archive", id, err)
	}
	zap.L().Info("Schedule archived", zap.String("user_id", userId), zap.Int64("schedule_id", id))
	return nil
}

// ownedSchedule loads a schedule and hides schedules of other users
func (s *CaptureService) ownedSchedule(ctx context.Context, userId string, id int64) (*models.Schedule, error) {
	if err := requireUser(userId); err != nil {
		return nil, err
	}
	sched, err := s.store.GetSchedule(ctx, id)
	if err != nil {
		return nil, s.scheduleError("get", id, err)
	}
	if sched.UserId != userId {
		return nil, store.ErrScheduleNotFound
	}
	return sched, nil
}

func (s *CaptureService) scheduleError(op string, id int64, err error) error {
	switch {
	case errors.Is(err, store.ErrScheduleNotFound),
		errors.Is(err, store.ErrScheduleArchived),
		errors.Is(err, store.ErrInvalidFrequency):
		return err
	}
	zap.L().Error("Schedule operation failed",
		zap.String("op", op),
		zap.Int64("schedule_id", id),
		zap.Error(err))
	return fmt.Errorf("failed to %s schedule", op)
}

func toScheduleRecord(sched *models.Schedule) *models.ScheduleRecord {
	return &models.ScheduleRecord{
		Id:                   sched.Id,
		UserId:               sched.UserId,
		FrequencyHours:       sched.Frequency.Hours(),
		Active:               sched.Active,
		Archived:             sched.Archived,
		NotificationsEnabled: sched.NotificationsEnabled,
		SilentMode:           sched.SilentMode,
		LastTriggeredAt:      sched.LastTriggeredAt,
		NextCaptureAt:        sched.NextCaptureAt(),
		PausedAt:             sched.PausedAt,
		TriggerCount:         sched.TriggerCount,
		CreatedAt:            sched.CreatedAt,
		UpdatedAt:            sched.UpdatedAt,
	}
}
