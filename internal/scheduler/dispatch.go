package scheduler

import (
	"context"
	"fmt"
	"time"

	"capture-scheduler-go/internal/lock"
	"capture-scheduler-go/internal/models"

	"go.uber.org/zap"
)

const releaseTimeout = 5 * time.Second

// TriggerManual starts an on-demand capture and returns the PENDING session without waiting.
// A capture already running for the user yields lock.ErrLockContention.
func (s *Scheduler) TriggerManual(ctx context.Context, userId string) (*models.CaptureSession, error) {
	if userId == "" {
		return nil, fmt.Errorf("user id cannot be empty")
	}

	lease, err := s.locker.Acquire(ctx, userId)
	if err != nil {
		return nil, err
	}

	session, err := s.openSession(ctx, userId, nil, s.now())
	if err != nil {
		s.release(lease)
		return nil, err
	}

	zap.L().Info("Manual capture triggered",
		zap.String("user_id", userId),
		zap.String("session_id", session.Id))

	s.dispatch(session, lease, nil, session.StartedAt)
	return session, nil
}

// openSession creates the user's session under a freshly acquired lease.
// Holding the lease means no worker owns a live session for the user, so any
// left over belongs to a crashed run and is failed first.
func (s *Scheduler) openSession(ctx context.Context, userId string, scheduleId *int64, at time.Time) (*models.CaptureSession, error) {
	if _, err := s.store.AbandonUserSessions(ctx, userId, at, models.FailureAbandoned); err != nil {
		return nil, err
	}
	session, err := s.store.CreateSession(ctx, userId, scheduleId, at)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// dispatch runs the session in the background. The lease is held until the run ends;
// a successful scheduled run advances its schedule.
func (s *Scheduler) dispatch(session *models.CaptureSession, lease *lock.Lease, scheduleId *int64, firedAt time.Time) {
	s.inFlight.Add(1)
	s.active.Add(1)

	go func() {
		defer s.inFlight.Done()
		defer s.active.Add(-1)
		defer s.release(lease)

		ok := s.runner.Run(s.runCtx, session)
		if !ok || scheduleId == nil {
			return
		}
		if err := s.store.RecordTrigger(s.runCtx, *scheduleId, firedAt); err != nil {
			zap.L().Error("Failed to record schedule trigger",
				zap.Int64("schedule_id", *scheduleId),
				zap.String("session_id", session.Id),
				zap.Error(err))
		}
	}()
}

func (s *Scheduler) release(lease *lock.Lease) {
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	if err := s.locker.Release(ctx, lease); err != nil {
		zap.L().Warn("Failed to release user lock",
			zap.String("user_id", lease.UserId),
			zap.Error(err))
	}
}

// Status reports the loop state
func (s *Scheduler) Status(ctx context.Context) (*models.SchedulerStatus, error) {
	active, err := s.store.ListActiveSchedules(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count active schedules: %w", err)
	}
	return &models.SchedulerStatus{
		Running:         s.running.Load(),
		InFlight:        int(s.active.Load()),
		ActiveSchedules: len(active),
		LastTickAt:      s.getLastTick(),
		TickInterval:    s.tickInterval.String(),
	}, nil
}

// WaitIdle blocks until no sessions are in flight
func (s *Scheduler) WaitIdle() {
	s.inFlight.Wait()
}
