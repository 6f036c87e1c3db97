/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"capture-scheduler-go/internal/lock"
	"capture-scheduler-go/internal/models"
	"capture-scheduler-go/internal/notify"

	"go.uber.org/zap"
)

// Start recovers abandoned sessions and begins the tick and reap loops
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("scheduler already running")
	}
	zap.L().Info("Starting capture scheduler")

	// Fail sessions left behind by a previous process
	if err := s.performStartupRecovery(ctx); err != nil {
		s.running.Store(false)
		zap.L().Error("Startup recovery failed", zap.Error(err))
		return fmt.Errorf("startup recovery failed: %w", err)
	}

	go s.tickLoop(ctx)
	go s.reapLoop(ctx)

	zap.L().Info("Capture scheduler started successfully",
		zap.Duration("tick_interval", s.tickInterval),
		zap.Duration("reap_interval", s.reapInterval),
		zap.Int("max_daily_captures", s.maxDailyCaptures))

	return nil
}

// Stop ends the loops and waits for every in-flight session to finish
func (s *Scheduler) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	zap.L().Info("Stopping capture scheduler")
	close(s.stopChan)
	<-s.doneChan
	<-s.reapDone

	s.inFlight.Wait()
	s.cancelRun()
	zap.L().Info("Capture scheduler stopped")
}

// tickLoop runs the main scheduling loop
func (s *Scheduler) tickLoop(ctx context.Context) {
	defer close(s.doneChan)

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	s.tick(ctx)

	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// tick fires every due schedule in ascending id order without waiting for the sessions
func (s *Scheduler) tick(ctx context.Context) {
	now := s.now().UTC()
	s.setLastTick(now)

	due, err := s.store.ListDueSchedules(ctx, now)
	if err != nil {
		zap.L().Error("Failed to list due schedules", zap.Error(err))
		return
	}
	if len(due) > 0 {
		zap.L().Debug("Due schedules", zap.Int("count", len(due)), zap.Time("now", now))
	}

	for _, sched := range due {
		if s.stopping() {
			return
		}
		if err := s.fire(ctx, sched, now); err != nil {
			zap.L().Error("Failed to fire schedule",
				zap.Int64("schedule_id", sched.Id),
				zap.String("user_id", sched.UserId),
				zap.Error(err))
		}
	}
}

// fire starts a session for one due schedule. Skips are not errors.
func (s *Scheduler) fire(ctx context.Context, sched models.Schedule, now time.Time) error {
	if s.maxDailyCaptures > 0 {
		count, err := s.store.CountSessionsSince(ctx, sched.UserId, startOfDay(now))
		if err != nil {
			return fmt.Errorf("failed to count sessions: %w", err)
		}
		if count >= s.maxDailyCaptures {
			zap.L().Debug("Daily capture limit reached, skipping",
				zap.Int64("schedule_id", sched.Id),
				zap.String("user_id", sched.UserId),
				zap.Int("count", count))
			return nil
		}
	}

	lease, err := s.locker.Acquire(ctx, sched.UserId)
	if errors.Is(err, lock.ErrLockContention) {
		zap.L().Debug("User capture in progress, skipping",
			zap.Int64("schedule_id", sched.Id),
			zap.String("user_id", sched.UserId))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to acquire user lock: %w", err)
	}

	if sched.ShouldNotify() {
		s.remind(ctx, sched, now)
	}

	scheduleId := sched.Id
	session, err := s.openSession(ctx, sched.UserId, &scheduleId, now)
	if err != nil {
		s.release(lease)
		return err
	}

	s.dispatch(session, lease, &scheduleId, now)
	return nil
}

func (s *Scheduler) remind(ctx context.Context, sched models.Schedule, now time.Time) {
	if s.notifier == nil {
		return
	}
	scheduleId := sched.Id
	err := s.notifier.Notify(ctx, notify.Notification{
		Kind:       notify.KindCaptureReminder,
		UserId:     sched.UserId,
		ScheduleId: &scheduleId,
		Message:    "Scheduled photo capture starting",
		At:         now,
	})
	if err != nil {
		zap.L().Warn("Failed to send capture notification",
			zap.Int64("schedule_id", sched.Id),
			zap.Error(err))
	}
}

// performStartupRecovery fails sessions a crashed worker left in flight
func (s *Scheduler) performStartupRecovery(ctx context.Context) error {
	zap.L().Info("Starting startup recovery process")

	reaped, err := s.reap(ctx)
	if err != nil {
		return err
	}

	zap.L().Info("Startup recovery completed successfully",
		zap.Int64("sessions_abandoned", reaped),
		zap.Duration("stale_after", s.staleAfter))
	return nil
}

// reapLoop periodically fails sessions that outlived their lease
func (s *Scheduler) reapLoop(ctx context.Context) {
	defer close(s.reapDone)

	if s.reapInterval <= 0 {
		<-s.stopChan
		return
	}

	ticker := time.NewTicker(s.reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.reap(ctx); err != nil {
				zap.L().Error("Failed to reap stale sessions", zap.Error(err))
			}
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) reap(ctx context.Context) (int64, error) {
	now := s.now().UTC()
	reaped, err := s.store.FailStaleSessions(ctx, now.Add(-s.staleAfter), now, models.FailureAbandoned)
	if err != nil {
		return 0, fmt.Errorf("failed to fail stale sessions: %w", err)
	}
	return reaped, nil
}
