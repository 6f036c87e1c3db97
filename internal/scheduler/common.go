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
	"sync"
	"sync/atomic"
	"time"

	"capture-scheduler-go/internal/lock"
	"capture-scheduler-go/internal/models"
	"capture-scheduler-go/internal/notify"
	"capture-scheduler-go/internal/store"
)

// Runner executes one capture session to a terminal state
type Runner interface {
	Run(ctx context.Context, session *models.CaptureSession) bool
}

// SchedulerConfig contains configuration for Scheduler
type SchedulerConfig struct {
	Store    store.CaptureStore
	Locker   lock.Locker
	Runner   Runner
	Notifier notify.Notifier

	TickInterval     time.Duration
	ReapInterval     time.Duration
	SessionDeadline  time.Duration
	LeaseTTL         time.Duration
	MaxDailyCaptures int
}

// Scheduler fires due schedules and dispatches capture sessions
type Scheduler struct {
	store    store.CaptureStore
	locker   lock.Locker
	runner   Runner
	notifier notify.Notifier

	tickInterval     time.Duration
	reapInterval     time.Duration
	staleAfter       time.Duration
	maxDailyCaptures int
	now              func() time.Time

	// dispatch context outlives the request that triggered a manual capture
	runCtx    context.Context
	cancelRun context.CancelFunc

	// In-flight dispatches
	inFlight sync.WaitGroup
	running  atomic.Bool
	active   atomic.Int32

	mutex      sync.RWMutex
	lastTickAt *time.Time

	// Control channels
	stopChan chan struct{}
	doneChan chan struct{}
	reapDone chan struct{}
}

// NewScheduler creates a new scheduler
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	runCtx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		store:            cfg.Store,
		locker:           cfg.Locker,
		runner:           cfg.Runner,
		notifier:         cfg.Notifier,
		tickInterval:     cfg.TickInterval,
		reapInterval:     cfg.ReapInterval,
		staleAfter:       staleAge(cfg),
		maxDailyCaptures: cfg.MaxDailyCaptures,
		now:              time.Now,
		runCtx:           runCtx,
		cancelRun:        cancel,
		stopChan:         make(chan struct{}),
		doneChan:         make(chan struct{}),
		reapDone:         make(chan struct{}),
	}
}

// staleAge is the age past which a live session has no lease holder left.
// A worker's lease outlives its session deadline, so the lease TTL bounds both.
func staleAge(cfg SchedulerConfig) time.Duration {
	if cfg.LeaseTTL > 0 {
		return cfg.LeaseTTL
	}
	return cfg.SessionDeadline
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (s *Scheduler) setLastTick(at time.Time) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.lastTickAt = &at
}

func (s *Scheduler) getLastTick() *time.Time {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if s.lastTickAt == nil {
		return nil
	}
	t := *s.lastTickAt
	return &t
}

func (s *Scheduler) stopping() bool {
	select {
	case <-s.stopChan:
		return true
	default:
		return false
	}
}
