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

package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"capture-scheduler-go/internal/models"
	"capture-scheduler-go/internal/storage"
	"capture-scheduler-go/internal/store"
)

// ErrInvalidRequest marks caller input errors
var ErrInvalidRequest = errors.New("invalid request")

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Trigger starts on-demand captures and reports loop state
type Trigger interface {
	TriggerManual(ctx context.Context, userId string) (*models.CaptureSession, error)
	Status(ctx context.Context) (*models.SchedulerStatus, error)
}

// CaptureService is the Go-level schedule, capture and ledger API
type CaptureService struct {
	store   store.CaptureStore
	ledger  store.LedgerStore
	writer  *storage.Writer
	trigger Trigger
	now     func() time.Time
}

func NewCaptureService(captures store.CaptureStore, ledger store.LedgerStore, writer *storage.Writer, trigger Trigger) *CaptureService {
	return &CaptureService{
		store:   captures,
		ledger:  ledger,
		writer:  writer,
		trigger: trigger,
		now:     time.Now,
	}
}

func (s *CaptureService) HealthCheck(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// SchedulerStatus reports the scheduler loop state
func (s *CaptureService) SchedulerStatus(ctx context.Context) (*models.SchedulerStatus, error) {
	if s.trigger == nil {
		return nil, fmt.Errorf("scheduler not configured")
	}
	return s.trigger.Status(ctx)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

func requireUser(userId string) error {
	if userId == "" {
		return invalid("user_id is required")
	}
	return nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
