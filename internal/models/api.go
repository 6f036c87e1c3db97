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

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ScheduleRecord is the API view of a schedule
type ScheduleRecord struct {
	Id                   int64      `json:"id"`
	UserId               string     `json:"user_id"`
	FrequencyHours       float64    `json:"frequency_hours"`
	Active               bool       `json:"active"`
	Archived             bool       `json:"archived"`
	NotificationsEnabled bool       `json:"notifications_enabled"`
	SilentMode           bool       `json:"silent_mode"`
	LastTriggeredAt      *time.Time `json:"last_triggered_at,omitempty"`
	NextCaptureAt        *time.Time `json:"next_capture_at,omitempty"`
	PausedAt             *time.Time `json:"paused_at,omitempty"`
	TriggerCount         int64      `json:"trigger_count"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// ScheduleOptions are the caller-settable schedule flags
type ScheduleOptions struct {
	NotificationsEnabled bool `json:"notifications_enabled"`
	SilentMode           bool `json:"silent_mode"`
}

// ScheduleUpdate holds an edit to a schedule; nil fields are left unchanged
type ScheduleUpdate struct {
	Frequency            *time.Duration
	NotificationsEnabled *bool
	SilentMode           *bool
}

// SessionRecord is the API view of a capture session
type SessionRecord struct {
	Id            string          `json:"id"`
	UserId        string          `json:"user_id"`
	ScheduleId    *int64          `json:"schedule_id,omitempty"`
	Status        SessionStatus   `json:"status"`
	StartedAt     time.Time       `json:"started_at"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
	FailureReason string          `json:"failure_reason,omitempty"`
	PhotoId       string          `json:"photo_id,omitempty"`
	Earnings      decimal.Decimal `json:"earnings"`
}

// PhotoRecord is the API view of a photo artifact
type PhotoRecord struct {
	Id          string      `json:"id"`
	SessionId   string      `json:"session_id"`
	StorageTier StorageTier `json:"storage_tier,omitempty"`
	URL         string      `json:"url,omitempty"`
	SizeBytes   int64       `json:"size_bytes"`
	CapturedAt  time.Time   `json:"captured_at"`
	IsValid     bool        `json:"is_valid"`
	Monetizable bool        `json:"monetizable"`
}

// ConsentView is the API view of a consent version
type ConsentView struct {
	UserId    string     `json:"user_id"`
	Version   int64      `json:"version"`
	Scopes    []string   `json:"scopes"`
	GrantedAt time.Time  `json:"granted_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

// UserBalance represents a user's earnings balance
type UserBalance struct {
	UserId       string          `json:"user_id"`
	BalanceCents int64           `json:"balance_cents"`
	Balance      decimal.Decimal `json:"balance"`
	UpdatedAt    *time.Time      `json:"updated_at,omitempty"`
}

// EarningRecord represents an entry in the user's earnings history
type EarningRecord struct {
	Id          string          `json:"id"`
	PhotoId     string          `json:"photo_id,omitempty"`
	AmountCents int64           `json:"amount_cents"`
	Amount      decimal.Decimal `json:"amount"`
	Reason      string          `json:"reason"`
	CreatedAt   time.Time       `json:"created_at"`
}

// SchedulerStatus reports the scheduler loop state
type SchedulerStatus struct {
	Running         bool       `json:"is_running"`
	InFlight        int        `json:"in_flight"`
	ActiveSchedules int        `json:"active_schedules"`
	LastTickAt      *time.Time `json:"last_tick_at,omitempty"`
	TickInterval    string     `json:"tick_interval"`
}

// CentsToDollars converts an amount in cents to a two-place decimal
func CentsToDollars(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
