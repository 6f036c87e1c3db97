package models

import (
	"strings"
	"time"
)

// MinFrequency is the shortest cadence a schedule may fire at
const MinFrequency = time.Hour

// Schedule represents a user's recurring capture cadence
type Schedule struct {
	Id                   int64         `db:"id"`
	UserId               string        `db:"user_id"`
	Frequency            time.Duration `db:"frequency_seconds"`
	Active               bool          `db:"active"`
	Archived             bool          `db:"archived"`
	NotificationsEnabled bool          `db:"notifications_enabled"`
	SilentMode           bool          `db:"silent_mode"`
	LastTriggeredAt      *time.Time    `db:"last_triggered_at"`
	TriggerCount         int64         `db:"trigger_count"`
	PausedAt             *time.Time    `db:"paused_at"`
	CreatedAt            time.Time     `db:"created_at"`
	UpdatedAt            time.Time     `db:"updated_at"`
}

// IsDue reports whether the schedule should fire at now
func (s Schedule) IsDue(now time.Time) bool {
	if !s.Active || s.Archived {
		return false
	}
	if s.LastTriggeredAt == nil {
		return true
	}
	return !now.Before(s.LastTriggeredAt.Add(s.Frequency))
}

// NextCaptureAt returns when the schedule is next eligible to fire, nil when paused or archived
func (s Schedule) NextCaptureAt() *time.Time {
	if !s.Active || s.Archived {
		return nil
	}
	if s.LastTriggeredAt == nil {
		next := s.CreatedAt
		return &next
	}
	next := s.LastTriggeredAt.Add(s.Frequency)
	return &next
}

// ShouldNotify reports whether a capture-time notification is sent before firing
func (s Schedule) ShouldNotify() bool {
	return s.NotificationsEnabled && !s.SilentMode
}

// SessionStatus is the lifecycle state of a capture session
type SessionStatus string

const (
	SessionPending    SessionStatus = "PENDING"
	SessionCapturing  SessionStatus = "CAPTURING"
	SessionValidating SessionStatus = "VALIDATING"
	SessionStoring    SessionStatus = "STORING"
	SessionRecording  SessionStatus = "RECORDING"
	SessionSucceeded  SessionStatus = "SUCCEEDED"
	SessionFailed     SessionStatus = "FAILED"
)

// IsTerminal reports whether no further transitions are allowed
func (s SessionStatus) IsTerminal() bool {
	return s == SessionSucceeded || s == SessionFailed
}

// Failure reasons recorded on FAILED sessions
const (
	FailureCapturePrefix    = "capture_error:"
	FailureValidationPrefix = "validation_error:"
	FailureStorage          = "storage_error"
	FailureLedger           = "ledger_error"
	FailureAbandoned        = "abandoned"
)

// CaptureSession is one attempt to capture, validate, store and credit a photo
type CaptureSession struct {
	Id            string        `db:"id"`
	UserId        string        `db:"user_id"`
	ScheduleId    *int64        `db:"schedule_id"`
	Status        SessionStatus `db:"status"`
	StartedAt     time.Time     `db:"started_at"`
	CompletedAt   *time.Time    `db:"completed_at"`
	FailureReason *string       `db:"failure_reason"`
	PhotoId       *string       `db:"photo_id"`
	EarningsCents int64         `db:"earnings_cents"`
}

// IsManual reports whether the session was requested on demand
func (s CaptureSession) IsManual() bool {
	return s.ScheduleId == nil
}

// StorageTier names where an artifact's bytes landed
type StorageTier string

const (
	TierPrimary  StorageTier = "PRIMARY"
	TierFallback StorageTier = "FALLBACK"
)

// PhotoArtifact is the write-once record of a captured photo
type PhotoArtifact struct {
	Id             string      `db:"id"`
	SessionId      string      `db:"session_id"`
	UserId         string      `db:"user_id"`
	StorageKey     *string     `db:"storage_key"`
	StorageTier    StorageTier `db:"storage_tier"`
	SizeBytes      int64       `db:"size_bytes"`
	Checksum       string      `db:"checksum"`
	CapturedAt     time.Time   `db:"captured_at"`
	IsValid        bool        `db:"is_valid"`
	VerdictNotes   string      `db:"verdict_notes"`
	ConsentVersion *int64      `db:"consent_version"`
	Monetizable    bool        `db:"monetizable"`
}

// Consent scopes
const (
	ScopePhotoStorage      = "photo_storage"
	ScopePhotoMonetization = "photo_monetization"
)

// ConsentRecord is one version of a user's consent grant
type ConsentRecord struct {
	UserId    string     `db:"user_id"`
	Version   int64      `db:"version"`
	Scope     string     `db:"scope"`
	GrantedAt time.Time  `db:"granted_at"`
	RevokedAt *time.Time `db:"revoked_at"`
}

// Grants reports whether the consent scope includes the given grant
func (c ConsentRecord) Grants(scope string) bool {
	for _, s := range strings.Fields(c.Scope) {
		if s == scope {
			return true
		}
	}
	return false
}

// EarningEvent is an immutable earnings ledger entry (cold data)
type EarningEvent struct {
	Id                string    `db:"id"`
	UserId            string    `db:"user_id"`
	PhotoId           *string   `db:"photo_id"`
	SessionId         string    `db:"session_id"`
	AmountCents       int64     `db:"amount_cents"`
	BalanceAfterCents int64     `db:"balance_after_cents"`
	Reason            string    `db:"reason"`
	CreatedAt         time.Time `db:"created_at"`
}

// EarningBalance is the current balance of a user (hot data)
type EarningBalance struct {
	UserId       string    `db:"user_id"`
	BalanceCents int64     `db:"balance_cents"`
	LastEventId  string    `db:"last_event_id"`
	Version      int64     `db:"version"`
	UpdatedAt    time.Time `db:"updated_at"`
}
