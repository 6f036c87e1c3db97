package store

import (
	"context"
	"errors"
	"time"

	"capture-scheduler-go/internal/models"
)

// Sentinel errors shared across all backend implementations.
var (
	ErrInvalidFrequency       = errors.New("frequency must be at least one hour")
	ErrScheduleNotFound       = errors.New("schedule not found")
	ErrScheduleArchived       = errors.New("schedule is archived")
	ErrSessionNotFound        = errors.New("capture session not found")
	ErrSessionTerminal        = errors.New("capture session already terminal")
	ErrSessionInProgress      = errors.New("user already has a live capture session")
	ErrConsentNotFound        = errors.New("consent record not found")
	ErrDuplicateEarning       = errors.New("earning already recorded for photo")
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// CreateScheduleParams contains the parameters for registering a schedule.
type CreateScheduleParams struct {
	UserId               string
	Frequency            time.Duration
	NotificationsEnabled bool
	SilentMode           bool
}

// TransitionParams describes one step of a session's state machine.
type TransitionParams struct {
	SessionId     string
	To            models.SessionStatus
	At            time.Time
	FailureReason string
	PhotoId       string
	EarningsCents int64
}

// AppendEarningParams contains the parameters for a ledger append.
// PhotoId is the idempotency key; an empty PhotoId disables the duplicate check.
type AppendEarningParams struct {
	UserId      string
	AmountCents int64
	PhotoId     string
	Reason      string
}

// ScheduleStore persists schedules. Schedules are never physically deleted.
type ScheduleStore interface {
	CreateSchedule(ctx context.Context, params CreateScheduleParams) (*models.Schedule, error)
	GetSchedule(ctx context.Context, id int64) (*models.Schedule, error)
	ListSchedulesByUser(ctx context.Context, userId string) ([]models.Schedule, error)
	ListActiveSchedules(ctx context.Context) ([]models.Schedule, error)
	ListDueSchedules(ctx context.Context, now time.Time) ([]models.Schedule, error)
	UpdateSchedule(ctx context.Context, id int64, update models.ScheduleUpdate) (*models.Schedule, error)
	SetScheduleActive(ctx context.Context, id int64, active bool, at time.Time) (*models.Schedule, error)
	ArchiveSchedule(ctx context.Context, id int64, at time.Time) error
	RecordTrigger(ctx context.Context, id int64, at time.Time) error
}

// SessionStore persists capture sessions.
type SessionStore interface {
	CreateSession(ctx context.Context, userId string, scheduleId *int64, at time.Time) (*models.CaptureSession, error)
	GetSession(ctx context.Context, id string) (*models.CaptureSession, error)
	ListSessionsByUser(ctx context.Context, userId string, limit, offset int) ([]models.CaptureSession, error)
	TransitionSession(ctx context.Context, params TransitionParams) error
	CountSessionsSince(ctx context.Context, userId string, since time.Time) (int, error)
	FailStaleSessions(ctx context.Context, startedBefore, at time.Time, reason string) (int64, error)
	// AbandonUserSessions fails every non-terminal session of one user.
	// Only the holder of the user's lease may call it.
	AbandonUserSessions(ctx context.Context, userId string, at time.Time, reason string) (int64, error)
}

// ArtifactStore persists write-once photo artifacts.
type ArtifactStore interface {
	SaveArtifact(ctx context.Context, artifact *models.PhotoArtifact) error
	GetArtifact(ctx context.Context, id string) (*models.PhotoArtifact, error)
	ListArtifactsByUser(ctx context.Context, userId string, limit, offset int) ([]models.PhotoArtifact, error)
}

// ConsentStore persists versioned consent records.
type ConsentStore interface {
	GrantConsent(ctx context.Context, userId, scope string, at time.Time) (*models.ConsentRecord, error)
	RevokeConsent(ctx context.Context, userId string, version int64, at time.Time) error
	CurrentConsent(ctx context.Context, userId string) (*models.ConsentRecord, error)
}

// CaptureStore is the metadata store behind scheduling and capture.
type CaptureStore interface {
	ScheduleStore
	SessionStore
	ArtifactStore
	ConsentStore
	Ping(ctx context.Context) error
}

// LedgerStore defines the contract that every earnings backend (SQLite, Formance, ...) must satisfy.
type LedgerStore interface {
	AppendEarning(ctx context.Context, params AppendEarningParams) (*models.EarningEvent, error)
	GetBalance(ctx context.Context, userId string) (*models.EarningBalance, error)
	ListBalances(ctx context.Context) ([]models.EarningBalance, error)
	GetEarningHistory(ctx context.Context, userId string, limit, offset int) ([]models.EarningEvent, error)
	ReconcileBalance(ctx context.Context, userId string) error

	// --- Lifecycle ---
	Close()
}
