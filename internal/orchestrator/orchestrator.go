package orchestrator

import (
	"context"
	"errors"
	"net/http"
	"time"

	"capture-scheduler-go/internal/capture"
	"capture-scheduler-go/internal/consent"
	"capture-scheduler-go/internal/models"
	"capture-scheduler-go/internal/notify"
	"capture-scheduler-go/internal/storage"
	"capture-scheduler-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	earningReason = "photo_capture"

	// bound on the final status write once the session context is gone
	finalizeTimeout = 5 * time.Second
)

// Dependencies are the collaborators of a capture run
type Dependencies struct {
	Store     store.CaptureStore
	Ledger    store.LedgerStore
	Device    capture.Device
	Validator capture.Validator
	Gate      *consent.Gate
	Writer    *storage.Writer
	Notifier  notify.Notifier
}

// Orchestrator drives one capture session through its state machine.
// Every step's state is persisted before the step runs.
type Orchestrator struct {
	deps            Dependencies
	captureTimeout  time.Duration
	sessionDeadline time.Duration
	rateCents       int64
	now             func() time.Time
}

func New(deps Dependencies, cfg *models.Config) *Orchestrator {
	return &Orchestrator{
		deps:            deps,
		captureTimeout:  cfg.Capture.Timeout,
		sessionDeadline: cfg.Scheduler.SessionDeadline,
		rateCents:       cfg.Ledger.EarningRateCents,
		now:             time.Now,
	}
}

// Run executes the session to a terminal state and reports whether it succeeded.
// Step failures are recorded on the session and never returned.
func (o *Orchestrator) Run(ctx context.Context, session *models.CaptureSession) bool {
	if o.sessionDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.sessionDeadline)
		defer cancel()
	}
	cc := &models.CaptureContext{SessionId: session.Id, ScheduleId: session.ScheduleId}
	ctx = models.WithCaptureContext(ctx, cc)

	log := zap.L().With(
		zap.String("session_id", session.Id),
		zap.String("user_id", session.UserId))
	log.Info("Capture session started", zap.Bool("manual", session.IsManual()))

	// CAPTURING
	if !o.advance(ctx, session, models.SessionCapturing) {
		return false
	}
	data, err := o.capture(ctx)
	if err != nil {
		log.Warn("Capture failed", zap.Error(err))
		return o.fail(ctx, session, models.FailureCapturePrefix+captureDetail(err))
	}

	// VALIDATING
	if !o.advance(ctx, session, models.SessionValidating) {
		return false
	}
	verdict, err := o.deps.Validator.Validate(ctx, data)
	if err != nil {
		log.Warn("Validation failed", zap.Error(err))
		return o.fail(ctx, session, models.FailureValidationPrefix+captureDetail(err))
	}

	decision, err := o.deps.Gate.Evaluate(ctx, session.UserId, verdict.IsValid)
	if err != nil {
		// unreadable consent is treated as missing consent
		log.Warn("Consent lookup failed, storing without monetization", zap.Error(err))
		decision = consent.Decide(nil, verdict.IsValid)
	}
	cc.ConsentVersion = decision.Version

	// STORING
	if !o.advance(ctx, session, models.SessionStoring) {
		return false
	}
	capturedAt := o.now().UTC()
	var locator *storage.Locator
	if decision.Store {
		contentType := http.DetectContentType(data)
		key := o.deps.Writer.KeyFor(session.UserId, session.Id, capturedAt, extensionFor(contentType))
		locator, err = o.deps.Writer.Store(ctx, key, data, contentType)
		if err != nil {
			log.Error("Photo storage failed", zap.Error(err))
			return o.fail(ctx, session, models.FailureStorage)
		}
		cc.StorageKey = locator.Key
	}

	// RECORDING
	if !o.advance(ctx, session, models.SessionRecording) {
		return false
	}
	artifact := newArtifact(session, data, capturedAt, verdict, decision, locator)
	if err := o.deps.Store.SaveArtifact(ctx, artifact); err != nil {
		log.Error("Failed to record photo artifact", zap.Error(err))
		return o.fail(ctx, session, models.FailureLedger)
	}

	var earned int64
	if artifact.Monetizable {
		_, err := o.deps.Ledger.AppendEarning(ctx, store.AppendEarningParams{
			UserId:      session.UserId,
			AmountCents: o.rateCents,
			PhotoId:     artifact.Id,
			Reason:      earningReason,
		})
		switch {
		case errors.Is(err, store.ErrDuplicateEarning):
			log.Info("Earning already recorded for photo", zap.String("photo_id", artifact.Id))
		case err != nil:
			log.Error("Failed to append earning", zap.Error(err))
			return o.fail(ctx, session, models.FailureLedger)
		}
		earned = o.rateCents
	}

	err = o.finalize(ctx, store.TransitionParams{
		SessionId:     session.Id,
		To:            models.SessionSucceeded,
		At:            o.now(),
		PhotoId:       artifact.Id,
		EarningsCents: earned,
	})
	if err != nil {
		log.Error("Failed to mark session succeeded", zap.Error(err))
		return false
	}
	session.Status = models.SessionSucceeded

	log.Info("Capture session succeeded",
		zap.String("photo_id", artifact.Id),
		zap.Bool("valid", artifact.IsValid),
		zap.Bool("monetizable", artifact.Monetizable),
		zap.Int64("earnings_cents", earned))
	o.publish(ctx, session, "photo captured")
	return true
}

type captureResult struct {
	data []byte
	err  error
}

// capture bounds the device call by the capture timeout even when the device ignores ctx.
// A device that never returns leaks its goroutine, not the session.
func (o *Orchestrator) capture(ctx context.Context) ([]byte, error) {
	if o.captureTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.captureTimeout)
		defer cancel()
	}

	done := make(chan captureResult, 1)
	go func() {
		data, err := o.deps.Device.Capture(ctx)
		done <- captureResult{data: data, err: err}
	}()

	var result captureResult
	select {
	case result = <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if result.err != nil {
		return nil, result.err
	}
	if len(result.data) == 0 {
		return nil, capture.ErrEmptyCapture
	}
	return result.data, nil
}

// advance persists the next state; a write failure fails the session
func (o *Orchestrator) advance(ctx context.Context, session *models.CaptureSession, to models.SessionStatus) bool {
	err := o.deps.Store.TransitionSession(ctx, store.TransitionParams{SessionId: session.Id, To: to, At: o.now()})
	if err != nil {
		zap.L().Error("Failed to persist session state",
			zap.String("session_id", session.Id),
			zap.String("status", string(to)),
			zap.Error(err))
		// a terminal session was reaped while running
		if !errors.Is(err, store.ErrSessionTerminal) {
			o.fail(ctx, session, models.FailureAbandoned)
		}
		return false
	}
	session.Status = to
	return true
}

func (o *Orchestrator) fail(ctx context.Context, session *models.CaptureSession, reason string) bool {
	err := o.finalize(ctx, store.TransitionParams{
		SessionId:     session.Id,
		To:            models.SessionFailed,
		At:            o.now(),
		FailureReason: reason,
	})
	if err != nil {
		zap.L().Error("Failed to mark session failed",
			zap.String("session_id", session.Id),
			zap.String("reason", reason),
			zap.Error(err))
		return false
	}
	session.Status = models.SessionFailed
	o.publish(ctx, session, reason)
	return false
}

// finalize writes a terminal state even after the session deadline expired
func (o *Orchestrator) finalize(ctx context.Context, params store.TransitionParams) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()
	return o.deps.Store.TransitionSession(ctx, params)
}

func (o *Orchestrator) publish(ctx context.Context, session *models.CaptureSession, message string) {
	if o.deps.Notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()
	err := o.deps.Notifier.Notify(ctx, notify.Notification{
		Kind:       notify.KindSessionCompleted,
		UserId:     session.UserId,
		ScheduleId: session.ScheduleId,
		SessionId:  session.Id,
		Status:     string(session.Status),
		Message:    message,
		At:         o.now().UTC(),
	})
	if err != nil {
		zap.L().Warn("Failed to publish session event", zap.String("session_id", session.Id), zap.Error(err))
	}
}

func newArtifact(session *models.CaptureSession, data []byte, capturedAt time.Time, verdict capture.Verdict,
	decision consent.Decision, locator *storage.Locator) *models.PhotoArtifact {
	artifact := &models.PhotoArtifact{
		Id:             uuid.New().String(),
		SessionId:      session.Id,
		UserId:         session.UserId,
		SizeBytes:      int64(len(data)),
		CapturedAt:     capturedAt,
		IsValid:        verdict.IsValid,
		VerdictNotes:   verdict.Notes,
		ConsentVersion: decision.Version,
		Monetizable:    verdict.IsValid && decision.Monetize,
	}
	if locator != nil {
		key := locator.Key
		artifact.StorageKey = &key
		artifact.StorageTier = locator.Tier
		artifact.SizeBytes = locator.SizeBytes
		artifact.Checksum = locator.Checksum
	} else {
		artifact.Checksum = storage.Checksum(data)
	}
	return artifact
}

func captureDetail(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return err.Error()
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return "jpg"
	case "image/png":
		return "png"
	case "image/webp":
		return "webp"
	default:
		return "bin"
	}
}
