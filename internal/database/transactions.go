package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"capture-scheduler-go/internal/models"
	"capture-scheduler-go/internal/store"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// AppendEarning atomically records an earning event and moves the user's balance.
// Lost optimistic updates are retried; duplicates by photo id are rejected.
func (s *SubledgerService) AppendEarning(ctx context.Context, params store.AppendEarningParams) (*models.EarningEvent, error) {
	if params.UserId == "" {
		return nil, fmt.Errorf("user id cannot be empty")
	}
	if params.Reason == "" {
		return nil, fmt.Errorf("earning reason cannot be empty")
	}

	zap.L().Info("Appending earning",
		zap.String("user_id", params.UserId),
		zap.Int64("amount_cents", params.AmountCents),
		zap.String("photo_id", params.PhotoId),
		zap.String("reason", params.Reason))

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.retryDelay
	b.MaxInterval = 20 * s.retryDelay

	return backoff.Retry(ctx, func() (*models.EarningEvent, error) {
		event, err := s.appendEarningOnce(ctx, params)
		if errors.Is(err, store.ErrConcurrentModification) {
			zap.L().Debug("Retrying earning append after concurrent modification",
				zap.String("user_id", params.UserId))
			return nil, err
		}
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		return event, nil
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(s.maxRetries)))
}

func (s *SubledgerService) appendEarningOnce(ctx context.Context, params store.AppendEarningParams) (*models.EarningEvent, error) {
	// Start database transaction for atomicity
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Check for a prior event for the same photo
	if params.PhotoId != "" {
		var existingId string
		err := tx.QueryRowContext(ctx, queryCheckDuplicateEarning, params.PhotoId).Scan(&existingId)
		if err == nil {
			zap.L().Warn("Duplicate earning for photo detected, skipping",
				zap.String("photo_id", params.PhotoId),
				zap.String("existing_event_id", existingId))
			return nil, fmt.Errorf("%w: photo_id %s", store.ErrDuplicateEarning, params.PhotoId)
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("failed to check for duplicate earning: %w", err)
		}
	}

	now := time.Now().UTC()

	var currentBalance, version int64
	err = tx.QueryRowContext(ctx, queryGetBalanceVersion, params.UserId).Scan(&currentBalance, &version)
	if errors.Is(err, sql.ErrNoRows) {
		// Create the balance at zero
		currentBalance = 0
		version = 1
		if _, err := tx.ExecContext(ctx, queryInsertBalance, params.UserId, now); err != nil {
			if isUniqueViolation(err) {
				return nil, fmt.Errorf("balance creation raced - %w", store.ErrConcurrentModification)
			}
			return nil, fmt.Errorf("failed to create balance: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to get current balance: %w", err)
	}

	newBalance := currentBalance + params.AmountCents

	var sessionId string
	if cc := models.GetCaptureContext(ctx); cc != nil {
		sessionId = cc.SessionId
	}
	var photoId any
	if params.PhotoId != "" {
		photoId = params.PhotoId
	}

	event, err := scanEvent(tx.QueryRowContext(ctx, queryInsertEarningEvent,
		uuid.New().String(), params.UserId, photoId, sessionId, params.AmountCents,
		currentBalance, newBalance, params.Reason, now))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: photo_id %s", store.ErrDuplicateEarning, params.PhotoId)
		}
		return nil, fmt.Errorf("failed to insert earning event: %w", err)
	}

	// Update balance (with optimistic locking)
	result, err := tx.ExecContext(ctx, queryUpdateBalance, newBalance, event.Id, now, params.UserId, version)
	if err != nil {
		return nil, fmt.Errorf("failed to update balance: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, fmt.Errorf("balance update failed - %w", store.ErrConcurrentModification)
	}

	if err := s.addJournalEntries(ctx, tx, event); err != nil {
		return nil, fmt.Errorf("failed to add journal entries: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	zap.L().Info("Earning appended successfully",
		zap.String("event_id", event.Id),
		zap.String("user_id", params.UserId),
		zap.Int64("old_balance_cents", currentBalance),
		zap.Int64("new_balance_cents", newBalance))

	return event, nil
}

// addJournalEntries creates double-entry bookkeeping entries
func (s *SubledgerService) addJournalEntries(ctx context.Context, tx *sql.Tx, event *models.EarningEvent) error {
	// A positive earning credits the user's earnings liability and debits the incentive expense.
	// A negative adjustment does the reverse.
	type entry struct {
		accountType string
		accountId   string
		debitCents  int64
		creditCents int64
	}

	amount := event.AmountCents
	var entries []entry
	if amount >= 0 {
		entries = []entry{
			{"incentive_expense", "photo_incentives", amount, 0},
			{"user_earnings", event.UserId, 0, amount},
		}
	} else {
		entries = []entry{
			{"user_earnings", event.UserId, -amount, 0},
			{"incentive_expense", "photo_incentives", 0, -amount},
		}
	}

	for _, e := range entries {
		_, err := tx.ExecContext(ctx, queryInsertJournalEntry,
			uuid.New().String(), event.Id, e.accountType, e.accountId, e.debitCents, e.creditCents, event.CreatedAt)
		if err != nil {
			return err
		}
	}
	return nil
}

func scanEvent(row rowScanner) (*models.EarningEvent, error) {
	var event models.EarningEvent
	var photoId sql.NullString
	err := row.Scan(&event.Id, &event.UserId, &photoId, &event.SessionId, &event.AmountCents,
		&event.BalanceAfterCents, &event.Reason, &event.CreatedAt)
	if err != nil {
		return nil, err
	}
	event.PhotoId = nullStringPtr(photoId)
	event.CreatedAt = event.CreatedAt.UTC()
	return &event, nil
}

// GetEarningHistory returns paginated earning events for a user, newest first
func (s *SubledgerService) GetEarningHistory(ctx context.Context, userId string, limit, offset int) ([]models.EarningEvent, error) {
	zap.L().Debug("Getting earning history",
		zap.String("user_id", userId),
		zap.Int("limit", limit),
		zap.Int("offset", offset))

	rows, err := s.db.QueryContext(ctx, queryGetEarningHistory, userId, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get earning history: %w", err)
	}
	defer closeRows(rows)

	var events []models.EarningEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan earning event: %w", err)
		}
		events = append(events, *event)
	}

	// Check for errors during iteration
	if err := rows.Err(); err != nil {
		zap.L().Error("Error during earning event row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating earning event rows: %w", err)
	}

	return events, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
