package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"capture-scheduler-go/internal/models"

	"go.uber.org/zap"
)

func scanBalance(row rowScanner) (*models.EarningBalance, error) {
	var balance models.EarningBalance
	if err := row.Scan(&balance.UserId, &balance.BalanceCents, &balance.LastEventId, &balance.Version, &balance.UpdatedAt); err != nil {
		return nil, err
	}
	balance.UpdatedAt = balance.UpdatedAt.UTC()
	return &balance, nil
}

// GetBalance returns current balance for a user (O(1) lookup)
func (s *SubledgerService) GetBalance(ctx context.Context, userId string) (*models.EarningBalance, error) {
	zap.L().Debug("Getting balance", zap.String("user_id", userId))

	balance, err := scanBalance(s.db.QueryRowContext(ctx, queryGetBalance, userId))
	if errors.Is(err, sql.ErrNoRows) {
		// No balance record means zero balance
		return &models.EarningBalance{UserId: userId}, nil
	}
	if err != nil {
		zap.L().Error("Failed to get balance", zap.String("user_id", userId), zap.Error(err))
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}

	zap.L().Debug("Retrieved balance", zap.String("user_id", userId), zap.Int64("balance_cents", balance.BalanceCents))
	return balance, nil
}

// GetAllBalances returns every user balance ordered by user id
func (s *SubledgerService) GetAllBalances(ctx context.Context) ([]models.EarningBalance, error) {
	rows, err := s.db.QueryContext(ctx, queryGetAllBalances)
	if err != nil {
		zap.L().Error("Failed to get all balances", zap.Error(err))
		return nil, fmt.Errorf("failed to get all balances: %w", err)
	}
	defer closeRows(rows)

	var balances []models.EarningBalance
	for rows.Next() {
		balance, err := scanBalance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}
		balances = append(balances, *balance)
	}

	// Check for errors during iteration
	if err := rows.Err(); err != nil {
		zap.L().Error("Error during balance row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating balance rows: %w", err)
	}

	zap.L().Debug("Retrieved all balances", zap.Int("count", len(balances)))
	return balances, nil
}

// ReconcileBalance verifies that current balance matches sum of all earning events
func (s *SubledgerService) ReconcileBalance(ctx context.Context, userId string) error {
	zap.L().Info("Reconciling balance", zap.String("user_id", userId))

	current, err := s.GetBalance(ctx, userId)
	if err != nil {
		return fmt.Errorf("failed to get current balance: %w", err)
	}

	var calculated int64
	if err := s.db.QueryRowContext(ctx, queryReconcileBalance, userId).Scan(&calculated); err != nil {
		return fmt.Errorf("failed to calculate balance from events: %w", err)
	}

	if current.BalanceCents != calculated {
		zap.L().Error("Balance reconciliation failed",
			zap.String("user_id", userId),
			zap.Int64("current_balance_cents", current.BalanceCents),
			zap.Int64("calculated_balance_cents", calculated),
			zap.Int64("difference_cents", current.BalanceCents-calculated))
		return fmt.Errorf("balance mismatch: current=%d, calculated=%d", current.BalanceCents, calculated)
	}

	zap.L().Info("Balance reconciliation successful",
		zap.String("user_id", userId),
		zap.Int64("balance_cents", current.BalanceCents))
	return nil
}
