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

package common

import (
	"context"
	"fmt"

	"capture-scheduler-go/internal/models"
	"capture-scheduler-go/internal/store"

	"go.uber.org/zap"
)

// SelectBalances retrieves earnings balances based on an optional user filter.
// If userFilter is provided, returns that user's balance even when it is zero.
// If userFilter is empty, returns every user that has a balance row.
func SelectBalances(ctx context.Context, ledger store.LedgerStore, userFilter string) ([]models.EarningBalance, error) {
	var balances []models.EarningBalance

	if userFilter != "" {
		zap.L().Info("Looking up balance for user", zap.String("user_id", userFilter))
		balance, err := ledger.GetBalance(ctx, userFilter)
		if err != nil {
			return nil, fmt.Errorf("failed to get balance: %w", err)
		}
		balances = append(balances, *balance)
	} else {
		all, err := ledger.ListBalances(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list balances: %w", err)
		}
		balances = all
	}

	zap.L().Info("Retrieved balances", zap.Int("count", len(balances)))
	return balances, nil
}
