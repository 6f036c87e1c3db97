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
	"fmt"

	"capture-scheduler-go/internal/models"

	"go.uber.org/zap"
)

// GetUserBalance returns the current earnings balance for a user
func (s *CaptureService) GetUserBalance(ctx context.Context, userId string) (*models.UserBalance, error) {
	if err := requireUser(userId); err != nil {
		return nil, err
	}

	balance, err := s.ledger.GetBalance(ctx, userId)
	if err != nil {
		zap.L().Error("Failed to get user balance",
			zap.String("user_id", userId),
			zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve balance")
	}

	result := &models.UserBalance{
		UserId:       userId,
		BalanceCents: balance.BalanceCents,
		Balance:      models.CentsToDollars(balance.BalanceCents),
	}
	if !balance.UpdatedAt.IsZero() {
		updatedAt := balance.UpdatedAt
		result.UpdatedAt = &updatedAt
	}
	return result, nil
}

// GetEarningHistory returns paginated earnings for a user, newest first
func (s *CaptureService) GetEarningHistory(ctx context.Context, userId string, limit, offset int) ([]models.EarningRecord, error) {
	if err := requireUser(userId); err != nil {
		return nil, err
	}
	limit, offset = clampPage(limit, offset)

	events, err := s.ledger.GetEarningHistory(ctx, userId, limit, offset)
	if err != nil {
		zap.L().Error("Failed to get earning history",
			zap.String("user_id", userId),
			zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve earning history")
	}

	result := make([]models.EarningRecord, len(events))
	for i, event := range events {
		result[i] = models.EarningRecord{
			Id:          event.Id,
			AmountCents: event.AmountCents,
			Amount:      models.CentsToDollars(event.AmountCents),
			Reason:      event.Reason,
			CreatedAt:   event.CreatedAt,
		}
		if event.PhotoId != nil {
			result[i].PhotoId = *event.PhotoId
		}
	}

	return result, nil
}
