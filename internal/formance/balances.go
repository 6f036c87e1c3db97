package formance

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"time"

	"capture-scheduler-go/internal/models"

	v3 "github.com/formancehq/formance-sdk-go/v3"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"go.uber.org/zap"
)

const listAccountsPageSize = int64(100)

// GetBalance returns the current earnings balance for a user.
// Queries the single users:{userId} account directly; an unknown account is a zero balance.
func (s *Service) GetBalance(ctx context.Context, userId string) (*models.EarningBalance, error) {
	zap.L().Debug("Getting user balance from Formance", zap.String("user_id", userId))

	resp, err := s.client.Ledger.V2.GetAccount(ctx, operations.V2GetAccountRequest{
		Ledger:  s.ledger,
		Address: userAccount(userId),
		Expand:  v3.Pointer("volumes"),
	})
	if err != nil {
		if isNotFoundError(err) {
			return &models.EarningBalance{UserId: userId}, nil
		}
		return nil, fmt.Errorf("failed to get account volumes: %w", err)
	}

	account := resp.V2AccountResponse.Data
	return &models.EarningBalance{
		UserId:       userId,
		BalanceCents: balanceCents(account.Volumes),
		UpdatedAt:    accountUpdatedAt(account),
	}, nil
}

// ListBalances returns every user balance ordered by user id.
func (s *Service) ListBalances(ctx context.Context) ([]models.EarningBalance, error) {
	var balances []models.EarningBalance
	var cursor *string

	for {
		resp, err := s.client.Ledger.V2.ListAccounts(ctx, operations.V2ListAccountsRequest{
			Ledger:   s.ledger,
			PageSize: v3.Pointer(listAccountsPageSize),
			Cursor:   cursor,
			Expand:   v3.Pointer("volumes"),
			RequestBody: map[string]any{
				"$match": map[string]any{"address": userPrefix},
			},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list accounts: %w", err)
		}

		page := resp.V2AccountsCursorResponse.Cursor
		for _, account := range page.Data {
			userId, ok := userFromAccount(account.Address)
			if !ok {
				continue
			}
			balances = append(balances, models.EarningBalance{
				UserId:       userId,
				BalanceCents: balanceCents(account.Volumes),
				UpdatedAt:    accountUpdatedAt(account),
			})
		}

		if !page.HasMore || page.Next == nil {
			break
		}
		cursor = page.Next
	}

	sort.Slice(balances, func(i, j int) bool { return balances[i].UserId < balances[j].UserId })
	return balances, nil
}

// ReconcileBalance is a no-op in Formance; balances are consistent by construction.
func (s *Service) ReconcileBalance(ctx context.Context, userId string) error {
	zap.L().Info("Reconciliation is a no-op in Formance (consistent by construction)",
		zap.String("user_id", userId))
	return nil
}

// ---------- helpers ----------

func balanceCents(vols map[string]shared.V2Volume) int64 {
	if bal := volumeBalance(vols, earningAsset); bal != nil {
		return bal.Int64()
	}
	return 0
}

func accountUpdatedAt(account shared.V2Account) time.Time {
	if account.UpdatedAt != nil {
		return account.UpdatedAt.UTC()
	}
	if account.FirstUsage != nil {
		return account.FirstUsage.UTC()
	}
	return time.Time{}
}

// volumeBalance extracts the balance for a specific asset from volumes.
func volumeBalance(vols map[string]shared.V2Volume, fAsset string) *big.Int {
	vol, ok := vols[fAsset]
	if !ok {
		return nil
	}
	if vol.Balance != nil {
		return vol.Balance
	}
	if vol.Input == nil {
		return nil
	}
	result := new(big.Int).Set(vol.Input)
	if vol.Output != nil {
		result.Sub(result, vol.Output)
	}
	return result
}
