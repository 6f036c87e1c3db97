package formance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"capture-scheduler-go/internal/models"
	"capture-scheduler-go/internal/store"

	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ---------------------------------------------------------------------------
// Numscript templates
//
// Metadata is set inside the script via set_tx_meta() so every earning
// transaction is self-describing when read back as history.
// ---------------------------------------------------------------------------

const numscriptEarningCredit = `vars {
  monetary $amount
  account $user
  string $photo_id
  string $session_id
  string $reason
}

send $amount (
  source = @platform:incentives allowing unbounded overdraft
  destination = $user
)

set_tx_meta("event_type", "earning")
set_tx_meta("photo_id", $photo_id)
set_tx_meta("session_id", $session_id)
set_tx_meta("reason", $reason)
`

const numscriptEarningDebit = `vars {
  monetary $amount
  account $user
  string $photo_id
  string $session_id
  string $reason
}

send $amount (
  source = $user allowing unbounded overdraft
  destination = @platform:incentives
)

set_tx_meta("event_type", "adjustment")
set_tx_meta("photo_id", $photo_id)
set_tx_meta("session_id", $session_id)
set_tx_meta("reason", $reason)
`

// AppendEarning posts one earning transaction. The photo id becomes the transaction
// reference, so a replayed credit surfaces as store.ErrDuplicateEarning.
func (s *Service) AppendEarning(ctx context.Context, params store.AppendEarningParams) (*models.EarningEvent, error) {
	if params.UserId == "" {
		return nil, fmt.Errorf("user id cannot be empty")
	}
	if params.AmountCents == 0 {
		return nil, fmt.Errorf("amount cannot be zero")
	}
	if params.Reason == "" {
		return nil, fmt.Errorf("reason cannot be empty")
	}

	reference := earningReference(params.PhotoId)
	if params.PhotoId == "" {
		reference = referencePrefix + "adjustment:" + uuid.New().String()
	}

	script, amount := numscriptEarningCredit, params.AmountCents
	if amount < 0 {
		script, amount = numscriptEarningDebit, -amount
	}

	var sessionId string
	if cc := models.GetCaptureContext(ctx); cc != nil {
		sessionId = cc.SessionId
	}

	now := time.Now().UTC()
	postTx := shared.V2PostTransaction{
		Reference: strPtr(reference),
		Timestamp: &now,
		Script: &shared.V2PostTransactionScript{
			Plain: script,
			Vars: map[string]string{
				"amount":     fmt.Sprintf("%s %d", earningAsset, amount),
				"user":       userAccount(params.UserId),
				"photo_id":   params.PhotoId,
				"session_id": sessionId,
				"reason":     params.Reason,
			},
		},
	}

	_, err := s.client.Ledger.V2.CreateTransaction(ctx, operations.V2CreateTransactionRequest{
		Ledger:            s.ledger,
		V2PostTransaction: postTx,
	})
	if err != nil {
		if isConflictError(err) && params.PhotoId != "" {
			return nil, store.ErrDuplicateEarning
		}
		return nil, fmt.Errorf("error recording earning: %w", err)
	}

	event := &models.EarningEvent{
		Id:          reference,
		UserId:      params.UserId,
		SessionId:   sessionId,
		AmountCents: params.AmountCents,
		Reason:      params.Reason,
		CreatedAt:   now,
	}
	if params.PhotoId != "" {
		photoId := params.PhotoId
		event.PhotoId = &photoId
	}
	if balance, err := s.GetBalance(ctx, params.UserId); err == nil {
		event.BalanceAfterCents = balance.BalanceCents
	}

	zap.L().Info("Earning recorded in Formance",
		zap.String("user_id", params.UserId),
		zap.String("amount", models.CentsToDollars(params.AmountCents).String()),
		zap.String("reference", reference))
	return event, nil
}

// GetEarningHistory returns paginated earnings for a user, newest first.
func (s *Service) GetEarningHistory(ctx context.Context, userId string, limit, offset int) ([]models.EarningEvent, error) {
	account := userAccount(userId)
	pageSize := int64(limit + offset) // fetch enough to skip offset

	resp, err := s.client.Ledger.V2.ListTransactions(ctx, operations.V2ListTransactionsRequest{
		Ledger:   s.ledger,
		PageSize: &pageSize,
		RequestBody: map[string]any{
			"$or": []any{
				map[string]any{"$match": map[string]any{"source": account}},
				map[string]any{"$match": map[string]any{"destination": account}},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	var result []models.EarningEvent
	skipped := 0
	for _, tx := range resp.V2TransactionsCursorResponse.Cursor.Data {
		if skipped < offset {
			skipped++
			continue
		}

		event := models.EarningEvent{
			Id:        fmt.Sprintf("%d", tx.ID),
			UserId:    userId,
			SessionId: tx.Metadata["session_id"],
			Reason:    tx.Metadata["reason"],
			CreatedAt: tx.Timestamp,
		}
		if tx.Reference != nil {
			event.Id = *tx.Reference
		}
		photoId := tx.Metadata["photo_id"]
		if photoId == "" {
			photoId = referencePhoto(event.Id)
		}
		if photoId != "" {
			event.PhotoId = &photoId
		}
		for _, p := range tx.Postings {
			event.AmountCents += signedPostingCents(p, account)
		}

		result = append(result, event)
		if len(result) >= limit {
			break
		}
	}
	return result, nil
}

// signedPostingCents is the posting's effect on account: credits positive, debits negative
func signedPostingCents(p shared.V2Posting, account string) int64 {
	if p.Asset != earningAsset || p.Amount == nil {
		return 0
	}
	amount := p.Amount.Int64()
	switch {
	case p.Destination == account:
		return amount
	case p.Source == account:
		return -amount
	default:
		return 0
	}
}

// referencePhoto extracts the photo id from an earning reference
func referencePhoto(reference string) string {
	if !strings.HasPrefix(reference, referencePrefix) || strings.HasPrefix(reference, referencePrefix+"adjustment:") {
		return ""
	}
	return strings.TrimPrefix(reference, referencePrefix)
}
