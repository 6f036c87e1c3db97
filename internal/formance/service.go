package formance

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"capture-scheduler-go/internal/models"
	"capture-scheduler-go/internal/store"

	v3 "github.com/formancehq/formance-sdk-go/v3"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/sdkerrors"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.LedgerStore.
var _ store.LedgerStore = (*Service)(nil)

const (
	// earnings are kept in cents
	earningAsset    = "USD/2"
	userPrefix      = "users:"
	referencePrefix = "earning:"
)

// Service implements store.LedgerStore backed by a Formance Stack ledger.
// Each user is the account users:{id}; credits are drawn from platform:incentives.
type Service struct {
	client *v3.Formance
	ledger string
}

// NewService connects to the Formance Stack and makes sure the earnings ledger exists.
func NewService(ctx context.Context, cfg models.FormanceConfig) (*Service, error) {
	var missing []string
	for name, value := range map[string]string{
		"FORMANCE_STACK_URL":     cfg.StackURL,
		"FORMANCE_CLIENT_ID":     cfg.ClientID,
		"FORMANCE_CLIENT_SECRET": cfg.ClientSecret,
	} {
		if value == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("formance ledger backend requires %s", strings.Join(missing, ", "))
	}

	ledger := cfg.LedgerName
	if ledger == "" {
		ledger = "capture-earnings"
	}

	svc := &Service{
		client: v3.New(
			v3.WithServerURL(cfg.StackURL),
			v3.WithSecurity(shared.Security{
				ClientID:     v3.Pointer(cfg.ClientID),
				ClientSecret: v3.Pointer(cfg.ClientSecret),
			}),
		),
		ledger: ledger,
	}

	if err := svc.createLedgerIfMissing(ctx); err != nil {
		return nil, fmt.Errorf("failed to prepare ledger %s: %w", ledger, err)
	}

	zap.L().Info("Formance earnings ledger ready",
		zap.String("stack_url", cfg.StackURL),
		zap.String("ledger", ledger))
	return svc, nil
}

func (s *Service) createLedgerIfMissing(ctx context.Context) error {
	_, err := s.client.Ledger.V2.CreateLedger(ctx, operations.V2CreateLedgerRequest{
		Ledger: s.ledger,
		V2CreateLedgerRequest: shared.V2CreateLedgerRequest{
			Metadata: map[string]string{"application": "capture-scheduler"},
		},
	})
	if hasErrorCode(err, shared.V2ErrorsEnumLedgerAlreadyExists) {
		zap.L().Debug("Ledger already present", zap.String("ledger", s.ledger))
		return nil
	}
	return err
}

// Close releases nothing; the SDK's HTTP client is shared and stateless.
func (s *Service) Close() {}

// ---------- helpers ----------

func userAccount(userId string) string {
	return userPrefix + userId
}

func userFromAccount(address string) (string, bool) {
	if !strings.HasPrefix(address, userPrefix) {
		return "", false
	}
	id := strings.TrimPrefix(address, userPrefix)
	return id, id != ""
}

// earningReference is the transaction reference that makes one photo credit idempotent
func earningReference(photoId string) string {
	return referencePrefix + photoId
}

func hasErrorCode(err error, code shared.V2ErrorsEnum) bool {
	var apiErr *sdkerrors.V2ErrorResponse
	return err != nil && errors.As(err, &apiErr) && apiErr.ErrorCode == code
}

// isConflictError reports a duplicate transaction reference
func isConflictError(err error) bool {
	return hasErrorCode(err, shared.V2ErrorsEnumConflict)
}

func isNotFoundError(err error) bool {
	return hasErrorCode(err, shared.V2ErrorsEnumNotFound)
}

func strPtr(s string) *string { return &s }
