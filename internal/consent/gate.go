package consent

import (
	"context"
	"fmt"

	"capture-scheduler-go/internal/models"
	"capture-scheduler-go/internal/store"

	"go.uber.org/zap"
)

// Decision is the consent policy outcome for one captured photo
type Decision struct {
	Store    bool
	Monetize bool
	Version  *int64
}

// Decide applies the policy to the user's current consent; current may be nil.
// Missing consent keeps the photo for the user but never pays out. A current consent
// lacking the storage grant forbids keeping the bytes at all, and a discarded photo
// is never monetized.
func Decide(current *models.ConsentRecord, isValid bool) Decision {
	if current == nil {
		return Decision{Store: true}
	}
	version := current.Version
	keep := current.Grants(models.ScopePhotoStorage)
	return Decision{
		Store:    keep,
		Monetize: isValid && keep && current.Grants(models.ScopePhotoMonetization),
		Version:  &version,
	}
}

type Gate struct {
	consents store.ConsentStore
}

func NewGate(consents store.ConsentStore) *Gate {
	return &Gate{consents: consents}
}

// Evaluate reads the user's consent at capture time and decides storage and payout
func (g *Gate) Evaluate(ctx context.Context, userId string, isValid bool) (Decision, error) {
	current, err := g.consents.CurrentConsent(ctx, userId)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to read consent: %w", err)
	}

	decision := Decide(current, isValid)
	if current == nil {
		zap.L().Warn("No current consent, photo will not be monetized", zap.String("user_id", userId))
	} else if !decision.Store {
		zap.L().Info("Consent forbids photo storage, discarding bytes",
			zap.String("user_id", userId),
			zap.Int64("consent_version", current.Version))
	}
	return decision, nil
}
