package service

import (
	"context"
	"fmt"

	"github.com/digkill/InteriorAI/internal/config"
	"github.com/digkill/InteriorAI/internal/metrics"
	"github.com/digkill/InteriorAI/internal/models"
)

type creditStore interface {
	ConsumeCredit(ctx context.Context, id string) (bool, error)
}

// Ledger answers whether a profile may generate and charges for successful
// generations. The balance itself lives in the database, which performs the
// decrement atomically.
type Ledger struct {
	cfg      config.Config
	profiles creditStore
}

func NewLedger(cfg config.Config, profiles creditStore) *Ledger {
	return &Ledger{cfg: cfg, profiles: profiles}
}

// IsUnlimited reports whether generations are free for the profile.
func (l *Ledger) IsUnlimited(p *models.Profile) bool {
	if p == nil {
		return false
	}
	return p.HasPurchased || p.Unlimited || l.cfg.IsUnlimited(p.ID, p.Email)
}

func (l *Ledger) CanGenerate(p *models.Profile) bool {
	if p == nil {
		return false
	}
	return l.IsUnlimited(p) || p.Credits > 0
}

// ConsumeCredit charges one credit. It is a no-op for unlimited profiles and
// reports whether a credit was taken. ErrCreditsExhausted means a concurrent
// request spent the last credit first.
func (l *Ledger) ConsumeCredit(ctx context.Context, p *models.Profile) (bool, error) {
	if l.IsUnlimited(p) {
		return false, nil
	}
	ok, err := l.profiles.ConsumeCredit(ctx, p.ID)
	if err != nil {
		return false, fmt.Errorf("consume credit: %w", err)
	}
	if !ok {
		return false, ErrCreditsExhausted
	}
	metrics.RecordCreditConsumed()
	return true, nil
}
