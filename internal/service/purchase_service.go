package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/digkill/InteriorAI/internal/models"
	"github.com/digkill/InteriorAI/internal/repository"
)

const (
	ProviderAdmin     = "admin"
	PurchaseCompleted = "completed"
)

type PurchaseService struct {
	log       *slog.Logger
	purchases *repository.PurchaseRepository
	users     *UserService
	plans     *PlanService
}

func NewPurchaseService(log *slog.Logger, purchases *repository.PurchaseRepository, users *UserService, plans *PlanService) *PurchaseService {
	return &PurchaseService{log: log, purchases: purchases, users: users, plans: plans}
}

// GrantPlan records a plan purchase settled outside the app (bank transfer,
// invoice) and credits the profile.
func (s *PurchaseService) GrantPlan(ctx context.Context, userID string, planID int64, reference string) (*models.Purchase, error) {
	if _, err := s.users.Get(ctx, userID); err != nil {
		return nil, err
	}
	plan, err := s.plans.GetByID(ctx, planID)
	if err != nil {
		return nil, err
	}

	id := plan.ID
	purchase := &models.Purchase{
		UserID:    userID,
		PlanID:    &id,
		Provider:  ProviderAdmin,
		Reference: strings.TrimSpace(reference),
		Currency:  plan.Currency,
		Amount:    plan.PriceMinorUnits,
		Status:    PurchaseCompleted,
	}
	if err := s.purchases.Grant(ctx, purchase, plan.Credits); err != nil {
		return nil, fmt.Errorf("grant plan: %w", err)
	}
	s.log.Info("plan granted", "user_id", userID, "plan_id", plan.ID, "credits", plan.Credits, "purchase_id", purchase.ID)
	return purchase, nil
}

func (s *PurchaseService) ListByUser(ctx context.Context, userID string) ([]models.Purchase, error) {
	return s.purchases.ListByUser(ctx, userID)
}
