package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/digkill/InteriorAI/internal/attribution"
	"github.com/digkill/InteriorAI/internal/auth"
	"github.com/digkill/InteriorAI/internal/config"
	"github.com/digkill/InteriorAI/internal/models"
	"github.com/digkill/InteriorAI/internal/notify"
	"github.com/digkill/InteriorAI/internal/repository"
)

const (
	ChoiceFree  = "free"
	ChoicePlans = "plans"
)

type UserService struct {
	cfg      config.Config
	log      *slog.Logger
	profiles *repository.ProfileRepository
	notifier Notifier
}

func NewUserService(cfg config.Config, log *slog.Logger, profiles *repository.ProfileRepository, notifier Notifier) *UserService {
	return &UserService{cfg: cfg, log: log, profiles: profiles, notifier: notifier}
}

// Ensure creates the profile on first sign-in with the free credit grant and
// announces the signup. Allowlisted accounts get the unlimited flag.
func (s *UserService) Ensure(ctx context.Context, id auth.Identity, attr *attribution.Attribution) (*models.Profile, bool, error) {
	unlimited := s.cfg.IsUnlimited(id.UserID, id.Email)
	profile, created, err := s.profiles.Ensure(ctx, models.Profile{
		ID:          id.UserID,
		Email:       id.Email,
		DisplayName: id.DisplayName,
		AvatarURL:   id.AvatarURL,
		Credits:     s.cfg.FreeCredits,
		Unlimited:   unlimited,
	})
	if err != nil {
		return nil, false, fmt.Errorf("ensure profile: %w", err)
	}

	if !created && unlimited && !profile.Unlimited {
		if err := s.profiles.SetUnlimited(ctx, profile.ID, true); err != nil {
			return nil, false, err
		}
		profile.Unlimited = true
	}

	if created {
		fields := map[string]any{
			"email":   id.Email,
			"user_id": id.UserID,
			"credits": profile.Credits,
		}
		if attr != nil {
			for k, v := range attr.Fields() {
				fields[k] = v
			}
		}
		s.notifier.Dispatch(notify.Payload{Type: notify.TypeSignup, Fields: fields})
		s.log.Info("profile created", "user_id", id.UserID)
	}
	return profile, created, nil
}

func (s *UserService) Get(ctx context.Context, id string) (*models.Profile, error) {
	profile, err := s.profiles.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, ErrProfileNotFound
	}
	return profile, nil
}

// OnboardingRequired reports whether the welcome modal should be shown. A
// lookup failure hides the modal rather than breaking the page.
func (s *UserService) OnboardingRequired(ctx context.Context, id string) bool {
	profile, err := s.profiles.FindByID(ctx, id)
	if err != nil {
		s.log.Warn("onboarding lookup failed", "user_id", id, "err", err)
		return false
	}
	return profile != nil && profile.Onboarding() == models.OnboardingPending
}

// CompleteOnboarding records the welcome choice and returns where to go next.
// Both choices complete onboarding the same way; repeating it is harmless.
func (s *UserService) CompleteOnboarding(ctx context.Context, id, choice string) (string, error) {
	var next string
	switch choice {
	case ChoiceFree:
		next = "/dashboard"
	case ChoicePlans:
		next = "/plans"
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidChoice, choice)
	}
	if _, err := s.profiles.CompleteOnboarding(ctx, id); err != nil {
		return "", err
	}
	return next, nil
}

func (s *UserService) GrantCredits(ctx context.Context, id string, delta int) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.profiles.AddCredits(ctx, id, delta)
}

func (s *UserService) SetUnlimited(ctx context.Context, id string, unlimited bool) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.profiles.SetUnlimited(ctx, id, unlimited)
}

func (s *UserService) List(ctx context.Context, limit, offset int) ([]models.Profile, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.profiles.List(ctx, limit, offset)
}

func (s *UserService) Count(ctx context.Context) (int, error) {
	return s.profiles.Count(ctx)
}
