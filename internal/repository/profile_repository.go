package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/digkill/InteriorAI/internal/models"
)

type ProfileRepository struct {
	db *sql.DB
}

func NewProfileRepository(db *sql.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

const profileColumns = `id, COALESCE(email, ''), COALESCE(display_name, ''), COALESCE(avatar_url, ''), credits, has_purchased, unlimited, onboarding_completed, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*models.Profile, error) {
	var p models.Profile
	if err := row.Scan(&p.ID, &p.Email, &p.DisplayName, &p.AvatarURL, &p.Credits, &p.HasPurchased, &p.Unlimited, &p.OnboardingCompleted, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProfileRepository) FindByID(ctx context.Context, id string) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = ?`
	p, err := scanProfile(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan profile: %w", err)
	}
	return p, nil
}

// Ensure returns the profile for id, creating it with the initial credit grant
// when it does not exist yet. The boolean reports whether this call created it.
func (r *ProfileRepository) Ensure(ctx context.Context, p models.Profile) (*models.Profile, bool, error) {
	existing, err := r.FindByID(ctx, p.ID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		if err := r.UpdateProfile(ctx, p.ID, p.Email, p.DisplayName, p.AvatarURL); err != nil {
			return nil, false, err
		}
		// Mirror the COALESCE(NULLIF(...)) update: blanks keep the stored value.
		if p.Email != "" {
			existing.Email = p.Email
		}
		if p.DisplayName != "" {
			existing.DisplayName = p.DisplayName
		}
		if p.AvatarURL != "" {
			existing.AvatarURL = p.AvatarURL
		}
		return existing, false, nil
	}

	const insert = `
INSERT IGNORE INTO profiles (id, email, display_name, avatar_url, credits, has_purchased, unlimited, onboarding_completed)
VALUES (?, NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''), ?, 0, ?, 0)`
	res, err := r.db.ExecContext(ctx, insert, p.ID, p.Email, p.DisplayName, p.AvatarURL, p.Credits, p.Unlimited)
	if err != nil {
		return nil, false, fmt.Errorf("insert profile: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("profile rows affected: %w", err)
	}

	created, err := r.FindByID(ctx, p.ID)
	if err != nil {
		return nil, false, err
	}
	if created == nil {
		return nil, false, fmt.Errorf("profile %s missing after insert", p.ID)
	}
	return created, affected > 0, nil
}

func (r *ProfileRepository) UpdateProfile(ctx context.Context, id, email, displayName, avatarURL string) error {
	const query = `
UPDATE profiles SET email = COALESCE(NULLIF(?, ''), email), display_name = COALESCE(NULLIF(?, ''), display_name),
avatar_url = COALESCE(NULLIF(?, ''), avatar_url), updated_at = NOW()
WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, email, displayName, avatarURL, id); err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}

// ConsumeCredit atomically decrements the balance by one. It reports false
// when the balance was already zero, in which case nothing changed.
func (r *ProfileRepository) ConsumeCredit(ctx context.Context, id string) (bool, error) {
	const query = `
UPDATE profiles SET credits = credits - 1, updated_at = NOW()
WHERE id = ? AND credits > 0`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("consume credit: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("credit rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *ProfileRepository) AddCredits(ctx context.Context, id string, delta int) error {
	const query = `UPDATE profiles SET credits = GREATEST(credits + ?, 0), updated_at = NOW() WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, delta, id); err != nil {
		return fmt.Errorf("add credits: %w", err)
	}
	return nil
}

func (r *ProfileRepository) SetUnlimited(ctx context.Context, id string, unlimited bool) error {
	const query = `UPDATE profiles SET unlimited = ?, updated_at = NOW() WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, unlimited, id); err != nil {
		return fmt.Errorf("set unlimited: %w", err)
	}
	return nil
}

// CompleteOnboarding moves the profile from pending to completed. The
// transition is one-way; it reports whether this call performed it.
func (r *ProfileRepository) CompleteOnboarding(ctx context.Context, id string) (bool, error) {
	const query = `
UPDATE profiles SET onboarding_completed = 1, updated_at = NOW()
WHERE id = ? AND onboarding_completed = 0`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("complete onboarding: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("onboarding rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *ProfileRepository) List(ctx context.Context, limit, offset int) ([]models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles ORDER BY created_at DESC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []models.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile list: %w", err)
		}
		profiles = append(profiles, *p)
	}
	return profiles, rows.Err()
}

func (r *ProfileRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM profiles`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count profiles: %w", err)
	}
	return count, nil
}
