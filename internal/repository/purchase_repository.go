package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/digkill/InteriorAI/internal/models"
)

type PurchaseRepository struct {
	db *sql.DB
}

func NewPurchaseRepository(db *sql.DB) *PurchaseRepository {
	return &PurchaseRepository{db: db}
}

// Grant records a completed purchase, credits the plan and flags the profile
// as purchased in one transaction.
func (r *PurchaseRepository) Grant(ctx context.Context, purchase *models.Purchase, credits int) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	const insert = `
INSERT INTO purchases (user_id, plan_id, provider, reference, currency, amount, status)
VALUES (?, ?, ?, NULLIF(?, ''), ?, ?, ?)`
	res, err := tx.ExecContext(ctx, insert, purchase.UserID, purchase.PlanID, purchase.Provider, purchase.Reference, purchase.Currency, purchase.Amount, purchase.Status)
	if err != nil {
		return fmt.Errorf("insert purchase: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("purchase last insert id: %w", err)
	}

	const credit = `UPDATE profiles SET credits = credits + ?, has_purchased = 1, updated_at = NOW() WHERE id = ?`
	upd, err := tx.ExecContext(ctx, credit, credits, purchase.UserID)
	if err != nil {
		return fmt.Errorf("credit purchase: %w", err)
	}
	if err := expectOneRow(upd, "credit purchase"); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit purchase tx: %w", err)
	}
	purchase.ID = id
	return nil
}

func (r *PurchaseRepository) ListByUser(ctx context.Context, userID string) ([]models.Purchase, error) {
	const query = `
SELECT id, user_id, plan_id, provider, COALESCE(reference, ''), currency, amount, status, created_at
FROM purchases WHERE user_id = ? ORDER BY id DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	defer rows.Close()

	var purchases []models.Purchase
	for rows.Next() {
		var p models.Purchase
		var planID sql.NullInt64
		if err := rows.Scan(&p.ID, &p.UserID, &planID, &p.Provider, &p.Reference, &p.Currency, &p.Amount, &p.Status, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan purchase: %w", err)
		}
		if planID.Valid {
			p.PlanID = &planID.Int64
		}
		purchases = append(purchases, p)
	}
	return purchases, rows.Err()
}
