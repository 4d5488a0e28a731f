package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/digkill/InteriorAI/internal/models"
)

type ContentRepository struct {
	db *sql.DB
}

func NewContentRepository(db *sql.DB) *ContentRepository {
	return &ContentRepository{db: db}
}

func (r *ContentRepository) List(ctx context.Context) ([]models.SiteContent, error) {
	const query = `SELECT content_key, content_value, updated_at FROM site_content ORDER BY content_key ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list content: %w", err)
	}
	defer rows.Close()

	var blocks []models.SiteContent
	for rows.Next() {
		var c models.SiteContent
		if err := rows.Scan(&c.Key, &c.Value, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan content: %w", err)
		}
		blocks = append(blocks, c)
	}
	return blocks, rows.Err()
}

func (r *ContentRepository) Get(ctx context.Context, key string) (*models.SiteContent, error) {
	const query = `SELECT content_key, content_value, updated_at FROM site_content WHERE content_key = ?`
	var c models.SiteContent
	if err := r.db.QueryRowContext(ctx, query, key).Scan(&c.Key, &c.Value, &c.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get content: %w", err)
	}
	return &c, nil
}

func (r *ContentRepository) Upsert(ctx context.Context, key, value string) error {
	const query = `
INSERT INTO site_content (content_key, content_value) VALUES (?, ?)
ON DUPLICATE KEY UPDATE content_value = VALUES(content_value), updated_at = NOW()`
	if _, err := r.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("upsert content: %w", err)
	}
	return nil
}

// InsertMissing seeds a block without touching an edited value.
func (r *ContentRepository) InsertMissing(ctx context.Context, key, value string) error {
	const query = `INSERT IGNORE INTO site_content (content_key, content_value) VALUES (?, ?)`
	if _, err := r.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("seed content: %w", err)
	}
	return nil
}
