package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/digkill/InteriorAI/internal/models"
)

type GenerationRepository struct {
	db *sql.DB
}

func NewGenerationRepository(db *sql.DB) *GenerationRepository {
	return &GenerationRepository{db: db}
}

const generationColumns = `id, user_id, room_type, style_id, style_prompt, COALESCE(custom_prompt, ''), prompt, negative_prompt, input_url, output_urls, status, COALESCE(error, ''), COALESCE(prediction_id, ''), created_at, completed_at`

func scanGeneration(row rowScanner) (*models.Generation, error) {
	var g models.Generation
	var outputs sql.NullString
	var completed sql.NullTime
	if err := row.Scan(&g.ID, &g.UserID, &g.RoomType, &g.StyleID, &g.StylePrompt, &g.CustomPrompt, &g.Prompt, &g.NegativePrompt, &g.InputURL, &outputs, &g.Status, &g.Error, &g.PredictionID, &g.CreatedAt, &completed); err != nil {
		return nil, err
	}
	if outputs.Valid && outputs.String != "" {
		if err := json.Unmarshal([]byte(outputs.String), &g.OutputURLs); err != nil {
			return nil, fmt.Errorf("decode output urls: %w", err)
		}
	}
	if completed.Valid {
		t := completed.Time
		g.CompletedAt = &t
	}
	return &g, nil
}

// Create records a submission that is about to be sent to the model.
func (r *GenerationRepository) Create(ctx context.Context, g *models.Generation) error {
	const query = `
INSERT INTO generations (id, user_id, room_type, style_id, style_prompt, custom_prompt, prompt, negative_prompt, input_url, status)
VALUES (?, ?, ?, ?, ?, NULLIF(?, ''), ?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, g.ID, g.UserID, g.RoomType, g.StyleID, g.StylePrompt, g.CustomPrompt, g.Prompt, g.NegativePrompt, g.InputURL, g.Status); err != nil {
		return fmt.Errorf("insert generation: %w", err)
	}
	return nil
}

// MarkSucceeded moves a processing generation to its terminal success state.
func (r *GenerationRepository) MarkSucceeded(ctx context.Context, id, predictionID string, outputURLs []string) error {
	encoded, err := json.Marshal(outputURLs)
	if err != nil {
		return fmt.Errorf("encode output urls: %w", err)
	}
	const query = `
UPDATE generations SET status = ?, output_urls = ?, prediction_id = NULLIF(?, ''), completed_at = NOW()
WHERE id = ? AND status = ?`
	res, err := r.db.ExecContext(ctx, query, models.GenerationSucceeded, string(encoded), predictionID, id, models.GenerationProcessing)
	if err != nil {
		return fmt.Errorf("mark generation succeeded: %w", err)
	}
	return expectOneRow(res, "mark generation succeeded")
}

// MarkFailed moves a processing generation to its terminal failure state.
func (r *GenerationRepository) MarkFailed(ctx context.Context, id, predictionID, reason string) error {
	const query = `
UPDATE generations SET status = ?, error = ?, prediction_id = NULLIF(?, ''), completed_at = NOW()
WHERE id = ? AND status = ?`
	res, err := r.db.ExecContext(ctx, query, models.GenerationFailed, reason, predictionID, id, models.GenerationProcessing)
	if err != nil {
		return fmt.Errorf("mark generation failed: %w", err)
	}
	return expectOneRow(res, "mark generation failed")
}

func (r *GenerationRepository) GetByID(ctx context.Context, id string) (*models.Generation, error) {
	query := `SELECT ` + generationColumns + ` FROM generations WHERE id = ?`
	g, err := scanGeneration(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get generation: %w", err)
	}
	return g, nil
}

func (r *GenerationRepository) ListByUser(ctx context.Context, userID string, limit int) ([]models.Generation, error) {
	query := `SELECT ` + generationColumns + ` FROM generations WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`
	return r.list(ctx, query, userID, limit)
}

func (r *GenerationRepository) ListRecent(ctx context.Context, limit int) ([]models.Generation, error) {
	query := `SELECT ` + generationColumns + ` FROM generations ORDER BY created_at DESC LIMIT ?`
	return r.list(ctx, query, limit)
}

func (r *GenerationRepository) list(ctx context.Context, query string, args ...any) ([]models.Generation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list generations: %w", err)
	}
	defer rows.Close()

	var generations []models.Generation
	for rows.Next() {
		g, err := scanGeneration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan generation: %w", err)
		}
		generations = append(generations, *g)
	}
	return generations, rows.Err()
}

// FailStale closes generations stuck in processing since before cutoff.
func (r *GenerationRepository) FailStale(ctx context.Context, cutoff time.Time, reason string) (int64, error) {
	const query = `
UPDATE generations SET status = ?, error = ?, completed_at = NOW()
WHERE status = ? AND created_at < ?`
	res, err := r.db.ExecContext(ctx, query, models.GenerationFailed, reason, models.GenerationProcessing, cutoff)
	if err != nil {
		return 0, fmt.Errorf("fail stale generations: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("stale rows affected: %w", err)
	}
	return affected, nil
}

func (r *GenerationRepository) CountByStatus(ctx context.Context) (map[models.GenerationStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM generations GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count generations: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.GenerationStatus]int)
	for rows.Next() {
		var status models.GenerationStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan generation count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

var ErrNoRowsAffected = errors.New("no rows affected")

func expectOneRow(res sql.Result, op string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, ErrNoRowsAffected)
	}
	return nil
}
