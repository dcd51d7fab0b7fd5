package repository

import (
	"context"
	"fmt"
	"time"

	"yield-service/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type PredictionRepository struct {
	db *sqlx.DB
}

func NewPredictionRepository(db *sqlx.DB) *PredictionRepository {
	return &PredictionRepository{db: db}
}

// Save inserts a prediction. The boundary, when present, is EWKT for PostGIS.
func (r *PredictionRepository) Save(ctx context.Context, record *models.PredictionRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO prediction_history (
			id, user_email, crop, soil_type, season, area,
			n, p, k, ph, state,
			boundary,
			predicted_yield, total_yield, created_at
		) VALUES (
			:id, :user_email, :crop, :soil_type, :season, :area,
			:n, :p, :k, :ph, :state,
			ST_GeomFromEWKT(:boundary),
			:predicted_yield, :total_yield, :created_at
		)`

	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("failed to save prediction: %w", err)
	}
	return nil
}

func (r *PredictionRepository) ListByEmail(ctx context.Context, email string, limit, offset int) ([]models.PredictionRecord, error) {
	query := `
		SELECT
			id, user_email, crop, soil_type, season, area,
			n, p, k, ph, state,
			ST_AsText(boundary) AS boundary,
			predicted_yield, total_yield, created_at
		FROM prediction_history
		WHERE user_email = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	records := []models.PredictionRecord{}
	if err := r.db.SelectContext(ctx, &records, query, email, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list predictions: %w", err)
	}
	return records, nil
}

func (r *PredictionRepository) CountByEmail(ctx context.Context, email string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM prediction_history WHERE user_email = $1`, email); err != nil {
		return 0, fmt.Errorf("failed to count predictions: %w", err)
	}
	return count, nil
}
