package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/ds124wfegd/scribble-diffusion/internal/database"
	"github.com/ds124wfegd/scribble-diffusion/internal/entity"
	"github.com/google/uuid"

	_ "github.com/lib/pq"
)

type scribbleRepository struct {
	db *sql.DB
}

func NewScribbleRepository(db *sql.DB) database.ScribbleRepository {
	return &scribbleRepository{db: db}
}

func (r *scribbleRepository) Save(ctx context.Context, s *entity.Scribble) error {
	query := `
		INSERT INTO scribbles (uuid, prediction_id, prompt, input_image_url, output_image_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (prediction_id) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, query,
		s.UUID,
		s.PredictionID,
		s.Prompt,
		s.InputImageURL,
		s.OutputImageURL,
		s.CreatedAt,
	)
	return err
}

func (r *scribbleRepository) GetByID(ctx context.Context, id string) (*entity.Scribble, error) {
	query := `
		SELECT uuid, prediction_id, prompt, input_image_url, output_image_url, created_at
		FROM scribbles
		WHERE prediction_id = $1
	`
	args := []interface{}{id}

	// uuid column rejects anything that is not a uuid
	if _, err := uuid.Parse(id); err == nil {
		query = `
			SELECT uuid, prediction_id, prompt, input_image_url, output_image_url, created_at
			FROM scribbles
			WHERE uuid = $1 OR prediction_id = $2
		`
		args = []interface{}{id, id}
	}

	var s entity.Scribble
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&s.UUID,
		&s.PredictionID,
		&s.Prompt,
		&s.InputImageURL,
		&s.OutputImageURL,
		&s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entity.ErrScribbleNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *scribbleRepository) ListRecent(ctx context.Context, limit int) ([]entity.Scribble, error) {
	query := `
		SELECT uuid, prediction_id, prompt, input_image_url, output_image_url, created_at
		FROM scribbles
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	scribbles := []entity.Scribble{}
	for rows.Next() {
		var s entity.Scribble
		err := rows.Scan(&s.UUID, &s.PredictionID, &s.Prompt, &s.InputImageURL, &s.OutputImageURL, &s.CreatedAt)
		if err != nil {
			return nil, err
		}
		scribbles = append(scribbles, s)
	}

	return scribbles, rows.Err()
}
