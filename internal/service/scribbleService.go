package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ds124wfegd/scribble-diffusion/internal/database"
	"github.com/ds124wfegd/scribble-diffusion/internal/entity"
	"github.com/google/uuid"
)

const maxListLimit = 100

type scribbleService struct {
	repo database.ScribbleRepository
}

func (s *scribbleService) Get(ctx context.Context, id string) (*entity.Scribble, error) {
	if s.repo == nil {
		return nil, entity.ErrStorageDisabled
	}
	return s.repo.GetByID(ctx, id)
}

func (s *scribbleService) ListRecent(ctx context.Context, limit int) ([]entity.Scribble, error) {
	if s.repo == nil {
		return nil, entity.ErrStorageDisabled
	}
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	return s.repo.ListRecent(ctx, limit)
}

func (s *scribbleService) Archive(ctx context.Context, p *entity.Prediction) (*entity.Scribble, bool, error) {
	if s.repo == nil {
		return nil, false, entity.ErrStorageDisabled
	}
	if p.Status != entity.StatusSucceeded || p.LatestOutput() == "" {
		return nil, false, fmt.Errorf("%w: prediction %s has no finished output", entity.ErrInvalidInput, p.ID)
	}

	createdAt := time.Now().UTC()
	if p.CompletedAt != nil {
		createdAt = p.CompletedAt.UTC()
	}

	scribble := &entity.Scribble{
		UUID:           uuid.New().String(),
		PredictionID:   p.ID,
		Prompt:         p.Input.Prompt,
		InputImageURL:  p.Input.Image,
		OutputImageURL: p.LatestOutput(),
		CreatedAt:      createdAt,
	}

	if err := s.repo.Save(ctx, scribble); err != nil {
		return nil, false, fmt.Errorf("failed to save scribble: %w", err)
	}

	stored, err := s.repo.GetByID(ctx, p.ID)
	if err != nil {
		return nil, false, err
	}
	return stored, stored.UUID == scribble.UUID, nil
}
