package database

import (
	"context"

	"github.com/ds124wfegd/scribble-diffusion/internal/entity"
)

type PredictionCache interface {
	// Save merges p into the cached copy and reports whether the cached copy changed.
	Save(ctx context.Context, p *entity.Prediction) (*entity.Prediction, bool, error)
	Get(ctx context.Context, id string) (*entity.Prediction, error)
	List(ctx context.Context, limit int) ([]*entity.Prediction, error)
}

type ScribbleRepository interface {
	// Save is a no-op when the prediction is already archived.
	Save(ctx context.Context, s *entity.Scribble) error
	// GetByID accepts either the scribble uuid or the prediction id.
	GetByID(ctx context.Context, id string) (*entity.Scribble, error)
	ListRecent(ctx context.Context, limit int) ([]entity.Scribble, error)
}

// Merge returns the copy that should be cached after seeing incoming.
// Fields the incoming payload leaves empty are carried over from old.
func Merge(old, incoming *entity.Prediction) (*entity.Prediction, bool) {
	if !incoming.Supersedes(old) {
		return old, false
	}
	if old == nil {
		return incoming, true
	}

	merged := *incoming
	if merged.Version == "" {
		merged.Version = old.Version
	}
	if merged.Input.Prompt == "" && merged.Input.Image == "" {
		merged.Input = old.Input
	}
	if merged.URLs == nil {
		merged.URLs = old.URLs
	}
	if merged.CreatedAt == nil {
		merged.CreatedAt = old.CreatedAt
	}
	if merged.StartedAt == nil {
		merged.StartedAt = old.StartedAt
	}
	return &merged, true
}
