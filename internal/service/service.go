package service

import (
	"context"

	"github.com/ds124wfegd/scribble-diffusion/internal/database"
	"github.com/ds124wfegd/scribble-diffusion/internal/entity"
	"github.com/ds124wfegd/scribble-diffusion/internal/pkg/kafka"
	"github.com/ds124wfegd/scribble-diffusion/internal/pkg/processor"
	"github.com/ds124wfegd/scribble-diffusion/internal/pkg/replicate"
	"github.com/ds124wfegd/scribble-diffusion/internal/pkg/upload"
)

type PredictionService interface {
	Create(ctx context.Context, req *entity.CreatePredictionRequest) (*entity.Prediction, error)
	Get(ctx context.Context, id string) (*entity.Prediction, error)
	List(ctx context.Context, limit int) ([]*entity.Prediction, error)
	HandleWebhook(ctx context.Context, p *entity.Prediction) (*entity.Prediction, error)
	// Refresh re-reads a prediction that is not yet terminal in the cache.
	Refresh(ctx context.Context, id string) (*entity.Prediction, error)
}

type UploadService interface {
	Upload(ctx context.Context, data []byte, userAgent string) (string, error)
}

type ScribbleService interface {
	Get(ctx context.Context, id string) (*entity.Scribble, error)
	ListRecent(ctx context.Context, limit int) ([]entity.Scribble, error)
	// Archive stores a succeeded prediction; created is false when it was already stored.
	Archive(ctx context.Context, p *entity.Prediction) (s *entity.Scribble, created bool, err error)
}

// Publisher fans prediction updates out to live subscribers.
type Publisher interface {
	Publish(topic string, msg []byte)
}

// Scheduler queues a delayed server-side status check.
type Scheduler interface {
	Schedule(ctx context.Context, task entity.ReconcileTask) error
}

type PredictionServiceConfig struct {
	Version     string
	WebhookHost string
}

func NewPredictionService(
	client replicate.Client,
	cache database.PredictionCache,
	producer kafka.Producer,
	publisher Publisher,
	scheduler Scheduler,
	cfg PredictionServiceConfig,
) PredictionService {
	return &predictionService{
		client:    client,
		cache:     cache,
		producer:  producer,
		publisher: publisher,
		scheduler: scheduler,
		cfg:       cfg,
	}
}

func NewUploadService(proc processor.ScribbleProcessor, uploader upload.Uploader, maxBytes int64) UploadService {
	return &uploadService{
		processor: proc,
		uploader:  uploader,
		maxBytes:  maxBytes,
	}
}

// NewScribbleService accepts a nil repo; every call then fails with ErrStorageDisabled.
func NewScribbleService(repo database.ScribbleRepository) ScribbleService {
	return &scribbleService{repo: repo}
}
