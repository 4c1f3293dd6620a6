package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ds124wfegd/scribble-diffusion/internal/database"
	"github.com/ds124wfegd/scribble-diffusion/internal/entity"
	"github.com/ds124wfegd/scribble-diffusion/internal/metrics"
	"github.com/ds124wfegd/scribble-diffusion/internal/pkg/kafka"
	"github.com/ds124wfegd/scribble-diffusion/internal/pkg/profanity"
	"github.com/ds124wfegd/scribble-diffusion/internal/pkg/replicate"
	"github.com/sirupsen/logrus"
)

const webhookPath = "/api/replicate-webhook"

type predictionService struct {
	client    replicate.Client
	cache     database.PredictionCache
	producer  kafka.Producer
	publisher Publisher
	scheduler Scheduler
	cfg       PredictionServiceConfig
}

func (s *predictionService) Create(ctx context.Context, req *entity.CreatePredictionRequest) (*entity.Prediction, error) {
	structure := req.Structure
	if structure == "" {
		structure = entity.StructureScribble
	}

	createReq := &replicate.CreatePredictionRequest{
		Version: s.cfg.Version,
		Input: entity.PredictionInput{
			Prompt:    profanity.Clean(req.Prompt),
			Image:     req.Image,
			Structure: structure,
		},
	}
	if s.cfg.WebhookHost != "" {
		createReq.Webhook = s.cfg.WebhookHost + webhookPath
		createReq.WebhookEventsFilter = []string{replicate.WebhookEventStart, replicate.WebhookEventCompleted}
	}

	prediction, err := s.client.CreatePrediction(ctx, createReq)
	if err != nil {
		return nil, err
	}
	metrics.PredictionCreated()

	// ответ API может не содержать input
	if prediction.Input.Prompt == "" && prediction.Input.Image == "" {
		prediction.Input = createReq.Input
	}

	if prediction.HasError() {
		return prediction, nil
	}

	merged := s.record(ctx, prediction, entity.SourceAPI, entity.EventPredictionCreated)

	if !merged.Status.IsTerminal() && s.scheduler != nil {
		if err := s.scheduler.Schedule(ctx, entity.ReconcileTask{PredictionID: merged.ID, Attempt: 1}); err != nil {
			logrus.WithError(err).WithField("prediction_id", merged.ID).Warn("Failed to schedule reconciliation")
		}
	}

	return merged, nil
}

func (s *predictionService) Get(ctx context.Context, id string) (*entity.Prediction, error) {
	if id == "" {
		return nil, entity.ErrMissingPredictionID
	}

	prediction, err := s.client.GetPrediction(ctx, id)
	if err != nil {
		var apiErr *replicate.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, entity.ErrPredictionNotFound
		}
		return nil, err
	}

	return s.record(ctx, prediction, entity.SourcePoll, entity.EventPredictionUpdated), nil
}

func (s *predictionService) List(ctx context.Context, limit int) ([]*entity.Prediction, error) {
	return s.cache.List(ctx, limit)
}

func (s *predictionService) HandleWebhook(ctx context.Context, p *entity.Prediction) (*entity.Prediction, error) {
	if p == nil || p.ID == "" {
		return nil, entity.ErrMissingPredictionID
	}
	return s.record(ctx, p, entity.SourceWebhook, entity.EventPredictionUpdated), nil
}

func (s *predictionService) Refresh(ctx context.Context, id string) (*entity.Prediction, error) {
	cached, err := s.cache.Get(ctx, id)
	if err == nil && cached.Status.IsTerminal() {
		return cached, nil
	}

	prediction, err := s.client.GetPrediction(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.record(ctx, prediction, entity.SourceReconcile, entity.EventPredictionUpdated), nil
}

// record merges p into the cache and, when the cached copy changed, announces it.
func (s *predictionService) record(ctx context.Context, p *entity.Prediction, source, eventType string) *entity.Prediction {
	log := logrus.WithFields(logrus.Fields{
		"prediction_id": p.ID,
		"status":        p.Status,
		"source":        source,
	})

	merged, changed, err := s.cache.Save(ctx, p)
	if err != nil {
		log.WithError(err).Error("Failed to cache prediction")
		merged, changed = p, true
	}
	if !changed {
		log.Debug("Stale prediction update ignored")
		return merged
	}

	metrics.PredictionUpdated(source, merged)
	log.Info("Prediction updated")

	if s.publisher != nil {
		if data, err := json.Marshal(merged); err == nil {
			s.publisher.Publish(merged.ID, data)
		}
	}

	if s.producer != nil {
		event := entity.PredictionEvent{
			Type:       eventType,
			Source:     source,
			Prediction: merged,
			ReceivedAt: time.Now().UTC(),
		}
		if err := s.producer.SendMessage(ctx, merged.ID, event); err != nil {
			log.WithError(err).Warn("Failed to publish prediction event")
		}
	}

	return merged
}
