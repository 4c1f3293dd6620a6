package reconciler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ds124wfegd/scribble-diffusion/internal/entity"
	"github.com/ds124wfegd/scribble-diffusion/internal/pkg/replicate"
	"github.com/ds124wfegd/scribble-diffusion/internal/rabbitMQ"
	"github.com/sirupsen/logrus"
)

// Refresher re-reads a prediction and merges it into the cache.
type Refresher interface {
	Refresh(ctx context.Context, id string) (*entity.Prediction, error)
}

type Config struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	MaxAttempts  int
}

// Scheduler puts reconcile tasks on the delayed queue.
type Scheduler struct {
	queue rabbitMQ.Queue
	cfg   Config
}

func NewScheduler(queue rabbitMQ.Queue, cfg Config) *Scheduler {
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = 2 * time.Second
	}
	if cfg.MaxDelay < cfg.InitialDelay {
		cfg.MaxDelay = cfg.InitialDelay
	}
	return &Scheduler{queue: queue, cfg: cfg}
}

func (s *Scheduler) Schedule(ctx context.Context, task entity.ReconcileTask) error {
	if s.cfg.MaxAttempts > 0 && task.Attempt > s.cfg.MaxAttempts {
		logrus.WithFields(logrus.Fields{
			"prediction_id": task.PredictionID,
			"attempt":       task.Attempt,
		}).Warn("Reconciliation attempts exhausted")
		return nil
	}
	return s.queue.PublishWithDelay(ctx, task, Delay(s.cfg, task.Attempt))
}

// Delay is the wait before the given attempt: exponential from InitialDelay, capped at MaxDelay.
func Delay(cfg Config, attempt int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialDelay
	b.MaxInterval = cfg.MaxDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()

	d := b.NextBackOff()
	for i := 1; i < attempt; i++ {
		d = b.NextBackOff()
	}
	return d
}

type Reconciler struct {
	queue     rabbitMQ.Queue
	scheduler *Scheduler
	refresher Refresher
}

func NewReconciler(queue rabbitMQ.Queue, scheduler *Scheduler, refresher Refresher) *Reconciler {
	return &Reconciler{
		queue:     queue,
		scheduler: scheduler,
		refresher: refresher,
	}
}

func (r *Reconciler) Start(ctx context.Context) error {
	logrus.Info("Prediction reconciler started")
	return r.queue.Consume(ctx, r.Handle)
}

// Handle refreshes one prediction and re-schedules it until it is terminal.
func (r *Reconciler) Handle(ctx context.Context, body []byte) error {
	var task entity.ReconcileTask
	if err := json.Unmarshal(body, &task); err != nil {
		// битое сообщение не переотправляем
		logrus.WithError(err).Error("Failed to parse reconcile task")
		return nil
	}

	log := logrus.WithFields(logrus.Fields{
		"prediction_id": task.PredictionID,
		"attempt":       task.Attempt,
	})

	prediction, err := r.refresher.Refresh(ctx, task.PredictionID)
	if err != nil {
		var apiErr *replicate.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			log.Warn("Prediction vanished upstream, dropping")
			return nil
		}
		log.WithError(err).Warn("Failed to refresh prediction")
		return r.next(ctx, task)
	}

	if prediction.Status.IsTerminal() {
		log.WithField("status", prediction.Status).Info("Prediction reconciled")
		return nil
	}

	return r.next(ctx, task)
}

func (r *Reconciler) next(ctx context.Context, task entity.ReconcileTask) error {
	task.Attempt++
	if err := r.scheduler.Schedule(ctx, task); err != nil {
		return fmt.Errorf("failed to reschedule %s: %w", task.PredictionID, err)
	}
	return nil
}
