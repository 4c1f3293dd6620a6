package archiver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ds124wfegd/scribble-diffusion/internal/entity"
	"github.com/ds124wfegd/scribble-diffusion/internal/service"
	"github.com/sirupsen/logrus"
)

const maxSaveRetries = 5

type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Archiver turns succeeded prediction events into shareable scribbles.
type Archiver struct {
	scribbles service.ScribbleService
	notifier  Notifier
	baseURL   string
}

// NewArchiver accepts a nil notifier.
func NewArchiver(scribbles service.ScribbleService, notifier Notifier, baseURL string) *Archiver {
	return &Archiver{
		scribbles: scribbles,
		notifier:  notifier,
		baseURL:   baseURL,
	}
}

// Handle consumes one PredictionEvent from the event stream.
func (a *Archiver) Handle(ctx context.Context, value []byte) error {
	var event entity.PredictionEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return fmt.Errorf("failed to parse prediction event: %w", err)
	}

	p := event.Prediction
	if p == nil || p.Status != entity.StatusSucceeded || p.LatestOutput() == "" {
		return nil
	}

	var (
		scribble *entity.Scribble
		created  bool
	)

	// Postgres может быть временно недоступен
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxSaveRetries), ctx)
	err := backoff.Retry(func() error {
		var err error
		scribble, created, err = a.scribbles.Archive(ctx, p)
		if errors.Is(err, entity.ErrInvalidInput) || errors.Is(err, entity.ErrStorageDisabled) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
	if err != nil {
		return fmt.Errorf("failed to archive prediction %s: %w", p.ID, err)
	}

	log := logrus.WithFields(logrus.Fields{
		"prediction_id": p.ID,
		"uuid":          scribble.UUID,
		"source":        event.Source,
	})

	if !created {
		log.Debug("Prediction already archived")
		return nil
	}
	log.Info("Scribble archived")

	if a.notifier != nil {
		notifyCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := a.notifier.Notify(notifyCtx, a.message(scribble)); err != nil {
			log.WithError(err).Warn("Failed to send notification")
		}
	}
	return nil
}

func (a *Archiver) message(s *entity.Scribble) string {
	return fmt.Sprintf("New scribble: %q\n%s/scribbles/%s", s.Prompt, a.baseURL, s.UUID)
}
