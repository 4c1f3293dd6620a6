// page controller: submit a scribble and follow the prediction
package controller

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ds124wfegd/scribble-diffusion/internal/apiclient"
	"github.com/ds124wfegd/scribble-diffusion/internal/display"
	"github.com/ds124wfegd/scribble-diffusion/internal/entity"
	"github.com/ds124wfegd/scribble-diffusion/internal/pkg/profanity"
	"github.com/ds124wfegd/scribble-diffusion/internal/poller"
	"github.com/sirupsen/logrus"
)

type API interface {
	Upload(ctx context.Context, scribble string) (string, error)
	CreatePrediction(ctx context.Context, req entity.CreatePredictionRequest) (*apiclient.Response, error)
	GetPrediction(ctx context.Context, id string) (*apiclient.Response, error)
	GetScribble(ctx context.Context, id string) (*entity.Scribble, error)
}

type Config struct {
	PollInterval time.Duration
	// Out receives the rendered board after each update; nil disables rendering.
	Out io.Writer
}

type Controller struct {
	api      API
	board    *display.Board
	interval time.Duration
	out      io.Writer

	mu         sync.Mutex
	lastError  string
	processing bool
}

func New(api API, board *display.Board, cfg Config) *Controller {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = poller.DefaultInterval
	}
	return &Controller{
		api:      api,
		board:    board,
		interval: interval,
		out:      cfg.Out,
	}
}

// Submit runs one submission end to end. The returned error mirrors Error():
// it is set when the upload, the create call or a poll fails.
func (c *Controller) Submit(ctx context.Context, scribble, prompt string) (*entity.Prediction, error) {
	c.mu.Lock()
	c.lastError = ""
	c.processing = true
	c.mu.Unlock()
	defer c.setProcessing(false)

	c.board.Submit()
	prompt = profanity.Clean(prompt)
	c.render()

	fileURL, err := c.api.Upload(ctx, scribble)
	if err != nil {
		c.board.Fail()
		return nil, c.fail(err.Error())
	}

	resp, err := c.api.CreatePrediction(ctx, entity.CreatePredictionRequest{
		Prompt:    prompt,
		Image:     fileURL,
		Structure: entity.StructureScribble,
	})
	if err != nil {
		c.board.Fail()
		return nil, c.fail(err.Error())
	}
	if resp.Prediction == nil || resp.Prediction.ID == "" {
		c.board.Fail()
	}
	c.board.Upsert(resp.Prediction)
	c.render()

	if resp.StatusCode != http.StatusCreated {
		return nil, c.fail(resp.Detail)
	}

	prediction := resp.Prediction
	if !prediction.Status.IsTerminal() {
		prediction, err = poller.Poll(ctx, c.api, prediction.ID, c.interval, func(p *entity.Prediction) {
			c.board.Upsert(p)
			c.render()
		})
		if err != nil {
			var statusErr *poller.StatusError
			if errors.As(err, &statusErr) {
				return nil, c.fail(statusErr.Detail)
			}
			return nil, c.fail(err.Error())
		}
	}

	if prediction.Status == entity.StatusSucceeded {
		c.resolveShareID(ctx, prediction.ID)
	}

	logrus.WithFields(logrus.Fields{
		"prediction_id": prediction.ID,
		"status":        prediction.Status,
	}).Info("Prediction settled")

	return prediction, nil
}

// resolveShareID swaps the prediction id in the share link for the archived uuid
// when the archiver has already stored it.
func (c *Controller) resolveShareID(ctx context.Context, predictionID string) {
	s, err := c.api.GetScribble(ctx, predictionID)
	if err != nil {
		logrus.WithError(err).WithField("prediction_id", predictionID).Debug("Scribble not archived yet")
		return
	}
	c.board.SetShareID(predictionID, s.UUID)
	c.render()
}

func (c *Controller) Error() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastError
}

func (c *Controller) Processing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.processing
}

func (c *Controller) setProcessing(v bool) {
	c.mu.Lock()
	c.processing = v
	c.mu.Unlock()
}

func (c *Controller) fail(detail string) error {
	detail = strings.TrimSpace(detail)
	if detail == "" {
		detail = "request failed"
	}

	c.mu.Lock()
	c.lastError = detail
	c.mu.Unlock()

	return errors.New(detail)
}

func (c *Controller) render() {
	if c.out == nil {
		return
	}
	if err := c.board.Render(c.out); err != nil {
		logrus.WithError(err).Warn("Failed to render predictions")
	}
}
