package replicate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ds124wfegd/scribble-diffusion/internal/entity"
	"github.com/sirupsen/logrus"
)

const (
	WebhookEventStart     = "start"
	WebhookEventOutput    = "output"
	WebhookEventLogs      = "logs"
	WebhookEventCompleted = "completed"
)

type Client interface {
	CreatePrediction(ctx context.Context, req *CreatePredictionRequest) (*entity.Prediction, error)
	GetPrediction(ctx context.Context, id string) (*entity.Prediction, error)
}

type CreatePredictionRequest struct {
	Version             string                 `json:"version"`
	Input               entity.PredictionInput `json:"input"`
	Webhook             string                 `json:"webhook,omitempty"`
	WebhookEventsFilter []string               `json:"webhook_events_filter,omitempty"`
}

type Config struct {
	BaseURL   string
	Token     string
	UserAgent string
	Timeout   time.Duration
}

// APIError is returned for any non-2xx answer from the inference API.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("replicate API error (status %d): %s", e.StatusCode, e.Detail)
}

type httpClient struct {
	baseURL   string
	token     string
	userAgent string
	http      *http.Client
}

func NewClient(cfg Config) Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &httpClient{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		token:     cfg.Token,
		userAgent: cfg.UserAgent,
		http:      &http.Client{Timeout: timeout},
	}
}

func (c *httpClient) CreatePrediction(ctx context.Context, req *CreatePredictionRequest) (*entity.Prediction, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal prediction request: %w", err)
	}

	var prediction entity.Prediction
	if err := c.do(ctx, http.MethodPost, "/predictions", bytes.NewReader(body), &prediction); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"prediction_id": prediction.ID,
		"status":        prediction.Status,
	}).Info("Prediction created")

	return &prediction, nil
}

func (c *httpClient) GetPrediction(ctx context.Context, id string) (*entity.Prediction, error) {
	if id == "" {
		return nil, entity.ErrMissingPredictionID
	}

	var prediction entity.Prediction
	if err := c.do(ctx, http.MethodGet, "/predictions/"+url.PathEscape(id), nil, &prediction); err != nil {
		return nil, err
	}
	return &prediction, nil
}

func (c *httpClient) do(ctx context.Context, method, path string, body io.Reader, out interface{}) error {
	if c.token == "" {
		return entity.ErrMissingAPIToken
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("replicate request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read replicate response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Detail: errorDetail(data, resp.Status)}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode replicate response: %w", err)
	}
	return nil
}

func errorDetail(data []byte, fallback string) string {
	var body struct {
		Detail string `json:"detail"`
		Title  string `json:"title"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		if body.Detail != "" {
			return body.Detail
		}
		if body.Title != "" {
			return body.Title
		}
	}
	if len(data) > 0 {
		return strings.TrimSpace(string(data))
	}
	return fallback
}
