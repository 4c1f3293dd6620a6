// client for the service's own HTTP API, used by the page controller
package apiclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ds124wfegd/scribble-diffusion/internal/entity"
)

// Response carries the HTTP status with either the prediction or the error detail.
type Response struct {
	StatusCode int
	Prediction *entity.Prediction
	Detail     string
}

type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EncodeDataURI renders a PNG the way a canvas export does.
func EncodeDataURI(data []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)
}

// Upload relays a scribble data URI and returns the hosted file URL.
func (c *Client) Upload(ctx context.Context, scribble string) (string, error) {
	body, err := json.Marshal(entity.UploadRequest{Scribble: scribble})
	if err != nil {
		return "", err
	}

	status, data, err := c.do(ctx, http.MethodPost, "/api/uploads", bytes.NewReader(body))
	if err != nil {
		return "", err
	}

	if status != http.StatusCreated {
		return "", fmt.Errorf("%w: %s", entity.ErrUploadFailed, detail(data, status))
	}

	var out entity.UploadResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("failed to decode upload response: %w", err)
	}
	if out.FileURL == "" {
		return "", fmt.Errorf("%w: response has no fileUrl", entity.ErrUploadFailed)
	}
	return out.FileURL, nil
}

func (c *Client) CreatePrediction(ctx context.Context, req entity.CreatePredictionRequest) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	status, data, err := c.do(ctx, http.MethodPost, "/api/predictions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	return decode(status, data, http.StatusCreated)
}

func (c *Client) GetPrediction(ctx context.Context, id string) (*Response, error) {
	if id == "" {
		return nil, entity.ErrMissingPredictionID
	}

	status, data, err := c.do(ctx, http.MethodGet, "/api/predictions/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	return decode(status, data, http.StatusOK)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request %s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, data, nil
}

func decode(status int, data []byte, expected int) (*Response, error) {
	resp := &Response{StatusCode: status}
	if status != expected {
		resp.Detail = detail(data, status)
		return resp, nil
	}

	var p entity.Prediction
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode prediction: %w", err)
	}
	resp.Prediction = &p
	return resp, nil
}

func detail(data []byte, status int) string {
	var body entity.ErrorResponse
	if err := json.Unmarshal(data, &body); err == nil && body.Detail != "" {
		return body.Detail
	}
	if text := strings.TrimSpace(string(data)); text != "" {
		return text
	}
	return http.StatusText(status)
}

// GetScribble resolves the archived record for a uuid or prediction id.
func (c *Client) GetScribble(ctx context.Context, id string) (*entity.Scribble, error) {
	status, data, err := c.do(ctx, http.MethodGet, "/api/scribbles/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}

	switch status {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, entity.ErrScribbleNotFound
	case http.StatusServiceUnavailable:
		return nil, entity.ErrStorageDisabled
	default:
		return nil, fmt.Errorf("get scribble: %s", detail(data, status))
	}

	var s entity.Scribble
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode scribble: %w", err)
	}
	return &s, nil
}
