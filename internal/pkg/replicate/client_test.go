package replicate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ds124wfegd/scribble-diffusion/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePrediction(t *testing.T) {
	var got CreatePredictionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/predictions", r.URL.Path)
		assert.Equal(t, "Bearer r8_token", r.Header.Get("Authorization"))
		assert.Equal(t, "scribble-diffusion/0.1.0", r.Header.Get("User-Agent"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"p1","status":"starting","input":{"prompt":"a cat","image":"https://x/img.png","structure":"scribble"},"output":null,"error":null}`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, Token: "r8_token", UserAgent: "scribble-diffusion/0.1.0"})

	prediction, err := client.CreatePrediction(context.Background(), &CreatePredictionRequest{
		Version:             "v1",
		Input:               entity.PredictionInput{Prompt: "a cat", Image: "https://x/img.png", Structure: "scribble"},
		Webhook:             "https://app.example/api/replicate-webhook",
		WebhookEventsFilter: []string{WebhookEventStart, WebhookEventCompleted},
	})
	require.NoError(t, err)

	assert.Equal(t, "p1", prediction.ID)
	assert.Equal(t, entity.StatusStarting, prediction.Status)
	assert.Nil(t, prediction.Output)
	assert.False(t, prediction.HasError())

	assert.Equal(t, "v1", got.Version)
	assert.Equal(t, "a cat", got.Input.Prompt)
	assert.Equal(t, "https://app.example/api/replicate-webhook", got.Webhook)
	assert.Equal(t, []string{"start", "completed"}, got.WebhookEventsFilter)
}

func TestGetPrediction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/predictions/p1", r.URL.Path)
		w.Write([]byte(`{"id":"p1","status":"processing","output":["https://x/1.png","https://x/2.png"]}`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, Token: "t"})

	prediction, err := client.GetPrediction(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusProcessing, prediction.Status)
	assert.Equal(t, "https://x/2.png", prediction.LatestOutput())
}

func TestAPIErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantDetail string
	}{
		{
			name:       "detail field",
			status:     http.StatusUnauthorized,
			body:       `{"detail":"Invalid token.","status":401}`,
			wantDetail: "Invalid token.",
		},
		{
			name:       "title only",
			status:     http.StatusUnprocessableEntity,
			body:       `{"title":"Input validation failed"}`,
			wantDetail: "Input validation failed",
		},
		{
			name:       "plain text",
			status:     http.StatusBadGateway,
			body:       "upstream down",
			wantDetail: "upstream down",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(Config{BaseURL: srv.URL, Token: "t"}).GetPrediction(context.Background(), "p1")

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.wantDetail, apiErr.Detail)
		})
	}
}

func TestMissingToken(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:0"})

	_, err := client.CreatePrediction(context.Background(), &CreatePredictionRequest{})
	assert.ErrorIs(t, err, entity.ErrMissingAPIToken)

	_, err = client.GetPrediction(context.Background(), "")
	assert.ErrorIs(t, err, entity.ErrMissingPredictionID)
}
