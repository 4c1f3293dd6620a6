package poller

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/ds124wfegd/scribble-diffusion/internal/apiclient"
	"github.com/ds124wfegd/scribble-diffusion/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedFetcher struct {
	mu        sync.Mutex
	responses []*apiclient.Response
	calls     int
	err       error
}

func (f *scriptedFetcher) GetPrediction(ctx context.Context, id string) (*apiclient.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	resp := f.responses[f.calls]
	if f.calls < len(f.responses)-1 {
		f.calls++
	}
	return resp, nil
}

func ok(status entity.Status, output ...string) *apiclient.Response {
	return &apiclient.Response{
		StatusCode: http.StatusOK,
		Prediction: &entity.Prediction{ID: "abc", Status: status, Output: output},
	}
}

func TestPollUntilTerminal(t *testing.T) {
	tests := []struct {
		name     string
		terminal entity.Status
	}{
		{name: "succeeded", terminal: entity.StatusSucceeded},
		{name: "failed", terminal: entity.StatusFailed},
		{name: "canceled", terminal: entity.StatusCanceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &scriptedFetcher{responses: []*apiclient.Response{
				ok(entity.StatusStarting),
				ok(entity.StatusProcessing, "step-1"),
				ok(tt.terminal, "step-1", "step-2"),
			}}

			var seen []entity.Status
			final, err := Poll(context.Background(), f, "abc", time.Millisecond, func(p *entity.Prediction) {
				seen = append(seen, p.Status)
			})

			require.NoError(t, err)
			assert.Equal(t, tt.terminal, final.Status)
			assert.Equal(t, []entity.Status{entity.StatusStarting, entity.StatusProcessing, tt.terminal}, seen)
		})
	}
}

func TestPollStopsOnNon200(t *testing.T) {
	f := &scriptedFetcher{responses: []*apiclient.Response{
		ok(entity.StatusProcessing),
		{StatusCode: http.StatusInternalServerError, Detail: "NSFW content detected"},
	}}

	updates := 0
	_, err := Poll(context.Background(), f, "abc", time.Millisecond, func(*entity.Prediction) { updates++ })

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	assert.Equal(t, "NSFW content detected", statusErr.Detail)
	assert.Equal(t, 1, updates)
}

func TestPollWaitsBeforeFirstFetch(t *testing.T) {
	f := &scriptedFetcher{responses: []*apiclient.Response{ok(entity.StatusSucceeded)}}

	start := time.Now()
	_, err := Poll(context.Background(), f, "abc", 30*time.Millisecond, nil)

	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestPollContextCancel(t *testing.T) {
	f := &scriptedFetcher{responses: []*apiclient.Response{ok(entity.StatusProcessing)}}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := Poll(ctx, f, "abc", time.Millisecond, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPollFetchError(t *testing.T) {
	boom := errors.New("connection refused")
	f := &scriptedFetcher{err: boom}

	_, err := Poll(context.Background(), f, "abc", time.Millisecond, nil)
	assert.ErrorIs(t, err, boom)
}

func TestPollRequiresID(t *testing.T) {
	_, err := Poll(context.Background(), &scriptedFetcher{}, "", time.Millisecond, nil)
	assert.ErrorIs(t, err, entity.ErrMissingPredictionID)
}
