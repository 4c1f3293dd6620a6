// polling loop for a prediction until it settles
package poller

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ds124wfegd/scribble-diffusion/internal/apiclient"
	"github.com/ds124wfegd/scribble-diffusion/internal/entity"
)

const DefaultInterval = 500 * time.Millisecond

type Fetcher interface {
	GetPrediction(ctx context.Context, id string) (*apiclient.Response, error)
}

// StatusError is returned when the status endpoint answers anything but 200.
type StatusError struct {
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Detail)
}

// Poll sleeps interval, fetches id and hands each prediction to onUpdate
// until the status is terminal. The first fetch happens after one interval.
func Poll(ctx context.Context, f Fetcher, id string, interval time.Duration, onUpdate func(*entity.Prediction)) (*entity.Prediction, error) {
	if id == "" {
		return nil, entity.ErrMissingPredictionID
	}
	if interval <= 0 {
		interval = DefaultInterval
	}

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}

		resp, err := f.GetPrediction(ctx, id)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK || resp.Prediction == nil {
			return nil, &StatusError{StatusCode: resp.StatusCode, Detail: resp.Detail}
		}

		if onUpdate != nil {
			onUpdate(resp.Prediction)
		}

		if resp.Prediction.Status.IsTerminal() {
			return resp.Prediction, nil
		}

		timer.Reset(interval)
	}
}
