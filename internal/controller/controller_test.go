package controller

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math/rand"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/ds124wfegd/scribble-diffusion/internal/apiclient"
	"github.com/ds124wfegd/scribble-diffusion/internal/display"
	"github.com/ds124wfegd/scribble-diffusion/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	mu sync.Mutex

	uploadErr error
	created   *apiclient.Response
	polls     []*apiclient.Response
	scribble  *entity.Scribble

	uploaded  string
	request   entity.CreatePredictionRequest
	pollCalls int
}

func (f *fakeAPI) Upload(ctx context.Context, scribble string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploaded = scribble
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	return "https://files/scribble.png", nil
}

func (f *fakeAPI) CreatePrediction(ctx context.Context, req entity.CreatePredictionRequest) (*apiclient.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.request = req
	return f.created, nil
}

func (f *fakeAPI) GetPrediction(ctx context.Context, id string) (*apiclient.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	resp := f.polls[f.pollCalls]
	if f.pollCalls < len(f.polls)-1 {
		f.pollCalls++
	}
	return resp, nil
}

func (f *fakeAPI) GetScribble(ctx context.Context, id string) (*entity.Scribble, error) {
	if f.scribble == nil {
		return nil, entity.ErrScribbleNotFound
	}
	return f.scribble, nil
}

func poll(status entity.Status, output ...string) *apiclient.Response {
	return &apiclient.Response{
		StatusCode: http.StatusOK,
		Prediction: &entity.Prediction{ID: "abc", Status: status, Output: output},
	}
}

func created(status entity.Status) *apiclient.Response {
	return &apiclient.Response{
		StatusCode: http.StatusCreated,
		Prediction: &entity.Prediction{ID: "abc", Status: status},
	}
}

func newController(api API, board *display.Board, out io.Writer) *Controller {
	return New(api, board, Config{PollInterval: time.Millisecond, Out: out})
}

func TestSubmitSucceeded(t *testing.T) {
	api := &fakeAPI{
		created: created(entity.StatusStarting),
		polls: []*apiclient.Response{
			poll(entity.StatusProcessing),
			poll(entity.StatusProcessing, "step-1"),
			poll(entity.StatusSucceeded, "step-1", "final"),
		},
		scribble: &entity.Scribble{UUID: "0b6c1f0e-3d7c-4a57-9a43-0d1f3f1c2a10", PredictionID: "abc"},
	}
	board := display.NewBoard("http://localhost:8080")
	var out bytes.Buffer
	c := newController(api, board, &out)

	p, err := c.Submit(context.Background(), "data:image/png;base64,AQID", "a cat")

	require.NoError(t, err)
	assert.Equal(t, entity.StatusSucceeded, p.Status)
	assert.Empty(t, c.Error())
	assert.False(t, c.Processing())

	assert.Equal(t, "data:image/png;base64,AQID", api.uploaded)
	assert.Equal(t, "a cat", api.request.Prompt)
	assert.Equal(t, "https://files/scribble.png", api.request.Image)
	assert.Equal(t, entity.StructureScribble, api.request.Structure)

	view := board.View()
	require.Len(t, view, 1)
	assert.Equal(t, "final", view[0].LatestOutput())
	assert.Equal(t, "http://localhost:8080/scribbles/0b6c1f0e-3d7c-4a57-9a43-0d1f3f1c2a10", board.ShareURL(view[0]))
	assert.Contains(t, out.String(), "output:   final")
}

func TestSubmitFiltersPrompt(t *testing.T) {
	api := &fakeAPI{created: created(entity.StatusSucceeded)}
	c := newController(api, display.NewBoard(""), nil)

	_, err := c.Submit(context.Background(), "data:,x", "a  shit  house")

	require.NoError(t, err)
	assert.Equal(t, "a something house", api.request.Prompt)
}

func TestSubmitCreateRejected(t *testing.T) {
	api := &fakeAPI{created: &apiclient.Response{
		StatusCode: http.StatusInternalServerError,
		Detail:     "The REPLICATE_API_TOKEN environment variable is not set.",
	}}
	board := display.NewBoard("")
	c := newController(api, board, nil)

	_, err := c.Submit(context.Background(), "data:,x", "a cat")

	require.Error(t, err)
	assert.Equal(t, "The REPLICATE_API_TOKEN environment variable is not set.", c.Error())
	assert.Equal(t, 0, api.pollCalls)
	assert.False(t, board.Loading())
	assert.Empty(t, board.View())
	assert.False(t, c.Processing())
}

func TestSubmitPollRejected(t *testing.T) {
	api := &fakeAPI{
		created: created(entity.StatusStarting),
		polls: []*apiclient.Response{
			poll(entity.StatusProcessing),
			{StatusCode: http.StatusInternalServerError, Detail: "NSFW content detected"},
		},
	}
	board := display.NewBoard("")
	c := newController(api, board, nil)

	_, err := c.Submit(context.Background(), "data:,x", "a cat")

	require.Error(t, err)
	assert.Equal(t, "NSFW content detected", c.Error())
	assert.Equal(t, entity.StatusProcessing, board.View()[0].Status)
}

func TestSubmitUploadFails(t *testing.T) {
	api := &fakeAPI{uploadErr: errors.New("upload failed: host is down")}
	board := display.NewBoard("")
	c := newController(api, board, nil)

	_, err := c.Submit(context.Background(), "data:,x", "a cat")

	require.Error(t, err)
	assert.Equal(t, "upload failed: host is down", c.Error())
	assert.False(t, board.Loading())
	assert.True(t, api.request.Prompt == "")
}

func TestSubmitFailedPredictionIsNotAnError(t *testing.T) {
	api := &fakeAPI{
		created: created(entity.StatusStarting),
		polls:   []*apiclient.Response{poll(entity.StatusFailed)},
	}
	c := newController(api, display.NewBoard(""), nil)

	p, err := c.Submit(context.Background(), "data:,x", "a cat")

	require.NoError(t, err)
	assert.Equal(t, entity.StatusFailed, p.Status)
	assert.Empty(t, c.Error())
}

func TestSubmitClearsPreviousError(t *testing.T) {
	api := &fakeAPI{uploadErr: errors.New("boom")}
	c := newController(api, display.NewBoard(""), nil)

	_, err := c.Submit(context.Background(), "data:,x", "a cat")
	require.Error(t, err)

	api.uploadErr = nil
	api.created = created(entity.StatusSucceeded)
	_, err = c.Submit(context.Background(), "data:,x", "a cat")

	require.NoError(t, err)
	assert.Empty(t, c.Error())
}

func TestRandomSeed(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		assert.Contains(t, seeds, RandomSeed(r))
	}
	assert.Contains(t, seeds, RandomSeed(nil))
}
