package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ds124wfegd/scribble-diffusion/internal/database/memory"
	"github.com/ds124wfegd/scribble-diffusion/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testVersion = "d55b9f2dcfb156089686b8f767776d5b61b007187a4e1e611881818098100fbb"

type predictionFixture struct {
	svc       PredictionService
	client    *fakeReplicate
	cache     *memory.PredictionCache
	producer  *fakeProducer
	publisher *fakePublisher
	scheduler *fakeScheduler
}

func newPredictionFixture() *predictionFixture {
	f := &predictionFixture{
		client: &fakeReplicate{
			createResp:  &entity.Prediction{ID: "p1", Status: entity.StatusStarting},
			predictions: map[string]*entity.Prediction{},
		},
		cache:     memory.NewPredictionCache(time.Hour),
		producer:  &fakeProducer{},
		publisher: &fakePublisher{},
		scheduler: &fakeScheduler{},
	}
	f.svc = NewPredictionService(f.client, f.cache, f.producer, f.publisher, f.scheduler, PredictionServiceConfig{
		Version:     testVersion,
		WebhookHost: "https://scribble.example",
	})
	return f
}

func TestCreatePrediction(t *testing.T) {
	f := newPredictionFixture()

	p, err := f.svc.Create(context.Background(), &entity.CreatePredictionRequest{
		Prompt: "a shit house",
		Image:  "https://files.example/scribble.png",
	})
	require.NoError(t, err)
	assert.Equal(t, "p1", p.ID)

	require.Len(t, f.client.created, 1)
	req := f.client.created[0]
	assert.Equal(t, testVersion, req.Version)
	assert.Equal(t, "a something house", req.Input.Prompt)
	assert.Equal(t, entity.StructureScribble, req.Input.Structure)
	assert.Equal(t, "https://scribble.example/api/replicate-webhook", req.Webhook)
	assert.Equal(t, []string{"start", "completed"}, req.WebhookEventsFilter)

	cached, err := f.cache.Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "a something house", cached.Input.Prompt)

	assert.Len(t, f.producer.sent, 1)
	assert.Equal(t, []string{"p1"}, f.publisher.topics)
	assert.Equal(t, []entity.ReconcileTask{{PredictionID: "p1", Attempt: 1}}, f.scheduler.tasks)
}

func TestCreatePredictionWithoutWebhookHost(t *testing.T) {
	f := newPredictionFixture()
	f.svc = NewPredictionService(f.client, f.cache, f.producer, f.publisher, nil, PredictionServiceConfig{Version: testVersion})

	_, err := f.svc.Create(context.Background(), &entity.CreatePredictionRequest{Prompt: "cat", Image: "img"})
	require.NoError(t, err)

	assert.Empty(t, f.client.created[0].Webhook)
	assert.Empty(t, f.client.created[0].WebhookEventsFilter)
}

func TestCreatePredictionUpstreamError(t *testing.T) {
	f := newPredictionFixture()
	f.client.createErr = entity.ErrMissingAPIToken

	_, err := f.svc.Create(context.Background(), &entity.CreatePredictionRequest{Prompt: "cat", Image: "img"})
	assert.ErrorIs(t, err, entity.ErrMissingAPIToken)
	assert.Empty(t, f.producer.sent)
	assert.Empty(t, f.scheduler.tasks)
}

func TestCreatePredictionCarryingError(t *testing.T) {
	f := newPredictionFixture()
	f.client.createResp = &entity.Prediction{ID: "p1", Status: entity.StatusFailed, Error: "invalid version"}

	p, err := f.svc.Create(context.Background(), &entity.CreatePredictionRequest{Prompt: "cat", Image: "img"})
	require.NoError(t, err)
	assert.True(t, p.HasError())
	assert.Empty(t, f.scheduler.tasks)
}

func TestGetPrediction(t *testing.T) {
	f := newPredictionFixture()
	f.client.predictions["p1"] = &entity.Prediction{ID: "p1", Status: entity.StatusProcessing, Output: []string{"o1"}}

	p, err := f.svc.Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusProcessing, p.Status)
	assert.Equal(t, "o1", p.LatestOutput())
	assert.Equal(t, []string{"p1"}, f.publisher.topics)
}

func TestRepeatedPollIsNotRepublished(t *testing.T) {
	f := newPredictionFixture()
	ctx := context.Background()
	f.client.predictions["p1"] = &entity.Prediction{ID: "p1", Status: entity.StatusProcessing, Output: []string{"o1"}}

	for i := 0; i < 3; i++ {
		p, err := f.svc.Get(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, "o1", p.LatestOutput())
	}

	assert.Len(t, f.producer.sent, 1)
	assert.Equal(t, []string{"p1"}, f.publisher.topics)

	f.client.predictions["p1"] = &entity.Prediction{ID: "p1", Status: entity.StatusProcessing, Output: []string{"o1", "o2"}}
	_, err := f.svc.Get(ctx, "p1")
	require.NoError(t, err)

	assert.Len(t, f.producer.sent, 2)
	assert.Equal(t, []string{"p1", "p1"}, f.publisher.topics)
}

func TestGetPredictionNotFound(t *testing.T) {
	f := newPredictionFixture()

	_, err := f.svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, entity.ErrPredictionNotFound)
}

func TestGetPredictionNeverRegresses(t *testing.T) {
	f := newPredictionFixture()
	ctx := context.Background()

	_, err := f.svc.HandleWebhook(ctx, &entity.Prediction{ID: "p1", Status: entity.StatusSucceeded, Output: []string{"final"}})
	require.NoError(t, err)

	f.client.predictions["p1"] = &entity.Prediction{ID: "p1", Status: entity.StatusProcessing}

	p, err := f.svc.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusSucceeded, p.Status)
	assert.Len(t, f.producer.sent, 1)
}

func TestHandleWebhook(t *testing.T) {
	f := newPredictionFixture()
	ctx := context.Background()

	_, err := f.svc.HandleWebhook(ctx, &entity.Prediction{})
	assert.ErrorIs(t, err, entity.ErrMissingPredictionID)

	p, err := f.svc.HandleWebhook(ctx, &entity.Prediction{ID: "unknown", Status: entity.StatusStarting})
	require.NoError(t, err)
	assert.Equal(t, "unknown", p.ID)

	// completed arrives, then a late start
	_, err = f.svc.HandleWebhook(ctx, &entity.Prediction{ID: "unknown", Status: entity.StatusSucceeded, Output: []string{"a"}})
	require.NoError(t, err)
	p, err = f.svc.HandleWebhook(ctx, &entity.Prediction{ID: "unknown", Status: entity.StatusStarting})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusSucceeded, p.Status)

	list, err := f.svc.List(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestRefreshSkipsTerminal(t *testing.T) {
	f := newPredictionFixture()
	ctx := context.Background()

	_, err := f.svc.HandleWebhook(ctx, &entity.Prediction{ID: "p1", Status: entity.StatusFailed})
	require.NoError(t, err)

	p, err := f.svc.Refresh(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusFailed, p.Status)
	assert.Zero(t, f.client.gets)
}

func TestRefreshFetches(t *testing.T) {
	f := newPredictionFixture()
	f.client.predictions["p1"] = &entity.Prediction{ID: "p1", Status: entity.StatusSucceeded, Output: []string{"o"}}

	p, err := f.svc.Refresh(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusSucceeded, p.Status)
	assert.Equal(t, 1, f.client.gets)
}

func TestRefreshError(t *testing.T) {
	f := newPredictionFixture()
	f.client.getErr = errors.New("connection reset")

	_, err := f.svc.Refresh(context.Background(), "p1")
	assert.Error(t, err)
}
