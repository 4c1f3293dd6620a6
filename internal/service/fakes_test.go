package service

import (
	"context"
	"sync"

	"github.com/ds124wfegd/scribble-diffusion/internal/entity"
	"github.com/ds124wfegd/scribble-diffusion/internal/pkg/replicate"
	"github.com/ds124wfegd/scribble-diffusion/internal/pkg/upload"
)

type fakeReplicate struct {
	mu          sync.Mutex
	created     []*replicate.CreatePredictionRequest
	createResp  *entity.Prediction
	createErr   error
	predictions map[string]*entity.Prediction
	getErr      error
	gets        int
}

func (f *fakeReplicate) CreatePrediction(ctx context.Context, req *replicate.CreatePredictionRequest) (*entity.Prediction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, req)
	if f.createErr != nil {
		return nil, f.createErr
	}
	p := *f.createResp
	return &p, nil
}

func (f *fakeReplicate) GetPrediction(ctx context.Context, id string) (*entity.Prediction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.getErr != nil {
		return nil, f.getErr
	}
	p, ok := f.predictions[id]
	if !ok {
		return nil, &replicate.APIError{StatusCode: 404, Detail: "Not found."}
	}
	cp := *p
	return &cp, nil
}

type sentMessage struct {
	key     string
	message interface{}
}

type fakeProducer struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (f *fakeProducer) SendMessage(ctx context.Context, key string, message interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{key: key, message: message})
	return nil
}

func (f *fakeProducer) Close() error { return nil }

type fakePublisher struct {
	mu     sync.Mutex
	topics []string
}

func (f *fakePublisher) Publish(topic string, msg []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topics = append(f.topics, topic)
}

type fakeScheduler struct {
	tasks []entity.ReconcileTask
}

func (f *fakeScheduler) Schedule(ctx context.Context, task entity.ReconcileTask) error {
	f.tasks = append(f.tasks, task)
	return nil
}

type fakeScribbleRepo struct {
	mu        sync.Mutex
	scribbles map[string]entity.Scribble
}

func newFakeScribbleRepo() *fakeScribbleRepo {
	return &fakeScribbleRepo{scribbles: make(map[string]entity.Scribble)}
}

func (f *fakeScribbleRepo) Save(ctx context.Context, s *entity.Scribble) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.scribbles[s.PredictionID]; ok {
		return nil
	}
	f.scribbles[s.PredictionID] = *s
	return nil
}

func (f *fakeScribbleRepo) GetByID(ctx context.Context, id string) (*entity.Scribble, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.scribbles {
		if s.UUID == id || s.PredictionID == id {
			cp := s
			return &cp, nil
		}
	}
	return nil, entity.ErrScribbleNotFound
}

func (f *fakeScribbleRepo) ListRecent(ctx context.Context, limit int) ([]entity.Scribble, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := []entity.Scribble{}
	for _, s := range f.scribbles {
		result = append(result, s)
	}
	return result, nil
}

type fakeProcessor struct {
	err error
}

func (f *fakeProcessor) Normalize(data []byte) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return append([]byte("normalized:"), data...), nil
}

type fakeUploader struct {
	data []byte
	meta upload.Metadata
	err  error
}

func (f *fakeUploader) Upload(ctx context.Context, data []byte, meta upload.Metadata) (string, error) {
	f.data = data
	f.meta = meta
	if f.err != nil {
		return "", f.err
	}
	return "https://files.example/scribble.png", nil
}
