package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ds124wfegd/scribble-diffusion/internal/database"
	"github.com/ds124wfegd/scribble-diffusion/internal/entity"
)

type cachedPrediction struct {
	prediction *entity.Prediction
	firstSeen  time.Time
	expiresAt  time.Time
}

// PredictionCache keeps predictions in process memory when Redis is unavailable.
type PredictionCache struct {
	mu    sync.RWMutex
	items map[string]*cachedPrediction
	ttl   time.Duration
	now   func() time.Time
}

func NewPredictionCache(ttl time.Duration) *PredictionCache {
	return &PredictionCache{
		items: make(map[string]*cachedPrediction),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (c *PredictionCache) Save(ctx context.Context, p *entity.Prediction) (*entity.Prediction, bool, error) {
	if p == nil || p.ID == "" {
		return nil, false, entity.ErrMissingPredictionID
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	item, ok := c.items[p.ID]
	if ok && c.expired(item, now) {
		delete(c.items, p.ID)
		ok = false
	}

	if !ok {
		item = &cachedPrediction{firstSeen: now}
		c.items[p.ID] = item
	}

	merged, changed := database.Merge(item.prediction, p)
	item.prediction = merged
	if c.ttl > 0 {
		item.expiresAt = now.Add(c.ttl)
	}
	return merged, changed, nil
}

func (c *PredictionCache) Get(ctx context.Context, id string) (*entity.Prediction, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, ok := c.items[id]
	if !ok || c.expired(item, c.now()) {
		return nil, entity.ErrPredictionNotFound
	}
	return item.prediction, nil
}

// List returns the most recently seen predictions first.
func (c *PredictionCache) List(ctx context.Context, limit int) ([]*entity.Prediction, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	items := make([]*cachedPrediction, 0, len(c.items))
	for _, item := range c.items {
		if !c.expired(item, now) {
			items = append(items, item)
		}
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].firstSeen.After(items[j].firstSeen)
	})

	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}

	result := make([]*entity.Prediction, 0, len(items))
	for _, item := range items {
		result = append(result, item.prediction)
	}
	return result, nil
}

func (c *PredictionCache) expired(item *cachedPrediction, now time.Time) bool {
	return c.ttl > 0 && now.After(item.expiresAt)
}
