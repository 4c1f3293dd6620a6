package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ds124wfegd/scribble-diffusion/internal/database"
	"github.com/ds124wfegd/scribble-diffusion/internal/entity"

	"github.com/redis/go-redis/v9"
)

const (
	predictionKeyPrefix  = "prediction:"
	recentPredictionsKey = "recent_predictions"

	maxMergeRetries = 5
)

type PredictionCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewPredictionCache(client *redis.Client, ttl time.Duration) database.PredictionCache {
	return &PredictionCache{
		client: client,
		ttl:    ttl,
	}
}

// Save merges under WATCH so concurrent webhook and poll updates cannot regress the status.
func (r *PredictionCache) Save(ctx context.Context, p *entity.Prediction) (*entity.Prediction, bool, error) {
	if p == nil || p.ID == "" {
		return nil, false, entity.ErrMissingPredictionID
	}

	key := predictionKeyPrefix + p.ID

	var (
		merged  *entity.Prediction
		changed bool
	)

	txf := func(tx *redis.Tx) error {
		old, err := r.read(ctx, tx, key)
		if err != nil {
			return err
		}

		merged, changed = database.Merge(old, p)
		if !changed {
			return nil
		}

		data, err := json.Marshal(merged)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, r.ttl)
			pipe.ZAddNX(ctx, recentPredictionsKey, redis.Z{
				Score:  float64(time.Now().UnixNano()),
				Member: p.ID,
			})
			return nil
		})
		return err
	}

	for i := 0; i < maxMergeRetries; i++ {
		err := r.client.Watch(ctx, txf, key)
		if err == nil {
			return merged, changed, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, false, fmt.Errorf("failed to save prediction %s: %w", p.ID, err)
	}

	return nil, false, fmt.Errorf("failed to save prediction %s: too many concurrent updates", p.ID)
}

func (r *PredictionCache) Get(ctx context.Context, id string) (*entity.Prediction, error) {
	p, err := r.read(ctx, r.client, predictionKeyPrefix+id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, entity.ErrPredictionNotFound
	}
	return p, nil
}

// List returns the most recently created predictions first; expired entries are pruned from the index.
func (r *PredictionCache) List(ctx context.Context, limit int) ([]*entity.Prediction, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}

	ids, err := r.client.ZRevRange(ctx, recentPredictionsKey, 0, stop).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*entity.Prediction{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = predictionKeyPrefix + id
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	result := make([]*entity.Prediction, 0, len(values))
	var stale []interface{}
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		var p entity.Prediction
		if err := json.Unmarshal([]byte(s), &p); err != nil {
			return nil, err
		}
		result = append(result, &p)
	}

	if len(stale) > 0 {
		r.client.ZRem(ctx, recentPredictionsKey, stale...)
	}

	return result, nil
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (r *PredictionCache) read(ctx context.Context, cmd getter, key string) (*entity.Prediction, error) {
	data, err := cmd.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var p entity.Prediction
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, err
	}
	return &p, nil
}
