package cast

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "cast:"

// RedisStore backs snapshot records with a Redis string value per code.
// Records carry no TTL: clearing is the writer's job on ride completion, and
// a forgotten record is simply overwritten by the next session on that code.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an already-connected client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) Put(ctx context.Context, code string, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return errors.Wrap(err, "marshal snapshot")
	}
	if err := r.client.Set(ctx, redisKeyPrefix+code, data, 0).Err(); err != nil {
		return errors.Wrap(err, "store snapshot")
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, code string) (Snapshot, bool, error) {
	data, err := r.client.Get(ctx, redisKeyPrefix+code).Result()
	if err == redis.Nil {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, errors.Wrap(err, "read snapshot")
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return Snapshot{}, false, errors.Wrap(err, "decode snapshot")
	}
	return snap, true, nil
}

func (r *RedisStore) Clear(ctx context.Context, code string) error {
	if err := r.client.Del(ctx, redisKeyPrefix+code).Err(); err != nil {
		return errors.Wrap(err, "clear snapshot")
	}
	return nil
}
