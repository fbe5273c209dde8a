package repository

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// CadenceStateRepository persists the per-client consecutive-miss counters
// between daily cadence runs. The legacy system round-tripped this map
// through the caller; here it lives in a Redis hash keyed by DNI so the
// endpoint stays stateless while the state survives restarts.
type CadenceStateRepository struct {
	client *redis.Client
	key    string
}

// NewCadenceStateRepository constructs the repository.
func NewCadenceStateRepository(client *redis.Client, key string) *CadenceStateRepository {
	return &CadenceStateRepository{client: client, key: key}
}

// Load returns the stored miss-counter map. Missing state yields an empty
// map, never an error.
func (r *CadenceStateRepository) Load(ctx context.Context) (map[string]int, error) {
	counters := make(map[string]int)
	if r.client == nil {
		return counters, nil
	}

	raw, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("load cadence state: %w", err)
	}
	for dni, value := range raw {
		count, err := strconv.Atoi(value)
		if err != nil {
			continue
		}
		counters[dni] = count
	}
	return counters, nil
}

// Save replaces the stored map with the provided one.
func (r *CadenceStateRepository) Save(ctx context.Context, counters map[string]int) error {
	if r.client == nil {
		return nil
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.key)
	if len(counters) > 0 {
		fields := make(map[string]interface{}, len(counters))
		for dni, count := range counters {
			fields[dni] = count
		}
		pipe.HSet(ctx, r.key, fields)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save cadence state: %w", err)
	}
	return nil
}
