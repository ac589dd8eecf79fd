package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/beam-cloud/runwatch/pkg/common"
	"github.com/beam-cloud/runwatch/pkg/types"
	"github.com/redis/go-redis/v9"
)

// StateRedisRepository implements StateRepository using Redis. Snapshots are
// stored as JSON under one key per run; a set indexes the run names.
type StateRedisRepository struct {
	rdb *common.RedisClient
}

func NewStateRedisRepository(rdb *common.RedisClient) StateRepository {
	return &StateRedisRepository{rdb: rdb}
}

func (r *StateRedisRepository) SaveState(ctx context.Context, name string, state types.RunState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, common.Keys.RunState(name), data, 0)
		pipe.SAdd(ctx, common.Keys.RunStateIndex(), name)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

func (r *StateRedisRepository) GetState(ctx context.Context, name string) (types.RunState, error) {
	data, err := r.rdb.Get(ctx, common.Keys.RunState(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return types.RunState{}, &types.ErrRunNotFound{Name: name}
	}
	if err != nil {
		return types.RunState{}, err
	}

	var state types.RunState
	if err := json.Unmarshal(data, &state); err != nil {
		return types.RunState{}, fmt.Errorf("decode state %s: %w", name, err)
	}
	return state, nil
}

func (r *StateRedisRepository) ListStates(ctx context.Context) (map[string]types.RunState, error) {
	indexKey := common.Keys.RunStateIndex()
	names, err := r.rdb.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, err
	}

	states := make(map[string]types.RunState, len(names))
	for _, name := range names {
		state, err := r.GetState(ctx, name)
		if err != nil {
			if (&types.ErrRunNotFound{}).From(err) {
				r.rdb.SRem(ctx, indexKey, name) // cleanup stale
				continue
			}
			return nil, err
		}
		states[name] = state
	}
	return states, nil
}

func (r *StateRedisRepository) DeleteState(ctx context.Context, name string) error {
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, common.Keys.RunState(name))
		pipe.SRem(ctx, common.Keys.RunStateIndex(), name)
		return nil
	})
	return err
}
