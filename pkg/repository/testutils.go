package repository

import (
	"github.com/alicebob/miniredis/v2"
	"github.com/beam-cloud/runwatch/pkg/common"
	"github.com/beam-cloud/runwatch/pkg/types"
)

// NewRedisClientForTest creates a Redis client backed by miniredis for testing
func NewRedisClientForTest() (*common.RedisClient, error) {
	s, err := miniredis.Run()
	if err != nil {
		return nil, err
	}

	rdb, err := common.NewRedisClient(types.RedisConfig{
		Addrs: []string{s.Addr()},
		Mode:  types.RedisModeSingle,
	})
	if err != nil {
		return nil, err
	}

	return rdb, nil
}

// NewStateRedisRepositoryForTest creates a StateRepository backed by miniredis
func NewStateRedisRepositoryForTest() (StateRepository, *common.RedisClient, error) {
	rdb, err := NewRedisClientForTest()
	if err != nil {
		return nil, nil, err
	}
	return NewStateRedisRepository(rdb), rdb, nil
}
