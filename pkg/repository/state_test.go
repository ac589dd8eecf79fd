package repository

import (
	"context"
	"testing"
	"time"

	"github.com/beam-cloud/runwatch/pkg/common"
	"github.com/beam-cloud/runwatch/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stateRepositories(t *testing.T) map[string]StateRepository {
	t.Helper()
	redisRepo, _, err := NewStateRedisRepositoryForTest()
	require.NoError(t, err)
	return map[string]StateRepository{
		"memory": NewStateMemoryRepository(),
		"redis":  redisRepo,
	}
}

func TestStateRepository(t *testing.T) {
	ctx := context.Background()
	since := time.Date(2023, 12, 31, 17, 4, 5, 0, time.UTC)

	complete := types.RunState{
		Phase:     types.PhaseComplete,
		Available: true,
		Root:      "/data/runs/20231231_foo_ABCXYZ",
		Since:     since,
		Completion: &types.CompletionStatus{
			Status: types.CompletionCompletedAsPlanned,
			RunID:  "20231231_foo_ABCXYZ",
		},
	}
	running := types.RunState{
		Phase:     types.PhaseInProgress,
		Available: false,
		Root:      "/data/runs/20231231_bar_ABCXYZ",
		Since:     since.Add(time.Hour),
	}

	for name, repo := range stateRepositories(t) {
		t.Run(name, func(t *testing.T) {
			_, err := repo.GetState(ctx, complete.Name())
			assert.True(t, (&types.ErrRunNotFound{}).From(err))

			require.NoError(t, repo.SaveState(ctx, complete.Name(), complete))
			require.NoError(t, repo.SaveState(ctx, running.Name(), running))

			got, err := repo.GetState(ctx, complete.Name())
			require.NoError(t, err)
			assert.True(t, complete.Equal(got))

			// Latest snapshot replaces the previous one
			running.Available = true
			require.NoError(t, repo.SaveState(ctx, running.Name(), running))

			all, err := repo.ListStates(ctx)
			require.NoError(t, err)
			require.Len(t, all, 2)
			assert.True(t, all[running.Name()].Available)

			require.NoError(t, repo.DeleteState(ctx, complete.Name()))
			all, err = repo.ListStates(ctx)
			require.NoError(t, err)
			assert.Len(t, all, 1)
			assert.Contains(t, all, running.Name())

			running.Available = false
		})
	}
}

func TestStateRedisRepositoryDropsStaleIndexEntries(t *testing.T) {
	ctx := context.Background()
	repo, rdb, err := NewStateRedisRepositoryForTest()
	require.NoError(t, err)

	state := types.RunState{Phase: types.PhaseNotStarted, Root: "/data/runs/a", Since: time.Now().UTC()}
	require.NoError(t, repo.SaveState(ctx, "a", state))
	require.NoError(t, rdb.Del(ctx, common.Keys.RunState("a")).Err())

	all, err := repo.ListStates(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	members, err := rdb.SMembers(ctx, common.Keys.RunStateIndex()).Result()
	require.NoError(t, err)
	assert.Empty(t, members)
}
