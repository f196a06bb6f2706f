package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jaivgar/workflow-executor/persistence"
	"github.com/jaivgar/workflow-executor/workflow"
	"github.com/stretchr/testify/require"
)

func TestExecutionDao(t *testing.T) {
	for scenario, fn := range map[string]func(
		t *testing.T, dao *redisExecutionDao,
	){
		"test save and get":         testSaveGet,
		"test history newest first": testHistory,
		"test get unknown":          testGetUnknown,
	} {
		t.Run(scenario, func(t *testing.T) {
			srv := miniredis.RunT(t)
			dao := NewRedisExecutionDao(Config{
				Addrs:     []string{srv.Addr()},
				Namespace: "test",
			})
			defer dao.Close()
			fn(t, dao)
		})
	}
}

func execution(id int64, success bool) workflow.Execution {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return workflow.Execution{
		ID:           id,
		WorkflowName: "echo",
		Status:       workflow.DONE,
		Success:      success,
		QueueTime:    now,
		StartTime:    now,
		EndTime:      now,
	}
}

func testSaveGet(t *testing.T, dao *redisExecutionDao) {
	ctx := context.Background()
	require.NoError(t, dao.Save(ctx, execution(1, true)))
	got, err := dao.Get(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "echo", got.WorkflowName)
	require.True(t, got.Success)
	require.False(t, got.EndTime.IsZero())
}

func testHistory(t *testing.T, dao *redisExecutionDao) {
	ctx := context.Background()
	for i := int64(1); i <= 3; i++ {
		require.NoError(t, dao.Save(ctx, execution(i, i%2 == 0)))
	}
	hist, err := dao.History(ctx, 2)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	require.Equal(t, int64(3), hist[0].ID)
	require.Equal(t, int64(2), hist[1].ID)

	all, err := dao.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
}

func testGetUnknown(t *testing.T, dao *redisExecutionDao) {
	_, err := dao.Get(context.Background(), 99)
	require.ErrorIs(t, err, persistence.ErrNotFound)
}
