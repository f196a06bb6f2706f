package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jaivgar/workflow-executor/persistence"
	"github.com/jaivgar/workflow-executor/workflow"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *ExecutionStore {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "executions.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func TestExecutionStoreSaveGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	queued := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	exec := workflow.Execution{
		ID:           4,
		RunID:        "run-4",
		WorkflowName: "milling",
		Status:       workflow.DONE,
		Input:        map[string]any{"x": "5"},
		ErrorMessage: "sensor unreachable",
		QueueTime:    queued,
		StartTime:    queued.Add(time.Second),
		EndTime:      queued.Add(2 * time.Second),
	}
	require.NoError(t, store.Save(ctx, exec))

	got, err := store.Get(ctx, 4)
	require.NoError(t, err)
	require.Equal(t, exec, *got)

	_, err = store.Get(ctx, 5)
	require.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestExecutionStoreHistory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	for i := int64(1); i <= 3; i++ {
		require.NoError(t, store.Save(ctx, workflow.Execution{
			ID:           i,
			RunID:        string(rune('a' + i)),
			WorkflowName: "echo",
			Status:       workflow.DONE,
			Success:      true,
			QueueTime:    time.Now().UTC(),
		}))
	}

	hist, err := store.History(ctx, 2)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	require.Equal(t, int64(3), hist[0].ID)
	require.Equal(t, int64(2), hist[1].ID)

	all, err := store.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.True(t, all[2].StartTime.IsZero())
}
