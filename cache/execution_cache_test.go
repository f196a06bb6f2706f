package cache

import (
	"testing"
	"time"

	"github.com/jaivgar/workflow-executor/workflow"
	"github.com/stretchr/testify/require"
)

func TestExecutionCache(t *testing.T) {
	ch := NewExecutionCache(0)
	ch.Save(workflow.Execution{ID: 2, WorkflowName: "b"})
	ch.Save(workflow.Execution{ID: 1, WorkflowName: "a"})

	got, ok := ch.Get(2)
	require.True(t, ok)
	require.Equal(t, "b", got.WorkflowName)
	_, ok = ch.Get(3)
	require.False(t, ok)

	list := ch.List()
	require.Len(t, list, 2)
	require.Equal(t, int64(1), list[0].ID)
	require.Equal(t, 2, ch.Len())
}

func TestExecutionCacheExpires(t *testing.T) {
	ch := NewExecutionCache(10 * time.Millisecond)
	ch.Save(workflow.Execution{ID: 1})
	require.Eventually(t, func() bool {
		_, ok := ch.Get(1)
		return !ok
	}, time.Second, 5*time.Millisecond)
}
