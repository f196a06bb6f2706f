package memory

import (
	"context"
	"testing"
	"time"

	"github.com/jaivgar/workflow-executor/persistence"
	"github.com/jaivgar/workflow-executor/statemachine"
	"github.com/jaivgar/workflow-executor/workflow"
	"github.com/stretchr/testify/require"
)

func queued(t *testing.T, id int64) *workflow.QueuedWorkflow {
	t.Helper()
	sm := statemachine.MustNew(
		[]statemachine.State{statemachine.NewState("Start", 0), statemachine.NewState("End")},
		[]statemachine.Transition{statemachine.NewTransition(nil, nil, nil, 1)},
	)
	w, err := workflow.New("w", nil, sm)
	require.NoError(t, err)
	return workflow.NewQueuedWorkflow(w, id, nil)
}

func TestQueue(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T, q *Queue){
		"fifo order":         testFIFO,
		"bounded capacity":   testCapacity,
		"peek blocks":        testPeekBlocks,
		"peek honours ctx":   testPeekCancelled,
		"remove unknown id":  testRemoveUnknown,
		"snapshot is a copy": testSnapshotCopy,
	} {
		t.Run(scenario, func(t *testing.T) {
			fn(t, NewQueue(2))
		})
	}
}

func testFIFO(t *testing.T, q *Queue) {
	require.NoError(t, q.Enqueue(queued(t, 1)))
	require.NoError(t, q.Enqueue(queued(t, 2)))

	head, err := q.Peek(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), head.ID())
	require.Equal(t, 2, q.Len())

	require.NoError(t, q.Remove(1))
	head, err = q.Peek(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(2), head.ID())
}

func testCapacity(t *testing.T, q *Queue) {
	require.NoError(t, q.Enqueue(queued(t, 1)))
	require.NoError(t, q.Enqueue(queued(t, 2)))
	require.ErrorIs(t, q.Enqueue(queued(t, 3)), persistence.ErrQueueFull)
	require.Equal(t, 2, q.Len())
}

func testPeekBlocks(t *testing.T, q *Queue) {
	got := make(chan int64, 1)
	go func() {
		head, err := q.Peek(context.Background())
		if err == nil {
			got <- head.ID()
		}
	}()
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, q.Enqueue(queued(t, 9)))
	select {
	case id := <-got:
		require.Equal(t, int64(9), id)
	case <-time.After(time.Second):
		t.Fatal("peek did not wake up")
	}
}

func testPeekCancelled(t *testing.T, q *Queue) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := q.Peek(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func testRemoveUnknown(t *testing.T, q *Queue) {
	require.ErrorIs(t, q.Remove(42), persistence.ErrNotFound)
}

func testSnapshotCopy(t *testing.T, q *Queue) {
	require.NoError(t, q.Enqueue(queued(t, 1)))
	snap := q.Snapshot()
	require.NoError(t, q.Remove(1))
	require.Len(t, snap, 1)
	require.Equal(t, 0, q.Len())
}

func TestUnboundedQueue(t *testing.T) {
	q := NewQueue(0)
	for i := int64(0); i < 100; i++ {
		require.NoError(t, q.Enqueue(queued(t, i)))
	}
	require.Equal(t, 100, q.Len())
}
