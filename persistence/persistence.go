package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/jaivgar/workflow-executor/workflow"
)

var (
	ErrQueueFull = errors.New("workflow queue is full")
	ErrNotFound  = errors.New("not found")
)

type StorageLayerError struct {
	Message string
}

func (e StorageLayerError) Error() string {
	return fmt.Sprintf("storage layer error %s", e.Message)
}

// Queue holds the instances awaiting or under execution. The head stays in
// the queue while it runs and is removed by the consumer once it is done.
type Queue interface {
	Enqueue(wf *workflow.QueuedWorkflow) error
	// Peek blocks until the queue has a head or ctx is done.
	Peek(ctx context.Context) (*workflow.QueuedWorkflow, error)
	Remove(id int64) error
	Snapshot() []*workflow.QueuedWorkflow
	Len() int
}

// ExecutionStore keeps the outcome of finished executions.
type ExecutionStore interface {
	Save(ctx context.Context, exec workflow.Execution) error
	Get(ctx context.Context, id int64) (*workflow.Execution, error)
	History(ctx context.Context, limit int) ([]workflow.Execution, error)
	Close() error
}
