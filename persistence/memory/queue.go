package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/jaivgar/workflow-executor/persistence"
	"github.com/jaivgar/workflow-executor/workflow"
)

var _ persistence.Queue = new(Queue)

// Queue is an in-process FIFO. A capacity of zero means unbounded.
type Queue struct {
	mu       sync.Mutex
	items    []*workflow.QueuedWorkflow
	capacity int
	notify   chan struct{}
}

func NewQueue(capacity int) *Queue {
	return &Queue{
		capacity: capacity,
		notify:   make(chan struct{}),
	}
}

func (q *Queue) Enqueue(wf *workflow.QueuedWorkflow) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.capacity > 0 && len(q.items) >= q.capacity {
		return fmt.Errorf("%w: capacity %d", persistence.ErrQueueFull, q.capacity)
	}
	q.items = append(q.items, wf)
	close(q.notify)
	q.notify = make(chan struct{})
	return nil
}

func (q *Queue) Peek(ctx context.Context) (*workflow.QueuedWorkflow, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			head := q.items[0]
			q.mu.Unlock()
			return head, nil
		}
		wait := q.notify
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-wait:
		}
	}
}

func (q *Queue) Remove(id int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, wf := range q.items {
		if wf.ID() == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: queued workflow %d", persistence.ErrNotFound, id)
}

func (q *Queue) Snapshot() []*workflow.QueuedWorkflow {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*workflow.QueuedWorkflow(nil), q.items...)
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
