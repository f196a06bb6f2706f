package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jaivgar/workflow-executor/logger"
	"github.com/jaivgar/workflow-executor/statemachine"
	"go.uber.org/zap"
)

var ErrNotActive = errors.New("workflow is not ACTIVE")

// Execution is a read-only view of a queued workflow, safe to hand to other
// goroutines.
type Execution struct {
	ID           int64          `json:"id"`
	RunID        string         `json:"runId"`
	WorkflowName string         `json:"workflowName"`
	Status       WStatus        `json:"workflowStatus"`
	Input        map[string]any `json:"input,omitempty"`
	Success      bool           `json:"success"`
	ErrorMessage string         `json:"errorMessage,omitempty"`
	QueueTime    time.Time      `json:"queueTime"`
	StartTime    time.Time      `json:"startTime,omitzero"`
	EndTime      time.Time      `json:"endTime,omitzero"`
}

// QueuedWorkflow is one execution of a template. Only the worker running it
// touches its state machine; metadata reads go through the lock.
type QueuedWorkflow struct {
	mu           sync.RWMutex
	id           int64
	runID        uuid.UUID
	name         string
	input        map[string]any
	logic        *statemachine.StateMachine
	status       WStatus
	queueTime    time.Time
	startTime    time.Time
	endTime      time.Time
	success      bool
	errorMessage string
}

// NewQueuedWorkflow instantiates the template's state machine and merges the
// configuration values into its environment.
func NewQueuedWorkflow(w *Workflow, id int64, input map[string]any) *QueuedWorkflow {
	logic := w.Logic.Instantiate()
	in := make(map[string]any, len(input))
	for k, v := range input {
		in[k] = v
		logic.SetVariable(k, statemachine.ValueOf(v))
	}
	return &QueuedWorkflow{
		id:        id,
		runID:     uuid.New(),
		name:      w.Name,
		input:     in,
		logic:     logic,
		status:    IDLE,
		queueTime: time.Now().UTC(),
	}
}

func (q *QueuedWorkflow) ID() int64 {
	return q.id
}

func (q *QueuedWorkflow) RunID() uuid.UUID {
	return q.runID
}

func (q *QueuedWorkflow) Name() string {
	return q.name
}

// Logic returns the instance state machine. It must only be used by the
// goroutine running the workflow, or after it is DONE.
func (q *QueuedWorkflow) Logic() *statemachine.StateMachine {
	return q.logic
}

func (q *QueuedWorkflow) Status() WStatus {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.status
}

func (q *QueuedWorkflow) Snapshot() Execution {
	q.mu.RLock()
	defer q.mu.RUnlock()
	in := make(map[string]any, len(q.input))
	for k, v := range q.input {
		in[k] = v
	}
	return Execution{
		ID:           q.id,
		RunID:        q.runID.String(),
		WorkflowName: q.name,
		Status:       q.status,
		Input:        in,
		Success:      q.success,
		ErrorMessage: q.errorMessage,
		QueueTime:    q.queueTime,
		StartTime:    q.startTime,
		EndTime:      q.endTime,
	}
}

// Start marks the workflow ACTIVE. It returns false if it was already started.
func (q *QueuedWorkflow) Start() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.startTime.IsZero() {
		return false
	}
	q.startTime = time.Now().UTC()
	q.status = ACTIVE
	return true
}

// Run updates the state machine until it reaches a terminal state, sleeping
// retry between updates that fire nothing. It returns early only when ctx is
// done or a strict machine meets an ill-formed expression.
func (q *QueuedWorkflow) Run(ctx context.Context, retry time.Duration) error {
	if q.Status() != ACTIVE {
		return fmt.Errorf("%w: workflow %s (%d) is %s", ErrNotActive, q.name, q.id, q.Status())
	}
	sm := q.logic
	logger.Info("workflow starts execution", zap.String("workflow", q.name), zap.Int64("id", q.id),
		zap.Int("state", sm.CurrentState()), zap.String("stateName", sm.ActiveState().Name))
	q.logDetails(sm)

	timer := time.NewTimer(retry)
	defer timer.Stop()
	for {
		res, err := sm.UpdateE()
		if err != nil {
			return err
		}
		switch res.Action {
		case statemachine.End:
			return nil
		case statemachine.TransitionFired:
			logger.Info("workflow in state", zap.String("workflow", q.name), zap.Int64("id", q.id),
				zap.Int("transition", res.TransitionIndex), zap.Int("state", res.StateIndex), zap.String("stateName", res.State.Name))
			q.logDetails(sm)
		case statemachine.NoTransition:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(retry)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
}

func (q *QueuedWorkflow) logDetails(sm *statemachine.StateMachine) {
	logger.Debug("events present", zap.String("workflow", q.name), zap.Int64("id", q.id), zap.Strings("events", sm.Events().Names()))
	logger.Debug("environment contains variables", zap.String("workflow", q.name), zap.Int64("id", q.id), zap.Any("environment", sm.Environment().Plain()))
}

// Finish marks the workflow DONE and records its outcome: runErr when the run
// was interrupted, otherwise the result convention of the environment. A DONE
// workflow is never changed again and Finish returns false.
func (q *QueuedWorkflow) Finish(runErr error) bool {
	var outcome Outcome
	if runErr != nil {
		outcome = Outcome{ErrorMessage: runErr.Error()}
	} else {
		outcome = OutcomeOf(q.logic.Environment())
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.status == DONE {
		return false
	}
	q.status = DONE
	q.endTime = time.Now().UTC()
	q.success = outcome.Success
	q.errorMessage = outcome.ErrorMessage
	logger.Info("workflow is finished", zap.String("workflow", q.name), zap.Int64("id", q.id),
		zap.Bool("success", q.success), zap.String("error", q.errorMessage))
	return true
}

func (q *QueuedWorkflow) Outcome() Outcome {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return Outcome{Success: q.success, ErrorMessage: q.errorMessage}
}
