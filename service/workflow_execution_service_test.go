package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jaivgar/workflow-executor/cache"
	"github.com/jaivgar/workflow-executor/persistence"
	"github.com/jaivgar/workflow-executor/persistence/memory"
	"github.com/jaivgar/workflow-executor/statemachine"
	"github.com/jaivgar/workflow-executor/workflow"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	execs []workflow.Execution
	err   error
	done  chan workflow.Execution
}

func newRecorder(err error) *recorder {
	return &recorder{err: err, done: make(chan workflow.Execution, 16)}
}

func (r *recorder) Report(_ context.Context, exec workflow.Execution) error {
	r.mu.Lock()
	r.execs = append(r.execs, exec)
	r.mu.Unlock()
	r.done <- exec
	return r.err
}

func (r *recorder) wait(t *testing.T) workflow.Execution {
	t.Helper()
	select {
	case exec := <-r.done:
		return exec
	case <-time.After(5 * time.Second):
		t.Fatal("no execution reported")
	}
	return workflow.Execution{}
}

// succeeding records its input value as result and finishes after one step.
func succeeding(t *testing.T, name string) *workflow.Workflow {
	t.Helper()
	sm := statemachine.MustNew(
		[]statemachine.State{statemachine.NewState("Start", 0), statemachine.NewState("End")},
		[]statemachine.Transition{statemachine.NewTransition(nil, nil, statemachine.ActionFunc(
			func(env statemachine.Environment, events statemachine.Events) {
				workflow.SetSuccess(env)
			}), 1)},
	)
	w, err := workflow.New(name, workflow.ConfigSchema{"x": {"Integer"}}, sm)
	require.NoError(t, err)
	return w
}

// gated waits until the "open" variable is set on its instance environment.
func gated(t *testing.T, name string, gate chan struct{}) *workflow.Workflow {
	t.Helper()
	sm := statemachine.MustNew(
		[]statemachine.State{statemachine.NewState("Wait", 0, 1), statemachine.NewState("End")},
		[]statemachine.Transition{
			statemachine.NewTransition(nil, statemachine.When("open", true), statemachine.ActionFunc(
				func(env statemachine.Environment, events statemachine.Events) {
					workflow.SetSuccess(env)
				}), 1),
			statemachine.NewTransition(nil, statemachine.Unless("open", true), statemachine.ActionFunc(
				func(env statemachine.Environment, events statemachine.Events) {
					select {
					case <-gate:
						env.Set("open", statemachine.Bool(true))
					case <-time.After(time.Millisecond):
					}
				}), 0),
		},
	)
	w, err := workflow.New(name, nil, sm)
	require.NoError(t, err)
	return w
}

func newService(t *testing.T, reporter *recorder, opts ...Option) *WorkflowExecutionService {
	t.Helper()
	s := NewWorkflowExecutionService(memory.NewQueue(0), reporter, opts...)
	t.Cleanup(func() { _ = s.Stop() })
	return s
}

func TestSubmitRoundTrip(t *testing.T) {
	rec := newRecorder(nil)
	s := newService(t, rec)
	require.NoError(t, s.Register(succeeding(t, "N")))
	require.NoError(t, s.Start(context.Background()))

	queued, err := s.Submit("N", map[string]any{"x": "5"})
	require.NoError(t, err)
	require.Equal(t, "N", queued.Name())

	exec := rec.wait(t)
	require.Equal(t, queued.ID(), exec.ID)
	require.Equal(t, "N", exec.WorkflowName)
	require.Equal(t, workflow.DONE, exec.Status)
	require.True(t, exec.Success)
	require.False(t, exec.StartTime.Before(exec.QueueTime))
	require.False(t, exec.EndTime.Before(exec.StartTime))
	require.Equal(t, map[string]any{"x": "5"}, exec.Input)

	require.Eventually(t, func() bool { return len(s.ListInFlight()) == 0 }, time.Second, time.Millisecond)
}

func TestUnknownWorkflowNeverQueued(t *testing.T) {
	s := newService(t, newRecorder(nil))
	_, err := s.Submit("missing", nil)
	require.ErrorIs(t, err, ErrUnknownWorkflow)
	require.Empty(t, s.ListInFlight())
}

func TestInvalidConfigRejected(t *testing.T) {
	s := newService(t, newRecorder(nil))
	require.NoError(t, s.Register(succeeding(t, "N")))
	_, err := s.Submit("N", map[string]any{"x": "five"})
	require.ErrorIs(t, err, workflow.ErrInvalidConfig)
	require.Zero(t, s.QueueLength())
}

func TestDuplicateRegistration(t *testing.T) {
	s := newService(t, newRecorder(nil))
	first := succeeding(t, "N")
	require.NoError(t, s.Register(first))
	require.ErrorIs(t, s.Register(succeeding(t, "N")), ErrWorkflowExists)
	require.Same(t, first, s.ListTemplates()[0])
}

func TestListTemplatesSorted(t *testing.T) {
	s := newService(t, newRecorder(nil))
	require.NoError(t, s.Register(succeeding(t, "b")))
	require.NoError(t, s.Register(succeeding(t, "a")))
	names := []string{}
	for _, w := range s.ListTemplates() {
		names = append(names, w.Name)
	}
	require.Equal(t, []string{"a", "b"}, names)
}

func TestFIFOAndSerialExecution(t *testing.T) {
	rec := newRecorder(nil)
	s := newService(t, rec, WithIDStart(100))
	gate := make(chan struct{})
	require.NoError(t, s.Register(gated(t, "gated", gate)))
	require.NoError(t, s.Register(succeeding(t, "quick")))

	first, err := s.Submit("gated", nil)
	require.NoError(t, err)
	second, err := s.Submit("quick", nil)
	require.NoError(t, err)
	require.Equal(t, int64(100), first.ID())
	require.Equal(t, int64(101), second.ID())

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return first.Status() == workflow.ACTIVE }, time.Second, time.Millisecond)

	inFlight := s.ListInFlight()
	require.Len(t, inFlight, 2)
	require.Equal(t, first.ID(), inFlight[0].ID)
	require.Equal(t, workflow.ACTIVE, inFlight[0].Status)
	require.Equal(t, workflow.IDLE, inFlight[1].Status)
	require.Equal(t, inFlight, s.ListInFlight())

	close(gate)
	require.Equal(t, first.ID(), rec.wait(t).ID)
	last := rec.wait(t)
	require.Equal(t, second.ID(), last.ID)
	firstExec := first.Snapshot()
	require.False(t, last.StartTime.Before(firstExec.EndTime))
}

func TestReporterFailureDoesNotChangeOutcome(t *testing.T) {
	rec := newRecorder(errors.New("manager unreachable"))
	finished := cache.NewExecutionCache(time.Minute)
	s := newService(t, rec, WithFinishedStore(finished))
	require.NoError(t, s.Register(succeeding(t, "N")))
	require.NoError(t, s.Start(context.Background()))

	queued, err := s.Submit("N", nil)
	require.NoError(t, err)
	rec.wait(t)

	require.Eventually(t, func() bool { return s.QueueLength() == 0 }, time.Second, time.Millisecond)
	exec, ok := s.Get(context.Background(), queued.ID())
	require.True(t, ok)
	require.True(t, exec.Success)
	require.Equal(t, workflow.DONE, exec.Status)

	_, err = s.Submit("N", nil)
	require.NoError(t, err)
	rec.wait(t)
}

func TestMissingResultIsFailure(t *testing.T) {
	rec := newRecorder(nil)
	s := newService(t, rec)
	sm := statemachine.MustNew(
		[]statemachine.State{statemachine.NewState("Start", 0), statemachine.NewState("End")},
		[]statemachine.Transition{statemachine.NewTransition(nil, nil, nil, 1)},
	)
	w, err := workflow.New("silent", nil, sm)
	require.NoError(t, err)
	require.NoError(t, s.Register(w))
	require.NoError(t, s.Start(context.Background()))
	_, err = s.Submit("silent", nil)
	require.NoError(t, err)

	exec := rec.wait(t)
	require.False(t, exec.Success)
	require.Equal(t, workflow.MissingResultMessage, exec.ErrorMessage)
}

func TestStopRejectsSubmissions(t *testing.T) {
	s := newService(t, newRecorder(nil))
	require.NoError(t, s.Register(succeeding(t, "N")))
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop())
	_, err := s.Submit("N", nil)
	require.ErrorIs(t, err, ErrSchedulerStopped)
}

type brokenQueue struct {
	*memory.Queue
}

func (brokenQueue) Peek(context.Context) (*workflow.QueuedWorkflow, error) {
	return nil, persistence.StorageLayerError{Message: "connection lost"}
}

func TestDequeueFailureIsFatal(t *testing.T) {
	s := NewWorkflowExecutionService(brokenQueue{memory.NewQueue(0)}, nil)
	require.NoError(t, s.Register(succeeding(t, "N")))
	require.NoError(t, s.Start(context.Background()))

	select {
	case err := <-s.Fatal():
		var storageErr persistence.StorageLayerError
		require.ErrorAs(t, err, &storageErr)
	case <-time.After(5 * time.Second):
		t.Fatal("no fatal error")
	}
	_, err := s.Submit("N", nil)
	require.ErrorIs(t, err, ErrSchedulerStopped)
}

func TestIDsAreIsolatedPerService(t *testing.T) {
	a := newService(t, newRecorder(nil))
	b := newService(t, newRecorder(nil))
	require.NoError(t, a.Register(succeeding(t, "N")))
	require.NoError(t, b.Register(succeeding(t, "N")))
	qa, err := a.Submit("N", nil)
	require.NoError(t, err)
	qb, err := b.Submit("N", nil)
	require.NoError(t, err)
	require.Equal(t, int64(1), qa.ID())
	require.Equal(t, int64(1), qb.ID())
}

func TestConcurrentSubmitsQueueInIDOrder(t *testing.T) {
	s := newService(t, newRecorder(nil))
	require.NoError(t, s.Register(succeeding(t, "N")))

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Submit("N", nil)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	inFlight := s.ListInFlight()
	require.Len(t, inFlight, 64)
	for i, exec := range inFlight {
		require.Equal(t, int64(i+1), exec.ID)
	}
}

// blockingQueue holds every Enqueue until release is closed.
type blockingQueue struct {
	*memory.Queue
	entered chan struct{}
	release chan struct{}
}

func (q blockingQueue) Enqueue(wf *workflow.QueuedWorkflow) error {
	q.entered <- struct{}{}
	<-q.release
	return q.Queue.Enqueue(wf)
}

func TestStopWaitsForPendingSubmit(t *testing.T) {
	queue := blockingQueue{Queue: memory.NewQueue(0), entered: make(chan struct{}, 1), release: make(chan struct{})}
	s := NewWorkflowExecutionService(queue, nil)
	require.NoError(t, s.Register(succeeding(t, "N")))
	require.NoError(t, s.Start(context.Background()))

	submitted := make(chan error, 1)
	go func() {
		_, err := s.Submit("N", nil)
		submitted <- err
	}()
	<-queue.entered

	stopped := make(chan struct{})
	go func() {
		_ = s.Stop()
		close(stopped)
	}()
	require.Never(t, func() bool {
		select {
		case <-stopped:
			return true
		default:
			return false
		}
	}, 50*time.Millisecond, 5*time.Millisecond)

	close(queue.release)
	require.NoError(t, <-submitted)
	<-stopped

	_, err := s.Submit("N", nil)
	require.ErrorIs(t, err, ErrSchedulerStopped)
}
