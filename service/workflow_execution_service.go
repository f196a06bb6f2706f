package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jaivgar/workflow-executor/analytics"
	"github.com/jaivgar/workflow-executor/logger"
	"github.com/jaivgar/workflow-executor/persistence"
	"github.com/jaivgar/workflow-executor/util"
	"github.com/jaivgar/workflow-executor/workflow"
	"go.uber.org/zap"
)

const (
	DefaultRetryInterval = 2 * time.Millisecond
	defaultReportTimeout = 30 * time.Second
)

var (
	ErrWorkflowExists   = errors.New("workflow already registered")
	ErrUnknownWorkflow  = errors.New("unknown workflow")
	ErrSchedulerStopped = errors.New("scheduler is not accepting workflows")
)

// FinishedStore keeps executions that already left the queue.
type FinishedStore interface {
	Save(exec workflow.Execution)
	Get(id int64) (workflow.Execution, bool)
}

type Option func(*WorkflowExecutionService)

func WithRetryInterval(d time.Duration) Option {
	return func(s *WorkflowExecutionService) {
		if d > 0 {
			s.retry = d
		}
	}
}

func WithFinishedStore(store FinishedStore) Option {
	return func(s *WorkflowExecutionService) {
		s.finished = store
	}
}

// WithHistory makes Get and History fall back to a persistent store of
// finished executions.
func WithHistory(store persistence.ExecutionStore) Option {
	return func(s *WorkflowExecutionService) {
		s.history = store
	}
}

// WithIDStart sets the id given to the first submitted workflow.
func WithIDStart(first int64) Option {
	return func(s *WorkflowExecutionService) {
		s.nextID = first - 1
	}
}

func WithReportTimeout(d time.Duration) Option {
	return func(s *WorkflowExecutionService) {
		if d > 0 {
			s.reportTimeout = d
		}
	}
}

// WorkflowExecutionService holds the workflow templates and runs submitted
// instances one at a time in submission order.
type WorkflowExecutionService struct {
	mu            sync.RWMutex
	templates     map[string]*workflow.Workflow
	queue         persistence.Queue
	reporter      analytics.Reporter
	finished      FinishedStore
	history       persistence.ExecutionStore
	retry         time.Duration
	reportTimeout time.Duration
	// submitMu orders id allocation with enqueueing and guards closed.
	submitMu sync.Mutex
	nextID   int64
	closed   bool
	worker   *util.Worker
	fatal    chan error
}

func NewWorkflowExecutionService(queue persistence.Queue, reporter analytics.Reporter, opts ...Option) *WorkflowExecutionService {
	if reporter == nil {
		reporter = analytics.Noop{}
	}
	s := &WorkflowExecutionService{
		templates:     make(map[string]*workflow.Workflow),
		queue:         queue,
		reporter:      reporter,
		retry:         DefaultRetryInterval,
		reportTimeout: defaultReportTimeout,
		fatal:         make(chan error, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.worker = util.NewWorker("workflow-executor", s.executeNext)
	return s
}

func (s *WorkflowExecutionService) Register(w *workflow.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.templates[w.Name]; ok {
		return fmt.Errorf("%w: %s", ErrWorkflowExists, w.Name)
	}
	s.templates[w.Name] = w
	logger.Info("workflow registered", zap.String("workflow", w.Name))
	return nil
}

// ListTemplates returns the registered templates ordered by name.
func (s *WorkflowExecutionService) ListTemplates() []*workflow.Workflow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*workflow.Workflow, 0, len(s.templates))
	for _, w := range s.templates {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ListInFlight returns the queued executions head first. The running one is
// the head until it finishes.
func (s *WorkflowExecutionService) ListInFlight() []workflow.Execution {
	queued := s.queue.Snapshot()
	out := make([]workflow.Execution, 0, len(queued))
	for _, q := range queued {
		out = append(out, q.Snapshot())
	}
	return out
}

// Submit queues a fresh instance of the named workflow and returns without
// waiting for it to run.
func (s *WorkflowExecutionService) Submit(name string, config map[string]any) (*workflow.QueuedWorkflow, error) {
	s.mu.RLock()
	template, ok := s.templates[name]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownWorkflow, name)
	}
	if err := template.Config.Validate(config); err != nil {
		return nil, err
	}
	queued, err := s.enqueue(template, config)
	if err != nil {
		logger.Warn("workflow rejected", zap.String("workflow", name), zap.Error(err))
		return nil, err
	}
	logger.Info("workflow queued", zap.String("workflow", name), zap.Int64("id", queued.ID()),
		zap.String("runId", queued.RunID().String()), zap.Int("queueLength", s.queue.Len()))
	return queued, nil
}

// enqueue gives the instance the next id and queues it in one step, so queue
// order always follows id order.
func (s *WorkflowExecutionService) enqueue(template *workflow.Workflow, config map[string]any) (*workflow.QueuedWorkflow, error) {
	s.submitMu.Lock()
	defer s.submitMu.Unlock()
	if s.closed {
		return nil, ErrSchedulerStopped
	}
	queued := workflow.NewQueuedWorkflow(template, s.nextID+1, config)
	if err := s.queue.Enqueue(queued); err != nil {
		return nil, err
	}
	s.nextID++
	return queued, nil
}

func (s *WorkflowExecutionService) close() {
	s.submitMu.Lock()
	s.closed = true
	s.submitMu.Unlock()
}

// Get looks the execution up in the queue, then among finished executions.
func (s *WorkflowExecutionService) Get(ctx context.Context, id int64) (workflow.Execution, bool) {
	for _, q := range s.queue.Snapshot() {
		if q.ID() == id {
			return q.Snapshot(), true
		}
	}
	if s.finished != nil {
		if exec, ok := s.finished.Get(id); ok {
			return exec, true
		}
	}
	if s.history != nil {
		exec, err := s.history.Get(ctx, id)
		if err == nil {
			return *exec, true
		}
		if !errors.Is(err, persistence.ErrNotFound) {
			logger.Error("error reading execution history", zap.Int64("id", id), zap.Error(err))
		}
	}
	return workflow.Execution{}, false
}

// History returns finished executions newest first, or nothing when no
// history store is configured.
func (s *WorkflowExecutionService) History(ctx context.Context, limit int) ([]workflow.Execution, error) {
	if s.history == nil {
		return nil, nil
	}
	return s.history.History(ctx, limit)
}

func (s *WorkflowExecutionService) QueueLength() int {
	return s.queue.Len()
}

// Start launches the single worker.
func (s *WorkflowExecutionService) Start(ctx context.Context) error {
	if err := s.worker.Start(ctx); err != nil {
		return err
	}
	go func() {
		<-s.worker.Done()
		if err := s.worker.Err(); err != nil {
			s.close()
			logger.Error("workflow executor stopped, no more workflows accepted", zap.Error(err))
			s.fatal <- err
		}
	}()
	return nil
}

// Stop closes the service to new submissions and waits for the worker. An
// instance still running is interrupted and finishes as failed.
func (s *WorkflowExecutionService) Stop() error {
	s.close()
	s.worker.Stop()
	logger.Info("workflow executor stopped")
	return nil
}

// Fatal delivers the error that stopped the worker, if any.
func (s *WorkflowExecutionService) Fatal() <-chan error {
	return s.fatal
}

func (s *WorkflowExecutionService) executeNext(ctx context.Context) error {
	queued, err := s.queue.Peek(ctx)
	if err != nil {
		return err
	}
	queued.Start()
	runErr := queued.Run(ctx, s.retry)
	if runErr != nil {
		logger.Error("workflow run interrupted", zap.String("workflow", queued.Name()), zap.Int64("id", queued.ID()), zap.Error(runErr))
	}
	queued.Finish(runErr)
	exec := queued.Snapshot()
	if s.finished != nil {
		s.finished.Save(exec)
	}
	s.report(ctx, exec)
	if err := s.queue.Remove(queued.ID()); err != nil {
		return fmt.Errorf("remove finished workflow %d: %w", queued.ID(), err)
	}
	return nil
}

func (s *WorkflowExecutionService) report(ctx context.Context, exec workflow.Execution) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.reportTimeout)
	defer cancel()
	if err := s.reporter.Report(ctx, exec); err != nil {
		logger.Error("error reporting workflow result", zap.String("workflow", exec.WorkflowName),
			zap.Int64("id", exec.ID), zap.Error(err))
	}
}
