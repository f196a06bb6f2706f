package util

import (
	"context"
	"errors"
	"sync"

	"github.com/jaivgar/workflow-executor/logger"
	"go.uber.org/zap"
)

var ErrWorkerStarted = errors.New("worker already started")

// Worker calls handler in a loop on a single goroutine until its context is
// cancelled or handler fails. A failure stops the worker and is kept in Err.
type Worker struct {
	name    string
	handler func(ctx context.Context) error
	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	err     error
}

func NewWorker(name string, handler func(ctx context.Context) error) *Worker {
	return &Worker{
		name:    name,
		handler: handler,
		done:    make(chan struct{}),
	}
}

func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return ErrWorkerStarted
	}
	ctx, w.cancel = context.WithCancel(ctx)
	go w.loop(ctx)
	logger.Info("worker started", zap.String("worker", w.name))
	return nil
}

func (w *Worker) loop(ctx context.Context) {
	defer close(w.done)
	for {
		if ctx.Err() != nil {
			logger.Info("stopping worker", zap.String("worker", w.name))
			return
		}
		if err := w.handler(ctx); err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				logger.Info("stopping worker", zap.String("worker", w.name))
				return
			}
			logger.Error("worker failed", zap.String("worker", w.name), zap.Error(err))
			w.mu.Lock()
			w.err = err
			w.mu.Unlock()
			return
		}
	}
}

// Stop cancels the worker and waits for the current handler call to return.
func (w *Worker) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	w.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-w.done
}

// Done is closed once the worker goroutine has exited.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

func (w *Worker) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}
