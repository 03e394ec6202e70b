package worker

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

type Task func(ctx context.Context)

//go:generate mockery --name=Worker --dir=. --output=./mocks --filename=worker_mock.go --case=underscore --with-expecter
type Worker interface {
	StartWorkers(n int)
	// Submit queues task without blocking and reports whether it was accepted.
	Submit(name string, task Task) bool
	Shutdown()
}

type worker struct {
	logger   *logrus.Logger
	name     string
	taskChan chan Task
	ctx      context.Context
	cancel   context.CancelFunc
	closed   atomic.Bool
	mu       sync.RWMutex
	wg       sync.WaitGroup
	onDrop   func(name string)
}

type Option func(*worker)

// WithDropHook is called with the task name whenever the queue is full.
func WithDropHook(fn func(name string)) Option {
	return func(w *worker) { w.onDrop = fn }
}

func NewWorker(logger *logrus.Logger, name string, queueSize int, opts ...Option) Worker {
	if queueSize <= 0 {
		queueSize = 1000
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &worker{
		logger:   logger,
		name:     name,
		taskChan: make(chan Task, queueSize),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *worker) StartWorkers(n int) {
	w.logger.WithFields(logrus.Fields{"pool": w.name, "workers": n}).Info("starting workers")
	for i := 0; i < n; i++ {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			for {
				select {
				case task, ok := <-w.taskChan:
					if !ok {
						return
					}
					w.run(task)
				case <-w.ctx.Done():
					return
				}
			}
		}()
	}
}

func (w *worker) run(task Task) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.WithFields(logrus.Fields{"pool": w.name, "panic": r}).Error("worker task panicked")
		}
	}()
	task(w.ctx)
}

func (w *worker) Submit(name string, task Task) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed.Load() {
		return false
	}
	select {
	case w.taskChan <- task:
		return true
	default:
		if w.onDrop != nil {
			w.onDrop(name)
		}
		w.logger.WithFields(logrus.Fields{"pool": w.name, "task": name}).
			Warn("task queue is full, dropping task")
		return false
	}
}

// Shutdown stops accepting tasks, lets the workers drain what is queued and waits for them.
func (w *worker) Shutdown() {
	w.mu.Lock()
	if !w.closed.CompareAndSwap(false, true) {
		w.mu.Unlock()
		return
	}
	close(w.taskChan)
	w.mu.Unlock()
	w.logger.WithField("pool", w.name).Info("shutting down workers")
	w.wg.Wait()
	w.cancel()
	w.logger.WithField("pool", w.name).Info("workers stopped")
}
