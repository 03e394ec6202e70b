package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type Task struct {
	Name     string
	Interval time.Duration
	// Timeout bounds one run, defaults to Interval.
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// Scheduler runs each task on its own ticker. A run in progress is never
// interrupted by Stop; the loop only exits between runs.
type Scheduler struct {
	logger *logrus.Logger
	tasks  map[string]Task
	order  []string
	cancel context.CancelFunc
	group  *errgroup.Group
	mu     sync.Mutex
}

func New(logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		logger: logger,
		tasks:  make(map[string]Task),
	}
}

func (s *Scheduler) Register(task Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if task.Interval <= 0 {
		return fmt.Errorf("task %s: interval must be positive", task.Name)
	}
	if _, exists := s.tasks[task.Name]; exists {
		return fmt.Errorf("task %s already registered", task.Name)
	}
	s.tasks[task.Name] = task
	s.order = append(s.order, task.Name)
	return nil
}

func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.group != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.group, ctx = errgroup.WithContext(ctx)
	for _, name := range s.order {
		task := s.tasks[name]
		s.group.Go(func() error {
			s.loop(ctx, task)
			return nil
		})
	}
	s.logger.WithField("tasks", s.order).Info("scheduler started")
}

func (s *Scheduler) loop(ctx context.Context, task Task) {
	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// the run gets its own deadline and survives a concurrent Stop
			_ = s.execute(context.WithoutCancel(ctx), task)
		}
	}
}

func (s *Scheduler) execute(ctx context.Context, task Task) error {
	timeout := task.Timeout
	if timeout <= 0 {
		timeout = task.Interval
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := task.Run(runCtx)
	fields := logrus.Fields{
		"task":     task.Name,
		"duration": time.Since(start).String(),
	}
	if err != nil {
		s.logger.WithFields(fields).WithError(err).Error("scheduled task failed")
		return err
	}
	s.logger.WithFields(fields).Debug("scheduled task completed")
	return nil
}

// RunOnce executes a registered task immediately on the caller's goroutine.
func (s *Scheduler) RunOnce(ctx context.Context, name string) error {
	s.mu.Lock()
	task, ok := s.tasks[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown task: %s", name)
	}
	return s.execute(ctx, task)
}

func (s *Scheduler) Tasks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

// Stop waits for in-flight runs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, group := s.cancel, s.group
	s.group = nil
	s.mu.Unlock()
	if cancel == nil || group == nil {
		return
	}
	cancel()
	_ = group.Wait()
	s.logger.Info("scheduler stopped")
}
