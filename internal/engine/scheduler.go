package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Task is a named periodic job run by the Scheduler.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context)

	running atomic.Bool
}

// Scheduler runs registered tasks on fixed intervals. A slow run never
// overlaps itself: ticks that arrive while the previous run is still in
// flight are skipped.
type Scheduler struct {
	mu      sync.Mutex
	tasks   []*Task
	logger  zerolog.Logger
	stopCh  chan struct{}
	wg      sync.WaitGroup
	started bool
}

// NewScheduler creates an empty scheduler.
func NewScheduler(logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		logger: logger.With().Str("component", "scheduler").Logger(),
	}
}

// Register adds a task. Registration after Start has no effect until the
// next Start.
func (s *Scheduler) Register(name string, interval time.Duration, run func(ctx context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, &Task{Name: name, Interval: interval, Run: run})
}

// Start launches one goroutine per task. Calling Start on a running
// scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.stopCh = make(chan struct{})

	for _, task := range s.tasks {
		s.wg.Add(1)
		go s.loop(ctx, task, s.stopCh)
	}

	s.logger.Info().Int("tasks", len(s.tasks)).Msg("scheduler started")
}

// Stop signals all task loops and waits for in-flight runs to finish.
// Calling Stop on a stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info().Msg("scheduler stopped")
}

// Running reports whether the scheduler is started.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

func (s *Scheduler) loop(ctx context.Context, task *Task, stopCh chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !task.running.CompareAndSwap(false, true) {
				s.logger.Debug().Str("task", task.Name).Msg("previous run still in flight, skipping tick")
				continue
			}
			task.Run(ctx)
			task.running.Store(false)
		}
	}
}
