// Package scheduler owns the portal's periodic background work as named
// tasks with an explicit start/stop lifecycle, decoupled from any request
// or connection lifetime.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"
)

// Task is one named periodic job.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context)
}

// Scheduler runs registered tasks on their own tickers until stopped.
type Scheduler struct {
	mu      sync.Mutex
	tasks   []Task
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

func New() *Scheduler {
	return &Scheduler{}
}

// Add registers a task. Must be called before Start.
func (s *Scheduler) Add(name string, interval time.Duration, run func(ctx context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, Task{Name: name, Interval: interval, Run: run})
}

// Start launches one goroutine per task. Each task fires once immediately,
// then on every interval tick. Calling Start twice is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	for _, task := range s.tasks {
		s.wg.Add(1)
		go s.loop(ctx, task)
	}
}

func (s *Scheduler) loop(ctx context.Context, task Task) {
	defer s.wg.Done()
	log.Printf("scheduler: task %q started (every %s)", task.Name, task.Interval)

	runSafe := func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("scheduler: task %q panicked: %v", task.Name, r)
			}
		}()
		task.Run(ctx)
	}

	runSafe()

	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Printf("scheduler: task %q stopped", task.Name)
			return
		case <-ticker.C:
			runSafe()
		}
	}
}

// Stop cancels every task and waits for in-flight runs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	started := s.started
	s.started = false
	s.mu.Unlock()

	if !started || cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
}
