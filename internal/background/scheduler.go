package background

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Scheduler runs named periodic and one-shot tasks. Registering a name that is
// already scheduled replaces the previous task. Cancel never waits for a
// running callback, so callbacks may cancel their own scheduler.
type Scheduler struct {
	mu    sync.Mutex
	tasks map[string]*scheduledTask
}

type scheduledTask struct {
	cancelled atomic.Bool
	stop      chan struct{}
	timer     *time.Timer
	once      sync.Once
}

func (t *scheduledTask) cancel() {
	t.once.Do(func() {
		t.cancelled.Store(true)
		if t.timer != nil {
			t.timer.Stop()
		}
		if t.stop != nil {
			close(t.stop)
		}
	})
}

// NewScheduler creates an empty scheduler
func NewScheduler() *Scheduler {
	return &Scheduler{tasks: make(map[string]*scheduledTask)}
}

// Every runs fn every interval until the task is cancelled
func (s *Scheduler) Every(name string, interval time.Duration, fn func()) {
	task := &scheduledTask{stop: make(chan struct{})}
	s.replace(name, task)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if task.cancelled.Load() {
					return
				}
				fn()
			case <-task.stop:
				return
			}
		}
	}()
}

// After runs fn once after delay unless cancelled first
func (s *Scheduler) After(name string, delay time.Duration, fn func()) {
	task := &scheduledTask{}

	s.mu.Lock()
	if prev, ok := s.tasks[name]; ok {
		prev.cancel()
	}
	task.timer = time.AfterFunc(delay, func() {
		if task.cancelled.Load() {
			return
		}
		s.mu.Lock()
		if s.tasks[name] == task {
			delete(s.tasks, name)
		}
		s.mu.Unlock()
		fn()
	})
	s.tasks[name] = task
	s.mu.Unlock()
}

func (s *Scheduler) replace(name string, task *scheduledTask) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.tasks[name]; ok {
		prev.cancel()
	}
	s.tasks[name] = task
}

// Cancel stops the named task. Unknown names are ignored.
func (s *Scheduler) Cancel(name string) {
	s.mu.Lock()
	task, ok := s.tasks[name]
	delete(s.tasks, name)
	s.mu.Unlock()

	if ok {
		task.cancel()
	}
}

// CancelAll stops every task
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	tasks := s.tasks
	s.tasks = make(map[string]*scheduledTask)
	s.mu.Unlock()

	for _, task := range tasks {
		task.cancel()
	}
}

// Active reports whether the named task is scheduled
func (s *Scheduler) Active(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[name]
	return ok
}

// Names lists the scheduled task names in sorted order
func (s *Scheduler) Names() []string {
	s.mu.Lock()
	names := make([]string, 0, len(s.tasks))
	for name := range s.tasks {
		names = append(names, name)
	}
	s.mu.Unlock()

	sort.Strings(names)
	return names
}
