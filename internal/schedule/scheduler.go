// internal/schedule is an owned list of deferred tasks with cancellation
// tokens. Voice disposal grace periods and effect teardowns run through one
// scheduler per engine, so Dispose can cancel everything outstanding in one
// place instead of chasing ad-hoc timers.
package schedule

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// TaskID is the cancellation token for one scheduled task
type TaskID string

// Scheduler owns pending deferred tasks
type Scheduler struct {
	mu       sync.Mutex
	tasks    map[TaskID]*time.Timer
	disposed bool
}

// New creates an empty scheduler
func New() *Scheduler {
	return &Scheduler{tasks: make(map[TaskID]*time.Timer)}
}

// After schedules fn to run once after the delay and returns its
// cancellation token. The task is dropped, not run, if it was cancelled or
// the scheduler disposed before firing.
func (s *Scheduler) After(delay time.Duration, fn func()) TaskID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return ""
	}

	id := TaskID(uuid.NewString())
	s.tasks[id] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		_, live := s.tasks[id]
		if live {
			delete(s.tasks, id)
		}
		disposed := s.disposed
		s.mu.Unlock()
		if live && !disposed {
			fn()
		}
	})
	return id
}

// Cancel stops a pending task. Cancelling an already-fired or unknown
// token is a no-op.
func (s *Scheduler) Cancel(id TaskID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if timer, ok := s.tasks[id]; ok {
		timer.Stop()
		delete(s.tasks, id)
	}
}

// Pending returns how many tasks are waiting to fire
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Dispose cancels every pending task and rejects new ones. Idempotent.
func (s *Scheduler) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disposed = true
	for id, timer := range s.tasks {
		timer.Stop()
		delete(s.tasks, id)
	}
}
