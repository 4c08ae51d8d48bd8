// Package scheduler runs delayed one-shot actions that can be cancelled
// until they start.
package scheduler

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Handle identifies a scheduled action. The zero Handle is never issued.
type Handle uint64

const (
	taskPending int32 = iota
	taskFired
	taskCancelled
)

type task struct {
	state atomic.Int32
	timer *time.Timer
}

type Scheduler struct {
	log *logrus.Entry

	mu      sync.Mutex
	next    Handle
	tasks   map[Handle]*task
	stopped bool
}

func New(log *logrus.Entry) *Scheduler {
	return &Scheduler{
		log:   log,
		tasks: make(map[Handle]*task),
	}
}

// Schedule runs action once after delay on its own goroutine. Negative
// delays are treated as zero.
func (s *Scheduler) Schedule(delay time.Duration, action func()) Handle {
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.next++
	h := s.next
	t := &task{}
	if s.stopped {
		t.state.Store(taskCancelled)
		return h
	}
	s.tasks[h] = t

	t.timer = time.AfterFunc(delay, func() {
		if !t.state.CompareAndSwap(taskPending, taskFired) {
			return
		}
		s.forget(h)
		defer func() {
			if r := recover(); r != nil {
				s.log.WithField("handle", h).Errorf("scheduled action panicked: %v", r)
			}
		}()
		action()
	})
	s.log.WithField("handle", h).WithField("delay", delay).Debugln("action scheduled")
	return h
}

// Cancel prevents a pending action from running. It reports false when the
// action already started, was cancelled before, or is unknown.
func (s *Scheduler) Cancel(h Handle) bool {
	s.mu.Lock()
	t, ok := s.tasks[h]
	s.mu.Unlock()
	if !ok {
		return false
	}
	if !t.state.CompareAndSwap(taskPending, taskCancelled) {
		return false
	}
	t.timer.Stop()
	s.forget(h)
	s.log.WithField("handle", h).Debugln("action cancelled")
	return true
}

func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Stop cancels every pending action. Later Schedule calls return handles
// whose actions never run.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	tasks := s.tasks
	s.tasks = make(map[Handle]*task)
	s.mu.Unlock()

	for _, t := range tasks {
		if t.state.CompareAndSwap(taskPending, taskCancelled) {
			t.timer.Stop()
		}
	}
}

func (s *Scheduler) forget(h Handle) {
	s.mu.Lock()
	delete(s.tasks, h)
	s.mu.Unlock()
}
