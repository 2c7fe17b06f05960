// Copyright (c) 2017 Uber Technologies, Inc.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package engine

import (
	"sync"
	"time"

	"github.com/epicsarchiver/engine/common/clock"
)

// fixedRateScheduler is a single-worker periodic task runner driven off a
// clock.TimeSource, so tests can advance a FakeClock instead of sleeping in
// real time. It backs both "the main scheduler" and "the disconnect
// scheduler" named in spec.md §3/§5 (each engine gets its own instance, per
// invariants 4 and 5: at most one writer loop, at most one disconnect
// monitor loop).
type fixedRateScheduler struct {
	clock clock.TimeSource

	mu       sync.Mutex
	tasks    map[int]*scheduledTask
	nextID   int
	shutdown bool
}

type scheduledTask struct {
	stop   chan struct{}
	wg     sync.WaitGroup
	forced chan struct{}
}

// NewFixedRateScheduler constructs a Scheduler backed by ts.
func NewFixedRateScheduler(ts clock.TimeSource) Scheduler {
	return &fixedRateScheduler{clock: ts, tasks: make(map[int]*scheduledTask)}
}

func (s *fixedRateScheduler) ScheduleAtFixedRate(fn func(), initialDelay, period time.Duration) CancelFunc {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return func(bool) {}
	}
	id := s.nextID
	s.nextID++
	task := &scheduledTask{stop: make(chan struct{}), forced: make(chan struct{})}
	s.tasks[id] = task
	s.mu.Unlock()

	task.wg.Add(1)
	go func() {
		defer task.wg.Done()
		wait := s.clock.After(initialDelay)
		for {
			select {
			case <-task.stop:
				return
			case <-task.forced:
				return
			case <-wait:
				fn()
				wait = s.clock.After(period)
			}
		}
	}()

	return func(mayInterrupt bool) {
		s.mu.Lock()
		delete(s.tasks, id)
		s.mu.Unlock()
		if mayInterrupt {
			close(task.forced)
		} else {
			close(task.stop)
		}
	}
}

// Shutdown stops accepting new tasks and lets running tasks finish
// (cooperative, spec.md §4.G step 1).
func (s *fixedRateScheduler) Shutdown() {
	s.mu.Lock()
	s.shutdown = true
	tasks := make([]*scheduledTask, 0, len(s.tasks))
	for _, t := range s.tasks {
		tasks = append(tasks, t)
	}
	s.tasks = make(map[int]*scheduledTask)
	s.mu.Unlock()

	for _, t := range tasks {
		close(t.stop)
	}
}

// ShutdownNow stops accepting new tasks and stops every task before its next
// tick, without waiting (disconnect scheduler's separate shutdown hook,
// spec.md §4.G). A tick that is already running is not interrupted; it runs
// to completion.
func (s *fixedRateScheduler) ShutdownNow() {
	s.mu.Lock()
	s.shutdown = true
	tasks := make([]*scheduledTask, 0, len(s.tasks))
	for _, t := range s.tasks {
		tasks = append(tasks, t)
	}
	s.tasks = make(map[int]*scheduledTask)
	s.mu.Unlock()

	for _, t := range tasks {
		close(t.forced)
	}
}
