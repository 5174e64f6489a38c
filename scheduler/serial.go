package scheduler

import (
	"context"
	"sync"
)

// Serial is the single-thread, cooperative scheduling policy of spec
// §4.1: one goroutine runs tasks to completion in submission order,
// `yield` re-enqueues at the tail, and `proceed` loops the body in place
// without re-queuing.
type Serial struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []Task
	stopped bool
	started bool
	done    chan struct{}
}

var _ Scheduler = (*Serial)(nil)

func NewSerial() *Serial {
	var s = &Serial{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *Serial) Kind() Kind { return KindSerial }

func (s *Serial) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.done = make(chan struct{})
	go s.run()
}

func (s *Serial) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.cond.Broadcast()
	var done = s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (s *Serial) ScheduleTask(t Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrStopped
	}
	s.queue = append(s.queue, t)
	queueDepth.WithLabelValues("serial", "0").Set(float64(len(s.queue)))
	s.cond.Signal()
	return nil
}

func (s *Serial) WaitForProgress(job *JobContext) { job.WaitForProgress() }

func (s *Serial) run() {
	defer close(s.done)
	for {
		var t, ok = s.next()
		if !ok {
			return
		}
		s.execute(t)
	}
}

func (s *Serial) next() (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.queue) == 0 && !s.stopped {
		s.cond.Wait()
	}
	if len(s.queue) == 0 {
		return Task{}, false
	}
	var t = s.queue[0]
	s.queue = s.queue[1:]
	queueDepth.WithLabelValues("serial", "0").Set(float64(len(s.queue)))
	return t, true
}

func (s *Serial) requeue(t Task) {
	s.mu.Lock()
	s.queue = append(s.queue, t)
	queueDepth.WithLabelValues("serial", "0").Set(float64(len(s.queue)))
	s.mu.Unlock()
}

func (s *Serial) execute(t Task) {
	if result, canceled := runCancellationCheck(t); canceled {
		tasksCompleted.WithLabelValues("serial", "canceled").Inc()
		_ = result
		return
	}
	for {
		var result = t.Run(context.Background(), 0)
		switch result {
		case ResultComplete:
			tasksCompleted.WithLabelValues("serial", "complete").Inc()
			return
		case ResultProceed:
			continue
		case ResultYield:
			tasksCompleted.WithLabelValues("serial", "yield").Inc()
			s.requeue(t)
			return
		case ResultCompleteAndTeardown:
			tasksCompleted.WithLabelValues("serial", "complete_and_teardown").Inc()
			if t.Job != nil {
				_ = ScheduleTeardown(s, t.Job, t.Request)
			}
			return
		}
	}
}
