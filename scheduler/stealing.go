package scheduler

import (
	"context"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
)

// StealingOptions configures the Stealing policy.
type StealingOptions struct {
	// NumWorkers is the pool size. Defaults to runtime.GOMAXPROCS(0) if
	// zero or negative.
	NumWorkers int
	// TeardownTryOnSuspendedWorker steers each job's teardown task onto a
	// worker that is currently suspended (parked waiting for work), so a
	// busy worker isn't blocked running it (spec §4.1).
	TeardownTryOnSuspendedWorker bool
}

// Stealing is the work-stealing scheduling policy of spec §4.1: N workers,
// each with a thread-local FIFO queue; an idle worker steals from the
// worker to its right (wrap-around), visiting each victim at most once per
// empty scan before pausing.
type Stealing struct {
	opts    StealingOptions
	workers []*stealWorker
	nextRR  atomic.Uint64

	startOnce sync.Once
	stopOnce  sync.Once
	stopped   atomic.Bool
	wg        sync.WaitGroup
}

var _ Scheduler = (*Stealing)(nil)

// NewStealing builds a Stealing scheduler. Workers are not started until
// Start is called.
func NewStealing(opts StealingOptions) *Stealing {
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = runtime.GOMAXPROCS(0)
	}
	var s = &Stealing{opts: opts}
	s.workers = make([]*stealWorker, opts.NumWorkers)
	for i := range s.workers {
		s.workers[i] = newStealWorker(i)
	}
	return s
}

func (s *Stealing) Kind() Kind { return KindStealing }

func (s *Stealing) Start() {
	s.startOnce.Do(func() {
		for _, w := range s.workers {
			s.wg.Add(1)
			go s.runWorker(w)
		}
	})
}

func (s *Stealing) Stop() {
	s.stopOnce.Do(func() {
		s.stopped.Store(true)
		for _, w := range s.workers {
			w.wake()
		}
		s.wg.Wait()
	})
}

func (s *Stealing) WaitForProgress(job *JobContext) { job.WaitForProgress() }

func (s *Stealing) ScheduleTask(t Task) error {
	if s.stopped.Load() {
		return ErrStopped
	}
	var idx = s.selectWorker(t)
	s.workers[idx].push(t)
	queueDepth.WithLabelValues("stealing", strconv.Itoa(idx)).Set(float64(s.workers[idx].len()))
	s.workers[idx].wake()
	return nil
}

func (s *Stealing) selectWorker(t Task) int {
	var n = len(s.workers)
	if t.IsTeardown && s.opts.TeardownTryOnSuspendedWorker {
		if idx, ok := s.findSuspendedWorker(); ok {
			return idx
		}
	}
	if t.PreferredWorker >= 0 {
		return t.PreferredWorker % n
	}
	if t.Job != nil && t.Job.PreferredWorker >= 0 {
		return t.Job.PreferredWorker % n
	}
	return int(s.nextRR.Add(1)-1) % n
}

func (s *Stealing) findSuspendedWorker() (int, bool) {
	for _, w := range s.workers {
		if w.isSuspended() {
			return w.id, true
		}
	}
	return 0, false
}

func (s *Stealing) runWorker(w *stealWorker) {
	defer s.wg.Done()
	for {
		if s.stopped.Load() {
			t, ok := w.popLocal()
			if !ok {
				return
			}
			s.execute(w, t)
			continue
		}
		t, ok := w.popLocal()
		if !ok {
			t, ok = s.steal(w)
		}
		if !ok {
			if s.stopped.Load() {
				return
			}
			w.parkUntilWoken()
			continue
		}
		queueDepth.WithLabelValues("stealing", strconv.Itoa(w.id)).Set(float64(w.len()))
		s.execute(w, t)
	}
}

// steal attempts to take one task from another worker, scanning at most
// once around the ring starting just past w's last-stolen-from pointer.
func (s *Stealing) steal(w *stealWorker) (Task, bool) {
	var n = len(s.workers)
	for i := 1; i <= n; i++ {
		var victimIdx = (w.lastStolenFrom + i) % n
		if victimIdx == w.id {
			continue
		}
		if t, ok := s.workers[victimIdx].steal(); ok {
			w.lastStolenFrom = victimIdx
			stealCount.WithLabelValues(strconv.Itoa(w.id)).Inc()
			return t, true
		}
	}
	return Task{}, false
}

func (s *Stealing) execute(w *stealWorker, t Task) {
	if _, canceled := runCancellationCheck(t); canceled {
		tasksCompleted.WithLabelValues("stealing", "canceled").Inc()
		return
	}
	for {
		var result = t.Run(context.Background(), w.id)
		switch result {
		case ResultComplete:
			tasksCompleted.WithLabelValues("stealing", "complete").Inc()
			return
		case ResultProceed:
			continue
		case ResultYield:
			tasksCompleted.WithLabelValues("stealing", "yield").Inc()
			w.push(t)
			return
		case ResultCompleteAndTeardown:
			tasksCompleted.WithLabelValues("stealing", "complete_and_teardown").Inc()
			if t.Job != nil {
				_ = ScheduleTeardown(s, t.Job, t.Request)
			}
			return
		}
	}
}

// stealWorker holds one worker's local FIFO queue plus the bookkeeping
// needed for stealing and suspend/resume.
type stealWorker struct {
	id   int
	mu   sync.Mutex
	cond *sync.Cond
	queue []Task
	suspended bool

	lastStolenFrom int
}

func newStealWorker(id int) *stealWorker {
	var w = &stealWorker{id: id}
	w.cond = sync.NewCond(&w.mu)
	w.lastStolenFrom = id
	return w
}

func (w *stealWorker) push(t Task) {
	w.mu.Lock()
	w.queue = append(w.queue, t)
	w.mu.Unlock()
}

func (w *stealWorker) len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.queue)
}

// popLocal removes the task at the front of this worker's own queue
// (owner access: FIFO order, spec §4.1).
func (w *stealWorker) popLocal() (Task, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.queue) == 0 {
		return Task{}, false
	}
	var t = w.queue[0]
	w.queue = w.queue[1:]
	return t, true
}

// steal removes the task at the front of this worker's queue on behalf of
// a thief. Front-removal preserves this worker's own FIFO submission
// order for whatever work it executes itself; a stolen task simply runs
// elsewhere instead.
func (w *stealWorker) steal() (Task, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.queue) == 0 {
		return Task{}, false
	}
	var t = w.queue[0]
	w.queue = w.queue[1:]
	return t, true
}

// parkUntilWoken suspends the worker until wake is called. Real hardware
// would spin on a pause instruction first; Go's scheduler makes that
// counterproductive, so we park immediately on the condition variable.
func (w *stealWorker) parkUntilWoken() {
	w.mu.Lock()
	w.suspended = true
	for w.suspended {
		w.cond.Wait()
	}
	w.mu.Unlock()
}

func (w *stealWorker) wake() {
	w.mu.Lock()
	w.suspended = false
	w.mu.Unlock()
	w.cond.Broadcast()
}

func (w *stealWorker) isSuspended() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.suspended
}
