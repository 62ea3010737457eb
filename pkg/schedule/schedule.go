package schedule

import (
	"container/heap"
	"sync"
	"time"

	"github.com/golem-project/golem-core/pkg/log"
	"github.com/golem-project/golem-core/pkg/metrics"
)

// Fire is invoked when a scheduled entry's due time arrives. Implementations
// typically activate the target worker (if necessary) and enqueue a task
// on it.
type Fire func()

// entry is one scheduled wake-up: a promise timeout, a retry delay, an
// idle-eviction deadline, or a user-requested scheduled invocation.
type entry struct {
	due   time.Time
	fire  Fire
	label string
	index int // heap.Interface bookkeeping
}

type entryHeap []*entry

func (h entryHeap) Len() int            { return len(h) }
func (h entryHeap) Less(i, j int) bool  { return h[i].due.Before(h[j].due) }
func (h entryHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index, h[j].index = i, j }
func (h *entryHeap) Push(x interface{}) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *entryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Scheduler drives time-based wake-ups for a single executor process (§4.7).
// Entries live in a priority queue keyed by due time; a single background
// goroutine wakes at the next due entry (or is signaled when an earlier
// entry is added) and fires it.
type Scheduler struct {
	mu      sync.Mutex
	heap    entryHeap
	wake    chan struct{}
	stopCh  chan struct{}
	stopped bool
}

// NewScheduler constructs an empty scheduler. Call Start to begin firing
// due entries.
func NewScheduler() *Scheduler {
	return &Scheduler{
		wake:   make(chan struct{}, 1),
		stopCh: make(chan struct{}),
	}
}

// Start begins the scheduler's wake-up loop in a background goroutine,
// following the teacher's ticker-driven Start/Stop/run shape but replacing
// the fixed-interval tick with a heap-driven, event-scheduled wait.
func (s *Scheduler) Start() {
	go s.run()
}

// Stop halts the scheduler's background loop.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()
	close(s.stopCh)
}

// Schedule adds an entry due at `due`; fire is called from the scheduler's
// background goroutine once `due` arrives. label is used only for logging
// and the queue-depth metric.
func (s *Scheduler) Schedule(due time.Time, label string, fire Fire) {
	s.mu.Lock()
	heap.Push(&s.heap, &entry{due: due, fire: fire, label: label})
	depth := len(s.heap)
	s.mu.Unlock()

	metrics.SchedulerQueueDepth.Set(float64(depth))

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) run() {
	for {
		s.mu.Lock()
		var wait time.Duration
		if len(s.heap) == 0 {
			wait = time.Hour
		} else {
			wait = time.Until(s.heap[0].due)
			if wait < 0 {
				wait = 0
			}
		}
		s.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
			s.fireDue()
		case <-s.wake:
			timer.Stop()
		case <-s.stopCh:
			timer.Stop()
			return
		}
	}
}

func (s *Scheduler) fireDue() {
	now := time.Now()
	for {
		s.mu.Lock()
		if len(s.heap) == 0 || s.heap[0].due.After(now) {
			s.mu.Unlock()
			return
		}
		e := heap.Pop(&s.heap).(*entry)
		depth := len(s.heap)
		s.mu.Unlock()

		metrics.SchedulerQueueDepth.Set(float64(depth))
		metrics.ScheduledFiresTotal.Inc()
		log.WithComponent("scheduler").Debug().Str("label", e.label).Msg("scheduled entry fired")
		e.fire()
	}
}

// Len returns the number of entries currently queued (for tests and
// diagnostics).
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.heap)
}
