package scheduler

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// TaskFn is the function signature for scheduled tasks.
type TaskFn func()

const (
	taskPending int32 = iota
	taskRunning
	taskCancelled
)

// Task is a handle to a one-shot delayed task. Cancel and the firing of the
// task race through a single atomic state, so at most one of them wins.
type Task struct {
	name  string
	state atomic.Int32
	timer *time.Timer
	done  chan struct{}
}

// Name returns the name the task was registered with.
func (t *Task) Name() string { return t.name }

// Cancel prevents the task from running. It returns true if this call
// cancelled a pending task and false if the task already ran, is running, or
// was cancelled before. Safe to call any number of times, and on nil.
func (t *Task) Cancel() bool {
	if t == nil {
		return false
	}
	if !t.state.CompareAndSwap(taskPending, taskCancelled) {
		return false
	}
	t.timer.Stop()
	close(t.done)
	return true
}

// Cancelled reports whether the task was cancelled before it ran.
func (t *Task) Cancelled() bool {
	return t != nil && t.state.Load() == taskCancelled
}

// Done is closed once the task has finished running or was cancelled.
func (t *Task) Done() <-chan struct{} { return t.done }

// Scheduler manages periodic and delayed tasks.
type Scheduler struct {
	mu      sync.Mutex
	tickers map[string]*tickerEntry
	delays  map[string]*Task
	logger  *zap.Logger
	stopCh  chan struct{}
	stopped bool
}

type tickerEntry struct {
	ticker *time.Ticker
	stopCh chan struct{}
}

// New creates a new Scheduler.
func New(logger *zap.Logger) *Scheduler {
	return &Scheduler{
		tickers: make(map[string]*tickerEntry),
		delays:  make(map[string]*Task),
		stopCh:  make(chan struct{}),
		logger:  logger,
	}
}

// AddTicker registers a task to run on a fixed interval.
// If a task with the same name exists, it is replaced.
func (s *Scheduler) AddTicker(name string, interval time.Duration, fn TaskFn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.tickers[name]; ok {
		close(old.stopCh)
		delete(s.tickers, name)
	}

	entry := &tickerEntry{
		ticker: time.NewTicker(interval),
		stopCh: make(chan struct{}),
	}
	s.tickers[name] = entry

	go func() {
		for {
			select {
			case <-entry.ticker.C:
				s.run(name, fn)
			case <-entry.stopCh:
				entry.ticker.Stop()
				return
			case <-s.stopCh:
				entry.ticker.Stop()
				return
			}
		}
	}()
	s.logger.Info("scheduler task registered", zap.String("name", name), zap.Duration("interval", interval))
}

// AddDelay runs fn once after the given delay and returns a handle that can
// cancel it. A pending task with the same name is cancelled first. After Stop
// the returned task is already cancelled.
func (s *Scheduler) AddDelay(name string, delay time.Duration, fn TaskFn) *Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.delays[name]; ok {
		old.Cancel()
	}
	s.prune()
	t := &Task{name: name, done: make(chan struct{})}
	if s.stopped {
		t.state.Store(taskCancelled)
		close(t.done)
		return t
	}
	s.delays[name] = t
	t.timer = time.AfterFunc(delay, func() {
		if !t.state.CompareAndSwap(taskPending, taskRunning) {
			return
		}
		defer close(t.done)
		defer s.forget(t)
		s.run(name, fn)
	})
	return t
}

func (s *Scheduler) run(name string, fn TaskFn) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduler task panicked",
				zap.String("task", name), zap.Any("recover", r))
		}
	}()
	fn()
}

func (s *Scheduler) forget(t *Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.delays[t.name] == t {
		delete(s.delays, t.name)
	}
}

// Remove stops and removes a ticker or delay task by name.
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.tickers[name]; ok {
		close(entry.stopCh)
		delete(s.tickers, name)
	}
	if t, ok := s.delays[name]; ok {
		t.Cancel()
		delete(s.delays, name)
	}
}

// Stop stops all tickers and cancels every pending delay.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	close(s.stopCh)
	for name, t := range s.delays {
		t.Cancel()
		delete(s.delays, name)
	}
}

// ListTickers returns the names of all registered ticker tasks.
func (s *Scheduler) ListTickers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.tickers))
	for name := range s.tickers {
		names = append(names, name)
	}
	return names
}

// PendingDelays returns the number of delay tasks that have neither fired
// nor been cancelled.
func (s *Scheduler) PendingDelays() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prune()
	return len(s.delays)
}

// prune drops cancelled delays. Caller holds s.mu.
func (s *Scheduler) prune() {
	for name, t := range s.delays {
		if t.Cancelled() {
			delete(s.delays, name)
		}
	}
}
