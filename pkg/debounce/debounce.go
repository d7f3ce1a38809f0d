// Package debounce provides a bounded-delay coalescing scheduler: rapid
// successive values for the same key collapse into a single dispatch once the
// key has been quiet for the debounce window. A maximum delay bounds how long
// a steadily-updated key can postpone its flush, so a burst of edits becomes
// one call without starving forever.
package debounce

import (
	"sync"
	"time"
)

type entry[V any] struct {
	timer   *time.Timer
	value   V
	firstAt time.Time
}

// Scheduler coalesces per-key values and dispatches the latest one.
// A newer Set supersedes a pending dispatch for the same key; different keys
// are independent. The zero value is not usable; use New.
type Scheduler[K comparable, V any] struct {
	window   time.Duration
	maxDelay time.Duration
	dispatch func(key K, value V)

	mu      sync.Mutex
	pending map[K]*entry[V]
	stopped bool
}

// New creates a Scheduler. window is the quiet period before a value is
// dispatched; maxDelay caps the total postponement for a key under continuous
// updates. A maxDelay of zero disables the cap.
func New[K comparable, V any](window, maxDelay time.Duration, dispatch func(key K, value V)) *Scheduler[K, V] {
	return &Scheduler[K, V]{
		window:   window,
		maxDelay: maxDelay,
		dispatch: dispatch,
		pending:  make(map[K]*entry[V]),
	}
}

// Set records the latest value for a key and (re)arms its dispatch timer.
// If a dispatch is already pending for the key, the value supersedes it.
func (s *Scheduler[K, V]) Set(key K, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	now := time.Now()
	e, ok := s.pending[key]
	if !ok {
		e = &entry[V]{firstAt: now}
		s.pending[key] = e
	}
	e.value = value

	delay := s.window
	if s.maxDelay > 0 {
		if remain := e.firstAt.Add(s.maxDelay).Sub(now); remain < delay {
			delay = remain
		}
		if delay < 0 {
			delay = 0
		}
	}

	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = time.AfterFunc(delay, func() { s.fire(key) })
}

// Flush dispatches the pending value for a key immediately, if any.
func (s *Scheduler[K, V]) Flush(key K) {
	s.mu.Lock()
	e, ok := s.pending[key]
	if ok {
		e.timer.Stop()
		delete(s.pending, key)
	}
	s.mu.Unlock()

	if ok {
		s.dispatch(key, e.value)
	}
}

// Stop flushes every pending key and refuses further Sets.
func (s *Scheduler[K, V]) Stop() {
	s.mu.Lock()
	s.stopped = true
	flushing := s.pending
	s.pending = make(map[K]*entry[V])
	s.mu.Unlock()

	for key, e := range flushing {
		e.timer.Stop()
		s.dispatch(key, e.value)
	}
}

// fire runs on the timer goroutine.
func (s *Scheduler[K, V]) fire(key K) {
	s.mu.Lock()
	e, ok := s.pending[key]
	if ok {
		delete(s.pending, key)
	}
	s.mu.Unlock()

	// A concurrent Set may have re-armed and superseded this fire; the map
	// check above makes the stale timer a no-op.
	if ok {
		s.dispatch(key, e.value)
	}
}
