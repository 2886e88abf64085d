package task

import (
	"sync"

	domain "github.com/khalidAdell/quick-task/domain/task"
)

// Snapshot is the state of a task after a committed write. A deleted task
// is reported once with Deleted set and the version its removal was given.
type Snapshot struct {
	Task    *domain.Task `json:"task"`
	Deleted bool         `json:"deleted,omitempty"`
}

// Version returns the version of the carried task.
func (s Snapshot) Version() int64 {
	if s.Task == nil {
		return 0
	}
	return s.Task.Version
}

// Watcher fans task snapshots out to subscribers. Each subscriber has its
// own delivery goroutine and a single pending slot, so a slow subscriber
// only ever sees the newest snapshot and never one older than it already got.
type Watcher struct {
	mu   sync.Mutex
	subs map[string]map[*Subscription]struct{}
}

// NewWatcher creates an empty Watcher.
func NewWatcher() *Watcher {
	return &Watcher{
		subs: make(map[string]map[*Subscription]struct{}),
	}
}

// Subscribe calls fn with every snapshot of taskID newer than version after.
func (w *Watcher) Subscribe(taskID string, after int64, fn func(Snapshot)) *Subscription {
	sub := &Subscription{
		taskID:    taskID,
		watcher:   w,
		fn:        fn,
		delivered: after,
		signal:    make(chan struct{}, 1),
		done:      make(chan struct{}),
	}

	w.mu.Lock()
	if w.subs[taskID] == nil {
		w.subs[taskID] = make(map[*Subscription]struct{})
	}
	w.subs[taskID][sub] = struct{}{}
	w.mu.Unlock()

	go sub.run()
	return sub
}

// Publish offers snap to every subscriber of its task. It never blocks on delivery.
func (w *Watcher) Publish(snap Snapshot) {
	if snap.Task == nil {
		return
	}
	w.mu.Lock()
	subs := make([]*Subscription, 0, len(w.subs[snap.Task.ID]))
	for sub := range w.subs[snap.Task.ID] {
		subs = append(subs, sub)
	}
	w.mu.Unlock()

	for _, sub := range subs {
		sub.offer(snap)
	}
}

// Count returns the number of live subscriptions.
func (w *Watcher) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	n := 0
	for _, set := range w.subs {
		n += len(set)
	}
	return n
}

// Close ends every subscription.
func (w *Watcher) Close() {
	w.mu.Lock()
	var all []*Subscription
	for _, set := range w.subs {
		for sub := range set {
			all = append(all, sub)
		}
	}
	w.mu.Unlock()

	for _, sub := range all {
		sub.Unsubscribe()
	}
}

func (w *Watcher) remove(sub *Subscription) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if set, ok := w.subs[sub.taskID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(w.subs, sub.taskID)
		}
	}
}

// Subscription is a live feed of one task's snapshots.
type Subscription struct {
	taskID  string
	watcher *Watcher
	fn      func(Snapshot)

	mu        sync.Mutex
	pending   *Snapshot
	delivered int64

	signal chan struct{}
	done   chan struct{}
	once   sync.Once
}

// Unsubscribe stops delivery. It is safe to call more than once and from inside fn.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		close(s.done)
		s.watcher.remove(s)
	})
}

// Done is closed once the subscription has ended.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription) offer(snap Snapshot) {
	s.mu.Lock()
	if snap.Version() <= s.delivered || (s.pending != nil && snap.Version() <= s.pending.Version()) {
		s.mu.Unlock()
		return
	}
	s.pending = &snap
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *Subscription) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.signal:
		}

		s.mu.Lock()
		snap := s.pending
		s.pending = nil
		if snap != nil && snap.Version() > s.delivered {
			s.delivered = snap.Version()
		} else {
			snap = nil
		}
		s.mu.Unlock()

		if snap == nil {
			continue
		}
		select {
		case <-s.done:
			return
		default:
		}
		s.fn(*snap)
		if snap.Deleted {
			s.Unsubscribe()
			return
		}
	}
}
