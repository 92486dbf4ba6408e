package signal

import (
	"sync"
)

// Signal is implemented by every concrete signal type. The atom wiring
// resolver uses it to find signal fields that must be constructed.
type Signal interface {
	// Len returns the number of live subscriptions.
	Len() int

	// DisconnectAll disposes every subscription.
	DisconnectAll()
}

// Subscription is a handle to one connected handler.
// Dispose is idempotent.
type Subscription interface {
	Dispose()
}

// Tracker records subscriptions owned by a subscriber so they can be
// revoked together. A subscription disposed on its own is untracked.
// core.Node implements it.
type Tracker interface {
	Track(sub Subscription)
	Untrack(sub Subscription)
}

// slot is one connected handler.
type slot[F any] struct {
	fn      F
	owner   *multicast[F]
	tracker Tracker
	once    sync.Once
}

// Dispose removes the slot from its signal and its tracker.
func (s *slot[F]) Dispose() {
	s.once.Do(func() {
		s.owner.remove(s)
		if s.tracker != nil {
			s.tracker.Untrack(s)
		}
	})
}

// multicast is the shared storage behind every arity.
type multicast[F any] struct {
	mu    sync.RWMutex
	slots []*slot[F]
}

func (m *multicast[F]) connect(owner Tracker, fn F) Subscription {
	s := &slot[F]{fn: fn, owner: m, tracker: owner}

	m.mu.Lock()
	// Copy-on-write so snapshots handed to Emit stay untouched.
	next := make([]*slot[F], len(m.slots), len(m.slots)+1)
	copy(next, m.slots)
	m.slots = append(next, s)
	m.mu.Unlock()

	if owner != nil {
		owner.Track(s)
	}
	return s
}

func (m *multicast[F]) remove(target *slot[F]) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, s := range m.slots {
		if s == target {
			next := make([]*slot[F], 0, len(m.slots)-1)
			next = append(next, m.slots[:i]...)
			next = append(next, m.slots[i+1:]...)
			m.slots = next
			return
		}
	}
}

func (m *multicast[F]) snapshot() []*slot[F] {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.slots
}

// Len returns the number of live subscriptions.
func (m *multicast[F]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.slots)
}

// DisconnectAll disposes every subscription.
func (m *multicast[F]) DisconnectAll() {
	for _, s := range m.snapshot() {
		s.Dispose()
	}
}

// Signal0 carries no arguments.
type Signal0 struct {
	multicast[func()]
}

// Connect subscribes fn. owner may be nil for unowned subscriptions.
func (s *Signal0) Connect(owner Tracker, fn func()) Subscription {
	return s.connect(owner, fn)
}

// Emit invokes every handler connected before the call.
func (s *Signal0) Emit() {
	for _, sl := range s.snapshot() {
		sl.fn()
	}
}

// Signal1 carries one argument.
type Signal1[A any] struct {
	multicast[func(A)]
}

// Connect subscribes fn. owner may be nil for unowned subscriptions.
func (s *Signal1[A]) Connect(owner Tracker, fn func(A)) Subscription {
	return s.connect(owner, fn)
}

// Emit invokes every handler connected before the call.
func (s *Signal1[A]) Emit(a A) {
	for _, sl := range s.snapshot() {
		sl.fn(a)
	}
}

// Signal2 carries two arguments.
type Signal2[A, B any] struct {
	multicast[func(A, B)]
}

// Connect subscribes fn. owner may be nil for unowned subscriptions.
func (s *Signal2[A, B]) Connect(owner Tracker, fn func(A, B)) Subscription {
	return s.connect(owner, fn)
}

// Emit invokes every handler connected before the call.
func (s *Signal2[A, B]) Emit(a A, b B) {
	for _, sl := range s.snapshot() {
		sl.fn(a, b)
	}
}

// Signal3 carries three arguments.
type Signal3[A, B, C any] struct {
	multicast[func(A, B, C)]
}

// Connect subscribes fn. owner may be nil for unowned subscriptions.
func (s *Signal3[A, B, C]) Connect(owner Tracker, fn func(A, B, C)) Subscription {
	return s.connect(owner, fn)
}

// Emit invokes every handler connected before the call.
func (s *Signal3[A, B, C]) Emit(a A, b B, c C) {
	for _, sl := range s.snapshot() {
		sl.fn(a, b, c)
	}
}
