package session

import (
	"sync"

	"github.com/vidflow-dev/vidflow/internal/models"
)

// Snapshot is the client-held belief about the current session
type Snapshot struct {
	User          *models.User
	Authenticated bool
}

// Store owns the session state. It is the only writer; readers either call Get
// or Subscribe to every transition.
type Store struct {
	mu      sync.Mutex
	current Snapshot
	subs    map[int]*subscriber
	nextID  int
}

// NewStore returns an empty, unauthenticated store
func NewStore() *Store {
	return &Store{subs: make(map[int]*subscriber)}
}

// Get returns the last-known snapshot
func (s *Store) Get() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// SetAuthenticated replaces the user wholesale and marks the session authenticated
func (s *Store) SetAuthenticated(user *models.User) {
	s.apply(Snapshot{User: cloneUser(user), Authenticated: true})
}

// Confirm marks the session authenticated and keeps the cached user
func (s *Store) Confirm() {
	s.mu.Lock()
	next := Snapshot{User: s.current.User, Authenticated: true}
	s.applyLocked(next)
	s.mu.Unlock()
}

// Clear resets the store to its initial value
func (s *Store) Clear() {
	s.apply(Snapshot{})
}

// Subscribe delivers the current snapshot followed by every later transition,
// in order. Call the returned func to stop delivery; the channel is then closed.
func (s *Store) Subscribe() (<-chan Snapshot, func()) {
	sub := newSubscriber()

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = sub
	sub.push(s.current)
	s.mu.Unlock()

	go sub.run()

	cancel := func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
		sub.stop()
	}
	return sub.out, cancel
}

func (s *Store) apply(next Snapshot) {
	s.mu.Lock()
	s.applyLocked(next)
	s.mu.Unlock()
}

// applyLocked must be called with s.mu held so every subscriber queues
// transitions in the order they were applied.
func (s *Store) applyLocked(next Snapshot) {
	if equal(s.current, next) {
		return
	}
	s.current = next
	for _, sub := range s.subs {
		sub.push(next)
	}
}

type subscriber struct {
	mu       sync.Mutex
	queue    []Snapshot
	notify   chan struct{}
	done     chan struct{}
	out      chan Snapshot
	stopOnce sync.Once
}

func newSubscriber() *subscriber {
	return &subscriber{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
		out:    make(chan Snapshot),
	}
}

func (s *subscriber) push(snap Snapshot) {
	s.mu.Lock()
	s.queue = append(s.queue, snap)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *subscriber) stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

func (s *subscriber) run() {
	defer close(s.out)

	for {
		select {
		case <-s.notify:
		case <-s.done:
			return
		}

		for {
			s.mu.Lock()
			if len(s.queue) == 0 {
				s.mu.Unlock()
				break
			}
			next := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()

			select {
			case s.out <- next:
			case <-s.done:
				return
			}
		}
	}
}

func cloneUser(u *models.User) *models.User {
	if u == nil {
		return nil
	}
	c := *u
	if u.IsActive != nil {
		active := *u.IsActive
		c.IsActive = &active
	}
	return &c
}

func equal(a, b Snapshot) bool {
	if a.Authenticated != b.Authenticated {
		return false
	}
	if a.User == nil || b.User == nil {
		return a.User == b.User
	}
	if a.User == b.User {
		return true
	}
	ua, ub := *a.User, *b.User
	if (ua.IsActive == nil) != (ub.IsActive == nil) {
		return false
	}
	if ua.IsActive != nil && *ua.IsActive != *ub.IsActive {
		return false
	}
	ua.IsActive, ub.IsActive = nil, nil
	return ua == ub
}
