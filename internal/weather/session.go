package weather

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Snapshot is the immutable state published after each refresh.
// Envelope and Current keep the last successful values; the *Err fields
// describe the most recent attempt for each part.
type Snapshot struct {
	ID        uuid.UUID
	Location  Location
	FetchedAt time.Time

	Current    *CurrentConditions
	CurrentErr error

	Envelope    *Envelope
	ForecastErr error
}

// Session holds the latest Snapshot and notifies subscribers when it changes.
type Session struct {
	latest atomic.Pointer[Snapshot]

	mu     sync.Mutex
	nextID int
	subs   map[int]chan Snapshot
}

// NewSession creates an empty session.
func NewSession() *Session {
	return &Session{subs: make(map[int]chan Snapshot)}
}

// Latest returns the current snapshot, or false if nothing was published yet.
func (s *Session) Latest() (Snapshot, bool) {
	p := s.latest.Load()
	if p == nil {
		return Snapshot{}, false
	}
	return *p, true
}

// Publish replaces the snapshot and notifies subscribers.
// Subscribers that are not keeping up miss intermediate snapshots.
func (s *Session) Publish(snap Snapshot) {
	s.latest.Store(&snap)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}

// Subscribe returns a channel receiving every published snapshot and a
// function that unsubscribes and closes the channel.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}
