// Package appstate holds cross-component UI state (drawer visibility,
// active configuration type) in an explicit observable store. The
// store is constructed once at startup and passed by reference to its
// consumers; there is no ambient singleton.
package appstate

import "sync"

// ConfigType selects which kind of document the editor drawer is
// working on.
type ConfigType string

const (
	ConfigTypeTemplate ConfigType = "TEMPLATE"
	ConfigTypeEntry    ConfigType = "ENTRY"
)

// State is a snapshot of the shared UI state.
type State struct {
	DrawerOpen       bool       `json:"drawerOpen"`
	ActiveConfigType ConfigType `json:"activeConfigType"`
}

// Store owns the state and a subscriber list. Every mutation notifies
// all subscribers with a fresh snapshot; sends are non-blocking so a
// slow subscriber cannot stall the rest.
type Store struct {
	mu     sync.RWMutex
	state  State
	subs   map[int]chan State
	nextID int
}

// NewStore creates a store with the drawer closed and templates
// active.
func NewStore() *Store {
	return &Store{
		state: State{ActiveConfigType: ConfigTypeTemplate},
		subs:  make(map[int]chan State),
	}
}

// Snapshot returns the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Subscribe registers an observer. The returned function removes the
// subscription and closes its channel.
func (s *Store) Subscribe(bufferSize int) (<-chan State, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan State, bufferSize)
	s.subs[id] = ch

	unsubscribe := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if ch, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(ch)
		}
	}
	return ch, unsubscribe
}

// SetDrawerOpen updates drawer visibility and notifies subscribers.
func (s *Store) SetDrawerOpen(open bool) {
	s.mu.Lock()
	s.state.DrawerOpen = open
	snapshot := s.state
	subs := s.snapshotSubs()
	s.mu.Unlock()

	notify(subs, snapshot)
}

// SetActiveConfigType updates the active document type and notifies
// subscribers.
func (s *Store) SetActiveConfigType(t ConfigType) {
	s.mu.Lock()
	s.state.ActiveConfigType = t
	snapshot := s.state
	subs := s.snapshotSubs()
	s.mu.Unlock()

	notify(subs, snapshot)
}

func (s *Store) snapshotSubs() []chan State {
	out := make([]chan State, 0, len(s.subs))
	for _, ch := range s.subs {
		out = append(out, ch)
	}
	return out
}

func notify(subs []chan State, snapshot State) {
	for _, ch := range subs {
		select {
		case ch <- snapshot:
		default:
			// Subscriber buffer full, skip (non-blocking)
		}
	}
}
