package api

import (
	"fmt"
	"sync"
	"time"

	"github.com/fieldforms/fieldforms-go/internal/forms/entry"
	"github.com/fieldforms/fieldforms-go/internal/services/pubsub"
)

// TimerTickEvent is published on every tick of a running timer.
type TimerTickEvent struct {
	EntryID  uint   `json:"entryId"`
	EntryKey string `json:"entryKey"`
	Value    int    `json:"value"`
}

// EntrySession is one entry open for editing. All mutations of the
// entry are serialized through the session lock, so the single
// in-flight-edit model holds even with timer ticks arriving from the
// runner goroutine.
type EntrySession struct {
	mu      sync.Mutex
	entry   *entry.FormEntry
	runners map[string]*entry.TimerRunner
}

// Do runs fn with exclusive access to the session's entry.
func (s *EntrySession) Do(fn func(e *entry.FormEntry) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.entry)
}

// SessionManager tracks open entry sessions and owns their timer
// runners. Closing a session stops every runner it started; a tick
// never outlives its session.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[uint]*EntrySession

	tick   time.Duration
	events *pubsub.PubSub
}

// NewSessionManager creates a session manager. Timers opened through
// it tick at the given interval.
func NewSessionManager(tick time.Duration, events *pubsub.PubSub) *SessionManager {
	return &SessionManager{
		sessions: make(map[uint]*EntrySession),
		tick:     tick,
		events:   events,
	}
}

// Open registers a saved entry for editing and returns its session.
// Reopening an already open entry returns the existing session.
func (m *SessionManager) Open(e *entry.FormEntry) *EntrySession {
	m.mu.Lock()
	defer m.mu.Unlock()
	if session, ok := m.sessions[e.ID]; ok {
		return session
	}
	session := &EntrySession{
		entry:   e,
		runners: make(map[string]*entry.TimerRunner),
	}
	m.sessions[e.ID] = session
	return session
}

// Get returns the open session for an entry id, or nil.
func (m *SessionManager) Get(id uint) *EntrySession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id]
}

// Close tears down a session, stopping all of its timer runners.
func (m *SessionManager) Close(id uint) {
	m.mu.Lock()
	session := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if session == nil {
		return
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	for _, runner := range session.runners {
		runner.Stop()
	}
	session.runners = make(map[string]*entry.TimerRunner)
}

// CloseAll tears down every open session. Called on server shutdown.
func (m *SessionManager) CloseAll() {
	m.mu.Lock()
	ids := make([]uint, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.Close(id)
	}
}

// ToggleTimer flips a timer field and starts or stops its runner to
// match the new state. Returns the resulting state.
func (m *SessionManager) ToggleTimer(session *EntrySession, entryKey string) (entry.TimerState, error) {
	session.mu.Lock()
	defer session.mu.Unlock()

	state, err := session.entry.ToggleTimer(entryKey)
	if err != nil {
		return "", err
	}

	if state == entry.TimerRunning {
		m.startRunnerLocked(session, entryKey)
	} else {
		m.stopRunnerLocked(session, entryKey)
	}
	return state, nil
}

// ResetTimer zeroes a timer field and cancels its runner.
func (m *SessionManager) ResetTimer(session *EntrySession, entryKey string) error {
	session.mu.Lock()
	defer session.mu.Unlock()

	if err := session.entry.ResetTimer(entryKey); err != nil {
		return err
	}
	m.stopRunnerLocked(session, entryKey)
	return nil
}

// StartConfiguredTimers starts runners for global timers that begin
// RUNNING on form creation.
func (m *SessionManager) StartConfiguredTimers(session *EntrySession) {
	session.mu.Lock()
	defer session.mu.Unlock()

	for _, gf := range session.entry.Config.GlobalFields {
		if !gf.Type.IsTimer() {
			continue
		}
		v := session.entry.ValueFor(gf.EntryKey)
		if v != nil && v.Meta != nil && v.Meta.State == entry.TimerRunning {
			m.startRunnerLocked(session, gf.EntryKey)
		}
	}
}

func (m *SessionManager) startRunnerLocked(session *EntrySession, entryKey string) {
	if runner, ok := session.runners[entryKey]; ok {
		runner.Start()
		return
	}
	runner := entry.NewTimerRunner(m.tick, func() {
		session.mu.Lock()
		value, err := session.entry.TickTimer(entryKey)
		entryID := session.entry.ID
		session.mu.Unlock()
		if err != nil {
			return
		}
		m.events.Publish(pubsub.TopicTimerTick, entryFilter(entryID), TimerTickEvent{
			EntryID:  entryID,
			EntryKey: entryKey,
			Value:    value,
		})
	})
	session.runners[entryKey] = runner
	runner.Start()
}

func (m *SessionManager) stopRunnerLocked(session *EntrySession, entryKey string) {
	if runner, ok := session.runners[entryKey]; ok {
		runner.Stop()
	}
}

func entryFilter(id uint) string {
	return fmt.Sprintf("%d", id)
}
