// Package session implements the focus session state machine.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"focusguard/internal/events"
)

// Reasons a session ends.
const (
	ReasonDistraction = "distraction"
	ReasonUser        = "user"
	ReasonShutdown    = "shutdown"
)

// Session is a snapshot of the focus session.
type Session struct {
	ID        string    `json:"id,omitempty"`
	Active    bool      `json:"active"`
	StartedAt time.Time `json:"started_at,omitempty"`
}

// Age returns how long the session has been running at now.
func (s Session) Age(now time.Time) time.Duration {
	if !s.Active {
		return 0
	}
	return now.Sub(s.StartedAt)
}

// Ended describes a finished session.
type Ended struct {
	Session
	EndedAt time.Time
	Elapsed time.Duration
	Reason  string
}

// Transition is the effect of one observed sample.
type Transition int

const (
	NoChange Transition = iota
	Started
	Stopped
)

// Machine tracks at most one session. It is safe for concurrent use.
type Machine struct {
	mu      sync.Mutex
	current Session
	bus     events.Publisher
	now     func() time.Time
}

// NewMachine creates an idle machine publishing to bus, which may be nil.
func NewMachine(bus events.Publisher) *Machine {
	return &Machine{bus: bus, now: time.Now}
}

// SetClock replaces the time source.
func (m *Machine) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// Current returns the current session.
func (m *Machine) Current() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Start begins a session. It is a no-op returning false when one is active.
func (m *Machine) Start() (Session, bool) {
	m.mu.Lock()
	if m.current.Active {
		s := m.current
		m.mu.Unlock()
		return s, false
	}
	m.current = Session{ID: uuid.NewString(), Active: true, StartedAt: m.now()}
	s := m.current
	m.mu.Unlock()

	m.publish(events.Event{Type: events.SessionStart, At: s.StartedAt, SessionID: s.ID, Focused: true})
	return s, true
}

// End finishes the active session. It returns false when none is active.
func (m *Machine) End(reason string) (Ended, bool) {
	m.mu.Lock()
	if !m.current.Active {
		m.mu.Unlock()
		return Ended{}, false
	}
	now := m.now()
	ended := Ended{
		Session: m.current,
		EndedAt: now,
		Elapsed: now.Sub(m.current.StartedAt),
		Reason:  reason,
	}
	m.current = Session{}
	m.mu.Unlock()

	m.publish(events.Event{
		Type:      events.SessionEnd,
		At:        now,
		SessionID: ended.ID,
		Focused:   false,
		ElapsedMs: ended.Elapsed.Milliseconds(),
		Reason:    reason,
	})
	return ended, true
}

// Observe feeds one categorized sample into the machine. A focused sample
// starts a session when idle. A distracted sample ends an active session;
// onDistraction runs first with the still-active session. On Stopped the
// returned Ended is the one published with the session-end event.
func (m *Machine) Observe(focused bool, onDistraction func(Session)) (Transition, Ended) {
	current := m.Current()

	switch {
	case focused && !current.Active:
		if _, ok := m.Start(); ok {
			return Started, Ended{}
		}
	case !focused && current.Active:
		if onDistraction != nil {
			onDistraction(current)
		}
		if ended, ok := m.End(ReasonDistraction); ok {
			return Stopped, ended
		}
	}
	return NoChange, Ended{}
}

func (m *Machine) publish(e events.Event) {
	if m.bus != nil {
		m.bus.Publish(e)
	}
}
