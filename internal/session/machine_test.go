package session

import (
	"testing"
	"time"

	"focusguard/internal/events"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestMachine() (*Machine, *events.Bus, *clock) {
	bus := events.NewBus(10)
	m := NewMachine(bus)
	c := &clock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	m.SetClock(c.now)
	return m, bus, c
}

func TestStartIsIdempotent(t *testing.T) {
	m, bus, c := newTestMachine()

	first, ok := m.Start()
	if !ok || !first.Active {
		t.Fatalf("Start() = %+v, %v", first, ok)
	}

	c.advance(time.Minute)
	second, ok := m.Start()
	if ok {
		t.Error("second Start() should be a no-op")
	}
	if second.ID != first.ID || !second.StartedAt.Equal(first.StartedAt) {
		t.Errorf("session changed on re-entry: %+v vs %+v", second, first)
	}
	if n := len(bus.Recent()); n != 1 {
		t.Errorf("published %d events, want 1", n)
	}
}

func TestObserveTransitions(t *testing.T) {
	m, bus, c := newTestMachine()

	if got, _ := m.Observe(false, nil); got != NoChange {
		t.Errorf("distracted sample while idle = %v, want NoChange", got)
	}
	if got, _ := m.Observe(true, nil); got != Started {
		t.Errorf("focused sample while idle = %v, want Started", got)
	}
	if got, _ := m.Observe(true, nil); got != NoChange {
		t.Errorf("focused sample while active = %v, want NoChange", got)
	}

	c.advance(25 * time.Minute)

	var seen Session
	got, ended := m.Observe(false, func(s Session) { seen = s })
	if got != Stopped {
		t.Errorf("distracted sample while active = %v, want Stopped", got)
	}
	if ended.ID != seen.ID || ended.Elapsed != 25*time.Minute || ended.Reason != ReasonDistraction {
		t.Errorf("ended = %+v", ended)
	}
	if !seen.Active {
		t.Error("distraction callback should see the active session")
	}
	if seen.Age(c.now()) != 25*time.Minute {
		t.Errorf("session age = %v, want 25m", seen.Age(c.now()))
	}
	if m.Current().Active {
		t.Error("session still active after distraction")
	}

	recent := bus.Recent()
	if len(recent) != 2 {
		t.Fatalf("published %d events, want 2", len(recent))
	}
	end := recent[1]
	if end.Type != events.SessionEnd || end.ElapsedMs != (25*time.Minute).Milliseconds() || end.Reason != ReasonDistraction {
		t.Errorf("session-end event = %+v", end)
	}
}

func TestEndWithoutSession(t *testing.T) {
	m, _, _ := newTestMachine()
	if _, ok := m.End(ReasonUser); ok {
		t.Error("End() without a session should report false")
	}
}

func TestEndByUser(t *testing.T) {
	m, _, c := newTestMachine()
	m.Start()
	c.advance(10 * time.Minute)

	ended, ok := m.End(ReasonUser)
	if !ok {
		t.Fatal("End() returned false")
	}
	if ended.Elapsed != 10*time.Minute || ended.Reason != ReasonUser {
		t.Errorf("End() = %+v", ended)
	}
}
