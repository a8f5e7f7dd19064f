package intervention

import (
	"testing"
	"time"

	"focusguard/internal/config"
	"focusguard/internal/session"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestPolicy(start time.Time) (*Policy, *clock) {
	c := &clock{t: start}
	p := NewPolicy(DefaultPreferences())
	p.SetClock(c.now)
	return p, c
}

func day(hour, min int) time.Time {
	return time.Date(2024, 3, 1, hour, min, 0, 0, time.UTC)
}

func activeSince(t time.Time) session.Session {
	return session.Session{ID: "s", Active: true, StartedAt: t}
}

func TestEarlySessionGraceBlocks(t *testing.T) {
	p, _ := newTestPolicy(day(9, 0))

	got := p.Evaluate("Entertainment", activeSince(day(8, 58)))
	if got.Allowed || got.Reason != BlockEarlySession {
		t.Errorf("Evaluate() = %+v, want blocked by %s", got, BlockEarlySession)
	}
}

func TestEarlySessionGraceDisabled(t *testing.T) {
	p, _ := newTestPolicy(day(9, 0))
	prefs := p.Preferences()
	prefs.RespectFocusTime = false
	p.UpdatePreferences(prefs)

	if !p.ShouldShowPopup("Entertainment", activeSince(day(8, 58))) {
		t.Error("grace should not apply when RespectFocusTime is off")
	}
}

func TestShowThenDismiss(t *testing.T) {
	p, _ := newTestPolicy(day(9, 0))

	if !p.ShouldShowPopup("Entertainment", activeSince(day(8, 30))) {
		t.Fatal("ShouldShowPopup() = false, want true")
	}
	p.RecordPopupShown("Entertainment")
	p.RecordUserAction(ActionDismiss, "Entertainment")

	d, ok := p.Dismissal("Entertainment")
	if !ok {
		t.Fatal("no dismissal recorded")
	}
	if d.Duration.Milliseconds() != 900000 {
		t.Errorf("Duration = %d ms, want 900000", d.Duration.Milliseconds())
	}
	if d.Count != 1 {
		t.Errorf("Count = %d, want 1", d.Count)
	}
}

func TestDismissalBackoffDoubles(t *testing.T) {
	p, c := newTestPolicy(day(9, 0))

	want := []time.Duration{15 * time.Minute, 30 * time.Minute, 60 * time.Minute, 120 * time.Minute, 120 * time.Minute}
	for i, w := range want {
		p.RecordUserAction(ActionDismiss, "Entertainment")
		d, _ := p.Dismissal("Entertainment")
		if d.Duration != w {
			t.Errorf("dismissal %d: Duration = %v, want %v", i+1, d.Duration, w)
		}
		c.advance(time.Minute)
	}
}

func TestDismissalBlocksCategoryOnly(t *testing.T) {
	p, c := newTestPolicy(day(9, 0))
	s := activeSince(day(8, 0))

	p.RecordUserAction(ActionDismiss, "Entertainment")
	c.advance(time.Minute)

	if got := p.Evaluate("Entertainment", s); got.Reason != BlockDismissed {
		t.Errorf("Evaluate(Entertainment) = %+v, want %s", got, BlockDismissed)
	}
	if !p.ShouldShowPopup("Communication", s) {
		t.Error("other categories should not be dismissed")
	}

	c.advance(15 * time.Minute)
	if !p.ShouldShowPopup("Entertainment", s) {
		t.Error("dismissal should have expired")
	}
}

func TestCleanupExpiredDismissalsResetsBackoff(t *testing.T) {
	p, c := newTestPolicy(day(9, 0))

	p.RecordUserAction(ActionDismiss, "Entertainment")
	c.advance(10 * time.Minute)
	if n := p.CleanupExpiredDismissals(); n != 0 {
		t.Errorf("removed %d active dismissals", n)
	}

	c.advance(6 * time.Minute)
	if n := p.CleanupExpiredDismissals(); n != 1 {
		t.Errorf("removed %d dismissals, want 1", n)
	}

	p.RecordUserAction(ActionDismiss, "Entertainment")
	d, _ := p.Dismissal("Entertainment")
	if d.Duration != 15*time.Minute {
		t.Errorf("Duration after cleanup = %v, want 15m", d.Duration)
	}
}

func TestMinimumInterval(t *testing.T) {
	p, c := newTestPolicy(day(9, 0))
	s := activeSince(day(8, 0))

	if !p.ShouldShowPopup("Entertainment", s) {
		t.Fatal("first popup should be allowed")
	}
	p.RecordPopupShown("Entertainment")

	c.advance(10 * time.Second)
	if got := p.Evaluate("Entertainment", s); got.Reason != BlockMinInterval {
		t.Errorf("Evaluate() = %+v, want %s", got, BlockMinInterval)
	}

	c.advance(20 * time.Second)
	if !p.ShouldShowPopup("Entertainment", s) {
		t.Error("popup should be allowed once the interval has passed")
	}
}

func TestMinimumIntervalScalesWithMultiplier(t *testing.T) {
	p, c := newTestPolicy(day(9, 0))
	s := activeSince(day(8, 0))

	// shown, then dismiss rates of 1/2, 2/3 and 3/4; only the last passes 0.7
	p.RecordPopupShown("Entertainment")
	for i := 0; i < 3; i++ {
		p.RecordUserAction(ActionDismiss, "Entertainment")
	}
	if got := p.Multiplier(); got != 1.2 {
		t.Fatalf("Multiplier() = %v, want 1.2", got)
	}

	c.advance(31 * time.Second)
	if got := p.Evaluate("Communication", s); got.Reason != BlockMinInterval {
		t.Errorf("Evaluate() = %+v, want %s at 31s with a 36s interval", got, BlockMinInterval)
	}
	c.advance(5 * time.Second)
	if !p.ShouldShowPopup("Communication", s) {
		t.Error("popup should be allowed after 36s")
	}
}

func TestBurstSuppression(t *testing.T) {
	p, c := newTestPolicy(day(9, 0))
	s := activeSince(day(8, 0))

	for i := 0; i < 3; i++ {
		if !p.ShouldShowPopup("Entertainment", s) {
			t.Fatalf("popup %d should be allowed", i+1)
		}
		p.RecordPopupShown("Entertainment")
		c.advance(30 * time.Second)
	}

	if got := p.Evaluate("Entertainment", s); got.Reason != BlockBurst {
		t.Errorf("4th popup: Evaluate() = %+v, want %s", got, BlockBurst)
	}

	c.advance(10 * time.Minute)
	if !p.ShouldShowPopup("Entertainment", s) {
		t.Error("popup should be allowed after the burst cooldown")
	}
	if got := p.Stats().ConsecutivePopups; got != 0 {
		t.Errorf("ConsecutivePopups = %d, want 0 after reset", got)
	}
}

func TestStayFocusedDecrementsConsecutive(t *testing.T) {
	p, _ := newTestPolicy(day(9, 0))

	p.RecordPopupShown("Entertainment")
	p.RecordUserAction(ActionStayFocused, "Entertainment")
	p.RecordUserAction(ActionStayFocused, "Entertainment")
	p.RecordUserAction(ActionStayFocused, "Entertainment")

	stats := p.Stats()
	if stats.ConsecutivePopups != 0 {
		t.Errorf("ConsecutivePopups = %d, want 0", stats.ConsecutivePopups)
	}
	if stats.AdaptiveMultiplier >= 1.0 {
		t.Errorf("AdaptiveMultiplier = %v, want < 1", stats.AdaptiveMultiplier)
	}
}

func TestQuietHours(t *testing.T) {
	tests := []struct {
		name  string
		qh    config.QuietHours
		hour  int
		quiet bool
	}{
		{"wrap late evening", config.QuietHours{Enabled: true, Start: 22, End: 8}, 23, true},
		{"wrap early morning", config.QuietHours{Enabled: true, Start: 22, End: 8}, 7, true},
		{"wrap end exclusive", config.QuietHours{Enabled: true, Start: 22, End: 8}, 8, false},
		{"wrap daytime", config.QuietHours{Enabled: true, Start: 22, End: 8}, 10, false},
		{"plain inside", config.QuietHours{Enabled: true, Start: 12, End: 14}, 13, true},
		{"plain outside", config.QuietHours{Enabled: true, Start: 12, End: 14}, 14, false},
		{"disabled", config.QuietHours{Enabled: false, Start: 22, End: 8}, 23, false},
		{"empty window", config.QuietHours{Enabled: true, Start: 9, End: 9}, 9, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := inQuietHours(tt.qh, tt.hour); got != tt.quiet {
				t.Errorf("inQuietHours(%+v, %d) = %v, want %v", tt.qh, tt.hour, got, tt.quiet)
			}
		})
	}
}

func TestQuietHoursBlockPopups(t *testing.T) {
	p, c := newTestPolicy(day(23, 0))
	prefs := p.Preferences()
	prefs.QuietHours = config.QuietHours{Enabled: true, Start: 22, End: 8}
	p.UpdatePreferences(prefs)

	s := activeSince(day(8, 0))
	if got := p.Evaluate("Entertainment", s); got.Reason != BlockQuietHours {
		t.Errorf("at 23:00 Evaluate() = %+v, want %s", got, BlockQuietHours)
	}

	c.t = day(10, 0)
	if !p.ShouldShowPopup("Entertainment", s) {
		t.Error("at 10:00 popup should not be blocked by quiet hours")
	}
}

func TestCooldownActionStartsBreak(t *testing.T) {
	p, c := newTestPolicy(day(9, 0))
	s := activeSince(day(8, 0))

	p.RecordPopupShown("Entertainment")
	p.RecordUserAction(ActionCooldown, "Entertainment")

	c.advance(time.Minute)
	if got := p.Evaluate("Entertainment", s); got.Reason != BlockBreak {
		t.Errorf("Evaluate() = %+v, want %s", got, BlockBreak)
	}

	c.advance(5 * time.Minute)
	if !p.ShouldShowPopup("Entertainment", s) {
		t.Error("popup should be allowed after the break")
	}
}

func TestAdaptiveMultiplierBounds(t *testing.T) {
	p, _ := newTestPolicy(day(9, 0))
	p.RecordPopupShown("Entertainment")
	for i := 0; i < 20; i++ {
		p.RecordUserAction(ActionDismiss, "Entertainment")
	}
	if got := p.Multiplier(); got != maxMultiplier {
		t.Errorf("Multiplier() = %v, want %v", got, maxMultiplier)
	}

	p.Reset()
	p.RecordPopupShown("Entertainment")
	for i := 0; i < 20; i++ {
		p.RecordUserAction(ActionStayFocused, "Entertainment")
	}
	if got := p.Multiplier(); got != minMultiplier {
		t.Errorf("Multiplier() = %v, want %v", got, minMultiplier)
	}
}

func TestAdaptiveRatesCountShownEntries(t *testing.T) {
	tests := []struct {
		name    string
		actions []Action
		want    float64
	}{
		{"dismiss rate one half", []Action{ActionDismiss}, 1.0},
		{"stay rate one half", []Action{ActionStayFocused}, 1.0},
		{"dismiss rate three quarters", []Action{ActionDismiss, ActionDismiss, ActionDismiss}, 1.2},
		{"mixed responses", []Action{ActionDismiss, ActionStayFocused, ActionDismiss}, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newTestPolicy(day(9, 0))
			p.RecordPopupShown("Entertainment")
			for _, a := range tt.actions {
				p.RecordUserAction(a, "Entertainment")
			}
			if got := p.Multiplier(); got != tt.want {
				t.Errorf("Multiplier() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAdaptiveDelayDisabled(t *testing.T) {
	p, _ := newTestPolicy(day(9, 0))
	prefs := p.Preferences()
	prefs.AdaptiveDelay = false
	p.UpdatePreferences(prefs)

	p.RecordUserAction(ActionDismiss, "Entertainment")
	if got := p.Multiplier(); got != 1.0 {
		t.Errorf("Multiplier() = %v, want 1.0", got)
	}
}

func TestAdaptiveWindowIgnoresOldResponses(t *testing.T) {
	p, c := newTestPolicy(day(9, 0))

	p.RecordUserAction(ActionStayFocused, "Entertainment")
	p.RecordUserAction(ActionStayFocused, "Entertainment")
	c.advance(31 * time.Minute)

	before := p.Multiplier()
	p.RecordUserAction(ActionDismiss, "Entertainment")
	if got := p.Multiplier(); got <= before {
		t.Errorf("Multiplier() = %v, want increase from %v", got, before)
	}
}

func TestHistoryBounded(t *testing.T) {
	p, c := newTestPolicy(day(9, 0))
	for i := 0; i < 60; i++ {
		p.RecordPopupShown("Entertainment")
		c.advance(time.Second)
	}

	history := p.History()
	if len(history) != historyLimit {
		t.Fatalf("len(History) = %d, want %d", len(history), historyLimit)
	}
	if !history[0].Timestamp.Equal(day(9, 0).Add(10 * time.Second)) {
		t.Errorf("oldest entry = %v, want the 11th popup", history[0].Timestamp)
	}
}

func TestStats(t *testing.T) {
	p, c := newTestPolicy(day(9, 0))

	p.RecordPopupShown("Entertainment")
	p.RecordUserAction(ActionStayFocused, "Entertainment")
	p.RecordPopupShown("Entertainment")
	p.RecordUserAction(ActionDismiss, "Entertainment")
	p.RecordPopupShown("Communication")
	p.RecordUserAction(ActionCooldown, "Communication")

	stats := p.Stats()
	if stats.TotalShown != 3 || stats.StayFocused != 1 || stats.Dismissed != 1 || stats.Breaks != 1 {
		t.Errorf("Stats() = %+v", stats)
	}
	if stats.ActiveDismissals != 1 {
		t.Errorf("ActiveDismissals = %d, want 1", stats.ActiveDismissals)
	}
	if stats.Effectiveness < 33.3 || stats.Effectiveness > 33.4 {
		t.Errorf("Effectiveness = %v, want ~33.3", stats.Effectiveness)
	}

	c.advance(25 * time.Hour)
	if got := p.Stats().TotalShown; got != 0 {
		t.Errorf("TotalShown after a day = %d, want 0", got)
	}
}

func TestReset(t *testing.T) {
	p, _ := newTestPolicy(day(9, 0))
	p.RecordPopupShown("Entertainment")
	p.RecordUserAction(ActionDismiss, "Entertainment")

	p.Reset()

	stats := p.Stats()
	if stats.TotalShown != 0 || stats.ActiveDismissals != 0 || stats.AdaptiveMultiplier != 1.0 || stats.ConsecutivePopups != 0 {
		t.Errorf("Stats() after Reset = %+v", stats)
	}
	if !p.ShouldShowPopup("Entertainment", activeSince(day(8, 0))) {
		t.Error("popup should be allowed after Reset")
	}
}

func TestUpdatePreferencesCorrectsInvalid(t *testing.T) {
	p, _ := newTestPolicy(day(9, 0))
	prefs := p.Preferences()
	prefs.QuietHours = config.QuietHours{Enabled: true, Start: 30, End: -1}
	prefs.MaxConsecutive = 0

	warnings := p.UpdatePreferences(prefs)
	if len(warnings) != 2 {
		t.Errorf("warnings = %v, want 2", warnings)
	}
	got := p.Preferences()
	if got.QuietHours.Start != 22 || got.QuietHours.End != 8 || !got.QuietHours.Enabled {
		t.Errorf("QuietHours = %+v", got.QuietHours)
	}
	if got.MaxConsecutive != 3 {
		t.Errorf("MaxConsecutive = %d, want 3", got.MaxConsecutive)
	}
}

func TestParseAction(t *testing.T) {
	for _, s := range []string{"dismiss", "stay-focused", "cooldown"} {
		if _, err := ParseAction(s); err != nil {
			t.Errorf("ParseAction(%q) error = %v", s, err)
		}
	}
	for _, s := range []string{"shown", "", "snooze"} {
		if _, err := ParseAction(s); err == nil {
			t.Errorf("ParseAction(%q) should fail", s)
		}
	}
}
