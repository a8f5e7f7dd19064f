// Package intervention decides when a distraction during a focus session
// should interrupt the user, and adapts that decision to how the user
// responds.
package intervention

import (
	"fmt"
	"sync"
	"time"

	"focusguard/internal/logger"
	"focusguard/internal/session"
)

// Action is a popup history entry kind.
type Action string

const (
	ActionShown       Action = "shown"
	ActionDismiss     Action = "dismiss"
	ActionStayFocused Action = "stay-focused"
	ActionCooldown    Action = "cooldown"
)

// ParseAction validates a user response.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionDismiss, ActionStayFocused, ActionCooldown:
		return a, nil
	}
	return "", fmt.Errorf("unknown popup action %q", s)
}

// Block reasons reported by Evaluate.
const (
	BlockMinInterval  = "min-interval"
	BlockDismissed    = "dismissed"
	BlockEarlySession = "early-session"
	BlockBurst        = "burst"
	BlockQuietHours   = "quiet-hours"
	BlockBreak        = "break"
)

const (
	historyLimit   = 50
	adaptiveWindow = 30 * time.Minute
	statsWindow    = 24 * time.Hour

	minMultiplier = 0.5
	maxMultiplier = 3.0
	annoyedFactor = 1.2
	engagedFactor = 0.9
	rateThreshold = 0.7
)

// Entry is one popup history record.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	App       string    `json:"app"`
	Action    Action    `json:"action"`
}

// Dismissal suppresses popups for one app category.
type Dismissal struct {
	Since    time.Time     `json:"since"`
	Duration time.Duration `json:"duration"`
	Count    int           `json:"count"`
}

// Decision is the outcome of Evaluate.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Policy holds the popup state for one running process. It is safe for
// concurrent use; each call holds the lock for its whole duration.
type Policy struct {
	mu sync.Mutex

	prefs       Preferences
	lastShown   time.Time
	consecutive int
	multiplier  float64
	history     []Entry
	dismissed   map[string]Dismissal
	breakUntil  time.Time

	now func() time.Time
}

// NewPolicy creates a policy. Invalid preferences fall back to defaults.
func NewPolicy(prefs Preferences) *Policy {
	p := &Policy{now: time.Now}
	p.prefs = p.sanitize(prefs)
	p.resetState()
	return p
}

// SetClock replaces the time source.
func (p *Policy) SetClock(now func() time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.now = now
}

// ShouldShowPopup reports whether a distraction into appCategory during
// current may interrupt the user.
func (p *Policy) ShouldShowPopup(appCategory string, current session.Session) bool {
	return p.Evaluate(appCategory, current).Allowed
}

// Evaluate runs the decision rules in order and reports the first that
// blocks. A burst whose cooldown has passed resets the consecutive count.
func (p *Policy) Evaluate(appCategory string, current session.Session) Decision {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()

	minInterval := time.Duration(float64(p.prefs.MinInterval) * p.multiplier)
	if !p.lastShown.IsZero() && now.Sub(p.lastShown) < minInterval {
		return blocked(BlockMinInterval, appCategory)
	}

	if d, ok := p.dismissed[appCategory]; ok && now.Sub(d.Since) < d.Duration {
		return blocked(BlockDismissed, appCategory)
	}

	if p.prefs.RespectFocusTime && current.Active && now.Sub(current.StartedAt) < p.prefs.EarlySessionGrace {
		return blocked(BlockEarlySession, appCategory)
	}

	if p.consecutive >= p.prefs.MaxConsecutive {
		if start, ok := p.burstStart(now); ok && now.Sub(start) < p.prefs.BurstCooldown {
			return blocked(BlockBurst, appCategory)
		}
		p.consecutive = 0
	}

	if inQuietHours(p.prefs.QuietHours, now.Hour()) {
		return blocked(BlockQuietHours, appCategory)
	}

	if now.Before(p.breakUntil) {
		return blocked(BlockBreak, appCategory)
	}

	return Decision{Allowed: true}
}

func blocked(reason, appCategory string) Decision {
	logger.Debug("popup blocked", "reason", reason, "category", appCategory)
	return Decision{Reason: reason}
}

// burstStart returns the oldest "shown" entry of the trailing run of shown
// popups that lies within the burst window. User responses do not break the
// run; a shown entry older than the window does.
func (p *Policy) burstStart(now time.Time) (time.Time, bool) {
	var start time.Time
	found := false
	for i := len(p.history) - 1; i >= 0; i-- {
		e := p.history[i]
		if e.Action != ActionShown {
			continue
		}
		if now.Sub(e.Timestamp) >= p.prefs.BurstCooldown {
			break
		}
		start = e.Timestamp
		found = true
	}
	return start, found
}

// RecordPopupShown notes that a popup for appCategory was displayed.
func (p *Policy) RecordPopupShown(appCategory string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	p.lastShown = now
	p.consecutive++
	p.push(Entry{Timestamp: now, App: appCategory, Action: ActionShown})

	logger.Info("popup shown", "category", appCategory, "consecutive", p.consecutive)
}

// RecordUserAction applies the user's response to a popup.
func (p *Policy) RecordUserAction(action Action, appCategory string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	p.push(Entry{Timestamp: now, App: appCategory, Action: action})

	if p.prefs.AdaptiveDelay {
		p.adapt(now)
	}

	switch action {
	case ActionDismiss:
		p.dismiss(appCategory, now)
	case ActionStayFocused:
		p.consecutive = max(0, p.consecutive-1)
	case ActionCooldown:
		p.breakUntil = now.Add(p.prefs.BreakDuration)
	}

	logger.Info("popup response", "action", action, "category", appCategory,
		"multiplier", fmt.Sprintf("%.2f", p.multiplier))
}

// adapt updates the multiplier from the rates of dismiss and stay-focused
// entries among all history entries of the last 30 minutes.
func (p *Policy) adapt(now time.Time) {
	var total, dismissals, stays int
	for _, e := range p.history {
		if now.Sub(e.Timestamp) >= adaptiveWindow {
			continue
		}
		total++
		switch e.Action {
		case ActionDismiss:
			dismissals++
		case ActionStayFocused:
			stays++
		}
	}
	if total == 0 {
		return
	}

	switch {
	case float64(dismissals)/float64(total) > rateThreshold:
		p.multiplier = min(p.multiplier*annoyedFactor, maxMultiplier)
	case float64(stays)/float64(total) > rateThreshold:
		p.multiplier = max(p.multiplier*engagedFactor, minMultiplier)
	}
}

// dismiss starts or doubles the per-category backoff. Only
// CleanupExpiredDismissals resets it.
func (p *Policy) dismiss(appCategory string, now time.Time) {
	duration := p.prefs.DismissBase
	prev, ok := p.dismissed[appCategory]
	if ok {
		duration = min(prev.Duration*2, p.prefs.DismissMax)
	}
	p.dismissed[appCategory] = Dismissal{Since: now, Duration: duration, Count: prev.Count + 1}

	logger.Info("category dismissed", "category", appCategory, "duration", duration)
}

func (p *Policy) push(e Entry) {
	p.history = append(p.history, e)
	if len(p.history) > historyLimit {
		p.history = append([]Entry(nil), p.history[len(p.history)-historyLimit:]...)
	}
}

// Dismissal returns the backoff state of appCategory.
func (p *Policy) Dismissal(appCategory string) (Dismissal, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	d, ok := p.dismissed[appCategory]
	return d, ok
}

// History returns a copy of the popup history, oldest first.
func (p *Policy) History() []Entry {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Entry(nil), p.history...)
}

// Multiplier returns the adaptive interval multiplier.
func (p *Policy) Multiplier() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.multiplier
}

// Preferences returns the active preferences.
func (p *Policy) Preferences() Preferences {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.prefs
}

// UpdatePreferences replaces the preferences. Invalid values are corrected
// and reported.
func (p *Policy) UpdatePreferences(prefs Preferences) []string {
	prefs, warnings := prefs.sanitized()
	for _, w := range warnings {
		logger.Warn("popup preferences corrected", "detail", w)
	}

	p.mu.Lock()
	p.prefs = prefs
	p.mu.Unlock()

	logger.Info("popup preferences updated")
	return warnings
}

// CleanupExpiredDismissals drops dismissals whose duration has passed and
// returns how many were removed.
func (p *Policy) CleanupExpiredDismissals() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	removed := 0
	for app, d := range p.dismissed {
		if now.Sub(d.Since) > d.Duration {
			delete(p.dismissed, app)
			removed++
			logger.Debug("dismissal expired", "category", app)
		}
	}
	return removed
}

// Reset restores the initial state. Preferences are kept.
func (p *Policy) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetState()
	logger.Info("popup policy reset")
}

func (p *Policy) resetState() {
	p.lastShown = time.Time{}
	p.consecutive = 0
	p.multiplier = 1.0
	p.history = nil
	p.dismissed = make(map[string]Dismissal)
	p.breakUntil = time.Time{}
}

func (p *Policy) sanitize(prefs Preferences) Preferences {
	prefs, warnings := prefs.sanitized()
	for _, w := range warnings {
		logger.Warn("popup preferences corrected", "detail", w)
	}
	return prefs
}
