package intervention

import (
	"fmt"
	"time"

	"focusguard/internal/config"
)

// Preferences tune the popup policy.
type Preferences struct {
	MinInterval       time.Duration
	MaxConsecutive    int
	AdaptiveDelay     bool
	RespectFocusTime  bool
	EarlySessionGrace time.Duration
	BurstCooldown     time.Duration
	BreakDuration     time.Duration
	DismissBase       time.Duration
	DismissMax        time.Duration
	QuietHours        config.QuietHours
}

// DefaultPreferences mirrors the configuration defaults.
func DefaultPreferences() Preferences {
	return PreferencesFromConfig(config.Default().Popup)
}

// PreferencesFromConfig copies the popup section of the configuration.
func PreferencesFromConfig(c config.PopupConfig) Preferences {
	return Preferences{
		MinInterval:       c.MinInterval,
		MaxConsecutive:    c.MaxConsecutive,
		AdaptiveDelay:     c.AdaptiveDelay,
		RespectFocusTime:  c.RespectFocusTime,
		EarlySessionGrace: c.EarlySessionGrace,
		BurstCooldown:     c.BurstCooldown,
		BreakDuration:     c.BreakDuration,
		DismissBase:       c.DismissBase,
		DismissMax:        c.DismissMax,
		QuietHours:        c.QuietHours,
	}
}

// sanitized replaces unusable values with defaults and reports each fix.
func (p Preferences) sanitized() (Preferences, []string) {
	def := DefaultPreferences()
	var warnings []string

	fix := func(name string, bad bool, apply func()) {
		if bad {
			warnings = append(warnings, fmt.Sprintf("invalid %s, using default", name))
			apply()
		}
	}

	fix("min interval", p.MinInterval < 0, func() { p.MinInterval = def.MinInterval })
	fix("max consecutive", p.MaxConsecutive < 1, func() { p.MaxConsecutive = def.MaxConsecutive })
	fix("early session grace", p.EarlySessionGrace < 0, func() { p.EarlySessionGrace = def.EarlySessionGrace })
	fix("burst cooldown", p.BurstCooldown < 0, func() { p.BurstCooldown = def.BurstCooldown })
	fix("break duration", p.BreakDuration < 0, func() { p.BreakDuration = def.BreakDuration })
	fix("dismiss base", p.DismissBase <= 0, func() { p.DismissBase = def.DismissBase })
	fix("dismiss max", p.DismissMax < p.DismissBase, func() { p.DismissMax = max(def.DismissMax, p.DismissBase) })

	qh := p.QuietHours
	fix("quiet hours", qh.Start < 0 || qh.Start > 23 || qh.End < 0 || qh.End > 23, func() {
		p.QuietHours.Start = config.DefaultQuietStart
		p.QuietHours.End = config.DefaultQuietEnd
	})

	return p, warnings
}

// inQuietHours reports whether hour falls in [Start, End), wrapping midnight
// when Start > End. Start == End is an empty window.
func inQuietHours(qh config.QuietHours, hour int) bool {
	if !qh.Enabled {
		return false
	}
	if qh.Start > qh.End {
		return hour >= qh.Start || hour < qh.End
	}
	return hour >= qh.Start && hour < qh.End
}
