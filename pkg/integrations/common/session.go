// Package common holds presence helpers shared by the Linux detectors.
package common

import (
	"bufio"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"focusguard/pkg/integrations/procinfo"
)

// Screen lockers looked for in the process table.
var (
	X11Lockers     = []string{"gnome-screensaver-dialog", "kscreenlocker_greet", "i3lock", "slock", "xscreensaver", "xsecurelock", "xlock"}
	WaylandLockers = []string{"swaylock", "waylock", "gtklock", "hyprlock", "gnome-screensaver-dialog", "kscreenlocker_greet"}
)

// SessionHints are the presence hints logind keeps for a login session.
type SessionHints struct {
	Locked    bool
	Idle      bool
	IdleSince time.Time
}

// IdleFor returns how long the session has been idle at now, zero when it
// is not idle.
func (h SessionHints) IdleFor(now time.Time) time.Duration {
	if !h.Idle || h.IdleSince.IsZero() || now.Before(h.IdleSince) {
		return 0
	}
	return now.Sub(h.IdleSince)
}

// ParseSessionHints reads the Key=Value output of loginctl show-session.
func ParseSessionHints(output string) SessionHints {
	var hints SessionHints
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}
		switch key {
		case "LockedHint":
			hints.Locked = value == "yes"
		case "IdleHint":
			hints.Idle = value == "yes"
		case "IdleSinceHint":
			if usec, err := strconv.ParseInt(value, 10, 64); err == nil && usec > 0 {
				hints.IdleSince = time.UnixMicro(usec)
			}
		}
	}
	return hints
}

// QuerySession asks logind for the hints of the current session.
func QuerySession() (SessionHints, error) {
	id := os.Getenv("XDG_SESSION_ID")
	if id == "" {
		id = "auto"
	}
	out, err := exec.Command("loginctl", "show-session", id,
		"-p", "LockedHint", "-p", "IdleHint", "-p", "IdleSinceHint").Output()
	if err != nil {
		return SessionHints{}, err
	}
	return ParseSessionHints(string(out)), nil
}

// LockerRunning reports whether one of lockers is running.
func LockerRunning(lockers []string) bool {
	return procinfo.AnyRunning(lockers...)
}
