package window

import (
	"errors"
	"time"
)

// ErrNoWindow is returned when no foreground window can be determined.
var ErrNoWindow = errors.New("no focused window")

// WindowInfo represents information about the currently focused window
type WindowInfo struct {
	AppName       string // Window class, e.g. "firefox" or "chrome.exe"
	WindowTitle   string
	ProcessName   string
	PID           int    // 0 when unknown
	DisplayServer string // "x11", "wayland" or "windows"
}

// Identity returns the process class, falling back to the process name.
func (w *WindowInfo) Identity() string {
	if w == nil {
		return ""
	}
	if w.AppName != "" && w.AppName != "Unknown" {
		return w.AppName
	}
	return w.ProcessName
}

// IdleState is the coarse user presence state
type IdleState string

const (
	StateActive IdleState = "active"
	StateIdle   IdleState = "idle"
	StateLocked IdleState = "locked"
)

// IdleInfo represents system idle/lock state
type IdleInfo struct {
	IsIdle   bool
	IsLocked bool
	IdleTime int64 // Idle time in seconds
}

// NewIdleInfo classifies an idle time against threshold. Idle means strictly
// longer than the threshold.
func NewIdleInfo(idle time.Duration, threshold time.Duration, locked bool) *IdleInfo {
	return &IdleInfo{
		IsIdle:   idle > threshold,
		IsLocked: locked,
		IdleTime: int64(idle / time.Second),
	}
}

// State returns the presence state; a locked screen wins over idle.
func (i *IdleInfo) State() IdleState {
	switch {
	case i == nil:
		return StateActive
	case i.IsLocked:
		return StateLocked
	case i.IsIdle:
		return StateIdle
	}
	return StateActive
}

// Detector is the interface that all window detection implementations must satisfy
type Detector interface {
	// GetFocusedWindow returns information about the currently focused window
	GetFocusedWindow() (*WindowInfo, error)

	// GetIdleInfo returns the idle/lock state, idle meaning no input for
	// longer than threshold
	GetIdleInfo(threshold time.Duration) (*IdleInfo, error)

	// IsAvailable checks if this detector can run on the current system
	IsAvailable() bool

	// GetDisplayServer returns the display server type
	GetDisplayServer() string

	// Close cleans up any resources used by the detector
	Close() error
}
