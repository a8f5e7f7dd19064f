package detector

import (
	"errors"
	"os"
	"runtime"

	"focusguard/internal/logger"
	"focusguard/pkg/window"
)

// ErrUnsupported is returned when no detector can run in this session.
var ErrUnsupported = errors.New("no supported display server found")

// New returns the detector for the running display server.
func New() (window.Detector, error) {
	for _, candidate := range candidates(DetectDisplayServer()) {
		if candidate.IsAvailable() {
			logger.Info("window detector initialized", "display_server", candidate.GetDisplayServer())
			return candidate, nil
		}
		_ = candidate.Close()
	}
	return nil, ErrUnsupported
}

// DetectDisplayServer names the display server from the session
// environment: "windows", "wayland", "x11" or "unknown".
func DetectDisplayServer() string {
	if runtime.GOOS == "windows" {
		return "windows"
	}

	sessionType := os.Getenv("XDG_SESSION_TYPE")
	waylandDisplay := os.Getenv("WAYLAND_DISPLAY")
	x11Display := os.Getenv("DISPLAY")

	if sessionType == "wayland" || waylandDisplay != "" {
		return "wayland"
	}

	if sessionType == "x11" || x11Display != "" {
		return "x11"
	}

	return "unknown"
}
