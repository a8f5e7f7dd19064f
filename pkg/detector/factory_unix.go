//go:build !windows

package detector

import (
	"focusguard/pkg/integrations/wayland"
	"focusguard/pkg/integrations/x11"
	"focusguard/pkg/window"
)

// candidates lists detectors in order of preference. A Wayland session
// with XWayland falls back to X11 when the compositor has no IPC.
func candidates(displayServer string) []window.Detector {
	switch displayServer {
	case "wayland":
		return []window.Detector{wayland.NewDetector(), x11.NewDetector()}
	case "x11":
		return []window.Detector{x11.NewDetector()}
	}
	return nil
}
