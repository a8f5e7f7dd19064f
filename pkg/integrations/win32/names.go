// Package win32 detects the foreground window and idle state through the
// Win32 API.
package win32

import (
	"path/filepath"
	"strings"
)

// Processes that own the foreground while the workstation is locked.
var lockScreenProcesses = []string{"LockApp.exe", "LogonUI.exe"}

// imageName returns the executable file name of a full image path.
func imageName(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	return filepath.Base(strings.ReplaceAll(path, `\`, "/"))
}

func isLockScreen(image string) bool {
	for _, name := range lockScreenProcesses {
		if strings.EqualFold(image, name) {
			return true
		}
	}
	return false
}

// idleSince computes the idle time from GetTickCount style millisecond
// counters, which wrap every 49.7 days.
func idleSince(now, lastInput uint32) uint32 {
	return now - lastInput
}
