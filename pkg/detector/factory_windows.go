//go:build windows

package detector

import (
	"focusguard/pkg/integrations/win32"
	"focusguard/pkg/window"
)

func candidates(string) []window.Detector {
	return []window.Detector{win32.NewDetector()}
}
