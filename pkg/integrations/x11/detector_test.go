package x11

import (
	"errors"
	"os"
	"testing"

	"focusguard/pkg/integrations/common"
	"focusguard/pkg/window"
)

func TestGetDisplayServer(t *testing.T) {
	if got := NewDetector().GetDisplayServer(); got != "x11" {
		t.Errorf("GetDisplayServer() = %s, want x11", got)
	}
}

func TestIsAvailableWithoutDisplay(t *testing.T) {
	orig, had := os.LookupEnv("DISPLAY")
	os.Unsetenv("DISPLAY")
	defer func() {
		if had {
			os.Setenv("DISPLAY", orig)
		}
	}()

	if NewDetector().IsAvailable() {
		t.Error("IsAvailable() = true without DISPLAY")
	}
}

func TestGetFocusedWindow(t *testing.T) {
	detector := NewDetector()
	defer detector.Close()

	if !detector.IsAvailable() {
		t.Skip("X11 detector not available on this system")
	}

	info, err := detector.GetFocusedWindow()
	if err != nil {
		t.Logf("GetFocusedWindow() error (may be expected): %v", err)
		return
	}
	if info.Identity() == "" {
		t.Error("focused window has no identity")
	}
	if info.DisplayServer != "x11" {
		t.Errorf("DisplayServer = %s, want x11", info.DisplayServer)
	}
}

func TestParseWMClass(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		wantInstance string
		wantClass    string
	}{
		{"standard", "Navigator\x00firefox\x00", "Navigator", "firefox"},
		{"same", "kitty\x00kitty\x00", "kitty", "kitty"},
		{"instance only", "xterm\x00", "xterm", ""},
		{"empty", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			instance, class := parseWMClass([]byte(tt.input))
			if instance != tt.wantInstance || class != tt.wantClass {
				t.Errorf("parseWMClass(%q) = %q, %q, want %q, %q",
					tt.input, instance, class, tt.wantInstance, tt.wantClass)
			}
		})
	}
}

func TestDecodeCardinal(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  uint32
	}{
		{"pid", []byte{0x92, 0x10, 0, 0}, 4242},
		{"short", []byte{1, 2}, 0},
		{"empty", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := decodeCardinal(tt.input); got != tt.want {
				t.Errorf("decodeCardinal(%v) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestTrimName(t *testing.T) {
	if got := trimName([]byte("Inbox - Mail\x00")); got != "Inbox - Mail" {
		t.Errorf("trimName() = %q", got)
	}
}

func TestIsLocked(t *testing.T) {
	tests := []struct {
		name    string
		locker  bool
		hints   common.SessionHints
		hintErr error
		want    bool
	}{
		{"locker running", true, common.SessionHints{}, nil, true},
		{"logind locked", false, common.SessionHints{Locked: true}, nil, true},
		{"unlocked", false, common.SessionHints{}, nil, false},
		{"logind unavailable", false, common.SessionHints{}, errors.New("no loginctl"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDetector()
			d.lockerRunning = func() bool { return tt.locker }
			d.session = func() (common.SessionHints, error) { return tt.hints, tt.hintErr }

			if got := d.isLocked(); got != tt.want {
				t.Errorf("isLocked() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCloseWithoutConnection(t *testing.T) {
	if err := NewDetector().Close(); err != nil {
		t.Errorf("Close() returned error: %v", err)
	}
}

func TestDetectorInterface(t *testing.T) {
	var _ window.Detector = (*Detector)(nil)
}
