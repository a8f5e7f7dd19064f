// Package wayland detects the focused window on wlroots compositors that
// expose their window tree over IPC.
package wayland

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"focusguard/pkg/integrations/common"
	"focusguard/pkg/integrations/procinfo"
	"focusguard/pkg/window"
)

const (
	compositorSway     = "sway"
	compositorHyprland = "hyprland"
	compositorUnknown  = "unknown"
)

// Detector implements window.Detector for Wayland
type Detector struct {
	compositor string

	run           func(name string, args ...string) ([]byte, error)
	lockerRunning func() bool
	session       func() (common.SessionHints, error)
	now           func() time.Time
}

func NewDetector() *Detector {
	return &Detector{
		compositor:    detectCompositor(),
		run:           runCommand,
		lockerRunning: func() bool { return common.LockerRunning(common.WaylandLockers) },
		session:       common.QuerySession,
		now:           time.Now,
	}
}

func runCommand(name string, args ...string) ([]byte, error) {
	return exec.Command(name, args...).Output()
}

// detectCompositor prefers the IPC socket variables and falls back to the
// process table.
func detectCompositor() string {
	switch {
	case os.Getenv("SWAYSOCK") != "":
		return compositorSway
	case os.Getenv("HYPRLAND_INSTANCE_SIGNATURE") != "":
		return compositorHyprland
	case procinfo.AnyRunning("sway"):
		return compositorSway
	case procinfo.AnyRunning("Hyprland"):
		return compositorHyprland
	}
	return compositorUnknown
}

func (d *Detector) IsAvailable() bool {
	var tool string
	switch d.compositor {
	case compositorSway:
		tool = "swaymsg"
	case compositorHyprland:
		tool = "hyprctl"
	default:
		return false
	}
	_, err := exec.LookPath(tool)
	return err == nil
}

func (d *Detector) GetDisplayServer() string {
	return "wayland"
}

func (d *Detector) GetFocusedWindow() (*window.WindowInfo, error) {
	var (
		info *window.WindowInfo
		err  error
	)
	switch d.compositor {
	case compositorSway:
		info, err = d.focusedSway()
	case compositorHyprland:
		info, err = d.focusedHyprland()
	default:
		return nil, fmt.Errorf("unsupported wayland compositor: %s", d.compositor)
	}
	if err != nil {
		return nil, err
	}

	info.DisplayServer = "wayland"
	if info.PID > 0 {
		if proc, err := procinfo.Lookup(info.PID); err == nil {
			info.ProcessName = proc.Description()
		}
	}
	return info, nil
}

func (d *Detector) focusedSway() (*window.WindowInfo, error) {
	output, err := d.run("swaymsg", "-t", "get_tree", "--raw")
	if err != nil {
		return nil, fmt.Errorf("failed to execute swaymsg: %w", err)
	}
	return parseSwayTree(output)
}

func (d *Detector) focusedHyprland() (*window.WindowInfo, error) {
	output, err := d.run("hyprctl", "activewindow", "-j")
	if err != nil {
		return nil, fmt.Errorf("failed to execute hyprctl: %w", err)
	}
	return parseHyprlandWindow(output)
}

type swayNode struct {
	Name             string `json:"name"`
	Focused          bool   `json:"focused"`
	AppID            string `json:"app_id"`
	PID              int    `json:"pid"`
	WindowProperties struct {
		Class    string `json:"class"`
		Instance string `json:"instance"`
	} `json:"window_properties"`
	Nodes         []swayNode `json:"nodes"`
	FloatingNodes []swayNode `json:"floating_nodes"`
}

func (n *swayNode) focused() *swayNode {
	if n.Focused {
		return n
	}
	for _, children := range [][]swayNode{n.Nodes, n.FloatingNodes} {
		for i := range children {
			if found := children[i].focused(); found != nil {
				return found
			}
		}
	}
	return nil
}

// parseSwayTree finds the focused view in the output of swaymsg -t get_tree.
// Native views carry app_id; XWayland views carry window_properties.
func parseSwayTree(data []byte) (*window.WindowInfo, error) {
	var root swayNode
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parsing sway tree: %w", err)
	}

	node := root.focused()
	if node == nil || node.PID == 0 {
		// A focused workspace or output means no view has focus.
		return nil, window.ErrNoWindow
	}

	app := node.AppID
	if app == "" {
		app = node.WindowProperties.Class
	}
	if app == "" {
		app = node.WindowProperties.Instance
	}
	return &window.WindowInfo{
		AppName:     app,
		WindowTitle: node.Name,
		PID:         node.PID,
	}, nil
}

type hyprlandWindow struct {
	Class        string `json:"class"`
	InitialClass string `json:"initialClass"`
	Title        string `json:"title"`
	PID          int    `json:"pid"`
}

// parseHyprlandWindow reads the output of hyprctl activewindow -j, which is
// an empty object when nothing has focus.
func parseHyprlandWindow(data []byte) (*window.WindowInfo, error) {
	if strings.TrimSpace(string(data)) == "" {
		return nil, window.ErrNoWindow
	}

	var w hyprlandWindow
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("parsing hyprland window: %w", err)
	}

	app := w.Class
	if app == "" {
		app = w.InitialClass
	}
	if app == "" && w.PID <= 0 {
		return nil, window.ErrNoWindow
	}
	pid := w.PID
	if pid < 0 {
		pid = 0
	}
	return &window.WindowInfo{
		AppName:     app,
		WindowTitle: w.Title,
		PID:         pid,
	}, nil
}

// GetIdleInfo uses logind hints. Wayland offers no portable idle query, so
// idle time is reported only when the session manager tracks it.
func (d *Detector) GetIdleInfo(threshold time.Duration) (*window.IdleInfo, error) {
	hints, err := d.session()
	if err != nil {
		hints = common.SessionHints{}
	}

	locked := hints.Locked || d.lockerRunning()
	return window.NewIdleInfo(hints.IdleFor(d.now()), threshold, locked), nil
}

func (d *Detector) Close() error {
	return nil
}
