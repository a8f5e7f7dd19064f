// Package x11 detects the focused window and idle state on an X server.
package x11

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/screensaver"
	"github.com/jezek/xgb/xproto"

	"focusguard/pkg/integrations/common"
	"focusguard/pkg/integrations/procinfo"
	"focusguard/pkg/window"
)

// MIT-SCREEN-SAVER state while the saver is active.
const stateOn = 1

var atomNames = []string{
	"_NET_ACTIVE_WINDOW",
	"_NET_WM_NAME",
	"_NET_WM_PID",
	"WM_NAME",
	"WM_CLASS",
	"UTF8_STRING",
}

// Detector reads the focused window through EWMH properties and idle time
// through the MIT-SCREEN-SAVER extension.
type Detector struct {
	mu          sync.Mutex
	conn        *xgb.Conn
	root        xproto.Window
	atoms       map[string]xproto.Atom
	screensaver bool

	lockerRunning func() bool
	session       func() (common.SessionHints, error)
}

func NewDetector() *Detector {
	return &Detector{
		lockerRunning: func() bool { return common.LockerRunning(common.X11Lockers) },
		session:       common.QuerySession,
	}
}

// connect opens the X connection on first use. Callers hold d.mu.
func (d *Detector) connect() error {
	if d.conn != nil {
		return nil
	}

	conn, err := xgb.NewConn()
	if err != nil {
		return fmt.Errorf("connecting to X server: %w", err)
	}

	atoms := make(map[string]xproto.Atom, len(atomNames))
	for _, name := range atomNames {
		reply, err := xproto.InternAtom(conn, false, uint16(len(name)), name).Reply()
		if err != nil {
			conn.Close()
			return fmt.Errorf("interning %s: %w", name, err)
		}
		atoms[name] = reply.Atom
	}

	d.conn = conn
	d.root = xproto.Setup(conn).DefaultScreen(conn).Root
	d.atoms = atoms
	d.screensaver = screensaver.Init(conn) == nil
	return nil
}

// reset drops a connection that returned an error so the next call
// reconnects. Callers hold d.mu.
func (d *Detector) reset() {
	if d.conn != nil {
		d.conn.Close()
		d.conn = nil
	}
}

func (d *Detector) GetFocusedWindow() (*window.WindowInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.connect(); err != nil {
		return nil, err
	}

	win, err := d.activeWindow()
	if err != nil {
		return nil, err
	}
	if win == 0 {
		return nil, window.ErrNoWindow
	}

	instance, class := parseWMClass(d.property(win, d.atoms["WM_CLASS"], xproto.AtomString, 256))
	info := &window.WindowInfo{
		AppName:       class,
		WindowTitle:   d.windowName(win),
		PID:           int(decodeCardinal(d.property(win, d.atoms["_NET_WM_PID"], xproto.AtomCardinal, 1))),
		DisplayServer: "x11",
	}
	if info.AppName == "" {
		info.AppName = instance
	}
	if info.PID > 0 {
		if proc, err := procinfo.Lookup(info.PID); err == nil {
			info.ProcessName = proc.Description()
		}
	}
	if info.AppName == "" && info.ProcessName == "" {
		return nil, window.ErrNoWindow
	}
	return info, nil
}

// activeWindow prefers _NET_ACTIVE_WINDOW and falls back to the input focus
// walked up to its top-level parent.
func (d *Detector) activeWindow() (xproto.Window, error) {
	reply, err := xproto.GetProperty(d.conn, false, d.root, d.atoms["_NET_ACTIVE_WINDOW"], xproto.AtomWindow, 0, 1).Reply()
	if err != nil {
		d.reset()
		return 0, fmt.Errorf("reading active window: %w", err)
	}
	if win := xproto.Window(decodeCardinal(reply.Value)); win != 0 {
		return win, nil
	}

	focus, err := xproto.GetInputFocus(d.conn).Reply()
	if err != nil {
		d.reset()
		return 0, fmt.Errorf("reading input focus: %w", err)
	}
	if focus.Focus == 0 || focus.Focus == d.root {
		return 0, nil
	}
	return d.topLevel(focus.Focus), nil
}

func (d *Detector) topLevel(win xproto.Window) xproto.Window {
	for {
		tree, err := xproto.QueryTree(d.conn, win).Reply()
		if err != nil || tree.Parent == d.root || tree.Parent == 0 {
			return win
		}
		win = tree.Parent
	}
}

func (d *Detector) property(win xproto.Window, atom, typ xproto.Atom, length uint32) []byte {
	reply, err := xproto.GetProperty(d.conn, false, win, atom, typ, 0, length).Reply()
	if err != nil {
		return nil
	}
	return reply.Value
}

func (d *Detector) windowName(win xproto.Window) string {
	if name := trimName(d.property(win, d.atoms["_NET_WM_NAME"], d.atoms["UTF8_STRING"], 256)); name != "" {
		return name
	}
	return trimName(d.property(win, d.atoms["WM_NAME"], xproto.AtomString, 256))
}

func (d *Detector) GetIdleInfo(threshold time.Duration) (*window.IdleInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.connect(); err != nil {
		return nil, err
	}

	var (
		idle   time.Duration
		locked bool
	)
	if d.screensaver {
		reply, err := screensaver.QueryInfo(d.conn, xproto.Drawable(d.root)).Reply()
		if err != nil {
			d.reset()
			return nil, fmt.Errorf("querying screensaver: %w", err)
		}
		idle = time.Duration(reply.MsSinceUserInput) * time.Millisecond
		locked = reply.State == stateOn
	} else if hints, err := d.session(); err == nil {
		idle = hints.IdleFor(time.Now())
	}

	if !locked {
		locked = d.isLocked()
	}
	return window.NewIdleInfo(idle, threshold, locked), nil
}

func (d *Detector) isLocked() bool {
	if d.lockerRunning() {
		return true
	}
	hints, err := d.session()
	return err == nil && hints.Locked
}

func (d *Detector) IsAvailable() bool {
	if os.Getenv("DISPLAY") == "" {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connect() == nil
}

func (d *Detector) GetDisplayServer() string {
	return "x11"
}

func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reset()
	return nil
}

// parseWMClass splits a WM_CLASS value into its instance and class parts.
func parseWMClass(data []byte) (instance, class string) {
	parts := strings.Split(string(bytes.TrimRight(data, "\x00")), "\x00")
	instance = strings.TrimSpace(parts[0])
	if len(parts) > 1 {
		class = strings.TrimSpace(parts[1])
	}
	return instance, class
}

// decodeCardinal reads the first 32-bit value of a property, zero when the
// property is shorter.
func decodeCardinal(data []byte) uint32 {
	if len(data) < 4 {
		return 0
	}
	return xgb.Get32(data)
}

func trimName(data []byte) string {
	return strings.TrimSpace(string(bytes.TrimRight(data, "\x00")))
}
