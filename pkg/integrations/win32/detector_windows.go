//go:build windows

package win32

import (
	"fmt"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"

	"focusguard/pkg/integrations/procinfo"
	"focusguard/pkg/window"
)

var (
	user32   = windows.NewLazySystemDLL("user32.dll")
	kernel32 = windows.NewLazySystemDLL("kernel32.dll")

	procGetWindowTextW       = user32.NewProc("GetWindowTextW")
	procGetWindowTextLengthW = user32.NewProc("GetWindowTextLengthW")
	procGetLastInputInfo     = user32.NewProc("GetLastInputInfo")
	procGetTickCount         = kernel32.NewProc("GetTickCount")
)

type lastInputInfo struct {
	cbSize uint32
	dwTime uint32
}

// Detector implements window.Detector for Windows
type Detector struct{}

func NewDetector() *Detector {
	return &Detector{}
}

func (d *Detector) GetFocusedWindow() (*window.WindowInfo, error) {
	hwnd := windows.GetForegroundWindow()
	if hwnd == 0 {
		return nil, window.ErrNoWindow
	}

	var pid uint32
	if _, err := windows.GetWindowThreadProcessId(hwnd, &pid); err != nil {
		return nil, fmt.Errorf("reading window process: %w", err)
	}

	info := &window.WindowInfo{
		WindowTitle:   windowText(hwnd),
		PID:           int(pid),
		DisplayServer: "windows",
	}
	if image, err := processImage(pid); err == nil {
		info.AppName = imageName(image)
	}
	if proc, err := procinfo.Lookup(int(pid)); err == nil {
		info.ProcessName = proc.Description()
	}
	if info.Identity() == "" {
		return nil, window.ErrNoWindow
	}
	return info, nil
}

func windowText(hwnd windows.HWND) string {
	length, _, _ := procGetWindowTextLengthW.Call(uintptr(hwnd))
	if length == 0 {
		return ""
	}
	buf := make([]uint16, length+1)
	procGetWindowTextW.Call(uintptr(hwnd), uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	return windows.UTF16ToString(buf)
}

func processImage(pid uint32) (string, error) {
	handle, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, pid)
	if err != nil {
		return "", err
	}
	defer windows.CloseHandle(handle)

	buf := make([]uint16, windows.MAX_PATH)
	size := uint32(len(buf))
	if err := windows.QueryFullProcessImageName(handle, 0, &buf[0], &size); err != nil {
		return "", err
	}
	return windows.UTF16ToString(buf[:size]), nil
}

func (d *Detector) GetIdleInfo(threshold time.Duration) (*window.IdleInfo, error) {
	info := lastInputInfo{cbSize: uint32(unsafe.Sizeof(lastInputInfo{}))}
	if ok, _, err := procGetLastInputInfo.Call(uintptr(unsafe.Pointer(&info))); ok == 0 {
		return nil, fmt.Errorf("GetLastInputInfo: %w", err)
	}
	now, _, _ := procGetTickCount.Call()
	idle := time.Duration(idleSince(uint32(now), info.dwTime)) * time.Millisecond

	return window.NewIdleInfo(idle, threshold, d.isLocked()), nil
}

func (d *Detector) isLocked() bool {
	hwnd := windows.GetForegroundWindow()
	if hwnd == 0 {
		return false
	}
	var pid uint32
	if _, err := windows.GetWindowThreadProcessId(hwnd, &pid); err != nil {
		return false
	}
	image, err := processImage(pid)
	return err == nil && isLockScreen(imageName(image))
}

func (d *Detector) IsAvailable() bool {
	return user32.Load() == nil
}

func (d *Detector) GetDisplayServer() string {
	return "windows"
}

func (d *Detector) Close() error {
	return nil
}
