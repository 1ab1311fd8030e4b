//go:build windows

package window

import (
	"image"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32                = windows.NewLazySystemDLL("user32.dll")
	procFindWindowW       = user32.NewProc("FindWindowW")
	procGetForeground     = user32.NewProc("GetForegroundWindow")
	procGetClientRect     = user32.NewProc("GetClientRect")
	procClientToScreen    = user32.NewProc("ClientToScreen")
	procSetForeground     = user32.NewProc("SetForegroundWindow")
	procSetThreadDPIAware = user32.NewProc("SetProcessDpiAwarenessContext")
)

type winRect struct {
	Left, Top, Right, Bottom int32
}

type winPoint struct {
	X, Y int32
}

// TitleOracle locates the game window by its exact title.
type TitleOracle struct {
	Title string
}

func NewOracle(title string) *TitleOracle {
	return &TitleOracle{Title: title}
}

func (o *TitleOracle) findWindow() uintptr {
	title, err := syscall.UTF16PtrFromString(o.Title)
	if err != nil {
		return 0
	}
	hwnd, _, _ := procFindWindowW.Call(0, uintptr(unsafe.Pointer(title)))
	return hwnd
}

func (o *TitleOracle) IsGameFocused() bool {
	hwnd := o.findWindow()
	if hwnd == 0 {
		return false
	}
	fg, _, _ := procGetForeground.Call()
	return fg == hwnd
}

func (o *TitleOracle) GameRect() (image.Rectangle, bool) {
	hwnd := o.findWindow()
	if hwnd == 0 {
		return image.Rectangle{}, false
	}

	var rc winRect
	ok, _, _ := procGetClientRect.Call(hwnd, uintptr(unsafe.Pointer(&rc)))
	if ok == 0 {
		return image.Rectangle{}, false
	}

	origin := winPoint{}
	procClientToScreen.Call(hwnd, uintptr(unsafe.Pointer(&origin)))

	w := int(rc.Right - rc.Left)
	h := int(rc.Bottom - rc.Top)
	if w <= 0 || h <= 0 {
		return image.Rectangle{}, false
	}
	return image.Rect(int(origin.X), int(origin.Y), int(origin.X)+w, int(origin.Y)+h), true
}

// Focus brings the game window to the foreground.
func (o *TitleOracle) Focus() bool {
	hwnd := o.findWindow()
	if hwnd == 0 {
		return false
	}
	ok, _, _ := procSetForeground.Call(hwnd)
	return ok != 0
}

// EnableDPIAwareness opts the process into per-monitor DPI awareness so
// captured pixels line up with physical screen coordinates.
func EnableDPIAwareness() {
	// DPI_AWARENESS_CONTEXT_PER_MONITOR_AWARE_V2
	const ctx = ^uintptr(3) // (DPI_AWARENESS_CONTEXT)-4
	procSetThreadDPIAware.Call(ctx)
}
