//go:build windows

package terminal

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"unsafe"

	"github.com/Gaurav-Gosain/mojibridge/internal/pool"
	"golang.org/x/sys/windows"
)

var (
	user32 = windows.NewLazySystemDLL("user32.dll")

	procEnumWindows              = user32.NewProc("EnumWindows")
	procIsWindow                 = user32.NewProc("IsWindow")
	procIsWindowVisible          = user32.NewProc("IsWindowVisible")
	procIsIconic                 = user32.NewProc("IsIconic")
	procGetWindowTextW           = user32.NewProc("GetWindowTextW")
	procGetWindowTextLengthW     = user32.NewProc("GetWindowTextLengthW")
	procGetWindowThreadProcessId = user32.NewProc("GetWindowThreadProcessId")
	procGetForegroundWindow      = user32.NewProc("GetForegroundWindow")
	procSetForegroundWindow      = user32.NewProc("SetForegroundWindow")
	procBringWindowToTop         = user32.NewProc("BringWindowToTop")
	procShowWindow               = user32.NewProc("ShowWindow")
	procAttachThreadInput        = user32.NewProc("AttachThreadInput")
	procSetWindowPos             = user32.NewProc("SetWindowPos")
)

const (
	swRestore                      = 9
	processQueryLimitedInformation = 0x1000

	hwndTopmost   = ^uintptr(0)     // -1
	hwndNoTopmost = ^uintptr(0) - 1 // -2
	swpNoSize     = 0x0001
	swpNoMove     = 0x0002
	swpNoActivate = 0x0010
)

// win32System reads the window table with user32.
type win32System struct{}

// NewSystem returns the OS window table.
func NewSystem() System { return win32System{} }

// Callbacks are never freed by the runtime, so one is shared by all
// enumerations.
var (
	enumMu     sync.Mutex
	enumOut    []Handle
	enumWindow = windows.NewCallback(func(h uintptr, _ uintptr) uintptr {
		if isWindowVisible(h) {
			enumOut = append(enumOut, Handle(h))
		}
		return 1
	})
)

func (win32System) Windows() ([]Window, error) {
	enumMu.Lock()
	enumOut = enumOut[:0]
	r, _, err := procEnumWindows.Call(enumWindow, 0)
	hwnds := append([]Handle(nil), enumOut...)
	enumMu.Unlock()
	if r == 0 {
		return nil, fmt.Errorf("EnumWindows: %w", err)
	}

	out := make([]Window, 0, len(hwnds))
	for _, h := range hwnds {
		w := describe(h)
		if w.Title == "" {
			continue
		}
		out = append(out, w)
	}
	return out, nil
}

func (win32System) Describe(h Handle) (Window, bool) {
	if h == 0 {
		return Window{}, false
	}
	if r, _, _ := procIsWindow.Call(uintptr(h)); r == 0 {
		return Window{}, false
	}
	w := describe(h)
	return w, w.PID != 0
}

func (win32System) Foreground() Handle {
	r, _, _ := procGetForegroundWindow.Call()
	return Handle(r)
}

// Activate restores a minimised window and brings it forward. When the
// foreground lock denies the plain call, input is briefly attached to the
// current foreground thread and the call is retried.
func (win32System) Activate(h Handle) error {
	if r, _, _ := procIsIconic.Call(uintptr(h)); r != 0 {
		procShowWindow.Call(uintptr(h), swRestore)
	}
	if r, _, _ := procSetForegroundWindow.Call(uintptr(h)); r != 0 {
		return nil
	}

	// AttachThreadInput binds the calling OS thread
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	fg, _, _ := procGetForegroundWindow.Call()
	fgThread, _, _ := procGetWindowThreadProcessId.Call(fg, 0)
	self := windows.GetCurrentThreadId()
	if fgThread != 0 && uint32(fgThread) != self {
		procAttachThreadInput.Call(uintptr(self), fgThread, 1)
		defer procAttachThreadInput.Call(uintptr(self), fgThread, 0)
	}
	procBringWindowToTop.Call(uintptr(h))
	if r, _, _ := procSetForegroundWindow.Call(uintptr(h)); r == 0 {
		return fmt.Errorf("SetForegroundWindow %s: %w", h, ErrActivate)
	}
	return nil
}

func isWindowVisible(h uintptr) bool {
	r, _, _ := procIsWindowVisible.Call(h)
	return r != 0
}

func describe(h Handle) Window {
	var pid uint32
	procGetWindowThreadProcessId.Call(uintptr(h), uintptr(unsafe.Pointer(&pid)))
	return Window{
		Handle: h,
		PID:    int32(pid),
		Title:  strings.TrimSpace(windowText(h)),
		Exe:    processExeBase(pid),
	}
}

func windowText(h Handle) string {
	l, _, _ := procGetWindowTextLengthW.Call(uintptr(h))
	length := int(l)
	if length == 0 {
		return ""
	}

	buf := pool.GetWindowText(length + 1)
	defer pool.PutWindowText(buf)

	n, _, _ := procGetWindowTextW.Call(
		uintptr(h),
		uintptr(unsafe.Pointer(&(*buf)[0])),
		uintptr(length+1),
	)
	return windows.UTF16ToString((*buf)[:n])
}

func processExeBase(pid uint32) string {
	if pid == 0 {
		return ""
	}
	ph, err := windows.OpenProcess(processQueryLimitedInformation, false, pid)
	if err != nil {
		return ""
	}
	defer windows.CloseHandle(ph)

	buf := pool.GetPath(pool.PathSize)
	defer pool.PutPath(buf)

	size := uint32(len(*buf))
	if err := windows.QueryFullProcessImageName(ph, 0, &(*buf)[0], &size); err != nil || size == 0 {
		return ""
	}
	return filepath.Base(windows.UTF16ToString((*buf)[:size]))
}

// SetTopmost pins h above non-topmost windows, or unpins it.
func SetTopmost(h Handle, on bool) error {
	after := hwndNoTopmost
	if on {
		after = hwndTopmost
	}
	r, _, err := procSetWindowPos.Call(uintptr(h), after, 0, 0, 0, 0, swpNoMove|swpNoSize|swpNoActivate)
	if r == 0 {
		return fmt.Errorf("SetWindowPos %s: %w", h, err)
	}
	return nil
}
