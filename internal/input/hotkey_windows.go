//go:build windows

package input

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"github.com/Gaurav-Gosain/mojibridge/internal/config"
	"golang.org/x/sys/windows"
)

var (
	kernel32 = windows.NewLazySystemDLL("kernel32.dll")

	procSetWindowsHookExW   = user32.NewProc("SetWindowsHookExW")
	procUnhookWindowsHookEx = user32.NewProc("UnhookWindowsHookEx")
	procCallNextHookEx      = user32.NewProc("CallNextHookEx")
	procGetMessageW         = user32.NewProc("GetMessageW")
	procPostThreadMessageW  = user32.NewProc("PostThreadMessageW")
	procGetModuleHandleW    = kernel32.NewProc("GetModuleHandleW")
)

const (
	whKeyboardLL  = 13
	hcAction      = 0
	wmKeyDown     = 0x0100
	wmKeyUp       = 0x0101
	wmSysKeyDown  = 0x0104
	wmSysKeyUp    = 0x0105
	wmQuit        = 0x0012
	llkhfInjected = 0x00000010
)

type kbdllhookstruct struct {
	VKCode      uint32
	ScanCode    uint32
	Flags       uint32
	Time        uint32
	DwExtraInfo uintptr
}

type msg struct {
	Hwnd    uintptr
	Message uint32
	WParam  uintptr
	LParam  uintptr
	Time    uint32
	Pt      struct{ X, Y int32 }
}

// One hook per process. The callback is created once since callbacks made
// with NewCallback are never released.
var (
	hookMu     sync.Mutex
	hookActive *Listener
	hookProc   = windows.NewCallback(lowLevelKeyboardProc)
)

var errHookRunning = errors.New("keyboard hook already installed")

func lowLevelKeyboardProc(nCode int, wParam uintptr, lParam uintptr) (ret uintptr) {
	defer func() {
		if r := recover(); r != nil {
			ret, _, _ = procCallNextHookEx.Call(0, uintptr(nCode), wParam, lParam)
		}
	}()

	if nCode == hcAction && handleHookEvent(wParam, lParam) {
		return 1
	}
	ret, _, _ = procCallNextHookEx.Call(0, uintptr(nCode), wParam, lParam)
	return ret
}

func handleHookEvent(wParam, lParam uintptr) bool {
	hookMu.Lock()
	l := hookActive
	hookMu.Unlock()
	if l == nil {
		return false
	}

	kb := (*kbdllhookstruct)(unsafe.Pointer(lParam))
	ev := KeyState{
		VK:       uint16(kb.VKCode),
		Injected: kb.Flags&llkhfInjected != 0,
	}
	switch wParam {
	case wmKeyDown, wmSysKeyDown:
		ev.Down = true
	case wmKeyUp, wmSysKeyUp:
	default:
		return false
	}
	ev.Mods = currentModifiers()
	return l.dispatch(ev)
}

func currentModifiers() (m config.Modifier) {
	if keyDown(vkControl) {
		m |= config.ModCtrl
	}
	if keyDown(vkShift) {
		m |= config.ModShift
	}
	if keyDown(vkMenu) {
		m |= config.ModAlt
	}
	if keyDown(vkLWin) || keyDown(0x5C) {
		m |= config.ModWin
	}
	return m
}

// Start installs the low-level keyboard hook on a dedicated OS thread and
// pumps its messages until ctx is cancelled. It returns once the hook is
// installed or has failed to install.
func (l *Listener) Start(ctx context.Context) error {
	hookMu.Lock()
	if hookActive != nil {
		hookMu.Unlock()
		return errHookRunning
	}
	hookActive = l
	hookMu.Unlock()

	ready := make(chan error, 1)
	go l.pump(ctx, ready)
	return <-ready
}

func (l *Listener) pump(ctx context.Context, ready chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	release := func() {
		hookMu.Lock()
		hookActive = nil
		hookMu.Unlock()
	}

	mod, _, _ := procGetModuleHandleW.Call(0)
	hook, _, err := procSetWindowsHookExW.Call(whKeyboardLL, hookProc, mod, 0)
	if hook == 0 {
		release()
		ready <- fmt.Errorf("SetWindowsHookEx: %w", err)
		return
	}
	tid := windows.GetCurrentThreadId()
	ready <- nil
	l.log.Debug("keyboard hook installed", "thread", tid)

	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			procPostThreadMessageW.Call(uintptr(tid), wmQuit, 0, 0)
		case <-stop:
		}
	}()

	var m msg
	for {
		r, _, _ := procGetMessageW.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
		if int32(r) <= 0 {
			break
		}
	}
	close(stop)
	procUnhookWindowsHookEx.Call(hook)
	release()
	l.log.Debug("keyboard hook removed")
}
