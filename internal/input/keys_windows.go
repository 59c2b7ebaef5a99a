//go:build windows

package input

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32 = windows.NewLazySystemDLL("user32.dll")

	procSendInput        = user32.NewProc("SendInput")
	procMapVirtualKeyW   = user32.NewProc("MapVirtualKeyW")
	procGetAsyncKeyState = user32.NewProc("GetAsyncKeyState")
)

const (
	inputKeyboard     = 1
	keyeventfKeyUp    = 0x0002
	keyeventfScancode = 0x0008
	mapvkVKToVSC      = 0
)

type keyboardInput struct {
	WVK         uint16
	WScan       uint16
	DwFlags     uint32
	Time        uint32
	DwExtraInfo uintptr
}

// input mirrors INPUT on 64-bit Windows: the union is sized for MOUSEINPUT.
type input struct {
	Type  uint32
	_pad1 uint32
	Ki    keyboardInput
	_pad2 uint64
}

type sendInputInjector struct{}

// NewInjector returns the SendInput injector.
func NewInjector() Injector { return sendInputInjector{} }

// Send submits all events in one SendInput call so no physical key press can
// interleave with the chord.
func (sendInputInjector) Send(events []KeyEvent) error {
	if len(events) == 0 {
		return nil
	}
	ins := make([]input, len(events))
	for i, ev := range events {
		ki := keyboardInput{WVK: ev.VK}
		if ev.Scan != 0 {
			ki = keyboardInput{WScan: ev.Scan, DwFlags: keyeventfScancode}
		} else if sc, _, _ := procMapVirtualKeyW.Call(uintptr(ev.VK), mapvkVKToVSC); sc != 0 {
			ki.WScan = uint16(sc)
		}
		if ev.Up {
			ki.DwFlags |= keyeventfKeyUp
		}
		ins[i] = input{Type: inputKeyboard, Ki: ki}
	}

	n, _, err := procSendInput.Call(
		uintptr(len(ins)),
		uintptr(unsafe.Pointer(&ins[0])),
		unsafe.Sizeof(input{}),
	)
	if int(n) != len(ins) {
		return fmt.Errorf("%w: %d of %d events sent: %v", ErrInjection, n, len(ins), err)
	}
	return nil
}

func keyDown(vk uint16) bool {
	r, _, _ := procGetAsyncKeyState.Call(uintptr(vk))
	return r&0x8000 != 0
}
