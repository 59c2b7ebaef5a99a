//go:build !windows

package terminal

// unsupportedSystem has no windows. Classification then always yields
// ClassOther, so the hotkey path passes everything through.
type unsupportedSystem struct{}

// NewSystem returns the OS window table.
func NewSystem() System { return unsupportedSystem{} }

func (unsupportedSystem) Windows() ([]Window, error) { return nil, ErrUnsupported }
func (unsupportedSystem) Describe(Handle) (Window, bool) { return Window{}, false }
func (unsupportedSystem) Foreground() Handle { return 0 }
func (unsupportedSystem) Activate(Handle) error { return ErrUnsupported }

// SetTopmost is not supported here.
func SetTopmost(Handle, bool) error { return ErrUnsupported }
