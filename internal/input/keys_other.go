//go:build !windows

package input

type unsupportedInjector struct{}

// NewInjector returns an injector that always fails with ErrUnsupported.
func NewInjector() Injector { return unsupportedInjector{} }

func (unsupportedInjector) Send([]KeyEvent) error { return ErrUnsupported }
