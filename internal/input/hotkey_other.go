//go:build !windows

package input

import "context"

// Start fails with ErrUnsupported: there is no global keyboard hook here.
func (l *Listener) Start(ctx context.Context) error { return ErrUnsupported }
