package app

import "errors"

// Submission and arbitration errors. All but ErrDuplicateInstance are shown
// to the user as transient status text; hotkey-path errors are only logged.
var (
	ErrEmpty                = errors.New("nothing to send")
	ErrNoTarget             = errors.New("no terminal to return to")
	ErrFocusRejected        = errors.New("terminal did not take focus")
	ErrClipboardUnavailable = errors.New("clipboard unavailable")
	ErrInjectionFailed      = errors.New("key injection failed")

	// ErrDuplicateInstance is benign: a younger bridge yields to an older
	// one and exits.
	ErrDuplicateInstance = errors.New("another bridge instance is running")

	// ErrStopped is returned to callers whose request reached a stopped
	// coordinator.
	ErrStopped = errors.New("bridge stopped")
)
