//go:build unix

package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"golang.org/x/sys/unix"
)

// SocketEndpoint is a unix domain socket. The check-remove-bind sequence runs
// under an flock on a sibling lock file, which the kernel releases if the
// holder dies.
type SocketEndpoint struct {
	Path string
}

// DefaultEndpoint returns the per-user socket under the XDG runtime dir.
func DefaultEndpoint() (Endpoint, error) {
	path, err := xdg.RuntimeFile(filepath.Join("mojibridge", "mojibridge.sock"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve socket path: %w", err)
	}
	return &SocketEndpoint{Path: path}, nil
}

func (e *SocketEndpoint) String() string { return e.Path }

// Listen implements Endpoint.
func (e *SocketEndpoint) Listen() (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(e.Path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create socket directory: %w", err)
	}

	lock, err := os.OpenFile(e.Path+".lock", os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}
	defer lock.Close()
	if err := unix.Flock(int(lock.Fd()), unix.LOCK_EX); err != nil {
		return nil, fmt.Errorf("failed to lock endpoint: %w", err)
	}
	defer func() { _ = unix.Flock(int(lock.Fd()), unix.LOCK_UN) }()

	if _, err := os.Stat(e.Path); err == nil {
		if conn, err := net.DialTimeout("unix", e.Path, 200*time.Millisecond); err == nil {
			_ = conn.Close()
			return nil, ErrInUse
		}
		if err := os.Remove(e.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to remove stale socket: %w", err)
		}
	}

	l, err := net.Listen("unix", e.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on socket: %w", err)
	}
	if err := os.Chmod(e.Path, 0o700); err != nil {
		_ = l.Close()
		return nil, fmt.Errorf("failed to set socket permissions: %w", err)
	}
	return l, nil
}

// Dial implements Endpoint.
func (e *SocketEndpoint) Dial(ctx context.Context) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "unix", e.Path)
}
