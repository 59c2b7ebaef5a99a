//go:build unix

package session

import (
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestSocketEndpointSingleClaim(t *testing.T) {
	ep := &SocketEndpoint{Path: filepath.Join(t.TempDir(), "b.sock")}

	const n = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		listeners []net.Listener
		inUse     int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l, err := ep.Listen()
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				listeners = append(listeners, l)
			case errors.Is(err, ErrInUse):
				inUse++
			default:
				t.Errorf("Listen failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if len(listeners) != 1 || inUse != n-1 {
		t.Fatalf("got %d owners and %d in-use, want 1 and %d", len(listeners), inUse, n-1)
	}
	_ = listeners[0].Close()
}

func TestSocketEndpointReclaimsStale(t *testing.T) {
	path := filepath.Join(t.TempDir(), "b.sock")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	ep := &SocketEndpoint{Path: path}
	l, err := ep.Listen()
	if err != nil {
		t.Fatalf("Listen over stale socket failed: %v", err)
	}
	defer l.Close()

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Mode()&os.ModeSocket == 0 {
		t.Error("stale file was not replaced by a socket")
	}
}
