//go:build unix

package singleton

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Gaurav-Gosain/mojibridge/internal/session"
)

func TestConcurrentLaunchesOverSocket(t *testing.T) {
	dir, err := os.MkdirTemp("", "mb")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	ep := &session.SocketEndpoint{Path: filepath.Join(dir, "b.sock")}
	h := &recordingHandler{}

	const n = 6
	results := make([]Result, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g := New(ep, &fakeBridges{}, nil)
			g.Delay = 10 * time.Millisecond
			res, err := g.AcquireOrForward(context.Background(), session.AttachPayload{Window: uint64(i + 1)})
			if err != nil {
				t.Errorf("launch %d: %v", i, err)
				return
			}
			if res.Outcome == Owner {
				serve(t, res.Listener, h)
			}
			results[i] = res
		}()
	}
	wg.Wait()

	owners := 0
	for _, r := range results {
		if r.Outcome == Owner && r.Listener != nil {
			owners++
		}
	}
	if owners != 1 {
		t.Fatalf("%d owners, want 1", owners)
	}
	if got := h.count(); got != n-1 {
		t.Errorf("owner received %d attaches, want %d", got, n-1)
	}
}
