//go:build windows

package session

import (
	"context"
	"net"
	"os"
	"strings"
	"time"

	winio "github.com/Microsoft/go-winio"
)

// PipeEndpoint is a named pipe. The first pipe instance is created
// exclusively, so a second Listen fails while the owner lives and succeeds
// as soon as it exits.
type PipeEndpoint struct {
	Name string
}

// DefaultEndpoint returns the per-user pipe.
func DefaultEndpoint() (Endpoint, error) {
	user := strings.Map(func(r rune) rune {
		if r == '\\' || r == '/' || r == ' ' {
			return '_'
		}
		return r
	}, os.Getenv("USERNAME"))
	return &PipeEndpoint{Name: `\\.\pipe\mojibridge-` + user}, nil
}

func (e *PipeEndpoint) String() string { return e.Name }

// Listen implements Endpoint.
func (e *PipeEndpoint) Listen() (net.Listener, error) {
	l, err := winio.ListenPipe(e.Name, &winio.PipeConfig{
		// Owner only.
		SecurityDescriptor: "D:P(A;;GA;;;OW)",
	})
	if err == nil {
		return l, nil
	}
	timeout := 200 * time.Millisecond
	if conn, dialErr := winio.DialPipe(e.Name, &timeout); dialErr == nil {
		_ = conn.Close()
		return nil, ErrInUse
	}
	return nil, err
}

// Dial implements Endpoint.
func (e *PipeEndpoint) Dial(ctx context.Context) (net.Conn, error) {
	return winio.DialPipeContext(ctx, e.Name)
}
