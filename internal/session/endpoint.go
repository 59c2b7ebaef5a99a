package session

import (
	"context"
	"errors"
	"net"
)

// ErrInUse means a live bridge already holds the endpoint.
var ErrInUse = errors.New("instance endpoint in use")

// Endpoint is the rendezvous point of the running bridge. Listen claims it
// atomically: of several concurrent callers, exactly one succeeds and the
// rest get ErrInUse. A claim left behind by a dead process is reclaimed.
type Endpoint interface {
	Listen() (net.Listener, error)
	Dial(ctx context.Context) (net.Conn, error)
	String() string
}
