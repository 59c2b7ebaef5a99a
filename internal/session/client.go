package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotRunning means no bridge answered on the endpoint.
var ErrNotRunning = errors.New("no running bridge")

// Client talks to a running bridge. Requests are serialised.
type Client struct {
	conn    net.Conn
	mu      sync.Mutex
	timeout time.Duration

	// Welcome is the bridge's answer to the handshake.
	Welcome WelcomePayload
}

// Dial connects to the endpoint and performs the hello/welcome handshake.
func Dial(ctx context.Context, ep Endpoint) (*Client, error) {
	conn, err := ep.Dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotRunning, err)
	}

	c := &Client{conn: conn, timeout: 5 * time.Second}
	if deadline, ok := ctx.Deadline(); ok {
		c.timeout = time.Until(deadline)
	}

	resp, err := c.roundTrip(MsgHello, &HelloPayload{
		Version:  ProtocolVersion,
		PID:      os.Getpid(),
		ClientID: uuid.NewString(),
	}, MsgWelcome)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := resp.ParsePayload(&c.Welcome); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to parse welcome: %w", err)
	}
	return c, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Attach forwards a terminal to the bridge.
func (c *Client) Attach(req AttachPayload) (*AttachedPayload, error) {
	resp, err := c.roundTrip(MsgAttach, &req, MsgAttached)
	if err != nil {
		return nil, err
	}
	var out AttachedPayload
	if err := resp.ParsePayload(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// List returns the bridge's tracked sessions.
func (c *Client) List() ([]SessionInfo, error) {
	resp, err := c.roundTrip(MsgList, nil, MsgSessionList)
	if err != nil {
		return nil, err
	}
	var out SessionListPayload
	if err := resp.ParsePayload(&out); err != nil {
		return nil, err
	}
	return out.Sessions, nil
}

// Stop asks the bridge to exit.
func (c *Client) Stop() error {
	_, err := c.roundTrip(MsgStop, nil, MsgStopped)
	return err
}

// Ping checks the bridge is responsive.
func (c *Client) Ping() error {
	_, err := c.roundTrip(MsgPing, nil, MsgPong)
	return err
}

func (c *Client) roundTrip(t MessageType, payload any, want MessageType) (*Message, error) {
	msg, err := NewMessage(t, payload)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.conn.SetDeadline(time.Now().Add(c.timeout))
	if err := WriteMessage(c.conn, msg); err != nil {
		return nil, fmt.Errorf("send %s: %w", t, err)
	}
	resp, err := ReadMessage(c.conn)
	if err != nil {
		return nil, fmt.Errorf("read %s reply: %w", t, err)
	}

	switch resp.Type {
	case want:
		return resp, nil
	case MsgError:
		var e ErrorPayload
		if err := resp.ParsePayload(&e); err != nil {
			return nil, err
		}
		return nil, &Error{Code: e.Code, Message: e.Message}
	default:
		return nil, fmt.Errorf("expected %s, got %s", want, resp.Type)
	}
}

// IsRunning reports whether a bridge answers a ping on ep.
func IsRunning(ep Endpoint) bool {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	c, err := Dial(ctx, ep)
	if err != nil {
		return false
	}
	defer c.Close()
	return c.Ping() == nil
}
