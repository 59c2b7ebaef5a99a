// Package session carries the local IPC between a running bridge and later
// launches: forwarded attaches, session listings and stop requests.
package session

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"
)

// ProtocolVersion is bumped on incompatible message changes.
const ProtocolVersion = 1

// MaxMessageSize bounds a single payload.
const MaxMessageSize = 1 << 20

// MessageType identifies a message on the wire.
type MessageType uint8

const (
	MsgHello MessageType = iota + 1
	MsgWelcome
	MsgAttach
	MsgAttached
	MsgList
	MsgSessionList
	MsgStop
	MsgStopped
	MsgPing
	MsgPong
	MsgError
)

func (t MessageType) String() string {
	switch t {
	case MsgHello:
		return "hello"
	case MsgWelcome:
		return "welcome"
	case MsgAttach:
		return "attach"
	case MsgAttached:
		return "attached"
	case MsgList:
		return "list"
	case MsgSessionList:
		return "session-list"
	case MsgStop:
		return "stop"
	case MsgStopped:
		return "stopped"
	case MsgPing:
		return "ping"
	case MsgPong:
		return "pong"
	case MsgError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// Error codes carried by ErrorPayload.
const (
	ErrCodeInternal = iota + 1
	ErrCodeInvalidPayload
	ErrCodeUnknownMessage
	ErrCodeNotEligible
	ErrCodeWindowGone
	ErrCodeVersion
)

// Message is one framed message. The payload is JSON.
type Message struct {
	Type    MessageType
	Payload []byte
}

// HelloPayload opens a connection.
type HelloPayload struct {
	Version  int    `json:"version"`
	PID      int    `json:"pid"`
	ClientID string `json:"client_id"`
}

// WelcomePayload answers a hello with the running bridge's identity.
type WelcomePayload struct {
	Version   int       `json:"version"`
	PID       int       `json:"pid"`
	Label     string    `json:"label,omitempty"`
	Window    uint64    `json:"window,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// AttachPayload asks the bridge to track a terminal for focus return.
type AttachPayload struct {
	// Window is the terminal handle captured at launch; 0 lets the bridge
	// search ClientPID's ancestry instead.
	Window      uint64 `json:"window,omitempty"`
	WindowPID   int32  `json:"window_pid,omitempty"`
	ClientPID   int32  `json:"client_pid,omitempty"`
	Label       string `json:"label,omitempty"`
	HostSession string `json:"host_session,omitempty"`
	Cwd         string `json:"cwd,omitempty"`
}

// AttachedPayload confirms an attach.
type AttachedPayload struct {
	SessionID   string `json:"session_id"`
	Window      uint64 `json:"window"`
	BridgeLabel string `json:"bridge_label,omitempty"`
}

// SessionInfo describes one tracked terminal.
type SessionInfo struct {
	ID          string    `json:"id"`
	Window      uint64    `json:"window"`
	PID         int32     `json:"pid"`
	ClientPID   int32     `json:"client_pid,omitempty"`
	Label       string    `json:"label,omitempty"`
	HostSession string    `json:"host_session,omitempty"`
	Cwd         string    `json:"cwd,omitempty"`
	Exe         string    `json:"exe,omitempty"`
	Title       string    `json:"title,omitempty"`
	Tracked     bool      `json:"tracked"`
	Origin      bool      `json:"origin"`
	LastActive  time.Time `json:"last_active"`
}

// SessionListPayload answers a list request.
type SessionListPayload struct {
	Sessions []SessionInfo `json:"sessions"`
}

// ErrorPayload reports a failed request.
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error is an ErrorPayload received from, or returned to, a peer.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string { return fmt.Sprintf("bridge error %d: %s", e.Code, e.Message) }

// NewError builds an *Error.
func NewError(code int, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the error code of err, or ErrCodeInternal.
func CodeOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}

// NewMessage encodes payload, which may be nil.
func NewMessage(t MessageType, payload any) (*Message, error) {
	msg := &Message{Type: t}
	if payload == nil {
		return msg, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", t, err)
	}
	msg.Payload = data
	return msg, nil
}

// ParsePayload decodes the payload into v.
func (m *Message) ParsePayload(v any) error {
	if len(m.Payload) == 0 {
		return NewError(ErrCodeInvalidPayload, "%s: empty payload", m.Type)
	}
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return NewError(ErrCodeInvalidPayload, "%s: %v", m.Type, err)
	}
	return nil
}

// WriteMessage writes a 1-byte type, a 4-byte big-endian length and the
// payload.
func WriteMessage(w io.Writer, msg *Message) error {
	if len(msg.Payload) > MaxMessageSize {
		return fmt.Errorf("message too large: %d bytes", len(msg.Payload))
	}
	var header [5]byte
	header[0] = byte(msg.Type)
	binary.BigEndian.PutUint32(header[1:], uint32(len(msg.Payload)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	if len(msg.Payload) == 0 {
		return nil
	}
	_, err := w.Write(msg.Payload)
	return err
}

// ReadMessage reads one message written by WriteMessage.
func ReadMessage(r io.Reader) (*Message, error) {
	var header [5]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(header[1:])
	if size > MaxMessageSize {
		return nil, fmt.Errorf("message too large: %d bytes", size)
	}
	msg := &Message{Type: MessageType(header[0])}
	if size == 0 {
		return msg, nil
	}
	msg.Payload = make([]byte, size)
	if _, err := io.ReadFull(r, msg.Payload); err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	return msg, nil
}
