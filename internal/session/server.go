package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// Handler answers requests on behalf of the running bridge. Calls may come
// from several connections at once.
type Handler interface {
	Welcome() WelcomePayload
	Attach(ctx context.Context, req AttachPayload) (AttachedPayload, error)
	Sessions(ctx context.Context) ([]SessionInfo, error)
	Stop(ctx context.Context) error
}

const (
	idleTimeout  = 10 * time.Second
	writeTimeout = 5 * time.Second
)

// Server accepts connections from later launches.
type Server struct {
	listener net.Listener
	handler  Handler
	log      *log.Logger

	ctx    context.Context
	cancel context.CancelFunc

	clients   map[string]*connState
	clientsMu sync.RWMutex
	wg        sync.WaitGroup
}

type connState struct {
	conn     net.Conn
	clientID string
	sendMu   sync.Mutex
}

// NewServer serves h on l. The server owns l from now on.
func NewServer(l net.Listener, h Handler, logger *log.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Server{
		listener: l,
		handler:  h,
		log:      logger,
		ctx:      ctx,
		cancel:   cancel,
		clients:  make(map[string]*connState),
	}
}

// Serve accepts connections until ctx is done or Close is called.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.ctx.Done():
		}
	}()

	s.log.Info("instance endpoint listening", "addr", s.listener.Addr())
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				s.wg.Wait()
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				return nil
			}
			s.log.Warn("accept error", "err", err)
			continue
		}
		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

// Close stops accepting and drops open connections.
func (s *Server) Close() {
	s.cancel()
	_ = s.listener.Close()

	s.clientsMu.Lock()
	for _, cs := range s.clients {
		_ = cs.conn.Close()
	}
	s.clientsMu.Unlock()
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()

	cs := &connState{conn: conn, clientID: uuid.NewString()}
	s.clientsMu.Lock()
	s.clients[cs.clientID] = cs
	s.clientsMu.Unlock()

	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, cs.clientID)
		s.clientsMu.Unlock()
		_ = conn.Close()
	}()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(idleTimeout))
		msg, err := ReadMessage(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.log.Debug("client read ended", "client", cs.clientID, "err", err)
			}
			return
		}

		if err := s.handleMessage(cs, msg); err != nil {
			s.log.Warn("request failed", "client", cs.clientID, "type", msg.Type, "err", err)
			if sendErr := s.sendError(cs, CodeOf(err), err.Error()); sendErr != nil {
				return
			}
		}
		if msg.Type == MsgStop {
			return
		}
	}
}

func (s *Server) handleMessage(cs *connState, msg *Message) error {
	switch msg.Type {
	case MsgHello:
		return s.handleHello(cs, msg)
	case MsgAttach:
		return s.handleAttach(cs, msg)
	case MsgList:
		return s.handleList(cs)
	case MsgStop:
		return s.handleStop(cs)
	case MsgPing:
		return s.sendMessage(cs, MsgPong, nil)
	default:
		return NewError(ErrCodeUnknownMessage, "unknown message type: %d", msg.Type)
	}
}

func (s *Server) handleHello(cs *connState, msg *Message) error {
	var hello HelloPayload
	if err := msg.ParsePayload(&hello); err != nil {
		return err
	}
	if hello.Version != ProtocolVersion {
		return NewError(ErrCodeVersion, "protocol version %d, bridge speaks %d", hello.Version, ProtocolVersion)
	}
	s.log.Debug("client hello", "client", cs.clientID, "pid", hello.PID)
	return s.sendMessage(cs, MsgWelcome, s.handler.Welcome())
}

func (s *Server) handleAttach(cs *connState, msg *Message) error {
	var req AttachPayload
	if err := msg.ParsePayload(&req); err != nil {
		return err
	}
	resp, err := s.handler.Attach(s.ctx, req)
	if err != nil {
		return err
	}
	return s.sendMessage(cs, MsgAttached, &resp)
}

func (s *Server) handleList(cs *connState) error {
	sessions, err := s.handler.Sessions(s.ctx)
	if err != nil {
		return err
	}
	return s.sendMessage(cs, MsgSessionList, &SessionListPayload{Sessions: sessions})
}

func (s *Server) handleStop(cs *connState) error {
	if err := s.sendMessage(cs, MsgStopped, nil); err != nil {
		return err
	}
	return s.handler.Stop(s.ctx)
}

func (s *Server) sendMessage(cs *connState, t MessageType, payload any) error {
	msg, err := NewMessage(t, payload)
	if err != nil {
		return err
	}

	cs.sendMu.Lock()
	defer cs.sendMu.Unlock()

	_ = cs.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := WriteMessage(cs.conn, msg); err != nil {
		return fmt.Errorf("send %s: %w", t, err)
	}
	return nil
}

func (s *Server) sendError(cs *connState, code int, message string) error {
	return s.sendMessage(cs, MsgError, &ErrorPayload{Code: code, Message: message})
}
