package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"sysaura/internal/logger"
	"sysaura/internal/models"

	"github.com/gorilla/websocket"
)

// ErrStreamClosed is returned by operations on a closed stream.
var ErrStreamClosed = errors.New("stream closed")

const (
	ackTimeout    = 10 * time.Second
	updateBacklog = 64
)

// Update is one metrics push from the collector.
type Update struct {
	SystemID  string
	Timestamp time.Time
	Snapshot  *models.Snapshot
}

type wireMessage struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	SystemID  string          `json:"systemId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Message   string          `json:"message,omitempty"`
	Token     string          `json:"token,omitempty"`
	Request   string          `json:"request,omitempty"`
}

// Stream is an authenticated WebSocket subscription to a collector.
type Stream struct {
	conn *websocket.Conn
	log  logger.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan error
	closed  bool

	updates chan Update
	done    chan struct{}
	err     error
}

// Dial connects to wsURL (ws://host:port/ws), authenticates with token and
// starts reading. Updates are delivered on Updates until the stream closes.
func Dial(ctx context.Context, wsURL, token string, log logger.Logger) (*Stream, error) {
	if log == nil {
		log = logger.Noop()
	}
	dialer := websocket.Dialer{HandshakeTimeout: ackTimeout}
	conn, resp, err := dialer.DialContext(ctx, wsURL, http.Header{})
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", wsURL, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", wsURL, err)
	}

	s := &Stream{
		conn:    conn,
		log:     log,
		pending: make(map[string]chan error),
		updates: make(chan Update, updateBacklog),
		done:    make(chan struct{}),
	}

	if err := s.authenticate(ctx, token); err != nil {
		conn.Close()
		return nil, err
	}

	go s.readLoop()
	return s, nil
}

func (s *Stream) authenticate(ctx context.Context, token string) error {
	if err := s.send(wireMessage{Type: "auth", Token: token}); err != nil {
		return err
	}

	deadline := time.Now().Add(ackTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = s.conn.SetReadDeadline(deadline)
	defer s.conn.SetReadDeadline(time.Time{})

	for {
		var msg wireMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("read auth response: %w", err)
		}
		switch msg.Type {
		case "auth_success":
			return nil
		case "auth_error":
			return fmt.Errorf("authentication rejected: %s", msg.Message)
		}
	}
}

// Updates delivers metrics pushes. It is closed when the stream ends.
func (s *Stream) Updates() <-chan Update {
	return s.updates
}

// Done is closed when the read loop exits.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Err returns why the stream ended, if it did.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Subscribe starts receiving updates for systemID and waits for the server's ack.
func (s *Stream) Subscribe(ctx context.Context, systemID string) error {
	return s.request(ctx, "subscribe", systemID)
}

// Unsubscribe stops updates for systemID and waits for the server's ack.
func (s *Stream) Unsubscribe(ctx context.Context, systemID string) error {
	return s.request(ctx, "unsubscribe", systemID)
}

// Refresh asks for an immediate snapshot of systemID. The result arrives on Updates.
func (s *Stream) Refresh(systemID string) error {
	return s.send(wireMessage{Type: "refresh", SystemID: systemID})
}

func (s *Stream) request(ctx context.Context, kind, systemID string) error {
	key := kind + ":" + systemID
	ack := make(chan error, 1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStreamClosed
	}
	s.pending[key] = ack
	s.mu.Unlock()

	if err := s.send(wireMessage{Type: kind, SystemID: systemID}); err != nil {
		s.resolve(key, err)
		return err
	}

	timer := time.NewTimer(ackTimeout)
	defer timer.Stop()
	select {
	case err := <-ack:
		return err
	case <-ctx.Done():
		s.resolve(key, ctx.Err())
		return ctx.Err()
	case <-timer.C:
		s.resolve(key, nil)
		return fmt.Errorf("%s %s: no acknowledgement", kind, systemID)
	}
}

func (s *Stream) resolve(key string, err error) {
	s.mu.Lock()
	ack, ok := s.pending[key]
	delete(s.pending, key)
	s.mu.Unlock()
	if ok {
		ack <- err
	}
}

func (s *Stream) send(msg wireMessage) error {
	msg.Timestamp = time.Now()
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("send %s: %w", msg.Type, err)
	}
	return nil
}

func (s *Stream) readLoop() {
	defer s.shutdown()

	for {
		var msg wireMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			s.mu.Lock()
			if !s.closed {
				s.err = err
			}
			s.mu.Unlock()
			return
		}

		switch msg.Type {
		case "metrics":
			var snap models.Snapshot
			if err := json.Unmarshal(msg.Data, &snap); err != nil {
				s.log.Warn("dropping undecodable metrics for %s: %v", msg.SystemID, err)
				continue
			}
			select {
			case s.updates <- Update{SystemID: msg.SystemID, Timestamp: msg.Timestamp, Snapshot: &snap}:
			default:
				s.log.Warn("update backlog full, dropping metrics for %s", msg.SystemID)
			}
		case "subscribed":
			s.resolve("subscribe:"+msg.SystemID, nil)
		case "unsubscribed":
			s.resolve("unsubscribe:"+msg.SystemID, nil)
		case "error", "auth_error":
			// only the request the frame answers is resolved
			if msg.Request == "subscribe" || msg.Request == "unsubscribe" {
				s.resolve(msg.Request+":"+msg.SystemID, errors.New(msg.Message))
			}
			s.log.Debug("server error for %s %q: %s", msg.Request, msg.SystemID, msg.Message)
		}
	}
}

func (s *Stream) shutdown() {
	s.mu.Lock()
	s.closed = true
	pending := s.pending
	s.pending = make(map[string]chan error)
	s.mu.Unlock()

	for _, ack := range pending {
		ack <- ErrStreamClosed
	}
	close(s.updates)
	close(s.done)
}

// Close ends the stream and waits for the read loop to exit.
func (s *Stream) Close() error {
	s.mu.Lock()
	already := s.closed
	s.closed = true
	s.mu.Unlock()

	if !already {
		s.writeMu.Lock()
		_ = s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.writeMu.Unlock()
	}
	err := s.conn.Close()
	<-s.done
	return err
}
