package hub

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	// sendQueueSize bounds how many messages wait for a slow peer.
	sendQueueSize = 32
)

var errSocketClosed = errors.New("websocket closed")

var upgrader = websocket.Upgrader{
	// The dashboard is served to any origin, like the JSON API.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// socket adapts a websocket connection to Observer. Send only enqueues;
// writeLoop owns every write to conn.
type socket struct {
	conn   *websocket.Conn
	out    chan []byte
	done   chan struct{}
	closed atomic.Bool
	once   sync.Once
}

func newSocket(conn *websocket.Conn) *socket {
	return &socket{
		conn: conn,
		out:  make(chan []byte, sendQueueSize),
		done: make(chan struct{}),
	}
}

func (s *socket) Open() bool { return !s.closed.Load() }

// Send queues data for the peer. When the queue is full the message is
// dropped; delivery is at most once either way.
func (s *socket) Send(data []byte) error {
	if s.closed.Load() {
		return errSocketClosed
	}
	select {
	case s.out <- data:
	default:
		slog.Debug("websocket queue full, dropping message", "remote", s.conn.RemoteAddr())
	}
	return nil
}

func (s *socket) close() {
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.done)
	})
}

func (s *socket) writeLoop() {
	for {
		select {
		case <-s.done:
			return
		case data := <-s.out:
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				s.fail(err)
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.fail(err)
				return
			}
		}
	}
}

// fail closes the connection so the read loop ends and disconnects.
func (s *socket) fail(err error) {
	slog.Debug("websocket write failed", "remote", s.conn.RemoteAddr(), "error", err)
	s.close()
	s.conn.Close()
}

// ServeWebSocket upgrades the request and keeps the socket registered
// until the peer goes away. Incoming messages are read and discarded.
func (r *Registry) ServeWebSocket(w http.ResponseWriter, req *http.Request) {
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		slog.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	s := newSocket(conn)
	go s.writeLoop()
	defer s.close()

	// The queue is empty here, so the handshake is written first.
	if err := r.Connect(s); err != nil {
		slog.Debug("websocket handshake failed", "remote", req.RemoteAddr, "error", err)
		return
	}
	slog.Debug("observer connected", "remote", req.RemoteAddr, "observers", r.Len())

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.close()
	r.Disconnect(s)
	slog.Debug("observer disconnected", "remote", req.RemoteAddr, "observers", r.Len())
}

// IsWebSocketUpgrade reports whether req asks to switch to a websocket.
func IsWebSocketUpgrade(req *http.Request) bool {
	return websocket.IsWebSocketUpgrade(req)
}
