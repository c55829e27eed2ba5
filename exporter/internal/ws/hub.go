package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dirsize/dirsize-exporter/exporter/internal/api"
	"github.com/dirsize/dirsize-exporter/exporter/internal/store"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// EventSnapshot is the event name of every message the hub sends.
const EventSnapshot = "snapshot"

// Message is the JSON envelope sent to clients.
type Message struct {
	Event string               `json:"event"`
	Data  api.SnapshotResponse `json:"data"`
}

// Hub pushes the store snapshot to every connected client when a client
// connects and whenever a scrape cycle finishes.
type Hub struct {
	store   *store.Store
	cycles  <-chan struct{}
	logger  *slog.Logger
	upgrade websocket.Upgrader

	mu       sync.Mutex
	sessions map[*session]struct{}
	closed   bool
}

// New creates a Hub fed by st. It subscribes to st immediately, so cycles that
// finish before Run starts are still pushed once Run is running.
func New(st *store.Store, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		store:  st,
		cycles: st.Subscribe(),
		logger: logger,
		upgrade: websocket.Upgrader{
			ReadBufferSize:  512,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		sessions: make(map[*session]struct{}),
	}
}

// Run pushes a snapshot after every finished cycle until ctx is cancelled,
// then closes all sessions and refuses new ones.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return nil
		case <-h.cycles:
			h.publish()
		}
	}
}

// ServeHTTP upgrades the request and streams snapshots until the client goes
// away or the hub shuts down.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrade.Upgrade(w, r, nil)
	if err != nil {
		return // Upgrade has replied with an HTTP error
	}

	s := newSession(conn)
	if !h.join(s) {
		conn.Close()
		return
	}
	defer h.leave(s)

	if msg, err := h.snapshot(); err == nil {
		s.offer(msg)
	}
	go s.writeLoop()
	s.readLoop()
}

func (h *Hub) publish() {
	msg, err := h.snapshot()
	if err != nil {
		h.logger.Error("ws: encode snapshot", "err", err)
		return
	}
	h.mu.Lock()
	for s := range h.sessions {
		s.offer(msg)
	}
	n := len(h.sessions)
	h.mu.Unlock()
	h.logger.Debug("ws: snapshot pushed", "clients", n)
}

func (h *Hub) snapshot() ([]byte, error) {
	return json.Marshal(Message{Event: EventSnapshot, Data: api.BuildSnapshot(h.store)})
}

func (h *Hub) join(s *session) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.sessions[s] = struct{}{}
	return true
}

func (h *Hub) leave(s *session) {
	h.mu.Lock()
	delete(h.sessions, s)
	h.mu.Unlock()
	s.stop()
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for s := range h.sessions {
		s.stop()
		delete(h.sessions, s)
	}
}

func (h *Hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// session is one websocket client. Only the newest unsent snapshot is kept:
// a client that reads slowly skips intermediate cycles instead of being
// disconnected.
type session struct {
	conn    *websocket.Conn
	mu      sync.Mutex // serialises offer
	pending chan []byte
	done    chan struct{}
	once    sync.Once
}

func newSession(conn *websocket.Conn) *session {
	return &session{
		conn:    conn,
		pending: make(chan []byte, 1), // newest unsent snapshot only
		done:    make(chan struct{}),
	}
}

// offer replaces any pending snapshot with msg.
func (s *session) offer(msg []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.pending:
	default:
	}
	s.pending <- msg
}

func (s *session) stop() {
	s.once.Do(func() { close(s.done) })
}

func (s *session) writeLoop() {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		s.conn.Close()
	}()

	for {
		var (
			kind int
			data []byte
		)
		select {
		case <-s.done:
			bye := websocket.FormatCloseMessage(websocket.CloseGoingAway, "")
			s.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			s.conn.WriteMessage(websocket.CloseMessage, bye)   //nolint:errcheck
			return
		case data = <-s.pending:
			kind = websocket.TextMessage
		case <-ping.C:
			kind = websocket.PingMessage
		}
		s.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
		if err := s.conn.WriteMessage(kind, data); err != nil {
			s.stop()
			return
		}
	}
}

// readLoop discards client frames so pongs and close frames are processed.
// It returns when the connection fails or is closed by writeLoop.
func (s *session) readLoop() {
	s.conn.SetReadLimit(512)
	s.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := s.conn.NextReader(); err != nil {
			return
		}
	}
}
