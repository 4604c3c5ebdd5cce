package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"currencycheck/internal/domain"
	"currencycheck/internal/metrics"
	"currencycheck/internal/render"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = 30 * time.Second
	streamBuffer     = 16
	streamReadLimit  = 512
)

// Stream event types.
const (
	EventSnapshot   = "snapshot"
	EventPatch      = "patch"
	EventError      = "error"
	EventClearError = "clear_error"
)

// Event is one message on the live stream.
type Event struct {
	Type       string         `json:"type"`
	TakenAt    *time.Time     `json:"takenAt,omitempty"`
	Currencies []domain.Entry `json:"currencies,omitempty"`
	Error      string         `json:"error,omitempty"`
}

type subscriber struct {
	send chan Event
}

// Hub pushes coordinator output to websocket subscribers. New subscribers
// receive the current snapshot first, then every render, patch and error in
// the order the coordinator produced them. A subscriber whose buffer fills up
// is disconnected.
type Hub struct {
	upgrader websocket.Upgrader
	logger   zerolog.Logger

	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	snap   domain.Snapshot
	has    bool
	closed bool
}

// NewHub builds an empty Hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		logger: logger.With().Str("component", "stream").Logger(),
		subs:   make(map[*subscriber]struct{}),
	}
}

func snapshotEvent(snap domain.Snapshot) Event {
	at := snap.TakenAt.UTC()
	return Event{Type: EventSnapshot, TakenAt: &at, Currencies: snap.Sorted()}
}

// Render broadcasts the full snapshot.
func (h *Hub) Render(snap domain.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.snap = snap.Clone()
	h.has = true
	h.broadcast(snapshotEvent(h.snap))
}

// Patch broadcasts only the changed entries.
func (h *Hub) Patch(entries []domain.Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.has {
		h.snap = h.snap.WithPatched(entries)
	}
	patch := make([]domain.Entry, len(entries))
	copy(patch, entries)
	h.broadcast(Event{Type: EventPatch, Currencies: patch})
}

func (h *Hub) ShowError(err error) {
	if err == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcast(Event{Type: EventError, Error: err.Error()})
}

func (h *Hub) ClearError() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcast(Event{Type: EventClearError})
}

// broadcast must be called with mu held.
func (h *Hub) broadcast(ev Event) {
	for s := range h.subs {
		select {
		case s.send <- ev:
		default:
			h.drop(s)
			metrics.StreamDroppedTotal.Inc()
			h.logger.Warn().Msg("stream client too slow, disconnecting")
		}
	}
}

// drop must be called with mu held.
func (h *Hub) drop(s *subscriber) {
	if _, ok := h.subs[s]; !ok {
		return
	}
	delete(h.subs, s)
	close(s.send)
	metrics.StreamSubscribers.Set(float64(len(h.subs)))
}

func (h *Hub) subscribe() (*subscriber, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	s := &subscriber{send: make(chan Event, streamBuffer)}
	if h.has {
		s.send <- snapshotEvent(h.snap)
	}
	h.subs[s] = struct{}{}
	metrics.StreamSubscribers.Set(float64(len(h.subs)))
	return s, true
}

func (h *Hub) unsubscribe(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.drop(s)
}

// Subscribers returns the number of connected clients.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close disconnects every subscriber and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for s := range h.subs {
		h.drop(s)
	}
}

// ServeHTTP upgrades the request and streams events until either side hangs up.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug().Err(err).Msg("stream upgrade failed")
		return
	}
	s, ok := h.subscribe()
	if !ok {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(streamWriteWait))
		conn.Close()
		return
	}
	h.logger.Debug().Str("remote", r.RemoteAddr).Msg("stream client connected")

	go h.readLoop(conn, s)
	h.writeLoop(conn, s)
}

// readLoop only services control frames; client messages are discarded.
func (h *Hub) readLoop(conn *websocket.Conn, s *subscriber) {
	defer h.unsubscribe(s)
	conn.SetReadLimit(streamReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(conn *websocket.Conn, s *subscriber) {
	ticker := time.NewTicker(streamPingPeriod)
	defer func() {
		ticker.Stop()
		h.unsubscribe(s)
		conn.Close()
	}()

	for {
		select {
		case ev, ok := <-s.send:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

var _ render.Presenter = (*Hub)(nil)
