package live

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 64
)

type EventType string

const (
	EventTournamentUpdated EventType = "tournament_updated"
	EventBracketUpdated    EventType = "bracket_updated"
	EventMatchUpdated      EventType = "match_updated"
	EventDisputeUpdated    EventType = "dispute_updated"
)

type Event struct {
	Type         EventType `json:"type"`
	TournamentID uuid.UUID `json:"tournament_id"`
	Payload      any       `json:"payload,omitempty"`
}

type client struct {
	conn   *websocket.Conn
	send   chan []byte
	room   uuid.UUID
	closed bool
}

// Hub fans tournament events out to the websocket clients watching that tournament.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu    sync.Mutex
	rooms map[uuid.UUID]map[*client]struct{}
}

func NewHub(logger *slog.Logger, allowedOrigins []string) *Hub {
	h := &Hub{
		logger: logger,
		rooms:  make(map[uuid.UUID]map[*client]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

// Broadcast delivers the event to every client of the tournament's room. Slow clients miss messages
// rather than blocking the caller.
func (h *Hub) Broadcast(event Event) {
	msg, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to encode live event", "type", event.Type, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.rooms[event.TournamentID] {
		if c.closed {
			continue
		}
		select {
		case c.send <- msg:
		default:
			h.logger.Warn("live client too slow, dropping event", "tournament_id", event.TournamentID, "type", event.Type)
		}
	}
}

func (h *Hub) ClientCount(tournamentID uuid.UUID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[tournamentID])
}

// Serve upgrades the request and streams the tournament's events until the client goes away.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, tournamentID uuid.UUID) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader already replied with an error status
		h.logger.Warn("websocket upgrade failed", "tournament_id", tournamentID, "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer), room: tournamentID}
	h.register(c)

	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[c.room]; !ok {
		h.rooms[c.room] = make(map[*client]struct{})
	}
	h.rooms[c.room][c] = struct{}{}
	h.logger.Debug("live client joined", "tournament_id", c.room, "clients", len(h.rooms[c.room]))
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[c.room]
	if !ok {
		return
	}
	if _, ok := room[c]; !ok {
		return
	}
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, c.room)
	}
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Clients only listen; anything they send is read and dropped to keep pongs flowing.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { return c.conn.SetReadDeadline(time.Now().Add(pongWait)) })

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("live client disconnected", "tournament_id", c.room, "error", err)
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
