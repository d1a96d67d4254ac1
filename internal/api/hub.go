package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/hexfront/internal/match"
	"github.com/talgya/hexfront/internal/session"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 << 10

	// Outbound messages queued per client before it is dropped.
	sendBuffer = 64
)

// Client is one WebSocket connection. A client is bound to at most one
// (game, player) pair at a time.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	// Guarded by hub.mu.
	gameID   string
	playerID match.PlayerID
	closed   bool
}

// Hub fans room events out to connected clients. It implements
// session.Broadcaster: sends never block, and a client whose buffer is full
// is disconnected.
type Hub struct {
	mu    sync.Mutex
	games map[string]map[*Client]struct{}
	all   map[*Client]struct{}
}

var _ session.Broadcaster = (*Hub)(nil)

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		games: make(map[string]map[*Client]struct{}),
		all:   make(map[*Client]struct{}),
	}
}

func (h *Hub) newClient(conn *websocket.Conn) *Client {
	c := &Client{hub: h, conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	h.all[c] = struct{}{}
	h.mu.Unlock()
	return c
}

// Broadcast delivers ev to every client bound to gameID.
func (h *Hub) Broadcast(gameID string, ev session.Event) {
	data, ok := marshal(ev)
	if !ok {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.games[gameID] {
		h.deliver(c, data)
	}
}

// Send delivers ev to the clients of one player in gameID.
func (h *Hub) Send(gameID string, player match.PlayerID, ev session.Event) {
	data, ok := marshal(ev)
	if !ok {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.games[gameID] {
		if c.playerID == player {
			h.deliver(c, data)
		}
	}
}

// reply delivers ev to a single client.
func (h *Hub) reply(c *Client, ev session.Event) {
	data, ok := marshal(ev)
	if !ok {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deliver(c, data)
}

// deliver queues data for c, dropping the client if it cannot keep up.
// h.mu must be held.
func (h *Hub) deliver(c *Client, data []byte) {
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		slog.Warn("dropping slow client", "game", c.gameID, "player", c.playerID)
		h.drop(c)
	}
}

// bind attaches c to a game seat, detaching it from any previous one.
func (h *Hub) bind(c *Client, gameID string, playerID match.PlayerID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.closed {
		return
	}
	h.detach(c)
	c.gameID, c.playerID = gameID, playerID
	if h.games[gameID] == nil {
		h.games[gameID] = make(map[*Client]struct{})
	}
	h.games[gameID][c] = struct{}{}
}

// seat returns the game and player c is bound to.
func (h *Hub) seat(c *Client) (string, match.PlayerID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return c.gameID, c.playerID
}

// unbind detaches c from its game and returns the seat it held.
func (h *Hub) unbind(c *Client) (string, match.PlayerID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	gameID, playerID := c.gameID, c.playerID
	h.detach(c)
	return gameID, playerID
}

// h.mu must be held.
func (h *Hub) detach(c *Client) {
	if clients, ok := h.games[c.gameID]; ok {
		delete(clients, c)
		if len(clients) == 0 {
			delete(h.games, c.gameID)
		}
	}
	c.gameID, c.playerID = "", ""
}

// drop closes a client's outbound queue; its write pump then closes the
// connection. h.mu must be held.
func (h *Hub) drop(c *Client) {
	if c.closed {
		return
	}
	c.closed = true
	if clients, ok := h.games[c.gameID]; ok {
		delete(clients, c)
		if len(clients) == 0 {
			delete(h.games, c.gameID)
		}
	}
	delete(h.all, c)
	close(c.send)
}

// remove disconnects c and returns the seat it held.
func (h *Hub) remove(c *Client) (string, match.PlayerID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	gameID, playerID := c.gameID, c.playerID
	h.drop(c)
	return gameID, playerID
}

// Clients returns how many clients are bound to gameID.
func (h *Hub) Clients(gameID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.games[gameID])
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.all {
		h.drop(c)
	}
}

func marshal(ev session.Event) ([]byte, bool) {
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Error("failed to marshal event", "type", ev.Type, "game", ev.GameID, "error", err)
		return nil, false
	}
	return data, true
}

// readPump feeds inbound messages to handle until the connection fails.
func (c *Client) readPump(handle func(*Client, []byte)) {
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Debug("websocket read error", "error", err)
			}
			return
		}
		handle(c, data)
	}
}

// writePump writes queued messages, one per frame, and keeps the peer alive.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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

func checkOrigin(allowed map[string]bool) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed[origin] || origin == "http://"+r.Host || origin == "https://"+r.Host
	}
}
