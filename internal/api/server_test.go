package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/hexfront/internal/persistence"
	"github.com/talgya/hexfront/internal/rules"
	"github.com/talgya/hexfront/internal/session"
)

type wireEvent struct {
	Type     session.EventType `json:"type"`
	GameID   string            `json:"gameId"`
	PlayerID string            `json:"playerId"`
	Reason   string            `json:"reason"`
	Message  string            `json:"message"`
	State    *struct {
		Phase         string `json:"phase"`
		Turn          int    `json:"turn"`
		CurrentPlayer int    `json:"current_player"`
	} `json:"state"`
}

type harness struct {
	srv      *httptest.Server
	sessions *session.Manager
	store    *persistence.DB
}

func newHarness(t *testing.T, withStore bool) *harness {
	t.Helper()
	var store *persistence.DB
	if withStore {
		db, err := persistence.Open(filepath.Join(t.TempDir(), "test.db"))
		if err != nil {
			t.Fatalf("open db: %v", err)
		}
		t.Cleanup(func() { db.Close() })
		store = db
	}

	hub := NewHub()
	opts := session.DefaultOptions()
	opts.AIStartDelay = time.Millisecond
	opts.AIActionDelay = time.Millisecond
	opts.CheckpointInterval = 0

	var saver session.Saver
	if store != nil {
		saver = store
	}
	mgr := session.NewManager(hub, saver, opts)
	s := NewServer(mgr, hub, store, Config{AdminKey: "secret"})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
		mgr.Shutdown()
	})
	return &harness{srv: srv, sessions: mgr, store: store}
}

func (h *harness) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg Inbound) {
	t.Helper()
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write %s: %v", msg.Type, err)
	}
}

func endTurnEnvelope() *rules.Envelope {
	return &rules.Envelope{Type: rules.TypeEndTurn}
}

// expect reads until an event of type want arrives.
func expect(t *testing.T, conn *websocket.Conn, want session.EventType) wireEvent {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var ev wireEvent
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("waiting for %s: %v", want, err)
		}
		if ev.Type == want {
			return ev
		}
	}
}

// lobby creates a game over one connection and joins it over another.
func (h *harness) lobby(t *testing.T) (host, guest *websocket.Conn, gameID, hostID, guestID string) {
	t.Helper()
	return h.lobbyWith(t, `{"mapSize":{"width":16,"height":16},"seed":11}`)
}

func (h *harness) lobbyWith(t *testing.T, config string) (host, guest *websocket.Conn, gameID, hostID, guestID string) {
	t.Helper()
	host = h.dial(t)
	send(t, host, Inbound{Type: MsgCreateGame, PlayerName: "Ada", Config: json.RawMessage(config)})
	created := expect(t, host, session.EventGameCreated)
	if created.GameID == "" || created.PlayerID == "" || created.State == nil || created.State.Phase != "setup" {
		t.Fatalf("bad game_created: %+v", created)
	}

	guest = h.dial(t)
	send(t, guest, Inbound{Type: MsgJoinGame, GameID: created.GameID, PlayerName: "Grace"})
	joined := expect(t, guest, session.EventPlayerJoined)
	if joined.PlayerID == "" {
		t.Fatal("join returned no player id")
	}
	if seen := expect(t, host, session.EventPlayerJoined); seen.PlayerID != joined.PlayerID {
		t.Errorf("host saw join of %s, want %s", seen.PlayerID, joined.PlayerID)
	}
	return host, guest, created.GameID, created.PlayerID, joined.PlayerID
}

func TestWebSocketGameFlow(t *testing.T) {
	h := newHarness(t, false)
	host, guest, gameID, _, guestID := h.lobby(t)

	send(t, guest, Inbound{Type: MsgStartGame})
	if ev := expect(t, guest, session.EventError); !strings.Contains(ev.Message, "creator") {
		t.Errorf("guest start error = %q", ev.Message)
	}

	send(t, host, Inbound{Type: MsgStartGame})
	for _, conn := range []*websocket.Conn{host, guest} {
		ev := expect(t, conn, session.EventGameStarted)
		if ev.State == nil || ev.State.Phase != "active" || ev.State.Turn != 1 {
			t.Fatalf("bad game_started: %+v", ev)
		}
	}

	send(t, guest, Inbound{Type: MsgGameAction, Action: endTurnEnvelope()})
	failed := expect(t, guest, session.EventActionFailed)
	if failed.PlayerID != guestID || failed.Reason == "" {
		t.Errorf("bad action_failed: %+v", failed)
	}

	send(t, host, Inbound{Type: MsgGameAction, Action: endTurnEnvelope()})
	for _, conn := range []*websocket.Conn{host, guest} {
		ev := expect(t, conn, session.EventGameUpdated)
		if ev.State.CurrentPlayer != 1 {
			t.Errorf("current player after end_turn = %d, want 1", ev.State.CurrentPlayer)
		}
	}
	// The host never saw the guest's rejection; its next event is its own state reply.
	send(t, host, Inbound{Type: MsgRequestState})
	host.SetReadDeadline(time.Now().Add(5 * time.Second))
	var next wireEvent
	if err := host.ReadJSON(&next); err != nil {
		t.Fatal(err)
	}
	if next.Type != session.EventState || next.GameID != gameID {
		t.Errorf("host got %s, want state", next.Type)
	}
}

func TestTurnTimeLimitIsSeconds(t *testing.T) {
	h := newHarness(t, false)
	host, guest, _, _, _ := h.lobbyWith(t, `{"mapSize":{"width":16,"height":16},"seed":11,"turnTimeLimit":1}`)

	send(t, host, Inbound{Type: MsgStartGame})
	expect(t, guest, session.EventGameStarted)
	started := time.Now()

	ev := expect(t, guest, session.EventTurnTimeout)
	elapsed := time.Since(started)
	if elapsed < 900*time.Millisecond || elapsed > 3*time.Second {
		t.Errorf("turn timed out after %v, want about 1s", elapsed)
	}
	if ev.State == nil || ev.State.CurrentPlayer != 1 {
		t.Errorf("bad turn_timeout: %+v", ev)
	}
}

func TestReconnectRebindsSeat(t *testing.T) {
	h := newHarness(t, false)
	_, guest, gameID, _, guestID := h.lobby(t)
	guest.Close()

	again := h.dial(t)
	send(t, again, Inbound{Type: MsgJoinGame, GameID: gameID, PlayerID: guestID})
	ev := expect(t, again, session.EventState)
	if ev.PlayerID != guestID || ev.State == nil {
		t.Fatalf("bad reconnect reply: %+v", ev)
	}

	send(t, again, Inbound{Type: MsgJoinGame, GameID: gameID, PlayerID: "impostor"})
	if ev := expect(t, again, session.EventError); ev.Message == "" {
		t.Error("impostor reconnect should fail")
	}
}

func TestUnseatedAndMalformedMessages(t *testing.T) {
	h := newHarness(t, false)
	conn := h.dial(t)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatal(err)
	}
	if ev := expect(t, conn, session.EventError); ev.Message != "malformed message" {
		t.Errorf("message = %q", ev.Message)
	}

	send(t, conn, Inbound{Type: MsgStartGame})
	if ev := expect(t, conn, session.EventError); ev.Message != errNotSeated.Error() {
		t.Errorf("message = %q", ev.Message)
	}

	send(t, conn, Inbound{Type: MsgCreateGame, Config: json.RawMessage(`{"mapSize":{"width":5,"height":5}}`)})
	if ev := expect(t, conn, session.EventError); !strings.Contains(ev.Message, "invalid game config") {
		t.Errorf("message = %q", ev.Message)
	}
}

func TestHealthAndStateEndpoints(t *testing.T) {
	h := newHarness(t, false)
	_, _, gameID, hostID, _ := h.lobby(t)

	resp, err := http.Get(h.srv.URL + "/api/v1/health")
	if err != nil {
		t.Fatal(err)
	}
	var health map[string]any
	json.NewDecoder(resp.Body).Decode(&health)
	resp.Body.Close()
	if health["status"] != "ok" || health["games"] != float64(1) {
		t.Errorf("health = %v", health)
	}

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"participant", "/api/v1/games/" + gameID + "/state?playerId=" + hostID, http.StatusOK},
		{"stranger", "/api/v1/games/" + gameID + "/state?playerId=nobody", http.StatusForbidden},
		{"unknown game", "/api/v1/games/missing/state?playerId=" + hostID, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(h.srv.URL + tt.path)
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
		})
	}
}

func TestSaveAndRestoreEndpoints(t *testing.T) {
	h := newHarness(t, true)
	host, guest, gameID, hostID, _ := h.lobby(t)
	send(t, host, Inbound{Type: MsgStartGame})
	expect(t, host, session.EventGameStarted)

	body := `{"playerId":"` + hostID + `","saveName":"opening"}`
	resp, err := http.Post(h.srv.URL+"/api/v1/games/"+gameID+"/saves", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	var saved struct {
		ID       string `json:"id"`
		SaveName string `json:"saveName"`
	}
	json.NewDecoder(resp.Body).Decode(&saved)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated || saved.ID == "" || saved.SaveName != "opening" {
		t.Fatalf("save: status %d body %+v", resp.StatusCode, saved)
	}

	restore := func(key string) int {
		req, _ := http.NewRequest(http.MethodPost, h.srv.URL+"/api/v1/saves/"+saved.ID+"/restore", nil)
		if key != "" {
			req.Header.Set("Authorization", "Bearer "+key)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	if got := restore("wrong"); got != http.StatusUnauthorized {
		t.Errorf("wrong key: status %d", got)
	}
	if got := restore("secret"); got != http.StatusConflict {
		t.Errorf("restore over live game: status %d", got)
	}

	h.sessions.CloseGame(gameID)
	expect(t, guest, session.EventGameClosed)
	if got := restore("secret"); got != http.StatusOK {
		t.Fatalf("restore: status %d", got)
	}
	st, err := h.sessions.GameState(gameID, hostID)
	if err != nil || st.Phase != "active" {
		t.Fatalf("restored game: %v", err)
	}

	recs, err := h.store.List(context.Background(), gameID)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) < 1 {
		t.Error("no saves listed")
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("first two requests should pass")
	}
	if rl.Allow("a") {
		t.Fatal("third request should be limited")
	}
	if !rl.Allow("b") {
		t.Error("limits are per key")
	}
	if got := rl.RetryAfter("a"); got != 61 {
		t.Errorf("RetryAfter = %d, want 61", got)
	}
	now = now.Add(time.Minute)
	if !rl.Allow("a") {
		t.Error("window should reset")
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.7:5555"
	if got := clientIP(r); got != "10.0.0.7" {
		t.Errorf("clientIP = %q", got)
	}
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if got := clientIP(r); got != "203.0.113.9" {
		t.Errorf("clientIP with XFF = %q", got)
	}
}
