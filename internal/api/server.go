// Package api serves matches to clients: a WebSocket endpoint carrying the
// game protocol, plus a small HTTP surface for health, state snapshots, and
// saves. Restoring saves requires the admin bearer token.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/talgya/hexfront/internal/persistence"
	"github.com/talgya/hexfront/internal/session"
)

// Config configures the HTTP surface.
type Config struct {
	AdminKey string   // Bearer token for restore endpoints. Empty = restore disabled.
	Origins  []string // Extra allowed browser origins; localhost dev servers are always allowed.
}

// Server routes HTTP and WebSocket traffic to the session manager.
type Server struct {
	sessions *session.Manager
	hub      *Hub
	store    *persistence.DB // nil disables save endpoints
	adminKey string
	origins  map[string]bool

	router      *mux.Router
	upgrader    websocket.Upgrader
	connLimiter *RateLimiter
	saveLimiter *RateLimiter
}

// NewServer builds the router. store may be nil.
func NewServer(sessions *session.Manager, hub *Hub, store *persistence.DB, cfg Config) *Server {
	s := &Server{
		sessions:    sessions,
		hub:         hub,
		store:       store,
		adminKey:    cfg.AdminKey,
		origins:     allowedOrigins(cfg.Origins),
		router:      mux.NewRouter(),
		connLimiter: NewRateLimiter(60, time.Minute),
		saveLimiter: NewRateLimiter(30, time.Hour),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     checkOrigin(s.origins),
	}

	s.router.HandleFunc("/ws", RateLimitMiddleware(s.connLimiter, s.handleWebSocket))

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/games/{id}/state", s.handleGameState).Methods(http.MethodGet)
	api.HandleFunc("/games/{id}/saves", s.handleListSaves).Methods(http.MethodGet)
	api.HandleFunc("/games/{id}/saves", RateLimitMiddleware(s.saveLimiter, s.handleSaveGame)).Methods(http.MethodPost)
	api.HandleFunc("/games/{id}/restore", s.adminOnly(s.handleRestoreLatest)).Methods(http.MethodPost)
	api.HandleFunc("/saves/{saveId}/restore", s.adminOnly(s.handleRestoreSave)).Methods(http.MethodPost)

	s.router.Use(s.corsMiddleware)
	s.router.MethodNotAllowedHandler = s.corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}))
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves on addr until ctx is cancelled, then shuts down gracefully and
// disconnects every WebSocket client.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP server starting", "addr", addr, "admin_auth", s.adminKey != "", "saves", s.store != nil)

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		s.hub.Close()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("websocket upgrade failed", "error", err)
		return
	}
	c := s.hub.newClient(conn)
	go c.writePump()
	go func() {
		defer s.disconnect(c)
		c.readPump(s.handleMessage)
	}()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"games":  len(s.sessions.GameIDs()),
		"saves":  s.store != nil,
	})
}

// handleGameState returns a point-in-time snapshot for ?playerId=.
func (s *Server) handleGameState(w http.ResponseWriter, r *http.Request) {
	gameID := mux.Vars(r)["id"]
	st, err := s.sessions.GameState(gameID, r.URL.Query().Get("playerId"))
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleListSaves(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, "saves disabled")
		return
	}
	saves, err := s.store.List(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		slog.Error("list saves failed", "error", err)
		writeError(w, http.StatusInternalServerError, "list saves failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"saves": saves})
}

// handleSaveGame takes a manual save. The caller must be a player in the game.
func (s *Server) handleSaveGame(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, "saves disabled")
		return
	}
	var req struct {
		PlayerID string `json:"playerId"`
		SaveName string `json:"saveName"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	gameID := mux.Vars(r)["id"]
	if _, err := s.sessions.GameState(gameID, req.PlayerID); err != nil {
		writeSessionError(w, err)
		return
	}
	rec, err := s.sessions.Checkpoint(r.Context(), gameID, req.SaveName, persistence.SaveManual)
	if err != nil {
		slog.Error("manual save failed", "game", gameID, "error", err)
		writeError(w, http.StatusInternalServerError, "save failed")
		return
	}
	slog.Info("manual save", "game", gameID, "save", rec.ID, "turn", rec.TurnNumber)
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":         rec.ID,
		"saveName":   rec.SaveName,
		"turnNumber": rec.TurnNumber,
	})
}

func (s *Server) handleRestoreLatest(w http.ResponseWriter, r *http.Request) {
	s.restore(w, r, func(ctx context.Context) (*persistence.SaveRecord, error) {
		return s.store.Latest(ctx, mux.Vars(r)["id"])
	})
}

func (s *Server) handleRestoreSave(w http.ResponseWriter, r *http.Request) {
	s.restore(w, r, func(ctx context.Context) (*persistence.SaveRecord, error) {
		return s.store.Load(ctx, mux.Vars(r)["saveId"])
	})
}

func (s *Server) restore(w http.ResponseWriter, r *http.Request, load func(context.Context) (*persistence.SaveRecord, error)) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, "saves disabled")
		return
	}
	rec, err := load(r.Context())
	if err != nil {
		writeSessionError(w, err)
		return
	}
	gameID, err := s.sessions.RestoreGame(rec)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"gameId": gameID, "turnNumber": rec.TurnNumber})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return ok && subtle.ConstantTimeCompare([]byte(token), []byte(s.adminKey)) == 1
}

// adminOnly wraps a handler to require bearer token auth.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.adminKey == "" {
			writeError(w, http.StatusForbidden, "admin endpoints disabled (no HEXFRONT_ADMIN_KEY set)")
			return
		}
		if !s.checkBearerToken(r) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

func allowedOrigins(extra []string) map[string]bool {
	allowed := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
		"http://localhost:3000": true,
	}
	for _, origin := range extra {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			allowed[origin] = true
		}
	}
	return allowed
}

// corsMiddleware adds CORS headers for allowed frontend origins.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if s.origins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrGameNotFound), errors.Is(err, persistence.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrNotParticipant):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, session.ErrGameExists):
		writeError(w, http.StatusConflict, err.Error())
	default:
		slog.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
