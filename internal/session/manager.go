// Package session owns live matches. It gates inbound actions by turn
// ownership, drives turn timers and AI turns, broadcasts results, and hands
// snapshots to the persistence layer.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/hexfront/internal/entropy"
	"github.com/talgya/hexfront/internal/match"
	"github.com/talgya/hexfront/internal/persistence"
	"github.com/talgya/hexfront/internal/rules"
	"github.com/talgya/hexfront/internal/world"
)

var (
	ErrGameNotFound   = errors.New("game not found")
	ErrGameExists     = errors.New("game already loaded")
	ErrNotCreator     = errors.New("only the game creator can do that")
	ErrNotParticipant = errors.New("player is not in this game")
	ErrInvalidSeat    = errors.New("invalid AI seat settings")

	ErrGameFull       = match.ErrGameFull
	ErrAlreadyStarted = match.ErrAlreadyStarted
	ErrNotYourTurn    = rules.ErrNotYourTurn
	ErrGameNotActive  = rules.ErrGameNotActive
)

// Saver persists checkpoint records. Failures are logged, never fatal.
type Saver interface {
	Save(ctx context.Context, rec *persistence.SaveRecord) error
}

// Manager owns every live room.
type Manager struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	opts  Options
	bus   Broadcaster
	saver Saver
	saves sync.WaitGroup
}

// NewManager creates a manager. bus and saver may be nil.
func NewManager(bus Broadcaster, saver Saver, opts Options) *Manager {
	if bus == nil {
		bus = nopBroadcaster{}
	}
	return &Manager{
		rooms: make(map[string]*Room),
		opts:  opts.withDefaults(),
		bus:   bus,
		saver: saver,
	}
}

func (m *Manager) room(gameID string) (*Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[gameID]
	if !ok {
		return nil, ErrGameNotFound
	}
	return r, nil
}

// lock returns the room locked; callers must unlock it.
func (m *Manager) lock(gameID string) (*Room, error) {
	r, err := m.room(gameID)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrGameNotFound
	}
	return r, nil
}

// CreateGame opens a lobby with the host as its first player.
func (m *Manager) CreateGame(hostName string, cfg match.Config) (string, match.PlayerID, *match.State, error) {
	if err := cfg.Validate(); err != nil {
		return "", "", nil, err
	}
	if cfg.Seed == 0 {
		cfg.Seed = entropy.CryptoSeed()
	}

	gameID := uuid.NewString()
	playerID := uuid.NewString()
	s := match.NewState(gameID, cfg, m.opts.Now())
	if _, err := s.AddPlayer(playerID, hostName, false); err != nil {
		return "", "", nil, fmt.Errorf("seat host: %w", err)
	}

	r := newRoom(m, s)
	r.creator = playerID
	r.participants[playerID] = &participant{name: hostName}

	m.mu.Lock()
	m.rooms[gameID] = r
	m.mu.Unlock()

	r.log.Info("game created", "host", hostName, "map", fmt.Sprintf("%dx%d", cfg.MapSize.Width, cfg.MapSize.Height), "seed", cfg.Seed)
	return gameID, playerID, s, nil
}

// JoinGame seats a new human player in a lobby.
func (m *Manager) JoinGame(gameID, name string) (match.PlayerID, *match.State, error) {
	r, err := m.lock(gameID)
	if err != nil {
		return "", nil, err
	}
	defer r.mu.Unlock()

	playerID := uuid.NewString()
	var seated *match.Player
	err = r.mutate(func(s *match.State) error {
		p, err := s.AddPlayer(playerID, name, false)
		seated = p
		return err
	})
	if err != nil {
		return "", nil, err
	}
	r.participants[playerID] = &participant{name: name}
	r.broadcast(Event{Type: EventPlayerJoined, PlayerID: playerID, Player: seated, State: r.state})
	r.log.Info("player joined", "player", playerID, "name", name)
	return playerID, r.state, nil
}

// AddAI seats a computer player. Only the creator may add seats.
func (m *Manager) AddAI(gameID string, requester match.PlayerID, personality match.Personality, difficulty match.Difficulty) (match.PlayerID, error) {
	if personality == "" {
		personality = match.PersonalityBalanced
	}
	if difficulty == "" {
		difficulty = match.DifficultyNormal
	}
	if !personality.Valid() || !difficulty.Valid() {
		return "", fmt.Errorf("%w: %s/%s", ErrInvalidSeat, personality, difficulty)
	}

	r, err := m.lock(gameID)
	if err != nil {
		return "", err
	}
	defer r.mu.Unlock()
	if requester != r.creator {
		return "", ErrNotCreator
	}

	playerID := uuid.NewString()
	var seated *match.Player
	err = r.mutate(func(s *match.State) error {
		p, err := s.AddPlayer(playerID, fmt.Sprintf("AI %d", len(s.Players)+1), true)
		if err != nil {
			return err
		}
		p.Personality = personality
		p.Difficulty = difficulty
		seated = p
		return nil
	})
	if err != nil {
		return "", err
	}
	r.broadcast(Event{Type: EventPlayerJoined, PlayerID: playerID, Player: seated, State: r.state})
	return playerID, nil
}

// LeaveGame removes a player from a lobby, or hands a started seat to the AI.
// A lobby left empty is closed.
func (m *Manager) LeaveGame(gameID string, playerID match.PlayerID) error {
	r, err := m.lock(gameID)
	if err != nil {
		return err
	}

	if _, ok := r.participants[playerID]; !ok {
		r.mu.Unlock()
		return ErrNotParticipant
	}
	delete(r.participants, playerID)

	if r.state.Phase == match.PhaseSetup {
		if err := r.mutate(func(s *match.State) error { return s.RemovePlayer(playerID) }); err != nil {
			r.mu.Unlock()
			return err
		}
		if playerID == r.creator {
			r.creator = r.nextCreator()
		}
	} else {
		err := r.mutate(func(s *match.State) error {
			p := s.Player(playerID)
			if p == nil {
				return ErrNotParticipant
			}
			p.IsAI = true
			r.autopilot[playerID] = true
			if p.Personality == "" {
				p.Personality = match.PersonalityBalanced
			}
			if p.Difficulty == "" {
				p.Difficulty = match.DifficultyNormal
			}
			return nil
		})
		if err != nil {
			r.mu.Unlock()
			return err
		}
	}
	r.broadcast(Event{Type: EventPlayerLeft, PlayerID: playerID, State: r.state})
	r.log.Info("player left", "player", playerID, "phase", r.state.Phase)

	if r.state.Phase == match.PhaseActive && r.state.CurrentPlayerID() == playerID {
		r.afterTurnChange()
	}
	empty := len(r.participants) == 0 && r.state.Phase == match.PhaseSetup
	r.mu.Unlock()

	if empty {
		m.CloseGame(gameID)
	}
	return nil
}

// nextCreator picks the earliest-seated remaining human. r.mu must be held.
func (r *Room) nextCreator() match.PlayerID {
	for _, p := range r.state.Players {
		if _, ok := r.participants[p.ID]; ok {
			return p.ID
		}
	}
	return ""
}

// StartGame generates the world and begins play. Only the creator may start.
func (m *Manager) StartGame(gameID string, requester match.PlayerID) (*match.State, error) {
	r, err := m.lock(gameID)
	if err != nil {
		return nil, err
	}
	defer r.mu.Unlock()

	if requester != r.creator {
		return nil, ErrNotCreator
	}
	if r.state.Phase != match.PhaseSetup {
		return nil, ErrAlreadyStarted
	}

	err = r.mutate(func(s *match.State) error {
		if len(s.Players) < match.MinPlayers {
			return match.ErrNotEnoughSeats
		}
		cfg := s.Config
		gen := world.Generate(world.DefaultGenConfig(cfg.MapSize.Width, cfg.MapSize.Height, cfg.Seed, len(s.Players)))
		return s.Begin(gen, m.opts.Now())
	})
	if err != nil {
		return nil, err
	}

	r.log.Info("game started", "players", len(r.state.Players))
	r.broadcast(Event{Type: EventGameStarted, State: r.state})
	r.checkpointAsync(persistence.SaveAuto, "start")
	r.afterTurnChange()
	return r.state, nil
}

// SubmitAction routes a player's action to their room. The actor is always the
// submitting player, whatever the envelope claims. Rejections are sent back to
// the submitter only.
func (m *Manager) SubmitAction(gameID string, playerID match.PlayerID, env rules.Envelope) (rules.Result, error) {
	r, err := m.lock(gameID)
	if err != nil {
		return rules.Result{}, err
	}
	defer r.mu.Unlock()

	env.PlayerID = playerID
	reject := func(err error) (rules.Result, error) {
		r.send(playerID, Event{Type: EventActionFailed, PlayerID: playerID, Action: &env, Reason: err.Error()})
		return rules.Result{Message: err.Error(), Err: err, State: r.state}, err
	}

	if r.state.Phase != match.PhaseActive {
		return reject(ErrGameNotActive)
	}
	if _, ok := r.participants[playerID]; !ok {
		return reject(ErrNotParticipant)
	}
	if p := r.state.Player(playerID); p == nil || p.IsAI {
		return reject(ErrNotParticipant)
	}
	if r.state.CurrentPlayerID() != playerID {
		return reject(ErrNotYourTurn)
	}
	a, err := rules.Decode(env)
	if err != nil {
		return reject(err)
	}

	res := r.apply(a, EventGameUpdated)
	if !res.Success {
		return reject(res.Err)
	}
	return res, nil
}

// Rejoin reconnects a player to their seat. A human who left a started game
// reclaims the seat from the AI; original AI seats cannot be taken over.
func (m *Manager) Rejoin(gameID string, playerID match.PlayerID) (*match.State, error) {
	r, err := m.lock(gameID)
	if err != nil {
		return nil, err
	}
	defer r.mu.Unlock()

	if _, ok := r.participants[playerID]; ok {
		return r.state, nil
	}
	if !r.autopilot[playerID] || r.state.Phase == match.PhaseEnded {
		return nil, ErrNotParticipant
	}

	var name string
	err = r.mutate(func(s *match.State) error {
		p := s.Player(playerID)
		if p == nil {
			return ErrNotParticipant
		}
		p.IsAI = false
		name = p.Name
		return nil
	})
	if err != nil {
		return nil, err
	}
	delete(r.autopilot, playerID)
	r.participants[playerID] = &participant{name: name}
	r.broadcast(Event{Type: EventPlayerJoined, PlayerID: playerID, Player: r.state.Player(playerID), State: r.state})
	r.log.Info("player reclaimed seat", "player", playerID)

	if r.state.Phase == match.PhaseActive && r.state.CurrentPlayerID() == playerID {
		r.afterTurnChange()
	}
	return r.state, nil
}

// GameState returns the committed state of a game for one of its players.
// The returned state must not be modified.
func (m *Manager) GameState(gameID string, playerID match.PlayerID) (*match.State, error) {
	r, err := m.lock(gameID)
	if err != nil {
		return nil, err
	}
	defer r.mu.Unlock()
	if r.state.Player(playerID) == nil {
		return nil, ErrNotParticipant
	}
	return r.state, nil
}

// SetConnected records whether a human participant has a live connection.
func (m *Manager) SetConnected(gameID string, playerID match.PlayerID, connected bool) error {
	r, err := m.lock(gameID)
	if err != nil {
		return err
	}
	defer r.mu.Unlock()
	p, ok := r.participants[playerID]
	if !ok {
		return ErrNotParticipant
	}
	p.connected = connected
	r.lastActivity = m.opts.Now()
	return nil
}

// Checkpoint saves a game now and waits for the result.
func (m *Manager) Checkpoint(ctx context.Context, gameID, name string, kind persistence.SaveType) (*persistence.SaveRecord, error) {
	if m.saver == nil {
		return nil, errors.New("no persistence configured")
	}
	r, err := m.lock(gameID)
	if err != nil {
		return nil, err
	}
	rec, err := r.record(kind, name)
	r.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", gameID, err)
	}
	if err := m.saver.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("save %s: %w", gameID, err)
	}
	return rec, nil
}

func (m *Manager) saveAsync(rec *persistence.SaveRecord) {
	m.saves.Add(1)
	go func() {
		defer m.saves.Done()
		ctx, cancel := context.WithTimeout(context.Background(), m.opts.SaveTimeout)
		defer cancel()
		if err := m.saver.Save(ctx, rec); err != nil {
			slog.Warn("checkpoint failed", "game", rec.GameID, "turn", rec.TurnNumber, "error", err)
		}
	}()
}

// RestoreGame loads a saved match into a new room. Human players start
// disconnected; the earliest-seated human becomes the creator.
func (m *Manager) RestoreGame(rec *persistence.SaveRecord) (string, error) {
	s, err := match.Decode(rec.StateJSON, rec.GridJSON)
	if err != nil {
		return "", fmt.Errorf("restore %s: %w", rec.GameID, err)
	}
	if s.ID == "" {
		s.ID = rec.GameID
	}

	r := newRoom(m, s)
	for _, p := range s.Players {
		if !p.IsAI {
			r.participants[p.ID] = &participant{name: p.Name}
		}
	}
	r.creator = r.nextCreator()

	m.mu.Lock()
	if _, ok := m.rooms[s.ID]; ok {
		m.mu.Unlock()
		return "", ErrGameExists
	}
	m.rooms[s.ID] = r
	m.mu.Unlock()

	r.mu.Lock()
	r.lastSaved = s.UpdatedAt
	r.afterTurnChange()
	r.mu.Unlock()

	r.log.Info("game restored", "save", rec.ID, "turn", s.Turn, "phase", s.Phase)
	return s.ID, nil
}

// CloseGame tears a room down and cancels everything it has scheduled.
func (m *Manager) CloseGame(gameID string) bool {
	m.mu.Lock()
	r, ok := m.rooms[gameID]
	delete(m.rooms, gameID)
	m.mu.Unlock()
	if !ok {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.closed = true
	r.cancelAll()
	r.broadcast(Event{Type: EventGameClosed})
	r.log.Info("game closed")
	return true
}

// GameIDs lists the live rooms.
func (m *Manager) GameIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.rooms))
	for id := range m.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CleanupIdle closes rooms that nobody is connected to past the grace period
// and rooms idle past the inactivity window. It returns how many were closed.
func (m *Manager) CleanupIdle(now time.Time) int {
	var stale []string
	for _, id := range m.GameIDs() {
		r, err := m.room(id)
		if err != nil {
			continue
		}
		r.mu.Lock()
		idle := now.Sub(r.lastActivity)
		if idle > m.opts.IdleTimeout || (r.connectedCount() == 0 && idle > m.opts.EmptyGrace) {
			stale = append(stale, id)
		}
		r.mu.Unlock()
	}
	closed := 0
	for _, id := range stale {
		if m.CloseGame(id) {
			closed++
		}
	}
	if closed > 0 {
		slog.Info("idle games closed", "count", closed)
	}
	return closed
}

// checkpointAll saves every started room that changed since its last save.
func (m *Manager) checkpointAll() {
	if m.saver == nil {
		return
	}
	for _, id := range m.GameIDs() {
		r, err := m.lock(id)
		if err != nil {
			continue
		}
		if r.state.Phase == match.PhaseActive && r.state.UpdatedAt.After(r.lastSaved) {
			r.checkpointAsync(persistence.SaveAuto, "")
		}
		r.mu.Unlock()
	}
}

// Run performs housekeeping until ctx is cancelled, then shuts down.
func (m *Manager) Run(ctx context.Context) error {
	cleanup := time.NewTicker(m.opts.CleanupInterval)
	defer cleanup.Stop()

	var checkpoints <-chan time.Time
	if m.opts.CheckpointInterval > 0 {
		t := time.NewTicker(m.opts.CheckpointInterval)
		defer t.Stop()
		checkpoints = t.C
	}

	for {
		select {
		case <-ctx.Done():
			m.Shutdown()
			return nil
		case <-cleanup.C:
			m.CleanupIdle(m.opts.Now())
		case <-checkpoints:
			m.checkpointAll()
		}
	}
}

// Shutdown checkpoints and closes every room, then waits for pending saves.
func (m *Manager) Shutdown() {
	m.checkpointAll()
	for _, id := range m.GameIDs() {
		m.CloseGame(id)
	}
	m.saves.Wait()
}
