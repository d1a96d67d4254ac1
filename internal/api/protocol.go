package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/talgya/hexfront/internal/match"
	"github.com/talgya/hexfront/internal/rules"
	"github.com/talgya/hexfront/internal/session"
)

// MessageType names an inbound client message.
type MessageType string

const (
	MsgCreateGame   MessageType = "create_game"
	MsgJoinGame     MessageType = "join_game"
	MsgAddAI        MessageType = "add_ai"
	MsgLeaveGame    MessageType = "leave_game"
	MsgStartGame    MessageType = "start_game"
	MsgGameAction   MessageType = "game_action"
	MsgRequestState MessageType = "request_game_state"
)

// Inbound is a client request. Which fields matter depends on Type.
type Inbound struct {
	Type        MessageType       `json:"type"`
	GameID      string            `json:"gameId,omitempty"`
	PlayerID    match.PlayerID    `json:"playerId,omitempty"` // join_game: reconnect to an existing seat
	PlayerName  string            `json:"playerName,omitempty"`
	Config      json.RawMessage   `json:"config,omitempty"` // create_game: overrides on DefaultConfig
	Action      *rules.Envelope   `json:"action,omitempty"`
	Personality match.Personality `json:"personality,omitempty"`
	Difficulty  match.Difficulty  `json:"difficulty,omitempty"`
}

var errNotSeated = errors.New("not in a game")

// handleMessage dispatches one inbound message from c. Failures are reported
// to c alone as error events; room broadcasts come from the session layer.
func (s *Server) handleMessage(c *Client, data []byte) {
	var msg Inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		s.hub.reply(c, session.Event{Type: session.EventError, Message: "malformed message"})
		return
	}
	if err := s.dispatch(c, msg); err != nil {
		slog.Debug("message rejected", "type", msg.Type, "error", err)
		gameID, _ := s.hub.seat(c)
		s.hub.reply(c, session.Event{Type: session.EventError, GameID: gameID, Reason: string(msg.Type), Message: err.Error()})
	}
}

func (s *Server) dispatch(c *Client, msg Inbound) error {
	switch msg.Type {
	case MsgCreateGame:
		return s.createGame(c, msg)
	case MsgJoinGame:
		return s.joinGame(c, msg)
	}

	gameID, playerID := s.hub.seat(c)
	if gameID == "" {
		return errNotSeated
	}
	switch msg.Type {
	case MsgAddAI:
		_, err := s.sessions.AddAI(gameID, playerID, msg.Personality, msg.Difficulty)
		return err
	case MsgLeaveGame:
		s.hub.unbind(c)
		return s.sessions.LeaveGame(gameID, playerID)
	case MsgStartGame:
		_, err := s.sessions.StartGame(gameID, playerID)
		return err
	case MsgGameAction:
		if msg.Action == nil {
			return errors.New("action required")
		}
		_, err := s.sessions.SubmitAction(gameID, playerID, *msg.Action)
		if errors.Is(err, session.ErrGameNotFound) {
			return err
		}
		// Other rejections were already sent to this player as action_failed.
		return nil
	case MsgRequestState:
		st, err := s.sessions.GameState(gameID, playerID)
		if err != nil {
			return err
		}
		s.hub.reply(c, session.Event{Type: session.EventState, GameID: gameID, PlayerID: playerID, State: st})
		return nil
	}
	return fmt.Errorf("unknown message type %q", msg.Type)
}

func (s *Server) createGame(c *Client, msg Inbound) error {
	cfg := match.DefaultConfig()
	if len(msg.Config) > 0 {
		if err := json.Unmarshal(msg.Config, &cfg); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	name := msg.PlayerName
	if name == "" {
		name = "Player 1"
	}

	gameID, playerID, st, err := s.sessions.CreateGame(name, cfg)
	if err != nil {
		return err
	}
	s.seat(c, gameID, playerID)
	s.hub.reply(c, session.Event{Type: session.EventGameCreated, GameID: gameID, PlayerID: playerID, State: st})
	return nil
}

func (s *Server) joinGame(c *Client, msg Inbound) error {
	if msg.GameID == "" {
		return errors.New("gameId required")
	}

	if msg.PlayerID != "" {
		st, err := s.sessions.Rejoin(msg.GameID, msg.PlayerID)
		if err != nil {
			return err
		}
		s.seat(c, msg.GameID, msg.PlayerID)
		s.hub.reply(c, session.Event{Type: session.EventState, GameID: msg.GameID, PlayerID: msg.PlayerID, State: st})
		return nil
	}

	name := msg.PlayerName
	if name == "" {
		name = "Player"
	}
	playerID, st, err := s.sessions.JoinGame(msg.GameID, name)
	if err != nil {
		return err
	}
	s.seat(c, msg.GameID, playerID)
	s.hub.reply(c, session.Event{Type: session.EventPlayerJoined, GameID: msg.GameID, PlayerID: playerID, Player: st.Player(playerID), State: st})
	return nil
}

// seat binds c to a player and marks that player connected.
func (s *Server) seat(c *Client, gameID string, playerID match.PlayerID) {
	if prevGame, prevPlayer := s.hub.seat(c); prevGame != "" {
		s.sessions.SetConnected(prevGame, prevPlayer, false)
	}
	s.hub.bind(c, gameID, playerID)
	if err := s.sessions.SetConnected(gameID, playerID, true); err != nil {
		slog.Debug("seat not tracked", "game", gameID, "player", playerID, "error", err)
	}
}

// disconnect releases c's seat once its connection ends.
func (s *Server) disconnect(c *Client) {
	gameID, playerID := s.hub.remove(c)
	if gameID != "" {
		s.sessions.SetConnected(gameID, playerID, false)
	}
}
