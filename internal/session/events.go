package session

import (
	"github.com/talgya/hexfront/internal/match"
	"github.com/talgya/hexfront/internal/rules"
)

// EventType names an outbound message.
type EventType string

const (
	EventGameCreated  EventType = "game_created"
	EventPlayerJoined EventType = "player_joined"
	EventPlayerLeft   EventType = "player_left"
	EventGameStarted  EventType = "game_started"
	EventGameUpdated  EventType = "game_updated"
	EventActionFailed EventType = "action_failed"
	EventTurnTimeout  EventType = "turn_timeout"
	EventAIThinking   EventType = "ai_thinking"
	EventAIAction     EventType = "ai_action"
	EventGameOver     EventType = "game_over"
	EventGameClosed   EventType = "game_closed"
	EventState        EventType = "state"
	EventError        EventType = "error"
)

// Event is one message to room participants. State, when set, is a committed
// snapshot that is never modified afterwards.
type Event struct {
	Type        EventType              `json:"type"`
	GameID      string                 `json:"gameId,omitempty"`
	PlayerID    match.PlayerID         `json:"playerId,omitempty"`
	Player      *match.Player          `json:"player,omitempty"`
	Action      *rules.Envelope        `json:"action,omitempty"`
	Reason      string                 `json:"reason,omitempty"`
	Message     string                 `json:"message,omitempty"`
	Winner      match.PlayerID         `json:"winner,omitempty"`
	VictoryType match.VictoryCondition `json:"victoryType,omitempty"`
	State       *match.State           `json:"state,omitempty"`
}

// Broadcaster delivers events to room participants. Calls are made while the
// room is locked and must not block or call back into the Manager.
type Broadcaster interface {
	Broadcast(gameID string, ev Event)
	Send(gameID string, player match.PlayerID, ev Event)
}

type nopBroadcaster struct{}

func (nopBroadcaster) Broadcast(string, Event)            {}
func (nopBroadcaster) Send(string, match.PlayerID, Event) {}

func envelopeOf(a rules.Action) *rules.Envelope {
	env, err := rules.Wrap(a)
	if err != nil {
		return nil
	}
	return &env
}
