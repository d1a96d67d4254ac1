// Package rules is the action processor: it validates one action against a match
// state and applies it atomically, running turn-boundary resolution on end_turn.
package rules

import (
	"encoding/json"
	"fmt"

	"github.com/talgya/hexfront/internal/match"
	"github.com/talgya/hexfront/internal/world"
)

// ActionType is the wire tag of an action variant.
type ActionType string

const (
	TypeMoveUnit           ActionType = "move_unit"
	TypeAttackUnit         ActionType = "attack_unit"
	TypeFoundCity          ActionType = "found_city"
	TypeBuildImprovement   ActionType = "build_improvement"
	TypeChangeProduction   ActionType = "change_production"
	TypeResearchTechnology ActionType = "research_technology"
	TypeEndTurn            ActionType = "end_turn"
)

// Action is one player command. The set of variants is closed; see Apply.
type Action interface {
	Type() ActionType
	Actor() match.PlayerID
	check() error
}

// MoveUnit moves a unit to an adjacent tile.
type MoveUnit struct {
	Player match.PlayerID `json:"-"`
	UnitID match.UnitID   `json:"unitId"`
	To     world.HexCoord `json:"to"`
}

// AttackUnit attacks an adjacent enemy unit.
type AttackUnit struct {
	Player     match.PlayerID `json:"-"`
	AttackerID match.UnitID   `json:"attackerId"`
	DefenderID match.UnitID   `json:"defenderId"`
}

// FoundCity consumes a settler to found a city on its tile.
type FoundCity struct {
	Player match.PlayerID `json:"-"`
	UnitID match.UnitID   `json:"unitId"`
	Name   string         `json:"name,omitempty"` // Empty = next name from the player's list
}

// BuildImprovement has a worker improve the tile it stands on.
type BuildImprovement struct {
	Player      match.PlayerID `json:"-"`
	UnitID      match.UnitID   `json:"unitId"`
	Target      world.HexCoord `json:"target"`
	Improvement string         `json:"improvement,omitempty"` // Empty = best valid improvement
}

// ChangeProduction replaces a city's production order.
type ChangeProduction struct {
	Player match.PlayerID       `json:"-"`
	CityID match.CityID         `json:"cityId"`
	Kind   match.ProductionKind `json:"kind"`
	Target string               `json:"target"`
}

// ResearchTechnology selects the player's current research.
type ResearchTechnology struct {
	Player match.PlayerID `json:"-"`
	Tech   match.TechID   `json:"tech"`
}

// EndTurn passes play to the next alive player.
type EndTurn struct {
	Player match.PlayerID `json:"-"`
}

func (MoveUnit) Type() ActionType           { return TypeMoveUnit }
func (AttackUnit) Type() ActionType         { return TypeAttackUnit }
func (FoundCity) Type() ActionType          { return TypeFoundCity }
func (BuildImprovement) Type() ActionType   { return TypeBuildImprovement }
func (ChangeProduction) Type() ActionType   { return TypeChangeProduction }
func (ResearchTechnology) Type() ActionType { return TypeResearchTechnology }
func (EndTurn) Type() ActionType            { return TypeEndTurn }

func (a MoveUnit) Actor() match.PlayerID           { return a.Player }
func (a AttackUnit) Actor() match.PlayerID         { return a.Player }
func (a FoundCity) Actor() match.PlayerID          { return a.Player }
func (a BuildImprovement) Actor() match.PlayerID   { return a.Player }
func (a ChangeProduction) Actor() match.PlayerID   { return a.Player }
func (a ResearchTechnology) Actor() match.PlayerID { return a.Player }
func (a EndTurn) Actor() match.PlayerID            { return a.Player }

func (a MoveUnit) check() error {
	if a.UnitID == "" {
		return invalid("move_unit: unitId required")
	}
	return nil
}

func (a AttackUnit) check() error {
	if a.AttackerID == "" || a.DefenderID == "" {
		return invalid("attack_unit: attackerId and defenderId required")
	}
	if a.AttackerID == a.DefenderID {
		return invalid("attack_unit: unit cannot attack itself")
	}
	return nil
}

func (a FoundCity) check() error {
	if a.UnitID == "" {
		return invalid("found_city: unitId required")
	}
	if len(a.Name) > 40 {
		return invalid("found_city: name too long")
	}
	return nil
}

func (a BuildImprovement) check() error {
	if a.UnitID == "" {
		return invalid("build_improvement: unitId required")
	}
	if _, ok := world.ParseImprovement(a.Improvement); !ok {
		return invalid("build_improvement: unknown improvement %q", a.Improvement)
	}
	return nil
}

func (a ChangeProduction) check() error {
	if a.CityID == "" || a.Target == "" {
		return invalid("change_production: cityId and target required")
	}
	if a.Kind != match.ProduceUnit && a.Kind != match.ProduceBuilding {
		return invalid("change_production: kind must be unit or building")
	}
	return nil
}

func (a ResearchTechnology) check() error {
	if a.Tech == "" {
		return invalid("research_technology: tech required")
	}
	return nil
}

func (a EndTurn) check() error { return nil }

// Envelope is the wire form of an action.
type Envelope struct {
	Type     ActionType      `json:"type"`
	PlayerID match.PlayerID  `json:"playerId"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// Wrap converts an action to its wire form.
func Wrap(a Action) (Envelope, error) {
	payload, err := json.Marshal(a)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", a.Type(), err)
	}
	return Envelope{Type: a.Type(), PlayerID: a.Actor(), Payload: payload}, nil
}

// Decode turns an envelope into a typed action. Structural problems are
// reported as KindValidation errors.
func Decode(env Envelope) (Action, error) {
	if env.PlayerID == "" {
		return nil, invalid("playerId required")
	}
	var a Action
	var err error
	switch env.Type {
	case TypeMoveUnit:
		a, err = decodePayload[MoveUnit](env, func(v *MoveUnit) { v.Player = env.PlayerID })
	case TypeAttackUnit:
		a, err = decodePayload[AttackUnit](env, func(v *AttackUnit) { v.Player = env.PlayerID })
	case TypeFoundCity:
		a, err = decodePayload[FoundCity](env, func(v *FoundCity) { v.Player = env.PlayerID })
	case TypeBuildImprovement:
		a, err = decodePayload[BuildImprovement](env, func(v *BuildImprovement) { v.Player = env.PlayerID })
	case TypeChangeProduction:
		a, err = decodePayload[ChangeProduction](env, func(v *ChangeProduction) { v.Player = env.PlayerID })
	case TypeResearchTechnology:
		a, err = decodePayload[ResearchTechnology](env, func(v *ResearchTechnology) { v.Player = env.PlayerID })
	case TypeEndTurn:
		a = EndTurn{Player: env.PlayerID}
	default:
		return nil, invalid("unknown action type %q", env.Type)
	}
	if err != nil {
		return nil, err
	}
	if err := a.check(); err != nil {
		return nil, err
	}
	return a, nil
}

func decodePayload[T Action](env Envelope, setActor func(*T)) (Action, error) {
	var v T
	if len(env.Payload) == 0 {
		return nil, invalid("%s: payload required", env.Type)
	}
	if err := json.Unmarshal(env.Payload, &v); err != nil {
		return nil, invalid("%s: bad payload: %v", env.Type, err)
	}
	setActor(&v)
	return v, nil
}
