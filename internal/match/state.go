// Package match holds the authoritative per-match entity graph: players, units,
// cities, the world grid, and the turn/phase counters. Units and cities live in
// id-keyed collections; tiles and players refer to them by id only.
package match

import (
	"fmt"
	"time"

	"github.com/talgya/hexfront/internal/world"
)

// PlayerID identifies a seat in a match.
type PlayerID = string

// UnitID identifies a unit within a match.
type UnitID = string

// CityID identifies a city within a match.
type CityID = string

// Phase is the match lifecycle stage.
type Phase string

const (
	PhaseSetup  Phase = "setup"
	PhaseActive Phase = "active"
	PhaseEnded  Phase = "ended"
)

// Personality biases AI decisions.
type Personality string

const (
	PersonalityBalanced   Personality = "balanced"
	PersonalityAggressive Personality = "aggressive"
	PersonalityEconomic   Personality = "economic"
	PersonalityScientific Personality = "scientific"
	PersonalityExpansive  Personality = "expansive"
)

// Valid reports whether p is a known personality.
func (p Personality) Valid() bool {
	switch p {
	case PersonalityBalanced, PersonalityAggressive, PersonalityEconomic, PersonalityScientific, PersonalityExpansive:
		return true
	}
	return false
}

// Difficulty tunes AI vision, mistakes, and action budget.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyNormal Difficulty = "normal"
	DifficultyHard   Difficulty = "hard"
)

// Valid reports whether d is a known difficulty.
func (d Difficulty) Valid() bool {
	return d == DifficultyEasy || d == DifficultyNormal || d == DifficultyHard
}

// Unit is a movable piece on the map.
type Unit struct {
	ID          UnitID         `json:"id"`
	Type        UnitType       `json:"type"`
	Owner       PlayerID       `json:"owner"`
	Position    world.HexCoord `json:"position"`
	Health      int            `json:"health"`
	MaxHealth   int            `json:"max_health"`
	Movement    int            `json:"movement"`
	MaxMovement int            `json:"max_movement"`
	Experience  int            `json:"experience"`
	Acted       bool           `json:"acted"` // Moved, attacked, or worked since its owner's turn began
}

// Spec returns the unit's static stats.
func (u *Unit) Spec() UnitSpec {
	s, _ := UnitSpecFor(u.Type)
	return s
}

// ProductionKind distinguishes unit from building production.
type ProductionKind string

const (
	ProduceUnit     ProductionKind = "unit"
	ProduceBuilding ProductionKind = "building"
)

// Production is a city's in-progress build order.
type Production struct {
	Kind     ProductionKind `json:"kind"`
	Target   string         `json:"target"`
	Stored   int            `json:"stored"`
	Required int            `json:"required"`
}

// City is a settlement founded by a settler.
type City struct {
	ID          CityID           `json:"id"`
	Name        string           `json:"name"`
	Owner       PlayerID         `json:"owner"`
	Position    world.HexCoord   `json:"position"`
	Population  int              `json:"population"`
	Health      int              `json:"health"`
	MaxHealth   int              `json:"max_health"`
	FoodStored  int              `json:"food_stored"`
	Production  *Production      `json:"production,omitempty"`
	Buildings   []BuildingType   `json:"buildings"`
	WorkedTiles []world.HexCoord `json:"worked_tiles"`
	FoundedTurn int              `json:"founded_turn"`
}

// HasBuilding reports whether the building is constructed.
func (c *City) HasBuilding(b BuildingType) bool {
	for _, have := range c.Buildings {
		if have == b {
			return true
		}
	}
	return false
}

// TechProgress tracks research toward one technology.
type TechProgress struct {
	Progress   int  `json:"progress"`
	Required   int  `json:"required"`
	Researched bool `json:"researched"`
}

// Player is one seat's state.
type Player struct {
	ID              PlayerID                 `json:"id"`
	Name            string                   `json:"name"`
	Color           string                   `json:"color"`
	Civilization    string                   `json:"civilization"`
	IsAI            bool                     `json:"is_ai"`
	Personality     Personality              `json:"personality,omitempty"`
	Difficulty      Difficulty               `json:"difficulty,omitempty"`
	Resources       Resources                `json:"resources"`
	Techs           map[TechID]*TechProgress `json:"techs"`
	CurrentResearch TechID                   `json:"current_research,omitempty"`
	Units           []UnitID                 `json:"units"`
	Cities          []CityID                 `json:"cities"`
	CityNames       []string                 `json:"city_names,omitempty"` // Unused names, consumed in order
	Score           int                      `json:"score"`
	Alive           bool                     `json:"alive"`
}

// HasTech reports whether the technology is researched.
func (p *Player) HasTech(t TechID) bool {
	tp, ok := p.Techs[t]
	return ok && tp.Researched
}

// HistoryEntry records one accepted action.
type HistoryEntry struct {
	Turn     int       `json:"turn"`
	PlayerID PlayerID  `json:"player_id"`
	Kind     string    `json:"kind"`
	Summary  string    `json:"summary"`
	At       time.Time `json:"at"`
}

// Victory describes how and by whom the match was won.
type Victory struct {
	Winner PlayerID         `json:"winner"`
	Type   VictoryCondition `json:"victory_type"`
	Turn   int              `json:"turn"`
}

// State is the complete state of one match.
type State struct {
	ID            string           `json:"id"`
	Phase         Phase            `json:"phase"`
	Turn          int              `json:"turn"`
	CurrentPlayer int              `json:"current_player"`
	Players       []*Player        `json:"players"`
	Grid          *world.Grid      `json:"grid,omitempty"`
	Units         map[UnitID]*Unit `json:"units"`
	Cities        map[CityID]*City `json:"cities"`
	History       []HistoryEntry   `json:"history"`
	Config        Config           `json:"config"`
	Victory       *Victory         `json:"victory,omitempty"`
	NextID        uint64           `json:"next_id"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// NewState creates an empty match in the setup phase.
func NewState(id string, cfg Config, now time.Time) *State {
	return &State{
		ID:        id,
		Phase:     PhaseSetup,
		Turn:      1,
		Units:     make(map[UnitID]*Unit),
		Cities:    make(map[CityID]*City),
		Config:    cfg,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Player returns the player with the given id, or nil.
func (s *State) Player(id PlayerID) *Player {
	for _, p := range s.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// PlayerIndex returns the seat index of a player, or -1.
func (s *State) PlayerIndex(id PlayerID) int {
	for i, p := range s.Players {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// Current returns the player whose turn it is, or nil outside the active phase.
func (s *State) Current() *Player {
	if s.CurrentPlayer < 0 || s.CurrentPlayer >= len(s.Players) {
		return nil
	}
	return s.Players[s.CurrentPlayer]
}

// CurrentPlayerID returns the id of the player whose turn it is.
func (s *State) CurrentPlayerID() PlayerID {
	if p := s.Current(); p != nil {
		return p.ID
	}
	return ""
}

// AlivePlayers returns the players still in the game, in seat order.
func (s *State) AlivePlayers() []*Player {
	var out []*Player
	for _, p := range s.Players {
		if p.Alive {
			out = append(out, p)
		}
	}
	return out
}

// NewID returns a fresh match-local id with the given prefix.
func (s *State) NewID(prefix string) string {
	s.NextID++
	return fmt.Sprintf("%s%d", prefix, s.NextID)
}

// UnitAt returns the unit on a tile, or nil.
func (s *State) UnitAt(c world.HexCoord) *Unit {
	t := s.Grid.Tile(c)
	if t == nil || t.UnitID == "" {
		return nil
	}
	return s.Units[t.UnitID]
}

// CityAt returns the city on a tile, or nil.
func (s *State) CityAt(c world.HexCoord) *City {
	t := s.Grid.Tile(c)
	if t == nil || t.CityID == "" {
		return nil
	}
	return s.Cities[t.CityID]
}

// UnitsOf returns a player's units in the order they were created.
func (s *State) UnitsOf(id PlayerID) []*Unit {
	p := s.Player(id)
	if p == nil {
		return nil
	}
	out := make([]*Unit, 0, len(p.Units))
	for _, uid := range p.Units {
		if u, ok := s.Units[uid]; ok {
			out = append(out, u)
		}
	}
	return out
}

// CitiesOf returns a player's cities in founding order.
func (s *State) CitiesOf(id PlayerID) []*City {
	p := s.Player(id)
	if p == nil {
		return nil
	}
	out := make([]*City, 0, len(p.Cities))
	for _, cid := range p.Cities {
		if c, ok := s.Cities[cid]; ok {
			out = append(out, c)
		}
	}
	return out
}

// SpawnUnit creates a unit of the given type for a player on an empty tile.
func (s *State) SpawnUnit(owner PlayerID, t UnitType, at world.HexCoord) (*Unit, error) {
	spec, ok := UnitSpecFor(t)
	if !ok {
		return nil, fmt.Errorf("unknown unit type %q", t)
	}
	p := s.Player(owner)
	if p == nil {
		return nil, fmt.Errorf("unknown player %q", owner)
	}
	tile := s.Grid.Tile(at)
	if tile == nil {
		return nil, fmt.Errorf("tile %v out of bounds", at)
	}
	if tile.UnitID != "" {
		return nil, fmt.Errorf("tile %v already occupied", at)
	}

	u := &Unit{
		ID:          s.NewID("u"),
		Type:        t,
		Owner:       owner,
		Position:    at,
		Health:      spec.MaxHealth,
		MaxHealth:   spec.MaxHealth,
		Movement:    spec.Movement,
		MaxMovement: spec.Movement,
	}
	s.Units[u.ID] = u
	tile.UnitID = u.ID
	p.Units = append(p.Units, u.ID)
	return u, nil
}

// RemoveUnit deletes a unit and clears every reference to it.
func (s *State) RemoveUnit(id UnitID) {
	u, ok := s.Units[id]
	if !ok {
		return
	}
	if t := s.Grid.Tile(u.Position); t != nil && t.UnitID == id {
		t.UnitID = ""
	}
	if p := s.Player(u.Owner); p != nil {
		p.Units = removeID(p.Units, id)
	}
	delete(s.Units, id)
}

// MoveUnit relocates a unit and updates occupancy on both tiles.
func (s *State) MoveUnit(u *Unit, to world.HexCoord) {
	if from := s.Grid.Tile(u.Position); from != nil && from.UnitID == u.ID {
		from.UnitID = ""
	}
	s.Grid.Tile(to).UnitID = u.ID
	u.Position = to
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, x := range ids {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}
