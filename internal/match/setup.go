package match

import (
	"errors"
	"fmt"
	"time"

	"github.com/talgya/hexfront/internal/world"
)

var (
	ErrGameFull       = errors.New("game is full")
	ErrAlreadyStarted = errors.New("game already started")
	ErrNotEnoughSeats = errors.New("not enough players to start")
	ErrNoStartTiles   = errors.New("map has too few starting positions")
)

var playerColors = []string{
	"#d62828", "#1d4ed8", "#15803d", "#f59e0b",
	"#7c3aed", "#0891b2", "#db2777", "#57534e",
}

var civilizations = []string{
	"Arvenni", "Kestral", "Oronde", "Thalassa",
	"Vey", "Duskmar", "Iolan", "Brannoch",
}

// AddPlayer seats a new player with the first unused color and civilization.
func (s *State) AddPlayer(id PlayerID, name string, isAI bool) (*Player, error) {
	if s.Phase != PhaseSetup {
		return nil, ErrAlreadyStarted
	}
	if len(s.Players) >= s.Config.MaxPlayers {
		return nil, ErrGameFull
	}

	p := &Player{
		ID:           id,
		Name:         name,
		Color:        firstUnused(playerColors, s.usedColors()),
		Civilization: firstUnused(civilizations, s.usedCivs()),
		IsAI:         isAI,
		Resources:    s.Config.StartingResources,
		Techs:        make(map[TechID]*TechProgress),
		Alive:        true,
	}
	if isAI {
		p.Personality = PersonalityBalanced
		p.Difficulty = DifficultyNormal
	}
	s.Players = append(s.Players, p)
	return p, nil
}

// RemovePlayer drops a seat before the game starts.
func (s *State) RemovePlayer(id PlayerID) error {
	if s.Phase != PhaseSetup {
		return ErrAlreadyStarted
	}
	idx := s.PlayerIndex(id)
	if idx < 0 {
		return fmt.Errorf("unknown player %q", id)
	}
	s.Players = append(s.Players[:idx], s.Players[idx+1:]...)
	return nil
}

func (s *State) usedColors() map[string]bool {
	used := make(map[string]bool)
	for _, p := range s.Players {
		used[p.Color] = true
	}
	return used
}

func (s *State) usedCivs() map[string]bool {
	used := make(map[string]bool)
	for _, p := range s.Players {
		used[p.Civilization] = true
	}
	return used
}

func firstUnused(options []string, used map[string]bool) string {
	for _, o := range options {
		if !used[o] {
			return o
		}
	}
	return options[0]
}

// Begin installs a generated world, gives each player a settler and a warrior
// (plus a scout for AI seats) on their start, and activates the match.
func (s *State) Begin(gen world.Generated, now time.Time) error {
	if s.Phase != PhaseSetup {
		return ErrAlreadyStarted
	}
	if len(s.Players) < MinPlayers {
		return ErrNotEnoughSeats
	}
	if len(gen.Starts) < len(s.Players) {
		return fmt.Errorf("%w: need %d, have %d", ErrNoStartTiles, len(s.Players), len(gen.Starts))
	}

	s.Grid = gen.Grid
	for i, p := range s.Players {
		start := gen.Starts[i]
		p.CityNames = world.CityNames(s.Config.Seed+int64(i)*7919, 12)

		if _, err := s.SpawnUnit(p.ID, UnitSettler, start); err != nil {
			return fmt.Errorf("place settler for %s: %w", p.Name, err)
		}
		escorts := []UnitType{UnitWarrior}
		if p.IsAI {
			escorts = append(escorts, UnitScout)
		}
		for _, t := range escorts {
			at, ok := s.FreeTileNear(start)
			if !ok {
				return fmt.Errorf("no room near %v for %s", start, t)
			}
			if _, err := s.SpawnUnit(p.ID, t, at); err != nil {
				return fmt.Errorf("place %s for %s: %w", t, p.Name, err)
			}
		}
		s.RefreshVisibility(p.ID)
	}

	s.Phase = PhaseActive
	s.Turn = 1
	s.CurrentPlayer = 0
	s.UpdatedAt = now
	return nil
}

// FreeTileNear returns the closest passable, unoccupied tile to c, searching
// outward ring by ring up to three tiles away. Only c itself may hold a city.
func (s *State) FreeTileNear(c world.HexCoord) (world.HexCoord, bool) {
	for radius := 0; radius <= 3; radius++ {
		for _, coord := range s.Grid.TilesInRange(c, radius) {
			if world.Distance(c, coord) != radius {
				continue
			}
			t := s.Grid.Tile(coord)
			if !t.Terrain.Passable() || t.UnitID != "" {
				continue
			}
			if radius > 0 && t.CityID != "" {
				continue
			}
			return coord, true
		}
	}
	return world.HexCoord{}, false
}

// CityVision is how far a city sees.
const CityVision = 2

// RefreshVisibility recomputes a player's visible tiles from their units and cities.
// Previously visible tiles fall back to discovered.
func (s *State) RefreshVisibility(id PlayerID) {
	s.Grid.FadeVisible(id)
	for _, u := range s.UnitsOf(id) {
		s.Grid.RevealAround(id, u.Position, u.Spec().Vision)
	}
	for _, c := range s.CitiesOf(id) {
		s.Grid.RevealAround(id, c.Position, CityVision)
	}
}
