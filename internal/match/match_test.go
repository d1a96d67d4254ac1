package match

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/talgya/hexfront/internal/world"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// flatState builds a two-player setup state on an all-grassland grid.
func flatState(t *testing.T) *State {
	t.Helper()
	s := NewState("g1", DefaultConfig(), testNow)
	g := world.NewGrid(12, 12)
	for i := range g.Tiles() {
		g.Tiles()[i].Terrain = world.TerrainGrassland
	}
	s.Grid = g
	for _, id := range []PlayerID{"p1", "p2"} {
		if _, err := s.AddPlayer(id, "Player "+id, false); err != nil {
			t.Fatalf("add player: %v", err)
		}
	}
	return s
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		ok     bool
	}{
		{"default", func(*Config) {}, true},
		{"min map", func(c *Config) { c.MapSize = MapSize{Width: 10, Height: 10} }, true},
		{"max map", func(c *Config) { c.MapSize = MapSize{Width: 100, Height: 100} }, true},
		{"narrow", func(c *Config) { c.MapSize.Width = 9 }, false},
		{"tall", func(c *Config) { c.MapSize.Height = 101 }, false},
		{"one player", func(c *Config) { c.MaxPlayers = 1 }, false},
		{"nine players", func(c *Config) { c.MaxPlayers = 9 }, false},
		{"negative timer", func(c *Config) { c.TurnTimeLimit = -time.Second }, false},
		{"negative gold", func(c *Config) { c.StartingResources.Gold = -1 }, false},
		{"unknown victory", func(c *Config) { c.VictoryConditions = []VictoryCondition{"diplomacy"} }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestAddPlayerAssignsDistinctColors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxPlayers = 3
	s := NewState("g", cfg, testNow)
	seen := make(map[string]bool)
	for _, id := range []PlayerID{"a", "b", "c"} {
		p, err := s.AddPlayer(id, id, false)
		if err != nil {
			t.Fatalf("add %s: %v", id, err)
		}
		if seen[p.Color] || seen[p.Civilization] {
			t.Fatalf("duplicate color or civilization for %s", id)
		}
		seen[p.Color] = true
		seen[p.Civilization] = true
		if p.Resources != cfg.StartingResources {
			t.Errorf("player %s did not get starting resources", id)
		}
	}
	if _, err := s.AddPlayer("d", "d", false); !errors.Is(err, ErrGameFull) {
		t.Fatalf("expected ErrGameFull, got %v", err)
	}
}

func TestSpawnAndRemoveUnit(t *testing.T) {
	s := flatState(t)
	at := world.HexCoord{Q: 3, R: 3}

	u, err := s.SpawnUnit("p1", UnitWarrior, at)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if s.UnitAt(at) != u {
		t.Fatal("tile does not reference spawned unit")
	}
	if _, err := s.SpawnUnit("p2", UnitScout, at); err == nil {
		t.Fatal("expected occupied tile to be rejected")
	}
	if len(s.Player("p1").Units) != 1 {
		t.Fatal("unit not added to owner")
	}

	s.RemoveUnit(u.ID)
	if s.UnitAt(at) != nil || len(s.Player("p1").Units) != 0 {
		t.Fatal("unit references remain after removal")
	}
	if _, ok := s.Units[u.ID]; ok {
		t.Fatal("unit still in collection")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	s := flatState(t)
	u, _ := s.SpawnUnit("p1", UnitSettler, world.HexCoord{Q: 1, R: 1})
	s.Player("p1").Techs[TechMining] = &TechProgress{Progress: 5, Required: 35}

	before, _ := json.Marshal(s)
	c := s.Clone()
	c.Units[u.ID].Health = 1
	c.MoveUnit(c.Units[u.ID], world.HexCoord{Q: 2, R: 1})
	c.Player("p1").Techs[TechMining].Progress = 30
	c.Player("p1").Resources.Gold = 999
	c.Turn = 9

	after, _ := json.Marshal(s)
	if !bytes.Equal(before, after) {
		t.Fatal("mutating clone changed original")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	s := flatState(t)
	gen := world.Generated{
		Grid:   s.Grid,
		Starts: []world.HexCoord{{Q: 2, R: 2}, {Q: 9, R: 9}},
	}
	s.Grid = nil
	if err := s.Begin(gen, testNow); err != nil {
		t.Fatalf("begin: %v", err)
	}

	stateJSON, gridJSON, err := Encode(s)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	restored, err := Decode(stateJSON, gridJSON)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	a, _ := json.Marshal(s)
	b, _ := json.Marshal(restored)
	if !bytes.Equal(a, b) {
		t.Fatalf("round trip changed state:\n%s\n%s", a, b)
	}
	if restored.UnitAt(world.HexCoord{Q: 2, R: 2}) == nil {
		t.Fatal("restored grid lost unit occupancy")
	}
}

func TestBeginPlacesStartingUnits(t *testing.T) {
	s := flatState(t)
	s.Players[1].IsAI = true
	gen := world.Generated{
		Grid:   s.Grid,
		Starts: []world.HexCoord{{Q: 2, R: 2}, {Q: 9, R: 9}},
	}
	if err := s.Begin(gen, testNow); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if s.Phase != PhaseActive || s.Turn != 1 || s.CurrentPlayer != 0 {
		t.Fatalf("unexpected start state: phase=%s turn=%d current=%d", s.Phase, s.Turn, s.CurrentPlayer)
	}
	if n := len(s.UnitsOf("p1")); n != 2 {
		t.Errorf("human should start with 2 units, got %d", n)
	}
	if n := len(s.UnitsOf("p2")); n != 3 {
		t.Errorf("AI should start with 3 units, got %d", n)
	}
	settler := s.UnitAt(world.HexCoord{Q: 2, R: 2})
	if settler == nil || settler.Type != UnitSettler {
		t.Fatal("settler not on start tile")
	}
	if s.Grid.GetVisibility("p1", world.HexCoord{Q: 2, R: 2}) != world.VisibilityVisible {
		t.Error("start tile not visible")
	}
	if len(s.Player("p1").CityNames) == 0 {
		t.Error("no city names assigned")
	}
	if err := s.Begin(gen, testNow); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}
}

func TestCityYield(t *testing.T) {
	s := flatState(t)
	c := &City{
		ID:          "c1",
		Owner:       "p1",
		Position:    world.HexCoord{Q: 5, R: 5},
		Population:  2,
		Buildings:   []BuildingType{BuildingLibrary},
		WorkedTiles: []world.HexCoord{{Q: 5, R: 5}, {Q: 6, R: 5}},
	}
	y := s.CityYield(c)
	// Two grassland tiles (2 food each), library +3 science, two citizens.
	if y.Food != 4 || y.Science != 5 {
		t.Fatalf("unexpected yield %+v", y)
	}

	s.Cities[c.ID] = c
	best := s.BestUnworkedTiles(c, 3)
	if len(best) != 3 {
		t.Fatalf("expected 3 tiles, got %d", len(best))
	}
	for _, b := range best {
		if b == c.WorkedTiles[0] || b == c.WorkedTiles[1] {
			t.Fatalf("already worked tile %v returned", b)
		}
	}
}

func TestConfigTurnTimeLimitInSeconds(t *testing.T) {
	cfg := DefaultConfig()
	if err := json.Unmarshal([]byte(`{"turnTimeLimit": 60, "maxPlayers": 3}`), &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.TurnTimeLimit != time.Minute {
		t.Errorf("TurnTimeLimit = %v, want 1m", cfg.TurnTimeLimit)
	}
	if cfg.MaxPlayers != 3 || cfg.MapSize != DefaultConfig().MapSize {
		t.Errorf("partial config lost defaults: %+v", cfg)
	}

	cfg.TurnTimeLimit = 1500 * time.Millisecond
	b, err := json.Marshal(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(b, []byte(`"turnTimeLimit":1.5`)) {
		t.Errorf("encoded config %s, want turnTimeLimit 1.5", b)
	}
	var back Config
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if back.TurnTimeLimit != cfg.TurnTimeLimit {
		t.Errorf("round trip TurnTimeLimit = %v", back.TurnTimeLimit)
	}

	if err := json.Unmarshal([]byte(`{"turnTimeLimit": -1}`), &back); err != nil {
		t.Fatal(err)
	}
	if !errors.Is(back.Validate(), ErrInvalidConfig) {
		t.Error("negative seconds should fail validation")
	}
}

func TestDecodeLobbyWithoutGrid(t *testing.T) {
	s := flatState(t)
	s.Grid = nil
	stateJSON, gridJSON, err := Encode(s)
	if err != nil {
		t.Fatal(err)
	}
	restored, err := Decode(stateJSON, gridJSON)
	if err != nil {
		t.Fatalf("decode lobby: %v", err)
	}
	if restored.Grid != nil || len(restored.Players) != 2 {
		t.Errorf("restored lobby: grid %v, %d players", restored.Grid, len(restored.Players))
	}
}
