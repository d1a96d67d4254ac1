package rules

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/talgya/hexfront/internal/entropy"
	"github.com/talgya/hexfront/internal/match"
	"github.com/talgya/hexfront/internal/world"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newProcessor() *Processor {
	return NewProcessor(entropy.New(7)).WithClock(func() time.Time { return testNow })
}

// newGame returns an active match on an all-grassland grid with the given number of human players.
func newGame(t *testing.T, players int) *match.State {
	t.Helper()
	cfg := match.DefaultConfig()
	cfg.MaxPlayers = max(players, match.MinPlayers)
	s := match.NewState("g1", cfg, testNow)
	g := world.NewGrid(16, 16)
	for i := range g.Tiles() {
		g.Tiles()[i].Terrain = world.TerrainGrassland
	}
	s.Grid = g
	for i := 0; i < players; i++ {
		if _, err := s.AddPlayer(fmt.Sprintf("p%d", i+1), fmt.Sprintf("Player %d", i+1), false); err != nil {
			t.Fatalf("add player: %v", err)
		}
	}
	s.Phase = match.PhaseActive
	return s
}

func spawn(t *testing.T, s *match.State, owner match.PlayerID, ut match.UnitType, q, r int) *match.Unit {
	t.Helper()
	u, err := s.SpawnUnit(owner, ut, world.HexCoord{Q: q, R: r})
	if err != nil {
		t.Fatalf("spawn %s: %v", ut, err)
	}
	return u
}

func snapshot(t *testing.T, s *match.State) []byte {
	t.Helper()
	b, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func mustApply(t *testing.T, p *Processor, s *match.State, a Action) *match.State {
	t.Helper()
	res := p.Apply(s, a)
	if !res.Success {
		t.Fatalf("%s failed: %v", a.Type(), res.Err)
	}
	return res.State
}

func TestRejectedActionsLeaveStateUntouched(t *testing.T) {
	p := newProcessor()
	s := newGame(t, 2)
	settler := spawn(t, s, "p1", match.UnitSettler, 2, 2)
	warrior := spawn(t, s, "p1", match.UnitWarrior, 3, 2)
	enemy := spawn(t, s, "p2", match.UnitWarrior, 8, 8)
	s.Grid.Tile(world.HexCoord{Q: 2, R: 3}).Terrain = world.TerrainMountain

	rejected := []struct {
		name   string
		action Action
		want   error
	}{
		{"wrong player", MoveUnit{Player: "p2", UnitID: enemy.ID, To: world.HexCoord{Q: 9, R: 8}}, ErrNotYourTurn},
		{"missing unit", MoveUnit{Player: "p1", UnitID: "u99", To: world.HexCoord{Q: 1, R: 1}}, ErrUnitNotFound},
		{"foreign unit", MoveUnit{Player: "p1", UnitID: enemy.ID, To: world.HexCoord{Q: 9, R: 8}}, ErrNotOwner},
		{"mountain", MoveUnit{Player: "p1", UnitID: settler.ID, To: world.HexCoord{Q: 2, R: 3}}, ErrImpassable},
		{"occupied", MoveUnit{Player: "p1", UnitID: settler.ID, To: warrior.Position}, ErrOccupied},
		{"too far", MoveUnit{Player: "p1", UnitID: settler.ID, To: world.HexCoord{Q: 5, R: 5}}, ErrNotAdjacent},
		{"off map", MoveUnit{Player: "p1", UnitID: settler.ID, To: world.HexCoord{Q: -1, R: 2}}, ErrImpassable},
		{"distant attack", AttackUnit{Player: "p1", AttackerID: warrior.ID, DefenderID: enemy.ID}, ErrNotAdjacent},
		{"settler attack at range", AttackUnit{Player: "p1", AttackerID: settler.ID, DefenderID: enemy.ID}, ErrNotAdjacent},
		{"friendly attack", AttackUnit{Player: "p1", AttackerID: warrior.ID, DefenderID: settler.ID}, ErrFriendlyTarget},
		{"warrior founds", FoundCity{Player: "p1", UnitID: warrior.ID}, ErrNotSettler},
		{"settler builds", BuildImprovement{Player: "p1", UnitID: settler.ID, Target: settler.Position}, ErrNotWorker},
		{"missing city", ChangeProduction{Player: "p1", CityID: "c9", Kind: match.ProduceUnit, Target: "warrior"}, ErrCityNotFound},
		{"unknown tech", ResearchTechnology{Player: "p1", Tech: "alchemy"}, ErrUnknownTech},
		{"locked tech", ResearchTechnology{Player: "p1", Tech: match.TechWriting}, ErrLocked},
		{"malformed", MoveUnit{Player: "p1"}, ErrMalformed},
	}

	for _, tt := range rejected {
		t.Run(tt.name, func(t *testing.T) {
			before := snapshot(t, s)
			res := p.Apply(s, tt.action)
			if res.Success {
				t.Fatal("expected rejection")
			}
			if !errors.Is(res.Err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, res.Err)
			}
			if res.State != s {
				t.Fatal("failed result must return the input state")
			}
			if res.Message == "" {
				t.Fatal("rejection needs a reason")
			}
			if !bytes.Equal(before, snapshot(t, s)) {
				t.Fatal("rejected action mutated state")
			}
		})
	}
}

func TestAcceptedActionDoesNotMutateInput(t *testing.T) {
	p := newProcessor()
	s := newGame(t, 2)
	u := spawn(t, s, "p1", match.UnitWarrior, 4, 4)

	before := snapshot(t, s)
	res := p.Apply(s, MoveUnit{Player: "p1", UnitID: u.ID, To: world.HexCoord{Q: 5, R: 4}})
	if !res.Success {
		t.Fatalf("move failed: %v", res.Err)
	}
	if !bytes.Equal(before, snapshot(t, s)) {
		t.Fatal("input state changed; apply must work on a copy")
	}
	moved := res.State.Units[u.ID]
	if moved.Position != (world.HexCoord{Q: 5, R: 4}) || moved.Movement != 1 {
		t.Fatalf("unexpected unit after move: %+v", moved)
	}
	if res.State.UnitAt(world.HexCoord{Q: 4, R: 4}) != nil {
		t.Fatal("source tile still occupied")
	}
	if len(res.State.History) != 1 || res.State.History[0].Kind != "move_unit" {
		t.Fatalf("history not recorded: %+v", res.State.History)
	}
}

func TestMoveCosts(t *testing.T) {
	p := newProcessor()
	s := newGame(t, 2)
	u := spawn(t, s, "p1", match.UnitWarrior, 4, 4)
	hills := s.Grid.Tile(world.HexCoord{Q: 5, R: 4})
	hills.Terrain = world.TerrainHills
	hills.Features = hills.Features.With(world.FeatureForest)

	res := p.Apply(s, MoveUnit{Player: "p1", UnitID: u.ID, To: hills.Coord})
	if !errors.Is(res.Err, ErrInsufficientMovement) {
		t.Fatalf("forested hills cost 3, expected insufficient movement, got %v", res.Err)
	}

	hills.Features = 0
	s = mustApply(t, p, s, MoveUnit{Player: "p1", UnitID: u.ID, To: hills.Coord})
	if got := s.Units[u.ID].Movement; got != 0 {
		t.Fatalf("expected 0 movement after hills, got %d", got)
	}
	res = p.Apply(s, MoveUnit{Player: "p1", UnitID: u.ID, To: world.HexCoord{Q: 6, R: 4}})
	if !errors.Is(res.Err, ErrNoMovement) {
		t.Fatalf("expected ErrNoMovement, got %v", res.Err)
	}
}

func TestMoveRevealsTiles(t *testing.T) {
	p := newProcessor()
	s := newGame(t, 2)
	u := spawn(t, s, "p1", match.UnitWarrior, 2, 2)
	s.RefreshVisibility("p1")

	far := world.HexCoord{Q: 5, R: 2}
	if s.Grid.GetVisibility("p1", far) != world.VisibilityHidden {
		t.Fatal("tile should start hidden")
	}
	s = mustApply(t, p, s, MoveUnit{Player: "p1", UnitID: u.ID, To: world.HexCoord{Q: 3, R: 2}})
	if s.Grid.GetVisibility("p1", far) != world.VisibilityVisible {
		t.Fatal("tile within vision should be visible after move")
	}
	if s.Grid.GetVisibility("p1", world.HexCoord{Q: 0, R: 2}) != world.VisibilityDiscovered {
		t.Fatal("tile left behind should fade to discovered")
	}
}

func TestFoundCityScenario(t *testing.T) {
	p := newProcessor()
	cfg := match.DefaultConfig()
	cfg.MaxPlayers = 2
	cfg.Seed = 42
	s := match.NewState("g42", cfg, testNow)
	s.AddPlayer("a", "A", false)
	s.AddPlayer("b", "B", false)
	gen := world.Generate(world.DefaultGenConfig(20, 20, 42, 0))
	gen.Grid.Tile(world.HexCoord{Q: 0, R: 0}).Terrain = world.TerrainGrassland
	gen.Grid.Tile(world.HexCoord{Q: 1, R: 0}).Terrain = world.TerrainGrassland
	s.Grid = gen.Grid
	s.Phase = match.PhaseActive
	settler := spawn(t, s, "a", match.UnitSettler, 0, 0)

	s = mustApply(t, p, s, FoundCity{Player: "a", UnitID: settler.ID, Name: "X"})

	city := s.CityAt(world.HexCoord{Q: 0, R: 0})
	if city == nil || city.Name != "X" {
		t.Fatalf("expected city X at (0,0), got %+v", city)
	}
	if _, ok := s.Units[settler.ID]; ok {
		t.Fatal("settler still exists")
	}
	if s.UnitAt(world.HexCoord{Q: 0, R: 0}) != nil {
		t.Fatal("settler still on tile")
	}
	if cities := s.Player("a").Cities; len(cities) != 1 || cities[0] != city.ID {
		t.Fatalf("expected exactly one city for A, got %v", cities)
	}
	if city.Population != 1 || len(city.WorkedTiles) != 2 {
		t.Fatalf("new city should work center plus one tile, got %v", city.WorkedTiles)
	}
}

func TestFoundCityMinimumDistance(t *testing.T) {
	for d := 0; d <= 4; d++ {
		t.Run(fmt.Sprintf("distance %d", d), func(t *testing.T) {
			p := newProcessor()
			s := newGame(t, 2)
			s.Cities["c0"] = &match.City{ID: "c0", Name: "Old", Owner: "p2", Position: world.HexCoord{Q: 5, R: 5}, Population: 1}
			s.Grid.Tile(world.HexCoord{Q: 5, R: 5}).CityID = "c0"

			at := world.HexCoord{Q: 5 + d, R: 5}
			if d == 0 {
				at = world.HexCoord{Q: 5, R: 5}
			}
			settler := spawn(t, s, "p1", match.UnitSettler, at.Q, at.R)

			res := p.Apply(s, FoundCity{Player: "p1", UnitID: settler.ID})
			if d < MinCityDistance {
				if res.Success {
					t.Fatalf("founding at distance %d should fail", d)
				}
				if _, ok := res.State.Units[settler.ID]; !ok {
					t.Fatal("rejected founding consumed the settler")
				}
				return
			}
			if !res.Success {
				t.Fatalf("founding at distance %d failed: %v", d, res.Err)
			}
			if _, ok := res.State.Units[settler.ID]; ok {
				t.Fatal("settler not consumed")
			}
		})
	}
}

func TestRoundRobinTurns(t *testing.T) {
	p := newProcessor()
	s := newGame(t, 3)
	for i, id := range []match.PlayerID{"p1", "p2", "p3"} {
		spawn(t, s, id, match.UnitWarrior, i*3, 0)
	}

	seats := []int{}
	turns := []int{}
	for i := 0; i < 9; i++ {
		res := p.Apply(s, EndTurn{Player: s.CurrentPlayerID()})
		if !res.Success {
			t.Fatalf("end_turn %d failed: %v", i, res.Err)
		}
		s = res.State
		seats = append(seats, s.CurrentPlayer)
		turns = append(turns, s.Turn)
		wantRounds := 0
		if s.CurrentPlayer == 0 {
			wantRounds = 1
		}
		if res.Rounds != wantRounds {
			t.Fatalf("step %d: expected %d rounds, got %d", i, wantRounds, res.Rounds)
		}
	}
	wantSeats := []int{1, 2, 0, 1, 2, 0, 1, 2, 0}
	wantTurns := []int{1, 1, 2, 2, 2, 3, 3, 3, 4}
	for i := range wantSeats {
		if seats[i] != wantSeats[i] || turns[i] != wantTurns[i] {
			t.Fatalf("step %d: seat %d turn %d, want seat %d turn %d", i, seats[i], turns[i], wantSeats[i], wantTurns[i])
		}
	}
}

func TestEndTurnSkipsDeadPlayers(t *testing.T) {
	p := newProcessor()
	s := newGame(t, 3)
	spawn(t, s, "p1", match.UnitWarrior, 0, 0)
	spawn(t, s, "p3", match.UnitWarrior, 6, 0)
	s.Player("p2").Alive = false

	s = mustApply(t, p, s, EndTurn{Player: "p1"})
	if s.CurrentPlayerID() != "p3" {
		t.Fatalf("expected p3, got %s", s.CurrentPlayerID())
	}
	s = mustApply(t, p, s, EndTurn{Player: "p3"})
	if s.CurrentPlayerID() != "p1" || s.Turn != 2 {
		t.Fatalf("expected p1 on turn 2, got %s on turn %d", s.CurrentPlayerID(), s.Turn)
	}
}

func TestEndTurnRestoresMovement(t *testing.T) {
	p := newProcessor()
	s := newGame(t, 2)
	u := spawn(t, s, "p1", match.UnitWarrior, 4, 4)
	spawn(t, s, "p2", match.UnitWarrior, 9, 9)

	s = mustApply(t, p, s, MoveUnit{Player: "p1", UnitID: u.ID, To: world.HexCoord{Q: 5, R: 4}})
	s = mustApply(t, p, s, EndTurn{Player: "p1"})
	s = mustApply(t, p, s, EndTurn{Player: "p2"})
	if got := s.Units[u.ID]; got.Movement != got.MaxMovement || got.Acted {
		t.Fatalf("movement not restored: %+v", got)
	}
}

func TestResearchCompletesAfterExactlyFiveRounds(t *testing.T) {
	p := newProcessor()
	s := newGame(t, 2)
	spawn(t, s, "p2", match.UnitWarrior, 12, 12)

	// Twenty citizens and no worked tiles yield exactly 20 science.
	s.Cities["c1"] = &match.City{ID: "c1", Name: "Lore", Owner: "p1", Position: world.HexCoord{Q: 3, R: 3}, Population: 20}
	s.Grid.Tile(world.HexCoord{Q: 3, R: 3}).CityID = "c1"
	s.Player("p1").Cities = []match.CityID{"c1"}
	if y := s.PlayerYield("p1"); y.Science != 20 {
		t.Fatalf("expected 20 science, got %d", y.Science)
	}
	s.Player("p1").Techs[match.TechWriting] = &match.TechProgress{Required: 100}
	s.Player("p1").CurrentResearch = match.TechWriting

	for round := 1; round <= 5; round++ {
		s = mustApply(t, p, s, EndTurn{Player: "p1"})
		s = mustApply(t, p, s, EndTurn{Player: "p2"})
		done := s.Player("p1").HasTech(match.TechWriting)
		if round < 5 && done {
			t.Fatalf("researched after only %d rounds", round)
		}
		if round == 5 && !done {
			t.Fatalf("not researched after 5 rounds, progress %d", s.Player("p1").Techs[match.TechWriting].Progress)
		}
	}
	if s.Player("p1").CurrentResearch != "" {
		t.Fatal("current research should clear on completion")
	}
}

func TestResearchSelection(t *testing.T) {
	p := newProcessor()
	s := newGame(t, 2)

	s = mustApply(t, p, s, ResearchTechnology{Player: "p1", Tech: match.TechMining})
	tp := s.Player("p1").Techs[match.TechMining]
	if tp == nil || tp.Required != 35 || s.Player("p1").CurrentResearch != match.TechMining {
		t.Fatalf("research not started: %+v", tp)
	}

	tp.Researched = true
	res := p.Apply(s, ResearchTechnology{Player: "p1", Tech: match.TechMining})
	if !errors.Is(res.Err, ErrAlreadyResearched) {
		t.Fatalf("expected ErrAlreadyResearched, got %v", res.Err)
	}
	mustApply(t, p, s, ResearchTechnology{Player: "p1", Tech: match.TechBronzeWorking})
}

func TestProductionCompletes(t *testing.T) {
	p := newProcessor()
	s := newGame(t, 2)
	spawn(t, s, "p2", match.UnitWarrior, 12, 12)
	settler := spawn(t, s, "p1", match.UnitSettler, 5, 5)
	s = mustApply(t, p, s, FoundCity{Player: "p1", UnitID: settler.ID, Name: "Forge"})
	cityID := s.Player("p1").Cities[0]

	res := p.Apply(s, ChangeProduction{Player: "p1", CityID: cityID, Kind: match.ProduceUnit, Target: "archer"})
	if !errors.Is(res.Err, ErrLocked) {
		t.Fatalf("archer needs archery, got %v", res.Err)
	}
	s = mustApply(t, p, s, ChangeProduction{Player: "p1", CityID: cityID, Kind: match.ProduceUnit, Target: "warrior"})
	s.Cities[cityID].Production.Stored = 19
	s.Grid.Tile(world.HexCoord{Q: 5, R: 5}).Terrain = world.TerrainPlains

	s = mustApply(t, p, s, EndTurn{Player: "p1"})
	s = mustApply(t, p, s, EndTurn{Player: "p2"})

	if s.Cities[cityID].Production != nil {
		t.Fatal("production order should clear when complete")
	}
	units := s.UnitsOf("p1")
	if len(units) != 1 || units[0].Type != match.UnitWarrior {
		t.Fatalf("expected a new warrior, got %v", units)
	}
	if units[0].Position != (world.HexCoord{Q: 5, R: 5}) {
		t.Fatalf("unit should appear in the city, got %v", units[0].Position)
	}
}

func TestBuildImprovement(t *testing.T) {
	p := newProcessor()
	s := newGame(t, 2)
	w := spawn(t, s, "p1", match.UnitWorker, 4, 4)

	res := p.Apply(s, BuildImprovement{Player: "p1", UnitID: w.ID, Target: world.HexCoord{Q: 5, R: 4}})
	if !errors.Is(res.Err, ErrNotOnTile) {
		t.Fatalf("expected ErrNotOnTile, got %v", res.Err)
	}
	res = p.Apply(s, BuildImprovement{Player: "p1", UnitID: w.ID, Target: w.Position, Improvement: "mine"})
	if !errors.Is(res.Err, ErrBadImprovement) {
		t.Fatalf("mine on grassland should fail, got %v", res.Err)
	}

	s = mustApply(t, p, s, BuildImprovement{Player: "p1", UnitID: w.ID, Target: w.Position})
	tile := s.Grid.Tile(w.Position)
	if tile.Improvement != world.ImprovementFarm {
		t.Fatalf("expected farm, got %s", tile.Improvement)
	}
	if y := tile.Yield(); y.Food != 4 {
		t.Fatalf("farmed grassland should yield 4 food, got %d", y.Food)
	}
	s.Units[w.ID].Movement = 2
	res = p.Apply(s, BuildImprovement{Player: "p1", UnitID: w.ID, Target: w.Position})
	if !errors.Is(res.Err, ErrAlreadyImproved) {
		t.Fatalf("expected ErrAlreadyImproved, got %v", res.Err)
	}
}

func TestDominationVictory(t *testing.T) {
	p := newProcessor()
	s := newGame(t, 2)
	atk := spawn(t, s, "p1", match.UnitHorseman, 4, 4)
	def := spawn(t, s, "p2", match.UnitSettler, 5, 4)
	s.Units[def.ID].Health = 1

	s = mustApply(t, p, s, AttackUnit{Player: "p1", AttackerID: atk.ID, DefenderID: def.ID})
	if _, ok := s.Units[def.ID]; ok {
		t.Fatal("defender should be destroyed")
	}
	if got := s.Units[atk.ID]; got.Movement != 0 || got.Experience != 5 {
		t.Fatalf("attack should consume movement and grant experience: %+v", got)
	}

	s = mustApply(t, p, s, EndTurn{Player: "p1"})
	res := p.Apply(s, EndTurn{Player: "p2"})
	if !res.Success {
		t.Fatalf("end turn failed: %v", res.Err)
	}
	if res.Victory == nil || res.Victory.Winner != "p1" || res.Victory.Type != match.VictoryDomination {
		t.Fatalf("expected domination victory for p1, got %+v", res.Victory)
	}
	if res.State.Phase != match.PhaseEnded || res.State.Player("p2").Alive {
		t.Fatal("game should end with p2 eliminated")
	}
	after := p.Apply(res.State, EndTurn{Player: res.State.CurrentPlayerID()})
	if !errors.Is(after.Err, ErrGameNotActive) {
		t.Fatalf("expected ErrGameNotActive after victory, got %v", after.Err)
	}
}

func TestScoreVictoryAtTurnLimit(t *testing.T) {
	p := newProcessor()
	s := newGame(t, 2)
	s.Config.TurnLimit = 2
	spawn(t, s, "p1", match.UnitWarrior, 1, 1)
	spawn(t, s, "p2", match.UnitWarrior, 9, 9)
	spawn(t, s, "p2", match.UnitWarrior, 9, 10)

	s = mustApply(t, p, s, EndTurn{Player: "p1"})
	res := p.Apply(s, EndTurn{Player: "p2"})
	if res.Victory == nil || res.Victory.Type != match.VictoryScore || res.Victory.Winner != "p2" {
		t.Fatalf("expected score victory for p2, got %+v", res.Victory)
	}
	if res.Victory.Turn != 2 {
		t.Fatalf("expected victory on turn 2, got %d", res.Victory.Turn)
	}
}

func TestHealingForIdleUnits(t *testing.T) {
	p := newProcessor()
	s := newGame(t, 2)
	idle := spawn(t, s, "p1", match.UnitWarrior, 1, 1)
	busy := spawn(t, s, "p1", match.UnitWarrior, 3, 3)
	spawn(t, s, "p2", match.UnitWarrior, 9, 9)
	s.Units[idle.ID].Health = 50
	s.Units[busy.ID].Health = 50

	s = mustApply(t, p, s, MoveUnit{Player: "p1", UnitID: busy.ID, To: world.HexCoord{Q: 4, R: 3}})
	s = mustApply(t, p, s, EndTurn{Player: "p1"})
	s = mustApply(t, p, s, EndTurn{Player: "p2"})
	if s.Units[idle.ID].Health != 60 {
		t.Errorf("idle unit should heal to 60, got %d", s.Units[idle.ID].Health)
	}
	if s.Units[busy.ID].Health != 50 {
		t.Errorf("unit that moved should not heal, got %d", s.Units[busy.ID].Health)
	}
}

func TestHandlerPanicBecomesInternalError(t *testing.T) {
	p := newProcessor()
	s := newGame(t, 2)
	u := spawn(t, s, "p1", match.UnitWarrior, 4, 4)
	s.Grid = nil

	res := p.Apply(s, MoveUnit{Player: "p1", UnitID: u.ID, To: world.HexCoord{Q: 5, R: 4}})
	if res.Success {
		t.Fatal("expected failure")
	}
	if KindOf(res.Err) != KindInternal {
		t.Fatalf("expected internal error, got %v", res.Err)
	}
	if res.State != s || s.Units[u.ID].Position != (world.HexCoord{Q: 4, R: 4}) {
		t.Fatal("state changed after internal error")
	}
}
