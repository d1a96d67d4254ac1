package rules

import (
	"fmt"

	"github.com/talgya/hexfront/internal/match"
	"github.com/talgya/hexfront/internal/world"
)

func (p *Processor) moveUnit(s *match.State, a MoveUnit) (string, error) {
	u, err := ownedUnit(s, a.Player, a.UnitID)
	if err != nil {
		return "", err
	}
	if u.Movement <= 0 {
		return "", violation(ErrNoMovement, "%s has no movement left", u.Type)
	}
	dest := s.Grid.Tile(a.To)
	if dest == nil {
		return "", violation(ErrImpassable, "destination %v is off the map", a.To)
	}
	if world.Distance(u.Position, a.To) != 1 {
		return "", violation(ErrNotAdjacent, "destination %v is not adjacent to %v", a.To, u.Position)
	}
	if !dest.Terrain.Passable() {
		return "", violation(ErrImpassable, "cannot enter %s", dest.Terrain)
	}
	if dest.UnitID != "" {
		return "", violation(ErrOccupied, "tile %v is occupied", a.To)
	}
	if city := s.CityAt(a.To); city != nil && city.Owner != a.Player {
		return "", violation(ErrOccupied, "tile %v holds an enemy city", a.To)
	}
	cost := world.MoveCost(dest)
	if cost > u.Movement {
		return "", violation(ErrInsufficientMovement, "moving to %v costs %d, %d left", a.To, cost, u.Movement)
	}

	from := u.Position
	s.MoveUnit(u, a.To)
	u.Movement -= cost
	u.Acted = true
	s.RefreshVisibility(a.Player)
	return fmt.Sprintf("%s moved %v -> %v", u.Type, from, a.To), nil
}

func (p *Processor) attackUnit(s *match.State, a AttackUnit) (string, error) {
	atk, err := ownedUnit(s, a.Player, a.AttackerID)
	if err != nil {
		return "", err
	}
	def, ok := s.Units[a.DefenderID]
	if !ok {
		return "", violation(ErrUnitNotFound, "unit %s not found", a.DefenderID)
	}
	if def.Owner == a.Player {
		return "", violation(ErrFriendlyTarget, "cannot attack your own unit")
	}
	if world.Distance(atk.Position, def.Position) != 1 {
		return "", violation(ErrNotAdjacent, "target is %d tiles away", world.Distance(atk.Position, def.Position))
	}
	atkSpec := atk.Spec()
	if !atkSpec.Military() {
		return "", violation(ErrNotMilitary, "%s cannot attack", atk.Type)
	}
	if atk.Movement <= 0 {
		return "", violation(ErrNoMovement, "%s has no movement left", atk.Type)
	}

	bonus := world.DefenseBonus(s.Grid.Tile(def.Position))
	dmg := Damage(atkSpec.Strength, def.Spec().Strength, bonus, p.RollMultiplier())

	def.Health -= dmg
	atk.Movement = 0
	atk.Acted = true
	atk.Experience += 5

	defOwner := def.Owner
	msg := fmt.Sprintf("%s hit %s for %d", atk.Type, def.Type, dmg)
	if def.Health <= 0 {
		s.RemoveUnit(def.ID)
		msg += fmt.Sprintf(", %s destroyed", def.Type)
	} else {
		def.Experience += 3
	}
	s.RefreshVisibility(a.Player)
	s.RefreshVisibility(defOwner)
	return msg, nil
}

func (p *Processor) foundCity(s *match.State, a FoundCity) (string, error) {
	u, err := ownedUnit(s, a.Player, a.UnitID)
	if err != nil {
		return "", err
	}
	if u.Type != match.UnitSettler {
		return "", violation(ErrNotSettler, "only settlers can found cities")
	}
	at := u.Position
	tile := s.Grid.Tile(at)
	if !tile.Terrain.Passable() {
		return "", violation(ErrImpassable, "cannot found a city on %s", tile.Terrain)
	}
	if tile.CityID != "" {
		return "", violation(ErrCityExists, "tile %v already has a city", at)
	}
	for _, c := range s.Cities {
		if d := world.Distance(c.Position, at); d < MinCityDistance {
			return "", violation(ErrTooCloseToCity, "%s is only %d tiles away", c.Name, d)
		}
	}

	player := s.Player(a.Player)
	name := a.Name
	if name == "" {
		name = nextCityName(player)
	}

	s.RemoveUnit(u.ID)
	city := &match.City{
		ID:          s.NewID("c"),
		Name:        name,
		Owner:       a.Player,
		Position:    at,
		Population:  1,
		Health:      cityBaseHealth,
		MaxHealth:   cityBaseHealth,
		Buildings:   []match.BuildingType{},
		WorkedTiles: []world.HexCoord{at},
		FoundedTurn: s.Turn,
	}
	s.Cities[city.ID] = city
	tile.CityID = city.ID
	city.WorkedTiles = append(city.WorkedTiles, s.BestUnworkedTiles(city, city.Population)...)
	player.Cities = append(player.Cities, city.ID)
	s.RefreshVisibility(a.Player)
	return fmt.Sprintf("founded %s at %v", name, at), nil
}

const cityBaseHealth = 100

func nextCityName(p *match.Player) string {
	if len(p.CityNames) > 0 {
		name := p.CityNames[0]
		p.CityNames = p.CityNames[1:]
		return name
	}
	return fmt.Sprintf("%s %d", p.Civilization, len(p.Cities)+1)
}

func (p *Processor) buildImprovement(s *match.State, a BuildImprovement) (string, error) {
	u, err := ownedUnit(s, a.Player, a.UnitID)
	if err != nil {
		return "", err
	}
	if u.Type != match.UnitWorker {
		return "", violation(ErrNotWorker, "only workers can build improvements")
	}
	if u.Position != a.Target {
		return "", violation(ErrNotOnTile, "worker is at %v, not %v", u.Position, a.Target)
	}
	if u.Movement <= 0 {
		return "", violation(ErrNoMovement, "worker has no movement left")
	}
	tile := s.Grid.Tile(a.Target)
	if tile.Improvement != world.ImprovementNone {
		return "", violation(ErrAlreadyImproved, "tile already has a %s", tile.Improvement)
	}
	valid := world.ValidImprovements(tile)
	if len(valid) == 0 {
		return "", violation(ErrBadImprovement, "nothing can be built on %s", tile.Terrain)
	}

	imp := valid[0]
	if a.Improvement != "" {
		imp, _ = world.ParseImprovement(a.Improvement)
		if !containsImprovement(valid, imp) {
			return "", violation(ErrBadImprovement, "%s cannot be built on %s", imp, tile.Terrain)
		}
	}

	tile.Improvement = imp
	u.Movement = 0
	u.Acted = true
	return fmt.Sprintf("built %s at %v", imp, a.Target), nil
}

func containsImprovement(list []world.Improvement, imp world.Improvement) bool {
	for _, i := range list {
		if i == imp {
			return true
		}
	}
	return false
}

func (p *Processor) changeProduction(s *match.State, a ChangeProduction) (string, error) {
	city, ok := s.Cities[a.CityID]
	if !ok {
		return "", violation(ErrCityNotFound, "city %s not found", a.CityID)
	}
	if city.Owner != a.Player {
		return "", violation(ErrNotOwner, "%s does not belong to you", city.Name)
	}
	player := s.Player(a.Player)

	var cost int
	var requires match.TechID
	switch a.Kind {
	case match.ProduceUnit:
		spec, ok := match.UnitSpecFor(match.UnitType(a.Target))
		if !ok {
			return "", violation(ErrUnknownTarget, "unknown unit %q", a.Target)
		}
		cost, requires = spec.Cost, spec.Requires
	case match.ProduceBuilding:
		b := match.BuildingType(a.Target)
		spec, ok := match.BuildingSpecFor(b)
		if !ok {
			return "", violation(ErrUnknownTarget, "unknown building %q", a.Target)
		}
		if city.HasBuilding(b) {
			return "", violation(ErrAlreadyBuilt, "%s already has a %s", city.Name, b)
		}
		cost, requires = spec.Cost, spec.Requires
	}
	if requires != "" && !player.HasTech(requires) {
		return "", violation(ErrLocked, "%s requires %s", a.Target, requires)
	}

	city.Production = &match.Production{Kind: a.Kind, Target: a.Target, Required: cost}
	return fmt.Sprintf("%s now producing %s", city.Name, a.Target), nil
}

func (p *Processor) researchTechnology(s *match.State, a ResearchTechnology) (string, error) {
	spec, ok := match.TechSpecFor(a.Tech)
	if !ok {
		return "", violation(ErrUnknownTech, "unknown technology %q", a.Tech)
	}
	player := s.Player(a.Player)
	if player.HasTech(a.Tech) {
		return "", violation(ErrAlreadyResearched, "%s already researched", a.Tech)
	}
	for _, req := range spec.Requires {
		if !player.HasTech(req) {
			return "", violation(ErrLocked, "%s requires %s", a.Tech, req)
		}
	}

	if player.Techs == nil {
		player.Techs = make(map[match.TechID]*match.TechProgress)
	}
	if _, ok := player.Techs[a.Tech]; !ok {
		player.Techs[a.Tech] = &match.TechProgress{Required: spec.Cost}
	}
	player.CurrentResearch = a.Tech
	return fmt.Sprintf("researching %s", a.Tech), nil
}

func (p *Processor) endTurn(s *match.State, a EndTurn) (string, error) {
	wrapped := advanceTurn(s)
	msg := fmt.Sprintf("turn passed to %s", s.CurrentPlayerID())
	if wrapped {
		msg = fmt.Sprintf("turn %d begins, %s to play", s.Turn, s.CurrentPlayerID())
	}
	if s.Victory != nil {
		msg = fmt.Sprintf("%s wins by %s", s.Victory.Winner, s.Victory.Type)
	}
	return msg, nil
}
