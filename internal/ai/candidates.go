package ai

import (
	"fmt"
	"sort"

	"github.com/talgya/hexfront/internal/match"
	"github.com/talgya/hexfront/internal/rules"
	"github.com/talgya/hexfront/internal/world"
)

// Candidate priorities.
const (
	priorityFound      = 100.0
	priorityAttack     = 80.0 // Plus the target's threat level
	prioritySettle     = 60.0
	priorityDefendMove = 50.0
	priorityArmyMove   = 45.0
	priorityBuild      = 40.0
	priorityProduction = 35.0
	priorityScout      = 30.0
	priorityExploring  = 20.0 // Bonus for scouting in explore posture
	priorityWorkerMove = 25.0
	priorityPatrol     = 15.0
	priorityResearch   = 20.0
)

// Candidate is one proposed action with its priority and a short rationale.
type Candidate struct {
	Action   rules.Action
	Priority float64
	Reason   string
}

type planContext struct {
	s       *match.State
	p       *match.Player
	k       *Knowledge
	posture Posture
}

// unitCandidates dispatches on unit role. Units with no movement propose nothing.
func (pc *planContext) unitCandidates(u *match.Unit) []Candidate {
	if u.Movement <= 0 {
		return nil
	}
	switch {
	case u.Type == match.UnitSettler:
		return pc.settlerCandidates(u)
	case u.Type == match.UnitWorker:
		return pc.workerCandidates(u)
	case u.Type == match.UnitScout:
		return pc.scoutCandidates(u)
	case u.Spec().Military():
		return pc.militaryCandidates(u)
	}
	return nil
}

func (pc *planContext) settlerCandidates(u *match.Unit) []Candidate {
	site, score, ok := bestSettleSite(pc.s, u.Position, pc.p.Personality, rules.MinCityDistance)
	if !ok {
		return nil
	}
	if site == u.Position {
		return []Candidate{{
			Action:   rules.FoundCity{Player: pc.p.ID, UnitID: u.ID},
			Priority: priorityFound,
			Reason:   fmt.Sprintf("found city at %v (score %.1f)", site, score),
		}}
	}
	if step, ok := stepToward(pc.s, u, site); ok {
		return []Candidate{{
			Action:   rules.MoveUnit{Player: pc.p.ID, UnitID: u.ID, To: step},
			Priority: prioritySettle,
			Reason:   fmt.Sprintf("settler heading for %v", site),
		}}
	}
	return nil
}

func (pc *planContext) militaryCandidates(u *match.Unit) []Candidate {
	if c, ok := pc.attackCandidate(u); ok {
		return []Candidate{c}
	}

	switch pc.posture {
	case PostureDefend:
		if target, ok := nearestCoord(u.Position, pc.ownCityCoords()); ok && world.Distance(u.Position, target) > 1 {
			return pc.moveCandidate(u, target, priorityDefendMove, "falling back to defend %v")
		}
		if _, who := maxThreat(pc.s, pc.p.ID, pc.k); who != nil && world.Distance(u.Position, who.Position) > 1 {
			return pc.moveCandidate(u, who.Position, priorityDefendMove, "intercepting threat at %v")
		}
	case PostureAttack:
		targets := pc.k.allEnemyCities()
		for _, e := range pc.k.allEnemyUnits() {
			targets = append(targets, e.Position)
		}
		if target, ok := nearestCoord(u.Position, targets); ok {
			return pc.moveCandidate(u, target, priorityArmyMove, "advancing on %v")
		}
	}

	if target, ok := pc.nearestUnexplored(u.Position); ok {
		return pc.moveCandidate(u, target, priorityPatrol, "patrolling toward %v")
	}
	return nil
}

func (pc *planContext) attackCandidate(u *match.Unit) (Candidate, bool) {
	var best Candidate
	found := false
	for _, e := range pc.k.allEnemyUnits() {
		if world.Distance(u.Position, e.Position) != 1 {
			continue
		}
		pri := priorityAttack + ThreatFrom(pc.s, pc.p.ID, e)
		if !found || pri > best.Priority {
			best = Candidate{
				Action:   rules.AttackUnit{Player: pc.p.ID, AttackerID: u.ID, DefenderID: e.ID},
				Priority: pri,
				Reason:   fmt.Sprintf("attack %s at %v", e.Type, e.Position),
			}
			found = true
		}
	}
	return best, found
}

func (pc *planContext) scoutCandidates(u *match.Unit) []Candidate {
	target, ok := pc.nearestUnexplored(u.Position)
	if !ok {
		return nil
	}
	pri := priorityScout
	if pc.posture == PostureExplore {
		pri += priorityExploring
	}
	return pc.moveCandidate(u, target, pri, "scouting toward %v")
}

func (pc *planContext) workerCandidates(u *match.Unit) []Candidate {
	target, ok := pc.bestWorkSite(u)
	if !ok {
		return nil
	}
	if target == u.Position {
		return []Candidate{{
			Action:   rules.BuildImprovement{Player: pc.p.ID, UnitID: u.ID, Target: target},
			Priority: priorityBuild,
			Reason:   fmt.Sprintf("improve %v", target),
		}}
	}
	return pc.moveCandidate(u, target, priorityWorkerMove, "worker heading for %v")
}

// bestWorkSite picks the unimproved tile near an owned city with the most to gain.
func (pc *planContext) bestWorkSite(u *match.Unit) (world.HexCoord, bool) {
	var best world.HexCoord
	bestScore := 0.0
	found := false
	seen := make(map[world.HexCoord]bool)
	for _, city := range pc.s.CitiesOf(pc.p.ID) {
		for _, c := range pc.s.Grid.TilesInRange(city.Position, 2) {
			if seen[c] {
				continue
			}
			seen[c] = true
			t := pc.s.Grid.Tile(c)
			if t.Improvement != world.ImprovementNone {
				continue
			}
			valid := world.ValidImprovements(t)
			if len(valid) == 0 {
				continue
			}
			if t.UnitID != "" && t.UnitID != u.ID {
				continue
			}
			gain := float64(world.ImprovementYield(valid[0], t.Terrain).Total() + t.Yield().Total())
			score := gain - 0.5*float64(world.Distance(u.Position, c))
			if !found || score > bestScore {
				best, bestScore, found = c, score, true
			}
		}
	}
	return best, found
}

func (pc *planContext) moveCandidate(u *match.Unit, target world.HexCoord, pri float64, reason string) []Candidate {
	step, ok := stepToward(pc.s, u, target)
	if !ok {
		return nil
	}
	return []Candidate{{
		Action:   rules.MoveUnit{Player: pc.p.ID, UnitID: u.ID, To: step},
		Priority: pri,
		Reason:   fmt.Sprintf(reason, target),
	}}
}

// stepToward returns the greedy step a unit can legally take toward target,
// falling back to the secondary axis when the primary step is blocked.
func stepToward(s *match.State, u *match.Unit, target world.HexCoord) (world.HexCoord, bool) {
	for _, step := range world.GreedySteps(u.Position, target) {
		t := s.Grid.Tile(step)
		if t == nil || !t.Terrain.Passable() || t.UnitID != "" {
			continue
		}
		if city := s.CityAt(step); city != nil && city.Owner != u.Owner {
			continue
		}
		if world.MoveCost(t) > u.Movement {
			continue
		}
		return step, true
	}
	return world.HexCoord{}, false
}

func (pc *planContext) nearestUnexplored(from world.HexCoord) (world.HexCoord, bool) {
	var best world.HexCoord
	bestDist := -1
	for _, t := range pc.s.Grid.Tiles() {
		if pc.k.Explored[t.Coord] {
			continue
		}
		if d := world.Distance(from, t.Coord); bestDist < 0 || d < bestDist {
			best, bestDist = t.Coord, d
		}
	}
	return best, bestDist >= 0
}

func (pc *planContext) ownCityCoords() []world.HexCoord {
	var out []world.HexCoord
	for _, c := range pc.s.CitiesOf(pc.p.ID) {
		out = append(out, c.Position)
	}
	return out
}

func nearestCoord(from world.HexCoord, coords []world.HexCoord) (world.HexCoord, bool) {
	var best world.HexCoord
	bestDist := -1
	for _, c := range coords {
		if d := world.Distance(from, c); bestDist < 0 || d < bestDist {
			best, bestDist = c, d
		}
	}
	return best, bestDist >= 0
}

// productionCandidate proposes an order for a city that has none.
func (pc *planContext) productionCandidate(city *match.City) (Candidate, bool) {
	if city.Production != nil {
		return Candidate{}, false
	}
	kind, target, why := pc.chooseProduction(city)
	if target == "" {
		return Candidate{}, false
	}
	return Candidate{
		Action:   rules.ChangeProduction{Player: pc.p.ID, CityID: city.ID, Kind: kind, Target: target},
		Priority: priorityProduction,
		Reason:   fmt.Sprintf("%s builds %s: %s", city.Name, target, why),
	}, true
}

func (pc *planContext) chooseProduction(city *match.City) (match.ProductionKind, string, string) {
	counts := make(map[match.UnitType]int)
	military := 0
	for _, u := range pc.s.UnitsOf(pc.p.ID) {
		counts[u.Type]++
		if u.Spec().Military() && u.Type != match.UnitScout {
			military++
		}
	}
	cities := len(pc.p.Cities)

	switch {
	case (pc.posture == PostureDefend || pc.posture == PostureAttack) || military < cities:
		return match.ProduceUnit, string(pc.bestMilitaryUnit()), "army"
	case pc.posture == PostureExpand && counts[match.UnitSettler] == 0 && cities < cityCapFor(pc.p.Personality):
		return match.ProduceUnit, string(match.UnitSettler), "expansion"
	case counts[match.UnitWorker] < cities:
		return match.ProduceUnit, string(match.UnitWorker), "tile improvement"
	}

	for _, b := range preferredBuildings(pc.p.Personality) {
		spec, _ := match.BuildingSpecFor(b)
		if city.HasBuilding(b) || (spec.Requires != "" && !pc.p.HasTech(spec.Requires)) {
			continue
		}
		return match.ProduceBuilding, string(b), "infrastructure"
	}
	return match.ProduceUnit, string(pc.bestMilitaryUnit()), "garrison"
}

// bestMilitaryUnit returns the strongest unlocked attacking unit, scouts excluded.
func (pc *planContext) bestMilitaryUnit() match.UnitType {
	best := match.UnitWarrior
	bestStrength := 0
	for _, t := range match.UnitTypes() {
		spec, _ := match.UnitSpecFor(t)
		if !spec.Military() || t == match.UnitScout {
			continue
		}
		if spec.Requires != "" && !pc.p.HasTech(spec.Requires) {
			continue
		}
		if spec.Strength > bestStrength {
			best, bestStrength = t, spec.Strength
		}
	}
	return best
}

func preferredBuildings(p match.Personality) []match.BuildingType {
	switch p {
	case match.PersonalityScientific:
		return []match.BuildingType{match.BuildingLibrary, match.BuildingMonument, match.BuildingGranary, match.BuildingWorkshop, match.BuildingShrine, match.BuildingMarket, match.BuildingWalls}
	case match.PersonalityEconomic, match.PersonalityExpansive:
		return []match.BuildingType{match.BuildingGranary, match.BuildingMarket, match.BuildingWorkshop, match.BuildingMonument, match.BuildingLibrary, match.BuildingShrine, match.BuildingWalls}
	case match.PersonalityAggressive:
		return []match.BuildingType{match.BuildingWalls, match.BuildingWorkshop, match.BuildingGranary, match.BuildingMonument, match.BuildingShrine, match.BuildingLibrary, match.BuildingMarket}
	}
	return []match.BuildingType{match.BuildingMonument, match.BuildingGranary, match.BuildingWorkshop, match.BuildingLibrary, match.BuildingShrine, match.BuildingMarket, match.BuildingWalls}
}

func preferredCategory(p match.Personality) match.TechCategory {
	switch p {
	case match.PersonalityAggressive:
		return match.CategoryMilitary
	case match.PersonalityEconomic, match.PersonalityExpansive:
		return match.CategoryEconomy
	case match.PersonalityScientific:
		return match.CategoryScience
	}
	return ""
}

// researchCandidate proposes one technology when nothing is being researched.
// Available techs in the personality's category come first, then cheapest.
func (pc *planContext) researchCandidate() (Candidate, bool) {
	if pc.p.CurrentResearch != "" {
		return Candidate{}, false
	}
	want := preferredCategory(pc.p.Personality)

	var options []match.TechID
	for _, id := range match.TechIDs() {
		if pc.p.HasTech(id) {
			continue
		}
		spec, _ := match.TechSpecFor(id)
		ready := true
		for _, req := range spec.Requires {
			if !pc.p.HasTech(req) {
				ready = false
				break
			}
		}
		if ready {
			options = append(options, id)
		}
	}
	if len(options) == 0 {
		return Candidate{}, false
	}

	sort.SliceStable(options, func(i, j int) bool {
		a, _ := match.TechSpecFor(options[i])
		b, _ := match.TechSpecFor(options[j])
		if (a.Category == want) != (b.Category == want) {
			return a.Category == want
		}
		return a.Cost < b.Cost
	})
	return Candidate{
		Action:   rules.ResearchTechnology{Player: pc.p.ID, Tech: options[0]},
		Priority: priorityResearch,
		Reason:   fmt.Sprintf("research %s", options[0]),
	}, true
}
